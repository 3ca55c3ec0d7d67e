// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ports declares the external collaborator interfaces this core
// depends on (spec §6): storage backends, the five indexes, the embedding
// queue, the progress/job stores, and the external type analyzer. Every
// port is a narrow interface so any conforming implementation — in-memory,
// embedded, or a remote service client — can be dependency-injected from
// the composition root (spec §9, "no module-level singletons").
package ports

import (
	"context"

	"github.com/kraklabs/coreindex/pkg/model"
)

// SaveMode controls collision resolution for GraphStore.SaveGraph.
type SaveMode string

const (
	// SaveReplace discards the previous graph for (repo, snapshot) entirely.
	SaveReplace SaveMode = "replace"
	// SaveUpsert merges into the existing graph; on node/edge ID collision,
	// attributes of the stored entity are overwritten (spec §9 open
	// question (a), resolved in DESIGN.md).
	SaveUpsert SaveMode = "upsert"
)

// GraphStore persists the symbol graph (spec §6).
type GraphStore interface {
	SaveGraph(ctx context.Context, doc *GraphDocument, mode SaveMode) error
	LoadGraph(ctx context.Context, repoID, snapshotID string) (*GraphDocument, error)
	DeleteNodesForDeletedFiles(ctx context.Context, repoID string, paths []string) (int, error)
	DeleteOutboundEdgesByFilePaths(ctx context.Context, repoID string, paths []string) (int, error)
	DeleteOrphanModuleNodes(ctx context.Context, repoID string) (int, error)
}

// GraphDocument is the persisted symbol graph for one (repo, snapshot).
type GraphDocument struct {
	RepoID     string
	SnapshotID string
	Nodes      map[string]model.Node
	Edges      map[string]model.Edge
}

// NewGraphDocument returns an empty, initialized GraphDocument.
func NewGraphDocument(repoID, snapshotID string) *GraphDocument {
	return &GraphDocument{
		RepoID:     repoID,
		SnapshotID: snapshotID,
		Nodes:      make(map[string]model.Node),
		Edges:      make(map[string]model.Edge),
	}
}

// ChunkStore persists chunks (spec §6).
type ChunkStore interface {
	SaveChunks(ctx context.Context, chunks []model.Chunk) error
	GetChunksBatch(ctx context.Context, ids []string) (map[string]model.Chunk, error)
	DeleteChunk(ctx context.Context, id string) error
}

// LexicalIndex is a full-text index over chunk content (spec §6).
type LexicalIndex interface {
	ReindexRepo(ctx context.Context, repoID, snapshotID string) error
	ReindexPaths(ctx context.Context, repoID, snapshotID string, paths []string) error
	Delete(ctx context.Context, repoID, snapshotID string, ids []string) error
}

// LexicalDelta is an optional base+delta capability of a LexicalIndex
// (spec §4.11: "only the delta layer is updated per changed file").
type LexicalDelta interface {
	IndexFile(ctx context.Context, repoID, path, content string) error
}

// VectorDoc is one document submitted to a VectorIndex.
type VectorDoc struct {
	ID       string
	Content  string
	Payload  map[string]string
	Priority model.IndexPriority
}

// VectorHit is one scored result from VectorIndex.Search.
type VectorHit struct {
	ID      string
	Score   float64
	Payload map[string]string
}

// VectorIndex is a semantic/embedding index over chunk content (spec §6).
type VectorIndex interface {
	Index(ctx context.Context, repoID, snapshotID string, docs []VectorDoc) error
	Search(ctx context.Context, collection, query string, limit int, scoreThreshold float64) ([]VectorHit, error)
	Delete(ctx context.Context, repoID, snapshotID string, ids []string) error
}

// SymbolIndex indexes the full graph document for symbol lookups (spec §6).
type SymbolIndex interface {
	IndexGraph(ctx context.Context, repoID, snapshotID string, graph *GraphDocument) error
	Search(ctx context.Context, repoID, snapshotID, query string, limit int) ([]model.Node, error)
}

// FlatDoc is a flattened identifier/document view fed to FuzzyIndex and
// DomainIndex (spec §4.11).
type FlatDoc struct {
	ID      string
	Text    string
	Payload map[string]string
}

// FuzzyIndex supports approximate identifier matching (spec §6).
type FuzzyIndex interface {
	Index(ctx context.Context, repoID, snapshotID string, docs []FlatDoc) error
}

// DomainIndex supports domain-specific document lookups (spec §6).
type DomainIndex interface {
	Index(ctx context.Context, repoID, snapshotID string, docs []FlatDoc) error
}

// EmbeddingQueue absorbs medium/low priority chunks for background
// embedding (spec §4.11, §5 back-pressure).
type EmbeddingQueue interface {
	Enqueue(ctx context.Context, chunks []model.Chunk, repoID, snapshotID string) (int, error)
}

// ProgressStore persists JobProgress durably enough to survive a process
// restart (spec §6).
type ProgressStore interface {
	Persist(ctx context.Context, p model.JobProgress) error
	Load(ctx context.Context, jobID string) (*model.JobProgress, error)
}

// TypeHover is the result of ExternalTypeAnalyzer.Hover.
type TypeHover struct {
	Type      string
	Signature string
}

// TypeDefinition is the result of ExternalTypeAnalyzer.Definition.
type TypeDefinition struct {
	File string
	Line int
	FQN  string
}

// ExternalTypeAnalyzer is invoked optionally by ExpressionBuilder for type
// enrichment (spec §6).
type ExternalTypeAnalyzer interface {
	Hover(ctx context.Context, file string, line, col int) (*TypeHover, error)
	Definition(ctx context.Context, file string, line, col int) (*TypeDefinition, error)
}

// JobStore is CRUD for IndexJob records (spec §6); the coordinator
// persists every status transition here.
type JobStore interface {
	Create(ctx context.Context, job model.IndexJob) error
	Update(ctx context.Context, job model.IndexJob) error
	Get(ctx context.Context, id string) (*model.IndexJob, error)
	List(ctx context.Context, repoID, snapshotID string) ([]model.IndexJob, error)
}
