// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package graph implements C6 GraphBuilder: turning an IRDocument (refined
// by an optional SemanticSnapshot) into the persisted symbol graph, and
// applying incremental updates under the strict six-step protocol (spec
// §4.7).
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// Builder implements C6 GraphBuilder.
type Builder struct {
	logger *slog.Logger
	store  ports.GraphStore
}

// New constructs a Builder bound to a GraphStore. A nil logger defaults to
// slog.Default().
func New(store ports.GraphStore, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger, store: store}
}

// BuildFull consumes the IR and an optional SemanticSnapshot to produce a
// fresh GraphDocument (spec §4.7, "build_full(ir_doc, semantic_snapshot?)").
// Symbolic DFG param_to_arg edges are folded in as CALLS edges from the
// calling function to a function or method node whose name matches the
// callee, adding call edges the structural IR alone does not record.
func (b *Builder) BuildFull(doc *model.IRDocument, snapshot *model.SemanticSnapshot) *ports.GraphDocument {
	g := ports.NewGraphDocument(doc.RepoID, doc.SnapshotID)

	for _, n := range doc.Nodes {
		g.Nodes[n.ID] = n
	}
	for _, e := range doc.Edges {
		g.Edges[e.ID] = e
	}

	if snapshot != nil {
		b.foldSemanticEdges(g, snapshot)
	}

	return g
}

// foldSemanticEdges derives additional CALLS edges from DFG param_to_arg
// edges whose callee resolved to a concrete function node, since the
// structural IR only records declarations, not call sites.
func (b *Builder) foldSemanticEdges(g *ports.GraphDocument, snapshot *model.SemanticSnapshot) {
	bySymbolicTarget := make(map[string]string) // symbolic callee id -> resolved node id, left empty here
	_ = bySymbolicTarget

	for i, e := range snapshot.DataFlowEdges {
		if e.Kind != model.DFGParamToArg || !e.Symbolic {
			continue
		}
		// Best-effort: the symbolic callee id embeds the callee name; if a
		// node with a matching FQN exists in this graph, link a CALLS edge
		// from the edge's owning function to it. Unresolved callees (the
		// common case for cross-package calls before full linking) are
		// left as advisory DFG-only edges.
		for _, n := range g.Nodes {
			if n.Kind != model.NodeFunction && n.Kind != model.NodeMethod {
				continue
			}
			if !symbolicTargetMatches(e.TargetID, n.Name) {
				continue
			}
			edgeID := model.EdgeID(model.EdgeCalls, e.FunctionID, n.ID, i)
			g.Edges[edgeID] = model.Edge{
				ID: edgeID, Kind: model.EdgeCalls, SourceID: e.FunctionID, TargetID: n.ID,
				Attrs: map[string]string{"derived_from": "dfg_param_to_arg"},
			}
		}
	}
}

func symbolicTargetMatches(symbolicID, fnName string) bool {
	return symbolicID == model.SymbolicCalleeParamID(fnName, 0) ||
		len(symbolicID) > len("callee:")+len(fnName) && symbolicID[len("callee:"):len("callee:")+len(fnName)] == fnName
}

// ApplyIncremental runs the strict six-step incremental graph protocol
// (spec §4.7). It mutates the store in place, returning the refreshed
// in-memory document for the orchestrator's progress reporting.
func (b *Builder) ApplyIncremental(ctx context.Context, repoID string, existing *ports.GraphDocument, doc *model.IRDocument, snapshot *model.SemanticSnapshot, changes *model.ChangeSet, validator StaleMarker, impact ImpactAnalyzer) (*ports.GraphDocument, error) {
	if existing == nil {
		existing = ports.NewGraphDocument(repoID, doc.SnapshotID)
	}

	// Step 1: mark stale cross-file backward edges.
	if validator != nil {
		if _, err := validator.MarkStaleEdges(ctx, repoID, changes.AllPaths(), existing); err != nil {
			return nil, fmt.Errorf("graph incremental step1 mark_stale: %w", err)
		}
	}

	// Step 2: delete nodes of deleted files; cascade + orphan cleanup.
	if len(changes.Deleted) > 0 {
		if _, err := b.store.DeleteNodesForDeletedFiles(ctx, repoID, changes.Deleted); err != nil {
			return nil, fmt.Errorf("graph incremental step2 delete_nodes: %w", err)
		}
		if validator != nil {
			deletedIDs := nodeIDsInFiles(existing, changes.Deleted)
			validator.MarkDeletedSymbolEdges(ctx, repoID, deletedIDs, existing)
		}
		if _, err := b.store.DeleteOrphanModuleNodes(ctx, repoID); err != nil {
			return nil, fmt.Errorf("graph incremental step2 delete_orphans: %w", err)
		}
		removeFilesFromDocument(existing, changes.Deleted)
	}

	// Step 3: delete outbound edges of modified files, keep their nodes.
	if len(changes.Modified) > 0 {
		if _, err := b.store.DeleteOutboundEdgesByFilePaths(ctx, repoID, changes.Modified); err != nil {
			return nil, fmt.Errorf("graph incremental step3 delete_outbound: %w", err)
		}
		removeOutboundEdges(existing, changes.Modified)
	}

	// Step 4: build the new graph for added+modified files, upsert.
	fresh := b.BuildFull(doc, snapshot)
	for id, n := range fresh.Nodes {
		existing.Nodes[id] = n
	}
	for id, e := range fresh.Edges {
		existing.Edges[id] = e
	}
	if err := b.store.SaveGraph(ctx, existing, ports.SaveUpsert); err != nil {
		return nil, fmt.Errorf("graph incremental step4 save: %w", err)
	}

	// Step 5: analyze impact.
	if impact != nil {
		if _, err := impact.AnalyzeImpact(ctx, repoID, changes); err != nil {
			b.logger.Warn("graph.incremental.impact_failed", "repo_id", repoID, "err", err)
		}
	}

	// Step 6: clear stale entries for files now reindexed.
	if validator != nil {
		reindexed := append(append([]string{}, changes.Added...), changes.Modified...)
		validator.ClearStaleFor(ctx, repoID, reindexed)
	}

	return existing, nil
}

// StaleMarker is the subset of EdgeValidator the incremental protocol needs
// (kept narrow here to avoid an import cycle between pkg/graph and
// pkg/validator; the concrete *validator.Validator satisfies it).
type StaleMarker interface {
	MarkStaleEdges(ctx context.Context, repoID string, changedFiles []string, graph *ports.GraphDocument) ([]model.StaleEdgeInfo, error)
	MarkDeletedSymbolEdges(ctx context.Context, repoID string, deletedSymbolIDs []string, graph *ports.GraphDocument)
	ClearStaleFor(ctx context.Context, repoID string, reindexedFiles []string)
}

// ImpactAnalyzer is the subset of GraphImpactAnalyzer the incremental
// protocol invokes at step 5.
type ImpactAnalyzer interface {
	AnalyzeImpact(ctx context.Context, repoID string, changes *model.ChangeSet) (*model.ImpactResult, error)
}

func nodeIDsInFiles(g *ports.GraphDocument, paths []string) []string {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	var ids []string
	for id, n := range g.Nodes {
		if set[n.FilePath] {
			ids = append(ids, id)
		}
	}
	return ids
}

func removeFilesFromDocument(g *ports.GraphDocument, paths []string) {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	for id, n := range g.Nodes {
		if set[n.FilePath] {
			delete(g.Nodes, id)
		}
	}
	for id, e := range g.Edges {
		if set[e.SourceFile] || set[e.TargetFile] {
			delete(g.Edges, id)
		}
	}
}

func removeOutboundEdges(g *ports.GraphDocument, paths []string) {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	for id, e := range g.Edges {
		if set[e.SourceFile] {
			delete(g.Edges, id)
		}
	}
}
