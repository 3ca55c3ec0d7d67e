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

package memstore

import (
	"context"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// GraphStore adapts a shared Store to ports.GraphStore.
type GraphStore struct {
	store *Store
}

// NewGraphStore wraps a shared Store as a ports.GraphStore.
func NewGraphStore(store *Store) *GraphStore {
	return &GraphStore{store: store}
}

// SaveGraph persists doc under (repo, snapshot). SaveReplace discards any
// previous graph for that key; SaveUpsert merges in, overwriting node/edge
// attributes on ID collision (spec §9 open question (a), resolved
// "upsert overwrites" in DESIGN.md).
func (g *GraphStore) SaveGraph(ctx context.Context, doc *ports.GraphDocument, mode ports.SaveMode) error {
	s := g.store
	s.mu.Lock()
	defer s.mu.Unlock()

	repoGraphs, ok := s.graphs[doc.RepoID]
	if !ok {
		repoGraphs = make(map[string]*ports.GraphDocument)
		s.graphs[doc.RepoID] = repoGraphs
	}

	if mode == ports.SaveReplace {
		repoGraphs[doc.SnapshotID] = cloneGraph(doc)
		s.latest[doc.RepoID] = doc.SnapshotID
		return nil
	}

	existing, ok := repoGraphs[doc.SnapshotID]
	if !ok {
		existing = ports.NewGraphDocument(doc.RepoID, doc.SnapshotID)
		repoGraphs[doc.SnapshotID] = existing
	}
	for id, n := range doc.Nodes {
		existing.Nodes[id] = n
	}
	for id, e := range doc.Edges {
		existing.Edges[id] = e
	}
	s.latest[doc.RepoID] = doc.SnapshotID
	return nil
}

// LoadGraph returns the graph for (repo, snapshot). An empty snapshotID
// resolves to the most recently saved snapshot for that repo — used by
// impact.GraphHook, which only has a repo ID and a ChangeSet in hand.
func (g *GraphStore) LoadGraph(ctx context.Context, repoID, snapshotID string) (*ports.GraphDocument, error) {
	s := g.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	if snapshotID == "" {
		snapshotID = s.latest[repoID]
	}
	doc, ok := s.graphs[repoID][snapshotID]
	if !ok {
		return nil, nil
	}
	return cloneGraph(doc), nil
}

// DeleteNodesForDeletedFiles removes every node (and edge touching a
// removed node) whose file path is in paths, from the repo's latest
// graph — the working copy the incremental protocol mutates in place
// (spec §4.7 step 2).
func (g *GraphStore) DeleteNodesForDeletedFiles(ctx context.Context, repoID string, paths []string) (int, error) {
	s := g.store
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.latestGraphLocked(repoID)
	if doc == nil {
		return 0, nil
	}

	set := toSet(paths)
	removed := make(map[string]bool)
	for id, n := range doc.Nodes {
		if set[n.FilePath] {
			delete(doc.Nodes, id)
			removed[id] = true
		}
	}
	for id, e := range doc.Edges {
		if removed[e.SourceID] || removed[e.TargetID] || set[e.SourceFile] || set[e.TargetFile] {
			delete(doc.Edges, id)
		}
	}
	return len(removed), nil
}

// DeleteOutboundEdgesByFilePaths removes every edge whose source file is
// in paths, from the repo's latest graph, leaving the nodes themselves
// intact (spec §4.7 step 3: modified files keep their nodes, lose their
// outbound edges pending rebuild).
func (g *GraphStore) DeleteOutboundEdgesByFilePaths(ctx context.Context, repoID string, paths []string) (int, error) {
	s := g.store
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.latestGraphLocked(repoID)
	if doc == nil {
		return 0, nil
	}

	set := toSet(paths)
	removed := 0
	for id, e := range doc.Edges {
		if set[e.SourceFile] {
			delete(doc.Edges, id)
			removed++
		}
	}
	return removed, nil
}

// DeleteOrphanModuleNodes removes MODULE nodes whose file no longer has
// any other node left in the graph, reclaiming the placeholder a file's
// last real symbol leaves behind once deleted.
func (g *GraphStore) DeleteOrphanModuleNodes(ctx context.Context, repoID string) (int, error) {
	s := g.store
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.latestGraphLocked(repoID)
	if doc == nil {
		return 0, nil
	}

	filesWithSymbols := make(map[string]bool)
	for _, n := range doc.Nodes {
		if n.Kind != model.NodeModule {
			filesWithSymbols[n.FilePath] = true
		}
	}

	removed := 0
	for id, n := range doc.Nodes {
		if n.Kind == model.NodeModule && !filesWithSymbols[n.FilePath] {
			delete(doc.Nodes, id)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) latestGraphLocked(repoID string) *ports.GraphDocument {
	snap, ok := s.latest[repoID]
	if !ok {
		return nil
	}
	return s.graphs[repoID][snap]
}

func cloneGraph(doc *ports.GraphDocument) *ports.GraphDocument {
	clone := ports.NewGraphDocument(doc.RepoID, doc.SnapshotID)
	for id, n := range doc.Nodes {
		clone.Nodes[id] = n
	}
	for id, e := range doc.Edges {
		clone.Edges[id] = e
	}
	return clone
}
