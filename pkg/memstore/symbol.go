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
	"sort"
	"strings"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// SymbolIndex adapts a shared Store to ports.SymbolIndex.
type SymbolIndex struct {
	store *Store
}

// NewSymbolIndex wraps a shared Store as a ports.SymbolIndex.
func NewSymbolIndex(store *Store) *SymbolIndex {
	return &SymbolIndex{store: store}
}

// IndexGraph stores a snapshot of graph's nodes for symbol lookups (spec
// §6 SymbolIndex.index_graph).
func (x *SymbolIndex) IndexGraph(ctx context.Context, repoID, snapshotID string, graph *ports.GraphDocument) error {
	s := x.store
	nodes := make([]model.Node, 0, len(graph.Nodes))
	for _, n := range graph.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbolNodes[collectionKey(repoID, snapshotID)] = nodes
	return nil
}

// Search returns nodes whose name or FQN contains query (case-insensitive
// substring match), ranked exact-name matches first (spec §6
// SymbolIndex.search).
func (x *SymbolIndex) Search(ctx context.Context, repoID, snapshotID, query string, limit int) ([]model.Node, error) {
	s := x.store
	s.mu.RLock()
	nodes := s.symbolNodes[collectionKey(repoID, snapshotID)]
	s.mu.RUnlock()

	q := strings.ToLower(query)
	var exact, partial []model.Node
	for _, n := range nodes {
		name := strings.ToLower(n.Name)
		if name == q {
			exact = append(exact, n)
			continue
		}
		if strings.Contains(name, q) || strings.Contains(strings.ToLower(n.FQN), q) {
			partial = append(partial, n)
		}
	}

	results := append(exact, partial...)
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}
