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

// Package impact implements C10 GraphImpactAnalyzer: classifying changed
// symbols (MODIFIED/DELETED/SIGNATURE_CHANGED) and computing their direct
// and bounded-transitive affected closure over the symbol graph (spec
// §4.10), with impact-chain provenance recording the edge kind traversed
// at each hop (SPEC_FULL §C.4).
package impact

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// DefaultMaxDepth bounds the transitive BFS (spec §4.10).
const DefaultMaxDepth = 3

// DefaultMaxAffected bounds the total number of symbols the BFS will visit
// (spec §4.10).
const DefaultMaxAffected = 500

// impactEdgeKinds is the edge-kind set an inbound reference counts as
// direct impact (spec §4.10: "CALLS, REFERENCES_*, INHERITS").
var impactEdgeKinds = map[model.EdgeKind]bool{
	model.EdgeCalls:            true,
	model.EdgeReferencesSymbol: true,
	model.EdgeReferencesType:   true,
	model.EdgeInherits:         true,
}

// Analyzer implements C10 GraphImpactAnalyzer.
type Analyzer struct {
	logger      *slog.Logger
	maxDepth    int
	maxAffected int
}

// New constructs an Analyzer. Zero maxDepth/maxAffected fall back to the
// spec defaults; a nil logger defaults to slog.Default().
func New(maxDepth, maxAffected int, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if maxAffected <= 0 {
		maxAffected = DefaultMaxAffected
	}
	return &Analyzer{logger: logger, maxDepth: maxDepth, maxAffected: maxAffected}
}

// DetectSymbolChanges classifies each changed symbol as MODIFIED, DELETED,
// or SIGNATURE_CHANGED by diffing old and new graphs (spec §4.10).
// SIGNATURE_CHANGED is reported only when the node's SignatureID differs
// between the graphs, and its Detail is then always
// DetailReturnTypeChanged; parameter and return types are not compared.
func (a *Analyzer) DetectSymbolChanges(oldGraph, newGraph *ports.GraphDocument, changedFiles []string) []model.SymbolChange {
	changedSet := make(map[string]bool, len(changedFiles))
	for _, f := range changedFiles {
		changedSet[f] = true
	}

	var changes []model.SymbolChange
	seen := make(map[string]bool)

	for id, oldNode := range oldGraph.Nodes {
		if !changedSet[oldNode.FilePath] {
			continue
		}
		seen[id] = true
		newNode, exists := newGraph.Nodes[id]
		if !exists {
			changes = append(changes, model.SymbolChange{SymbolID: id, FilePath: oldNode.FilePath, Kind: model.SymbolDeleted})
			continue
		}
		if detail, changed := signatureDiff(oldGraph, newGraph, oldNode, newNode); changed {
			changes = append(changes, model.SymbolChange{SymbolID: id, FilePath: newNode.FilePath, Kind: model.SymbolSignatureChanged, Detail: detail})
			continue
		}
		changes = append(changes, model.SymbolChange{SymbolID: id, FilePath: newNode.FilePath, Kind: model.SymbolModified})
	}

	for id, newNode := range newGraph.Nodes {
		if seen[id] || !changedSet[newNode.FilePath] {
			continue
		}
		changes = append(changes, model.SymbolChange{SymbolID: id, FilePath: newNode.FilePath, Kind: model.SymbolModified})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].SymbolID < changes[j].SymbolID })
	return changes
}

func signatureDiff(oldGraph, newGraph *ports.GraphDocument, oldNode, newNode model.Node) (model.SignatureChangeDetail, bool) {
	if oldNode.SignatureID == "" && newNode.SignatureID == "" {
		return "", false
	}
	if oldNode.SignatureID != newNode.SignatureID {
		return model.DetailReturnTypeChanged, true
	}
	return "", false
}

// AnalyzeImpact computes the direct and bounded-transitive affected closure
// of a set of symbol changes (spec §4.10). Direct affected symbols are the
// sources of a CALLS/REFERENCES_*/INHERITS edge into a changed symbol; transitive
// affected symbols are reached by BFS from there, bounded by maxDepth and
// maxAffected.
func (a *Analyzer) AnalyzeImpact(ctx context.Context, graph *ports.GraphDocument, changes []model.SymbolChange) *model.ImpactResult {
	result := &model.ImpactResult{ImpactChains: make(map[string][]model.ImpactChainHop)}
	if len(changes) == 0 {
		return result
	}

	inbound := buildInboundIndex(graph)

	rootIDs := make([]string, 0, len(changes))
	for _, c := range changes {
		rootIDs = append(rootIDs, c.SymbolID)
	}

	visited := make(map[string]bool, len(rootIDs))
	for _, id := range rootIDs {
		visited[id] = true
	}

	directSet := make(map[string]bool)
	for _, root := range rootIDs {
		for _, hop := range inbound[root] {
			if visited[hop.symbolID] {
				continue
			}
			directSet[hop.symbolID] = true
		}
	}
	for id := range directSet {
		visited[id] = true
		result.DirectAffected = append(result.DirectAffected, id)
	}
	sort.Strings(result.DirectAffected)

	type frontierEntry struct {
		symbolID string
		root     string
		depth    int
	}
	var frontier []frontierEntry
	for _, root := range rootIDs {
		for _, hop := range inbound[root] {
			if !directSet[hop.symbolID] {
				continue
			}
			frontier = append(frontier, frontierEntry{symbolID: hop.symbolID, root: root, depth: 1})
			result.ImpactChains[root] = append(result.ImpactChains[root], model.ImpactChainHop{SymbolID: hop.symbolID, EdgeKind: hop.kind})
		}
	}

	transitiveSet := make(map[string]bool)
	depth := 1
	total := len(visited)
	for len(frontier) > 0 && depth < a.maxDepth {
		var next []frontierEntry
		for _, entry := range frontier {
			if total >= a.maxAffected {
				result.Truncated = true
				break
			}
			for _, hop := range inbound[entry.symbolID] {
				if visited[hop.symbolID] {
					continue
				}
				visited[hop.symbolID] = true
				transitiveSet[hop.symbolID] = true
				total++
				result.ImpactChains[entry.root] = append(result.ImpactChains[entry.root], model.ImpactChainHop{SymbolID: hop.symbolID, EdgeKind: hop.kind})
				next = append(next, frontierEntry{symbolID: hop.symbolID, root: entry.root, depth: entry.depth + 1})
				if total >= a.maxAffected {
					result.Truncated = true
					break
				}
			}
			if result.Truncated {
				break
			}
		}
		frontier = next
		depth++
	}
	if len(frontier) > 0 && depth >= a.maxDepth {
		result.Truncated = true
	}

	for id := range transitiveSet {
		result.TransitiveAffected = append(result.TransitiveAffected, id)
	}
	sort.Strings(result.TransitiveAffected)

	fileSet := make(map[string]bool)
	for _, id := range append(append([]string{}, result.DirectAffected...), result.TransitiveAffected...) {
		if n, ok := graph.Nodes[id]; ok {
			fileSet[n.FilePath] = true
		}
	}
	for f := range fileSet {
		result.AffectedFiles = append(result.AffectedFiles, f)
	}
	sort.Strings(result.AffectedFiles)

	a.logger.Info("impact.analyze.complete",
		"direct", len(result.DirectAffected), "transitive", len(result.TransitiveAffected),
		"affected_files", len(result.AffectedFiles), "truncated", result.Truncated)

	return result
}

// GraphHook adapts Analyzer to the narrow graph.ImpactAnalyzer interface
// consumed by step 5 of the incremental graph protocol (spec §4.7), which
// only has a repo ID and a ChangeSet in hand — not two full graph
// snapshots. It loads the just-upserted graph from store and treats every
// symbol in an added/modified/deleted file as a SymbolChange, since the
// precise old-vs-new diff (DetectSymbolChanges) requires the pre-change
// graph the incremental protocol has already discarded by step 5.
type GraphHook struct {
	analyzer *Analyzer
	store    ports.GraphStore
}

// NewGraphHook constructs a GraphHook bound to a GraphStore and Analyzer.
func NewGraphHook(analyzer *Analyzer, store ports.GraphStore) *GraphHook {
	return &GraphHook{analyzer: analyzer, store: store}
}

// AnalyzeImpact loads the current graph for (repoID, changes-implied
// snapshot) and runs the bounded BFS over every symbol touched by the
// change set (spec §4.7 step 5).
func (h *GraphHook) AnalyzeImpact(ctx context.Context, repoID string, changes *model.ChangeSet) (*model.ImpactResult, error) {
	graph, err := h.store.LoadGraph(ctx, repoID, "")
	if err != nil {
		return nil, err
	}
	if graph == nil {
		return &model.ImpactResult{ImpactChains: make(map[string][]model.ImpactChainHop)}, nil
	}

	touched := toFileSet(changes.AllPaths())
	var symbolChanges []model.SymbolChange
	for id, n := range graph.Nodes {
		if !touched[n.FilePath] {
			continue
		}
		kind := model.SymbolModified
		for _, d := range changes.Deleted {
			if d == n.FilePath {
				kind = model.SymbolDeleted
				break
			}
		}
		symbolChanges = append(symbolChanges, model.SymbolChange{SymbolID: id, FilePath: n.FilePath, Kind: kind})
	}

	return h.analyzer.AnalyzeImpact(ctx, graph, symbolChanges), nil
}

func toFileSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}

type inboundHop struct {
	symbolID string
	kind     model.EdgeKind
}

// buildInboundIndex maps target symbol ID -> sources that reference it via
// an impact-eligible edge kind.
func buildInboundIndex(graph *ports.GraphDocument) map[string][]inboundHop {
	idx := make(map[string][]inboundHop)
	for _, e := range graph.Edges {
		if !impactEdgeKinds[e.Kind] {
			continue
		}
		idx[e.TargetID] = append(idx[e.TargetID], inboundHop{symbolID: e.SourceID, kind: e.Kind})
	}
	return idx
}
