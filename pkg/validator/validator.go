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

// Package validator implements C9 EdgeValidator: marking cross-file edges
// stale on change, lazy revalidation on the query path, and TTL-based
// cleanup (spec §4.9). Stale state lives in-memory, per-repo, owned by the
// Validator instance — never a package-level singleton (spec §9).
package validator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// DefaultTTL is the default stale-edge retention window (spec §4.9).
const DefaultTTL = 24 * time.Hour

// Validator implements C9 EdgeValidator.
type Validator struct {
	logger *slog.Logger
	ttl    time.Duration

	mu    sync.Mutex
	stale map[string]map[string]model.StaleEdgeInfo // repo_id -> edge_id -> info
}

// New constructs a Validator with the given TTL. A zero ttl uses DefaultTTL;
// a nil logger defaults to slog.Default().
func New(ttl time.Duration, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Validator{
		logger: logger,
		ttl:    ttl,
		stale:  make(map[string]map[string]model.StaleEdgeInfo),
	}
}

// MarkStaleEdges marks cross-file edges whose target sits in a changed file
// stale with reason target_modified (spec §4.9). Only edges whose kind is
// stale-tracked, whose source file is unchanged, and whose source file
// differs from the target file are marked — same-file edges are refreshed
// for free when that file is reindexed.
func (v *Validator) MarkStaleEdges(ctx context.Context, repoID string, changedFiles []string, graph *ports.GraphDocument) ([]model.StaleEdgeInfo, error) {
	changedSet := toSet(changedFiles)
	changedSymbols := make(map[string]bool)
	for id, n := range graph.Nodes {
		if changedSet[n.FilePath] {
			changedSymbols[id] = true
		}
	}
	if len(changedSymbols) == 0 {
		return nil, nil
	}

	now := time.Now().Unix()
	var marked []model.StaleEdgeInfo

	v.mu.Lock()
	defer v.mu.Unlock()
	repoCache := v.repoCacheLocked(repoID)

	for _, e := range graph.Edges {
		if !changedSymbols[e.TargetID] {
			continue
		}
		if !model.IsStaleTrackedKind(e.Kind) {
			continue
		}
		if e.SourceFile == e.TargetFile {
			continue
		}
		if changedSet[e.SourceFile] {
			continue
		}

		info := model.StaleEdgeInfo{
			EdgeID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID, Kind: e.Kind,
			MarkedAt: now, Reason: model.ReasonTargetModified,
			SourceFile: e.SourceFile, TargetFile: e.TargetFile,
		}
		marked = append(marked, info)
		repoCache[e.ID] = info
	}

	v.logger.Info("validator.stale.marked", "repo_id", repoID, "count", len(marked))
	return marked, nil
}

// MarkDeletedSymbolEdges marks every inbound edge of a deleted symbol
// invalid-pending with reason target_deleted (spec §4.9).
func (v *Validator) MarkDeletedSymbolEdges(ctx context.Context, repoID string, deletedSymbolIDs []string, graph *ports.GraphDocument) {
	deleted := toSet(deletedSymbolIDs)
	if len(deleted) == 0 {
		return
	}

	now := time.Now().Unix()
	v.mu.Lock()
	defer v.mu.Unlock()
	repoCache := v.repoCacheLocked(repoID)

	count := 0
	for _, e := range graph.Edges {
		if !deleted[e.TargetID] {
			continue
		}
		repoCache[e.ID] = model.StaleEdgeInfo{
			EdgeID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID, Kind: e.Kind,
			MarkedAt: now, Reason: model.ReasonTargetDeleted,
			SourceFile: e.SourceFile, TargetFile: e.TargetFile,
		}
		count++
	}
	v.logger.Info("validator.deleted_symbol_edges.marked", "repo_id", repoID, "count", count)
}

// ValidateEdges is the lazy-validation query-path operation (spec §4.9).
// An edge with no stale record is VALID. A stale target_modified edge whose
// target node still exists is revalidated to VALID and dropped from the
// stale cache; if the target or source node is gone, or the reason was
// target_deleted, the edge is INVALID.
func (v *Validator) ValidateEdges(ctx context.Context, repoID string, edgeIDs []string, graph *ports.GraphDocument) map[string]model.EdgeValidity {
	results := make(map[string]model.EdgeValidity, len(edgeIDs))

	v.mu.Lock()
	defer v.mu.Unlock()
	repoCache := v.stale[repoID]

	for _, id := range edgeIDs {
		info, isStale := repoCache[id]
		if !isStale {
			results[id] = model.EdgeValid
			continue
		}

		e, exists := graph.Edges[id]
		if !exists {
			results[id] = model.EdgeInvalid
			continue
		}
		if _, ok := graph.Nodes[e.TargetID]; !ok {
			results[id] = model.EdgeInvalid
			continue
		}
		if info.Reason == model.ReasonTargetDeleted {
			results[id] = model.EdgeInvalid
			continue
		}
		if _, ok := graph.Nodes[e.SourceID]; !ok {
			results[id] = model.EdgeInvalid
			continue
		}

		results[id] = model.EdgeValid
		delete(repoCache, id)
	}

	return results
}

// CleanupStaleEdges reaps stale entries older than the configured TTL, or
// every entry for the repo when force is true (spec §4.9). graph, if
// non-nil, is also used to drop entries before their TTL whose edges are
// already INVALID: the edge or its target node is gone, or the reason is
// target_deleted.
func (v *Validator) CleanupStaleEdges(ctx context.Context, repoID string, graph *ports.GraphDocument, force bool) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	repoCache, ok := v.stale[repoID]
	if !ok {
		return 0
	}

	now := time.Now()
	var toRemove []string
	for id, info := range repoCache {
		switch {
		case force:
			toRemove = append(toRemove, id)
		case now.Sub(time.Unix(info.MarkedAt, 0)) > v.ttl:
			toRemove = append(toRemove, id)
		case graph != nil:
			if isInvalidLocked(repoCache, id, graph) {
				toRemove = append(toRemove, id)
			}
		}
	}
	for _, id := range toRemove {
		delete(repoCache, id)
	}
	if len(repoCache) == 0 {
		delete(v.stale, repoID)
	}

	v.logger.Info("validator.cleanup", "repo_id", repoID, "removed", len(toRemove), "force", force)
	return len(toRemove)
}

func isInvalidLocked(repoCache map[string]model.StaleEdgeInfo, edgeID string, graph *ports.GraphDocument) bool {
	info := repoCache[edgeID]
	e, exists := graph.Edges[edgeID]
	if !exists {
		return true
	}
	if _, ok := graph.Nodes[e.TargetID]; !ok {
		return true
	}
	return info.Reason == model.ReasonTargetDeleted
}

// GetStaleSourceFiles returns the set of source files with at least one
// stale outbound edge; the orchestrator uses this to recommend further
// reindexing (spec §4.9).
func (v *Validator) GetStaleSourceFiles(ctx context.Context, repoID string) []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	set := make(map[string]bool)
	for _, info := range v.stale[repoID] {
		if info.SourceFile != "" {
			set[info.SourceFile] = true
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	return out
}

// ClearStaleFor drops stale entries whose source or target file is among
// reindexedFiles (step 6 of the incremental graph protocol, spec §4.7).
func (v *Validator) ClearStaleFor(ctx context.Context, repoID string, reindexedFiles []string) {
	set := toSet(reindexedFiles)
	if len(set) == 0 {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	repoCache, ok := v.stale[repoID]
	if !ok {
		return
	}
	for id, info := range repoCache {
		if set[info.SourceFile] || set[info.TargetFile] {
			delete(repoCache, id)
		}
	}
	if len(repoCache) == 0 {
		delete(v.stale, repoID)
	}
}

func (v *Validator) repoCacheLocked(repoID string) map[string]model.StaleEdgeInfo {
	c, ok := v.stale[repoID]
	if !ok {
		c = make(map[string]model.StaleEdgeInfo)
		v.stale[repoID] = c
	}
	return c
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
