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

package chunk

import (
	"log/slog"
	"sort"

	"github.com/kraklabs/coreindex/pkg/model"
)

// Delta is the output of an incremental chunk refresh: the four buckets
// an incremental ChunkStore upsert needs, plus the drift bucket
// SPEC_FULL §C.1 adds (span-stable, content changed).
type Delta struct {
	Added   []model.Chunk
	Updated []model.Chunk
	Deleted []string // chunk ids
	Renamed map[string]string // old chunk id -> new chunk id
	Drifted []model.Chunk
}

// Refresher computes an incremental chunk Delta between a repository's
// previously stored chunks and a freshly built set, classifying span-
// stable content edits as drift rather than a plain update (SPEC_FULL
// §C.1: "drift = span-unchanged but content_hash changed").
type Refresher struct {
	logger *slog.Logger
}

// NewRefresher constructs a Refresher. A nil logger defaults to
// slog.Default().
func NewRefresher(logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{logger: logger}
}

// Diff classifies every chunk in freshChunks against previous, keyed by
// ChunkID. Since ChunkID is deterministic over (repo, file, span, kind)
// (model.ChunkID), a span move always mints a new ID: Diff detects that
// case as a rename when the old and new chunk share file path, kind, and
// FQN, rather than reporting it as an unrelated add+delete pair.
func (r *Refresher) Diff(previous, fresh []model.Chunk) *Delta {
	delta := &Delta{Renamed: make(map[string]string)}

	prevByID := make(map[string]model.Chunk, len(previous))
	for _, c := range previous {
		prevByID[c.ChunkID] = c
	}
	freshByID := make(map[string]model.Chunk, len(fresh))
	for _, c := range fresh {
		freshByID[c.ChunkID] = c
	}

	matchedPrev := make(map[string]bool)

	freshIDs := make([]string, 0, len(fresh))
	for id := range freshByID {
		freshIDs = append(freshIDs, id)
	}
	sort.Strings(freshIDs)

	for _, id := range freshIDs {
		newChunk := freshByID[id]
		if old, ok := prevByID[id]; ok {
			matchedPrev[id] = true
			if old.Span == newChunk.Span && old.ContentHash != newChunk.ContentHash {
				delta.Drifted = append(delta.Drifted, newChunk)
			} else if old.ContentHash != newChunk.ContentHash {
				delta.Updated = append(delta.Updated, newChunk)
			}
			continue
		}
		delta.Added = append(delta.Added, newChunk)
	}

	// Unmatched previous chunks: look for a rename partner (same file,
	// kind, FQN) among the unmatched fresh additions before calling it a
	// deletion.
	addedByKey := make(map[string]model.Chunk)
	for _, c := range delta.Added {
		addedByKey[renameKey(c)] = c
	}

	var stillAdded []model.Chunk
	consumedAdds := make(map[string]bool)
	prevIDs := make([]string, 0, len(previous))
	for id := range prevByID {
		prevIDs = append(prevIDs, id)
	}
	sort.Strings(prevIDs)

	for _, id := range prevIDs {
		if matchedPrev[id] {
			continue
		}
		old := prevByID[id]
		if newChunk, ok := addedByKey[renameKey(old)]; ok && !consumedAdds[newChunk.ChunkID] {
			delta.Renamed[id] = newChunk.ChunkID
			consumedAdds[newChunk.ChunkID] = true
			continue
		}
		delta.Deleted = append(delta.Deleted, id)
	}

	for _, c := range delta.Added {
		if !consumedAdds[c.ChunkID] {
			stillAdded = append(stillAdded, c)
		}
	}
	delta.Added = stillAdded

	sort.Slice(delta.Added, func(i, j int) bool { return delta.Added[i].ChunkID < delta.Added[j].ChunkID })
	sort.Slice(delta.Updated, func(i, j int) bool { return delta.Updated[i].ChunkID < delta.Updated[j].ChunkID })
	sort.Slice(delta.Drifted, func(i, j int) bool { return delta.Drifted[i].ChunkID < delta.Drifted[j].ChunkID })
	sort.Strings(delta.Deleted)

	r.logger.Info("chunk.refresh.diff",
		"added", len(delta.Added), "updated", len(delta.Updated),
		"deleted", len(delta.Deleted), "renamed", len(delta.Renamed), "drifted", len(delta.Drifted))

	return delta
}

func renameKey(c model.Chunk) string {
	return c.FilePath + "|" + string(c.Kind) + "|" + c.FQN
}
