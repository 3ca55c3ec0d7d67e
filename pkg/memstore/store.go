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

// Package memstore is the default in-process, in-memory implementation of
// every port in pkg/ports (spec §6: "storage backends ... treated as
// opaque persistence ports"). It plays the role the teacher's
// EmbeddedBackend plays for its CozoDB Backend interface, but holds all
// state in memory and shares it privately across the several port
// adapters that need it — e.g. the lexical adapter reads chunk content
// straight out of the shared chunk table rather than through the narrower
// ChunkStore interface.
//
// Store itself holds no port methods: each port gets its own small
// adapter type (GraphStore, ChunkStore, LexicalIndex, ...) wrapping a
// shared *Store, since several ports declare same-named methods with
// different signatures (Index, Search, Delete) that cannot coexist on one
// receiver. Construct one Store per process/test and wire its adapters
// into whichever dependency slots need them (spec §9, "no module-level
// singletons").
package memstore

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/philippgille/chromem-go"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// DefaultCacheSize bounds the ProgressStore/JobStore LRU caches.
const DefaultCacheSize = 4096

// Store is the shared in-memory backend state.
type Store struct {
	logger *slog.Logger

	mu     sync.RWMutex
	graphs map[string]map[string]*ports.GraphDocument // repo -> snapshot -> doc
	latest map[string]string                          // repo -> most recently saved snapshot

	chunks    map[string]model.Chunk // chunk_id -> chunk, global
	chunkRepo map[string]string      // chunk_id -> repo_id, for repo-scoped scans

	lexical map[string]*lexicalData // repo -> postings

	vectorDB   *chromem.DB
	collection map[string]*chromem.Collection // "repo:snapshot" -> collection

	symbolNodes map[string][]model.Node // "repo:snapshot" -> indexed nodes

	fuzzy  map[string][]ports.FlatDoc // repo -> docs
	domain map[string][]ports.FlatDoc // repo -> docs

	queue []QueuedBatch

	progress *lru.Cache[string, model.JobProgress]
	jobs     *lru.Cache[string, model.IndexJob]
}

// QueuedBatch is one batch of chunks absorbed by EmbeddingQueue.Enqueue,
// awaiting background embedding.
type QueuedBatch struct {
	RepoID     string
	SnapshotID string
	Chunks     []model.Chunk
}

// New constructs an empty Store. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	progress, _ := lru.New[string, model.JobProgress](DefaultCacheSize)
	jobs, _ := lru.New[string, model.IndexJob](DefaultCacheSize)

	return &Store{
		logger:      logger,
		graphs:      make(map[string]map[string]*ports.GraphDocument),
		latest:      make(map[string]string),
		chunks:      make(map[string]model.Chunk),
		chunkRepo:   make(map[string]string),
		lexical:     make(map[string]*lexicalData),
		vectorDB:    chromem.NewDB(),
		collection:  make(map[string]*chromem.Collection),
		symbolNodes: make(map[string][]model.Node),
		fuzzy:       make(map[string][]ports.FlatDoc),
		domain:      make(map[string][]ports.FlatDoc),
		progress:    progress,
		jobs:        jobs,
	}
}

func collectionKey(repoID, snapshotID string) string {
	return repoID + ":" + snapshotID
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
