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
)

// DefaultQueueCapacity bounds the in-memory EmbeddingQueue (spec §5
// back-pressure: the queue absorbs medium/low priority chunks up to a
// configured capacity).
const DefaultQueueCapacity = 10000

// EmbeddingQueue adapts a shared Store to ports.EmbeddingQueue: an
// in-memory FIFO absorbing medium/low priority chunks for background
// embedding (spec §4.11, §5).
type EmbeddingQueue struct {
	store    *Store
	capacity int
}

// NewEmbeddingQueue wraps a shared Store as a ports.EmbeddingQueue. A
// zero capacity uses DefaultQueueCapacity.
func NewEmbeddingQueue(store *Store, capacity int) *EmbeddingQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &EmbeddingQueue{store: store, capacity: capacity}
}

// Enqueue appends chunks for background embedding, returning the number
// accepted; once the queue is at capacity further chunks are dropped and
// logged as a warning rather than blocking the indexing pipeline (spec §5
// back-pressure).
func (q *EmbeddingQueue) Enqueue(ctx context.Context, chunks []model.Chunk, repoID, snapshotID string) (int, error) {
	s := q.store
	s.mu.Lock()
	defer s.mu.Unlock()

	used := 0
	for _, b := range s.queue {
		used += len(b.Chunks)
	}
	room := q.capacity - used
	if room <= 0 {
		s.logger.Warn("memstore.embedding_queue.full", "repo_id", repoID, "capacity", q.capacity)
		return 0, nil
	}
	if room < len(chunks) {
		s.logger.Warn("memstore.embedding_queue.full", "repo_id", repoID, "capacity", q.capacity, "dropped", len(chunks)-room)
		chunks = chunks[:room]
	}

	s.queue = append(s.queue, QueuedBatch{RepoID: repoID, SnapshotID: snapshotID, Chunks: chunks})
	return len(chunks), nil
}

// Drain removes and returns every currently queued batch, for a
// background worker to embed. Not part of the EmbeddingQueue port (spec
// §6 only names enqueue) but the consumer side any real queue needs.
func (q *EmbeddingQueue) Drain() []QueuedBatch {
	s := q.store
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := s.queue
	s.queue = nil
	return drained
}

// Len reports the number of chunks currently queued, across all batches.
func (q *EmbeddingQueue) Len() int {
	s := q.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.queue {
		n += len(b.Chunks)
	}
	return n
}
