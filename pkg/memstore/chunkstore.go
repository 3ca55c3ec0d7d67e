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

// ChunkStore adapts a shared Store to ports.ChunkStore.
type ChunkStore struct {
	store *Store
}

// NewChunkStore wraps a shared Store as a ports.ChunkStore.
func NewChunkStore(store *Store) *ChunkStore {
	return &ChunkStore{store: store}
}

// SaveChunks upserts chunks by ChunkID, last write in the batch wins
// (spec §4.8).
func (c *ChunkStore) SaveChunks(ctx context.Context, chunks []model.Chunk) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		s.chunks[chunk.ChunkID] = chunk
		s.chunkRepo[chunk.ChunkID] = chunk.RepoID
	}
	return nil
}

// GetChunksBatch returns every stored chunk among ids, keyed by ChunkID;
// IDs with no stored chunk are simply absent from the result.
func (c *ChunkStore) GetChunksBatch(ctx context.Context, ids []string) (map[string]model.Chunk, error) {
	s := c.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Chunk, len(ids))
	for _, id := range ids {
		if chunk, ok := s.chunks[id]; ok {
			out[id] = chunk
		}
	}
	return out, nil
}

// DeleteChunk removes one chunk by ID.
func (c *ChunkStore) DeleteChunk(ctx context.Context, id string) error {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.chunks, id)
	delete(s.chunkRepo, id)
	return nil
}

// chunksForRepo returns every chunk currently stored for a repo, used by
// the lexical adapter to reindex from scratch since
// ports.ChunkStore itself has no list-by-repo method (spec §6 keeps the
// port narrow; this reaches into the shared store state directly
// instead).
func (s *Store) chunksForRepo(repoID string) []model.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Chunk
	for id, chunk := range s.chunks {
		if s.chunkRepo[id] == repoID {
			out = append(out, chunk)
		}
	}
	return out
}

func (s *Store) chunksForPaths(repoID string, paths []string) []model.Chunk {
	set := toSet(paths)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Chunk
	for id, chunk := range s.chunks {
		if s.chunkRepo[id] == repoID && set[chunk.FilePath] {
			out = append(out, chunk)
		}
	}
	return out
}
