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
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/philippgille/chromem-go"

	"github.com/kraklabs/coreindex/pkg/ports"
)

// embeddingDims is the width of the hashEmbed stand-in embedding vector.
const embeddingDims = 64

// hashEmbed is a deterministic, offline embedding function: it hashes
// content tokens into a fixed-width bag-of-words vector. The ambient
// stack has no configured embedding provider (spec keeps the tool-call
// front-end and its LLM clients out of scope), so the default VectorIndex
// needs a local stand-in to exercise chromem-go's similarity search
// without reaching out to a network API at index time.
func hashEmbed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDims)
	for _, term := range tokenize(text) {
		h := xxhash.Sum64String(term)
		vec[h%uint64(embeddingDims)]++
	}
	return vec, nil
}

// VectorIndex adapts a shared Store to ports.VectorIndex.
type VectorIndex struct {
	store *Store
}

// NewVectorIndex wraps a shared Store as a ports.VectorIndex.
func NewVectorIndex(store *Store) *VectorIndex {
	return &VectorIndex{store: store}
}

func (v *VectorIndex) collectionFor(repoID, snapshotID string) (*chromem.Collection, error) {
	s := v.store
	key := collectionKey(repoID, snapshotID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collection[key]; ok {
		return c, nil
	}
	c, err := s.vectorDB.CreateCollection(key, nil, hashEmbed)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", key, err)
	}
	s.collection[key] = c
	return c, nil
}

// Index embeds and upserts docs into the (repo, snapshot) collection
// (spec §6 VectorIndex.index). Priority partitioning into inline-vs-queue
// happens one layer up in pkg/indexing; by the time a doc reaches here it
// is meant to be embedded now.
func (v *VectorIndex) Index(ctx context.Context, repoID, snapshotID string, docs []ports.VectorDoc) error {
	if len(docs) == 0 {
		return nil
	}
	collection, err := v.collectionFor(repoID, snapshotID)
	if err != nil {
		return err
	}

	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		chromemDocs = append(chromemDocs, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Payload,
		})
	}
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Search runs a similarity query over a (repo, snapshot) collection (spec
// §6 VectorIndex.search). collection is the "repo:snapshot" key Index
// used to create it.
func (v *VectorIndex) Search(ctx context.Context, collection, query string, limit int, scoreThreshold float64) ([]ports.VectorHit, error) {
	s := v.store
	s.mu.RLock()
	c, ok := s.collection[collection]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	count := c.Count()
	if count == 0 {
		return nil, nil
	}
	n := limit
	if n <= 0 || n > count {
		n = count
	}

	results, err := c.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}

	hits := make([]ports.VectorHit, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) < scoreThreshold {
			continue
		}
		hits = append(hits, ports.VectorHit{ID: r.ID, Score: float64(r.Similarity), Payload: r.Metadata})
	}
	return hits, nil
}

// Delete removes docs by ID from a (repo, snapshot) collection (spec §6
// VectorIndex.delete).
func (v *VectorIndex) Delete(ctx context.Context, repoID, snapshotID string, ids []string) error {
	s := v.store
	s.mu.RLock()
	c, ok := s.collection[collectionKey(repoID, snapshotID)]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	for _, id := range ids {
		if err := c.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("delete vector %s: %w", id, err)
		}
	}
	return nil
}
