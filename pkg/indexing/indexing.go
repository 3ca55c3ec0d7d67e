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

// Package indexing implements C8 IndexingHandlers: the five-way fan-out of
// a freshly built graph and chunk set to the lexical, vector, symbol,
// fuzzy, and domain indexes, with priority-partitioned vector indexing and
// per-indexer failure isolation (a slow or unavailable index never blocks
// its siblings). Retry of a transient per-indexer failure is grounded on
// the teacher's embedding retry config in pkg/ingestion/embedding.go,
// re-expressed with a real backoff library in place of its hand-rolled
// RetryConfig.
package indexing

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/coreindex/pkg/metrics"
	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// Handlers fans one indexing run out across every configured index. A nil
// field for any one index simply skips that index (useful for tests that
// only exercise a subset).
type Handlers struct {
	logger *slog.Logger

	Lexical LexicalIndexer
	Vector  ports.VectorIndex
	Symbol  ports.SymbolIndex
	Fuzzy   ports.FuzzyIndex
	Domain  ports.DomainIndex
	Queue   ports.EmbeddingQueue

	// MaxRetries bounds the exponential-backoff retry of a single index's
	// call; zero disables retry entirely.
	MaxRetries uint64
}

// LexicalIndexer is the subset of the lexical port IndexingHandlers drives.
type LexicalIndexer interface {
	ReindexRepo(ctx context.Context, repoID, snapshotID string) error
}

// New constructs Handlers. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{logger: logger, MaxRetries: 2}
}

// Run drives every configured index concurrently for one (repo, snapshot),
// partitioning chunks by IndexPriority for the vector index (spec §4.11:
// "high priority chunks are embedded inline; medium/low go through the
// background queue").
func (h *Handlers) Run(ctx context.Context, repoID, snapshotID string, graph *ports.GraphDocument, chunks []model.Chunk) error {
	fanoutDur, fanoutErrs, queueDepth := metrics.IndexFanout()

	g, _ := errgroup.WithContext(ctx)

	dispatch := func(name string, fn func() error) {
		g.Go(func() error {
			t0 := time.Now()
			err := h.withRetry(ctx, fn)
			fanoutDur.WithLabelValues(name).Observe(time.Since(t0).Seconds())
			if err != nil {
				fanoutErrs.WithLabelValues(name).Inc()
				h.logger.Warn("indexing.fanout.failed", "index", name, "repo_id", repoID, "err", err)
			}
			return nil // isolated: one index's failure never aborts its siblings
		})
	}

	high, rest := partitionByPriority(chunks)

	if h.Lexical != nil {
		dispatch("lexical", func() error { return h.Lexical.ReindexRepo(ctx, repoID, snapshotID) })
	}
	if h.Vector != nil && len(high) > 0 {
		dispatch("vector", func() error { return h.Vector.Index(ctx, repoID, snapshotID, toVectorDocs(high)) })
	}
	if h.Symbol != nil && graph != nil {
		dispatch("symbol", func() error { return h.Symbol.IndexGraph(ctx, repoID, snapshotID, graph) })
	}
	if h.Fuzzy != nil && graph != nil {
		dispatch("fuzzy", func() error { return h.Fuzzy.Index(ctx, repoID, snapshotID, flatDocsFromNodes(graph)) })
	}
	if h.Domain != nil {
		dispatch("domain", func() error { return h.Domain.Index(ctx, repoID, snapshotID, flatDocsFromChunks(chunks)) })
	}
	if h.Queue != nil && len(rest) > 0 {
		if _, err := h.Queue.Enqueue(ctx, rest, repoID, snapshotID); err != nil {
			h.logger.Warn("indexing.queue.enqueue_failed", "repo_id", repoID, "err", err)
		}
		if depther, ok := h.Queue.(interface{ Len() int }); ok {
			queueDepth.Set(float64(depther.Len()))
		}
	}

	return g.Wait()
}

func (h *Handlers) withRetry(ctx context.Context, fn func() error) error {
	if h.MaxRetries == 0 {
		return fn()
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), h.MaxRetries)
	return backoff.Retry(fn, backoff.WithContext(bo, ctx))
}

func partitionByPriority(chunks []model.Chunk) (high, rest []model.Chunk) {
	for _, c := range chunks {
		if c.Kind.Priority() == model.PriorityHigh {
			high = append(high, c)
		} else {
			rest = append(rest, c)
		}
	}
	return high, rest
}

func toVectorDocs(chunks []model.Chunk) []ports.VectorDoc {
	docs := make([]ports.VectorDoc, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, ports.VectorDoc{
			ID:       c.ChunkID,
			Content:  c.Content,
			Payload:  map[string]string{"file_path": c.FilePath, "fqn": c.FQN},
			Priority: c.Kind.Priority(),
		})
	}
	return docs
}

func flatDocsFromNodes(g *ports.GraphDocument) []ports.FlatDoc {
	docs := make([]ports.FlatDoc, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		docs = append(docs, ports.FlatDoc{ID: n.ID, Text: n.Name, Payload: map[string]string{"fqn": n.FQN, "file_path": n.FilePath}})
	}
	return docs
}

func flatDocsFromChunks(chunks []model.Chunk) []ports.FlatDoc {
	docs := make([]ports.FlatDoc, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, ports.FlatDoc{ID: c.ChunkID, Text: c.Content, Payload: map[string]string{"fqn": c.FQN, "file_path": c.FilePath}})
	}
	return docs
}
