// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package indexing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

type fakeLexical struct {
	mu      sync.Mutex
	calls   int
	failing bool
}

func (f *fakeLexical) ReindexRepo(ctx context.Context, repoID, snapshotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing {
		return errors.New("lexical backend unavailable")
	}
	return nil
}

type fakeVector struct {
	mu   sync.Mutex
	docs []ports.VectorDoc
}

func (f *fakeVector) Index(ctx context.Context, repoID, snapshotID string, docs []ports.VectorDoc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, docs...)
	return nil
}
func (f *fakeVector) Search(ctx context.Context, collection, query string, limit int, scoreThreshold float64) ([]ports.VectorHit, error) {
	return nil, nil
}
func (f *fakeVector) Delete(ctx context.Context, repoID, snapshotID string, ids []string) error {
	return nil
}

type fakeSymbol struct {
	graphed *ports.GraphDocument
}

func (f *fakeSymbol) IndexGraph(ctx context.Context, repoID, snapshotID string, graph *ports.GraphDocument) error {
	f.graphed = graph
	return nil
}
func (f *fakeSymbol) Search(ctx context.Context, repoID, snapshotID, query string, limit int) ([]model.Node, error) {
	return nil, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []model.Chunk
}

func (f *fakeQueue) Enqueue(ctx context.Context, chunks []model.Chunk, repoID, snapshotID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, chunks...)
	return len(chunks), nil
}
func (f *fakeQueue) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.enqueued)
}

func sampleChunks() []model.Chunk {
	return []model.Chunk{
		{ChunkID: "c1", Kind: model.ChunkFunction, FilePath: "a.go", FQN: "a.f"},
		{ChunkID: "c2", Kind: model.ChunkUsage, FilePath: "a.go", FQN: "a.f.use"},
		{ChunkID: "c3", Kind: model.ChunkModule, FilePath: "a.go", FQN: "a"},
	}
}

func TestRunPartitionsChunksByPriorityAcrossVectorAndQueue(t *testing.T) {
	ctx := context.Background()
	lex := &fakeLexical{}
	vec := &fakeVector{}
	queue := &fakeQueue{}

	h := New(nil)
	h.Lexical = lex
	h.Vector = vec
	h.Queue = queue

	err := h.Run(ctx, "r1", "s1", nil, sampleChunks())
	require.NoError(t, err)

	require.Equal(t, 1, lex.calls)
	require.Len(t, vec.docs, 2, "function+usage chunks are high priority and indexed inline")
	require.Equal(t, 1, queue.Len(), "module chunk is medium priority and goes to the background queue")
}

func TestRunSkipsVectorAndQueueWhenNoChunksMatchPriority(t *testing.T) {
	ctx := context.Background()
	vec := &fakeVector{}
	queue := &fakeQueue{}

	h := New(nil)
	h.Vector = vec
	h.Queue = queue

	err := h.Run(ctx, "r1", "s1", nil, nil)
	require.NoError(t, err)
	require.Empty(t, vec.docs)
	require.Zero(t, queue.Len())
}

func TestRunFansOutToSymbolAndFuzzyOnlyWhenGraphPresent(t *testing.T) {
	ctx := context.Background()
	sym := &fakeSymbol{}

	h := New(nil)
	h.Symbol = sym

	err := h.Run(ctx, "r1", "s1", nil, sampleChunks())
	require.NoError(t, err)
	require.Nil(t, sym.graphed, "symbol index must not be called without a graph")

	g := ports.NewGraphDocument("r1", "s1")
	g.Nodes["func:a"] = model.Node{ID: "func:a", Name: "a"}
	err = h.Run(ctx, "r1", "s1", g, sampleChunks())
	require.NoError(t, err)
	require.Same(t, g, sym.graphed)
}

func TestRunIsolatesOneIndexersFailureFromSiblings(t *testing.T) {
	ctx := context.Background()
	lex := &fakeLexical{failing: true}
	vec := &fakeVector{}

	h := New(nil)
	h.MaxRetries = 0
	h.Lexical = lex
	h.Vector = vec

	err := h.Run(ctx, "r1", "s1", nil, sampleChunks())
	require.NoError(t, err, "a failing lexical index must not fail the overall fan-out")
	require.Len(t, vec.docs, 2, "vector indexing still proceeds despite the lexical failure")
}

func TestRunNoIndexersConfiguredIsANoop(t *testing.T) {
	ctx := context.Background()
	h := New(nil)
	err := h.Run(ctx, "r1", "s1", nil, sampleChunks())
	require.NoError(t, err)
}
