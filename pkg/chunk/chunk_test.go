// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

func sampleDoc(repoID string, fileCount int) *model.IRDocument {
	doc := &model.IRDocument{RepoID: repoID, SnapshotID: "s1"}
	for i := 0; i < fileCount; i++ {
		path := fileFor(i)
		doc.Nodes = append(doc.Nodes, model.Node{
			ID: path + "#f", Kind: model.NodeFunction, FilePath: path, Name: "f", FQN: path + ".f",
			Span: model.Span{StartLine: 1, StartCol: 1, EndLine: 2, EndCol: 1},
		})
	}
	return doc
}

func fileFor(i int) string {
	return "file" + string(rune('a'+i)) + ".go"
}

func TestBuildSequentialBelowThreshold(t *testing.T) {
	b := New(0, nil)
	doc := sampleDoc("r1", 3)
	text := map[string]string{"filea.go": "line1\nline2\n", "fileb.go": "line1\nline2\n", "filec.go": "line1\nline2\n"}

	result, err := b.Build(context.Background(), doc, nil, text)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 3)
	for _, c := range result.Chunks {
		require.Equal(t, model.ChunkFunction, c.Kind)
		require.NotEmpty(t, c.ContentHash)
	}
}

func TestBuildConcurrentAtThreshold(t *testing.T) {
	b := New(4, nil)
	doc := sampleDoc("r1", FanOutThreshold)
	text := make(map[string]string)
	for i := 0; i < FanOutThreshold; i++ {
		text[fileFor(i)] = "line1\nline2\n"
	}

	result, err := b.Build(context.Background(), doc, nil, text)
	require.NoError(t, err)
	require.Len(t, result.Chunks, FanOutThreshold)
}

func TestBuildPopulatesChunkToGraph(t *testing.T) {
	b := New(0, nil)
	doc := sampleDoc("r1", 1)
	text := map[string]string{"filea.go": "line1\nline2\n"}

	g := ports.NewGraphDocument("r1", "s1")
	g.Nodes["n1"] = model.Node{ID: "n1", FilePath: "filea.go", Span: model.Span{StartLine: 1, StartCol: 1, EndLine: 2, EndCol: 1}}

	result, err := b.Build(context.Background(), doc, g, text)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	chunkID := result.Chunks[0].ChunkID
	require.Equal(t, []string{"n1"}, result.ChunkToGraph[chunkID])
}

func TestRefresherDiffAddUpdateDrift(t *testing.T) {
	r := NewRefresher(nil)
	span := model.Span{StartLine: 1, EndLine: 2}
	prev := []model.Chunk{
		{ChunkID: "c1", FilePath: "a.go", Kind: model.ChunkFunction, FQN: "a.f", Span: span, ContentHash: "h1"},
		{ChunkID: "c2", FilePath: "a.go", Kind: model.ChunkFunction, FQN: "a.g", Span: span, ContentHash: "h2"},
	}
	fresh := []model.Chunk{
		{ChunkID: "c1", FilePath: "a.go", Kind: model.ChunkFunction, FQN: "a.f", Span: span, ContentHash: "h1-changed"},
		{ChunkID: "c3", FilePath: "a.go", Kind: model.ChunkFunction, FQN: "a.h", Span: span, ContentHash: "h3"},
	}

	delta := r.Diff(prev, fresh)
	require.Len(t, delta.Drifted, 1)
	require.Equal(t, "c1", delta.Drifted[0].ChunkID)
	require.Len(t, delta.Added, 1)
	require.Equal(t, "c3", delta.Added[0].ChunkID)
	require.Equal(t, []string{"c2"}, delta.Deleted)
}

func TestRefresherDiffDetectsRename(t *testing.T) {
	r := NewRefresher(nil)
	oldSpan := model.Span{StartLine: 1, EndLine: 2}
	newSpan := model.Span{StartLine: 10, EndLine: 12}
	prev := []model.Chunk{
		{ChunkID: "c1", FilePath: "a.go", Kind: model.ChunkFunction, FQN: "a.f", Span: oldSpan, ContentHash: "h1"},
	}
	fresh := []model.Chunk{
		{ChunkID: "c1-moved", FilePath: "a.go", Kind: model.ChunkFunction, FQN: "a.f", Span: newSpan, ContentHash: "h1"},
	}

	delta := r.Diff(prev, fresh)
	require.Empty(t, delta.Added)
	require.Empty(t, delta.Deleted)
	require.Equal(t, "c1-moved", delta.Renamed["c1"])
}

func TestOverlayUpsertRejectsNonOverlayChunk(t *testing.T) {
	s := NewOverlayStore(nil)
	err := s.Upsert("sess1", "a.go", []model.Chunk{{ChunkID: "c1", IsOverlay: false}})
	require.Error(t, err)
}

func TestOverlayUpsertGetClear(t *testing.T) {
	s := NewOverlayStore(nil)
	err := s.Upsert("sess1", "a.go", []model.Chunk{{ChunkID: "c1", FilePath: "a.go", IsOverlay: true}})
	require.NoError(t, err)

	got := s.Get("sess1", "a.go")
	require.Len(t, got, 1)
	require.Equal(t, "sess1", got[0].OverlaySessionID)

	s.Clear("sess1", "a.go")
	require.Empty(t, s.Get("sess1", "a.go"))
}

func TestOverlayPromote(t *testing.T) {
	s := NewOverlayStore(nil)
	require.NoError(t, s.Upsert("sess1", "a.go", []model.Chunk{{ChunkID: "c1", FilePath: "a.go", IsOverlay: true}}))

	promoted := s.Promote("sess1", "a.go")
	require.Len(t, promoted, 1)
	require.Empty(t, s.Get("sess1", "a.go"))
}

func TestMergerShadowsByOverlappingSpan(t *testing.T) {
	m := NewMerger()
	base := []model.Chunk{
		{ChunkID: "base1", FilePath: "a.go", Span: model.Span{StartLine: 1, EndLine: 5}},
		{ChunkID: "base2", FilePath: "b.go", Span: model.Span{StartLine: 1, EndLine: 5}},
	}
	overlay := []model.Chunk{
		{ChunkID: "ov1", FilePath: "a.go", IsOverlay: true, Span: model.Span{StartLine: 3, EndLine: 8}},
	}

	merged := m.Merge(base, overlay)
	ids := make([]string, 0, len(merged))
	for _, c := range merged {
		ids = append(ids, c.ChunkID)
	}
	require.ElementsMatch(t, []string{"ov1", "base2"}, ids)
}

func TestMergerShadowsByBaseChunkID(t *testing.T) {
	m := NewMerger()
	base := []model.Chunk{
		{ChunkID: "base1", FilePath: "a.go", Span: model.Span{StartLine: 100, EndLine: 105}},
	}
	overlay := []model.Chunk{
		{ChunkID: "ov1", FilePath: "a.go", IsOverlay: true, BaseChunkID: "base1", Span: model.Span{StartLine: 1, EndLine: 1}},
	}

	merged := m.Merge(base, overlay)
	require.Len(t, merged, 1)
	require.Equal(t, "ov1", merged[0].ChunkID)
}

func TestMergerNoOverlayReturnsBaseUnchanged(t *testing.T) {
	m := NewMerger()
	base := []model.Chunk{{ChunkID: "base1"}}
	require.Equal(t, base, m.Merge(base, nil))
}
