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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

func TestGraphStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	g := NewGraphStore(s)

	doc := ports.NewGraphDocument("repo1", "snap1")
	doc.Nodes["n1"] = model.Node{ID: "n1", Kind: model.NodeFunction, Name: "Foo", FilePath: "a.go"}
	require.NoError(t, g.SaveGraph(ctx, doc, ports.SaveReplace))

	loaded, err := g.LoadGraph(ctx, "repo1", "snap1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Nodes, 1)

	// empty snapshot resolves to latest
	latest, err := g.LoadGraph(ctx, "repo1", "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, "snap1", latest.SnapshotID)
}

func TestGraphStoreUpsertOverwritesOnCollision(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	g := NewGraphStore(s)

	base := ports.NewGraphDocument("repo1", "snap1")
	base.Nodes["n1"] = model.Node{ID: "n1", Name: "Old", FilePath: "a.go"}
	require.NoError(t, g.SaveGraph(ctx, base, ports.SaveReplace))

	update := ports.NewGraphDocument("repo1", "snap1")
	update.Nodes["n1"] = model.Node{ID: "n1", Name: "New", FilePath: "a.go"}
	update.Nodes["n2"] = model.Node{ID: "n2", Name: "Other", FilePath: "b.go"}
	require.NoError(t, g.SaveGraph(ctx, update, ports.SaveUpsert))

	loaded, err := g.LoadGraph(ctx, "repo1", "snap1")
	require.NoError(t, err)
	require.Len(t, loaded.Nodes, 2)
	require.Equal(t, "New", loaded.Nodes["n1"].Name)
}

func TestGraphStoreDeleteCascade(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	g := NewGraphStore(s)

	doc := ports.NewGraphDocument("repo1", "snap1")
	doc.Nodes["n1"] = model.Node{ID: "n1", Kind: model.NodeFunction, FilePath: "a.go"}
	doc.Nodes["mod"] = model.Node{ID: "mod", Kind: model.NodeModule, FilePath: "a.go"}
	doc.Edges["e1"] = model.Edge{ID: "e1", SourceID: "n1", TargetID: "mod", SourceFile: "a.go", TargetFile: "a.go"}
	require.NoError(t, g.SaveGraph(ctx, doc, ports.SaveReplace))

	removed, err := g.DeleteNodesForDeletedFiles(ctx, "repo1", []string{"a.go"})
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	loaded, err := g.LoadGraph(ctx, "repo1", "snap1")
	require.NoError(t, err)
	require.Empty(t, loaded.Nodes)
	require.Empty(t, loaded.Edges)
}

func TestGraphStoreDeleteOutboundEdges(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	g := NewGraphStore(s)

	doc := ports.NewGraphDocument("repo1", "snap1")
	doc.Nodes["n1"] = model.Node{ID: "n1", FilePath: "a.go"}
	doc.Nodes["n2"] = model.Node{ID: "n2", FilePath: "b.go"}
	doc.Edges["e1"] = model.Edge{ID: "e1", SourceID: "n1", TargetID: "n2", SourceFile: "a.go", TargetFile: "b.go"}
	require.NoError(t, g.SaveGraph(ctx, doc, ports.SaveReplace))

	removed, err := g.DeleteOutboundEdgesByFilePaths(ctx, "repo1", []string{"a.go"})
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	loaded, err := g.LoadGraph(ctx, "repo1", "snap1")
	require.NoError(t, err)
	require.Empty(t, loaded.Edges)
	require.Len(t, loaded.Nodes, 2)
}

func TestGraphStoreDeleteOrphanModuleNodes(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	g := NewGraphStore(s)

	doc := ports.NewGraphDocument("repo1", "snap1")
	doc.Nodes["mod"] = model.Node{ID: "mod", Kind: model.NodeModule, FilePath: "a.go"}
	require.NoError(t, g.SaveGraph(ctx, doc, ports.SaveReplace))

	removed, err := g.DeleteOrphanModuleNodes(ctx, "repo1")
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}

func TestChunkStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	c := NewChunkStore(s)

	chunk := model.Chunk{ChunkID: "c1", RepoID: "repo1", FilePath: "a.go", Content: "func Foo() {}"}
	require.NoError(t, c.SaveChunks(ctx, []model.Chunk{chunk}))

	got, err := c.GetChunksBatch(ctx, []string{"c1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, chunk, got["c1"])

	require.NoError(t, c.DeleteChunk(ctx, "c1"))
	got, err = c.GetChunksBatch(ctx, []string{"c1"})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestLexicalIndexReindexAndQuery(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	cs := NewChunkStore(s)
	lx := NewLexicalIndex(s)

	require.NoError(t, cs.SaveChunks(ctx, []model.Chunk{
		{ChunkID: "c1", RepoID: "repo1", FilePath: "a.go", Content: "func widget() {}"},
		{ChunkID: "c2", RepoID: "repo1", FilePath: "b.go", Content: "func gadget() {}"},
	}))
	require.NoError(t, lx.ReindexRepo(ctx, "repo1", "snap1"))

	hits := lx.Query("repo1", "widget", 10)
	require.Equal(t, []string{"c1"}, hits)

	// reindex paths should rebuild only b.go
	require.NoError(t, cs.SaveChunks(ctx, []model.Chunk{
		{ChunkID: "c2", RepoID: "repo1", FilePath: "b.go", Content: "func gadget() { widget() }"},
	}))
	require.NoError(t, lx.ReindexPaths(ctx, "repo1", "snap1", []string{"b.go"}))
	hits = lx.Query("repo1", "widget", 10)
	require.ElementsMatch(t, []string{"c1", "c2"}, hits)

	require.NoError(t, lx.Delete(ctx, "repo1", "snap1", []string{"c1"}))
	hits = lx.Query("repo1", "widget", 10)
	require.Equal(t, []string{"c2"}, hits)
}

func TestLexicalIndexFileDelta(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	lx := NewLexicalIndex(s)

	require.NoError(t, lx.IndexFile(ctx, "repo1", "a.go", "func zephyr() {}"))
	hits := lx.Query("repo1", "zephyr", 10)
	require.Equal(t, []string{"file:a.go"}, hits)
}

func TestVectorIndexIndexSearchDelete(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	v := NewVectorIndex(s)

	require.NoError(t, v.Index(ctx, "repo1", "snap1", []ports.VectorDoc{
		{ID: "d1", Content: "parses source files into an intermediate representation"},
		{ID: "d2", Content: "serializes the symbol graph to disk"},
	}))

	hits, err := v.Search(ctx, collectionKey("repo1", "snap1"), "parses source files", 5, 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	require.NoError(t, v.Delete(ctx, "repo1", "snap1", []string{"d1", "d2"}))
}

func TestSymbolIndexIndexSearch(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	x := NewSymbolIndex(s)

	doc := ports.NewGraphDocument("repo1", "snap1")
	doc.Nodes["n1"] = model.Node{ID: "n1", Name: "Widget", FQN: "pkg.Widget"}
	doc.Nodes["n2"] = model.Node{ID: "n2", Name: "WidgetFactory", FQN: "pkg.WidgetFactory"}
	require.NoError(t, x.IndexGraph(ctx, "repo1", "snap1", doc))

	results, err := x.Search(ctx, "repo1", "snap1", "widget", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Widget", results[0].Name) // exact match ranked first
}

func TestFuzzyIndexQuery(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	f := NewFuzzyIndex(s)

	require.NoError(t, f.Index(ctx, "repo1", "snap1", []ports.FlatDoc{
		{ID: "d1", Text: "calculateTotalPrice"},
		{ID: "d2", Text: "renderDashboardWidget"},
	}))

	matches := f.Query("repo1", "calculateTotalPrice", 10)
	require.NotEmpty(t, matches)
	require.Equal(t, "d1", matches[0].Doc.ID)
}

func TestDomainIndexQuery(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	d := NewDomainIndex(s)

	require.NoError(t, d.Index(ctx, "repo1", "snap1", []ports.FlatDoc{
		{ID: "d1", Text: "Authentication handles session tokens."},
		{ID: "d2", Text: "Billing computes invoices."},
	}))

	results := d.Query("repo1", "session", 10)
	require.Len(t, results, 1)
	require.Equal(t, "d1", results[0].ID)
}

func TestEmbeddingQueueEnqueueDrainCapacity(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	q := NewEmbeddingQueue(s, 3)

	n, err := q.Enqueue(ctx, []model.Chunk{{ChunkID: "c1"}, {ChunkID: "c2"}}, "repo1", "snap1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, q.Len())

	// only one slot left; extra chunk dropped
	n, err = q.Enqueue(ctx, []model.Chunk{{ChunkID: "c3"}, {ChunkID: "c4"}}, "repo1", "snap1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 3, q.Len())

	// queue now full
	n, err = q.Enqueue(ctx, []model.Chunk{{ChunkID: "c5"}}, "repo1", "snap1")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	batches := q.Drain()
	require.Len(t, batches, 2)
	require.Equal(t, 0, q.Len())
}

func TestProgressStorePersistLoad(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	p := NewProgressStore(s)

	loaded, err := p.Load(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, loaded)

	progress := model.JobProgress{JobID: "job1", Checkpoint: model.CheckpointParsingDone, TotalFiles: 10}
	require.NoError(t, p.Persist(ctx, progress))

	loaded, err = p.Load(ctx, "job1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, model.CheckpointParsingDone, loaded.Checkpoint)
}

func TestJobStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	j := NewJobStore(s)

	job := model.IndexJob{ID: "job1", RepoID: "repo1", SnapshotID: "snap1", Status: model.JobQueued, SubmittedAt: time.Unix(0, 0)}
	require.NoError(t, j.Create(ctx, job))
	require.Error(t, j.Create(ctx, job)) // duplicate create rejected

	got, err := j.Get(ctx, "job1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, model.JobQueued, got.Status)

	job.Status = model.JobRunning
	require.NoError(t, j.Update(ctx, job))
	got, err = j.Get(ctx, "job1")
	require.NoError(t, err)
	require.Equal(t, model.JobRunning, got.Status)

	list, err := j.List(ctx, "repo1", "snap1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = j.List(ctx, "repo1", "other-snap")
	require.NoError(t, err)
	require.Empty(t, list)
}
