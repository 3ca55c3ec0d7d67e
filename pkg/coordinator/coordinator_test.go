// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	coretesting "github.com/kraklabs/coreindex/internal/testing"
	"github.com/kraklabs/coreindex/pkg/change"
	"github.com/kraklabs/coreindex/pkg/chunk"
	"github.com/kraklabs/coreindex/pkg/discovery"
	"github.com/kraklabs/coreindex/pkg/graph"
	"github.com/kraklabs/coreindex/pkg/impact"
	"github.com/kraklabs/coreindex/pkg/indexing"
	"github.com/kraklabs/coreindex/pkg/ir"
	"github.com/kraklabs/coreindex/pkg/memstore"
	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/orchestrator"
	"github.com/kraklabs/coreindex/pkg/parsing"
	"github.com/kraklabs/coreindex/pkg/semantic"
	"github.com/kraklabs/coreindex/pkg/validator"
)

const sampleSource = `package sample

func Add(a, b int) int {
	return a + b
}
`

func newTestCoordinator(t *testing.T) (*Coordinator, *memstore.JobStore) {
	t.Helper()
	store := memstore.New(nil)
	graphStore := memstore.NewGraphStore(store)

	handlers := indexing.New(nil)
	handlers.Lexical = memstore.NewLexicalIndex(store)
	handlers.Vector = memstore.NewVectorIndex(store)
	handlers.Symbol = memstore.NewSymbolIndex(store)
	handlers.Fuzzy = memstore.NewFuzzyIndex(store)
	handlers.Domain = memstore.NewDomainIndex(store)
	handlers.Queue = memstore.NewEmbeddingQueue(store, 0)

	deps := orchestrator.Deps{
		Discovery:        discovery.New(discovery.DefaultConfig(), nil),
		ChangeDetector:   change.New(nil),
		ParserPool:       parsing.DefaultPool(true, nil),
		IRBuilder:        ir.New(nil),
		SemanticBuilder:  semantic.New(nil),
		GraphBuilder:     graph.New(graphStore, nil),
		ChunkBuilder:     chunk.New(0, nil),
		GraphStore:       graphStore,
		ChunkStore:       memstore.NewChunkStore(store),
		Indexing:         handlers,
		ProgressStore:    memstore.NewProgressStore(store),
		Validator:        validator.New(validator.DefaultTTL, nil),
		Impact:           impact.NewGraphHook(impact.New(impact.DefaultMaxDepth, impact.DefaultMaxAffected, nil), graphStore),
		ParseConcurrency: 2,
	}
	orch := orchestrator.New(deps)

	jobStore := memstore.NewJobStore(store)
	progressStore := memstore.NewProgressStore(store)
	return New(jobStore, progressStore, orch, nil), jobStore
}

func writeTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(sampleSource), 0644))
	return dir
}

func TestCoordinatorSubmitDedupesAgainstRunning(t *testing.T) {
	c, jobs := newTestCoordinator(t)
	ctx := context.Background()

	running := model.IndexJob{
		ID:         "running-job",
		RepoID:     "repo1",
		SnapshotID: "snap1",
		ScopePaths: nil, // whole repo
		Status:     model.JobRunning,
	}
	require.NoError(t, jobs.Create(ctx, running))

	job, err := c.Submit(ctx, "repo1", "snap1", "/tmp/repo1", model.TriggerManual, []string{"pkg/foo"}, false)
	require.NoError(t, err)
	require.Equal(t, model.JobDeduped, job.Status)
}

func TestCoordinatorSubmitSupersedesNarrowerQueued(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	j1, err := c.Submit(ctx, "repo1", "snap1", "/tmp/repo1", model.TriggerWatch, []string{"pkg/foo"}, false)
	require.NoError(t, err)
	require.Equal(t, model.JobQueued, j1.Status)

	j2, err := c.Submit(ctx, "repo1", "snap1", "/tmp/repo1", model.TriggerManual, nil, false)
	require.NoError(t, err)
	require.Equal(t, model.JobQueued, j2.Status)

	updated, err := c.Get(ctx, j1.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobSuperseded, updated.Status)
}

func TestCoordinatorSubmitSupersededWhenWiderQueuedExists(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()

	wide, err := c.Submit(ctx, "repo1", "snap1", "/tmp/repo1", model.TriggerManual, nil, false)
	require.NoError(t, err)
	require.Equal(t, model.JobQueued, wide.Status)

	narrow, err := c.Submit(ctx, "repo1", "snap1", "/tmp/repo1", model.TriggerWatch, []string{"pkg/foo"}, false)
	require.NoError(t, err)
	require.Equal(t, model.JobSuperseded, narrow.Status)
}

func TestCoordinatorExecuteRunsJobToCompletion(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	dir := writeTestRepo(t)

	job, err := c.Submit(ctx, "repo1", "snap1", dir, model.TriggerManual, nil, false)
	require.NoError(t, err)
	require.Equal(t, model.JobQueued, job.Status)

	result, err := c.Execute(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, orchestrator.StatusCompleted, result.Status)

	final, err := c.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, model.JobCompleted, final.Status)
	require.Equal(t, 1, final.FilesDiscovered)

	// Execute spawns a lease-renewal goroutine for the run's duration;
	// it must be gone once Execute has returned.
	coretesting.AssertNoLeaks(t)
}

func TestCoordinatorCancelUnknownJobReturnsFalse(t *testing.T) {
	c, _ := newTestCoordinator(t)
	require.False(t, c.Cancel("no-such-job"))
}

func TestFileProgressStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileProgressStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	p := model.JobProgress{JobID: "job1", Checkpoint: model.CheckpointParsingDone, CompletedFiles: []string{"a.go"}}
	require.NoError(t, store.Persist(ctx, p))

	loaded, err := store.Load(ctx, "job1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, model.CheckpointParsingDone, loaded.Checkpoint)
	require.Equal(t, []string{"a.go"}, loaded.CompletedFiles)

	require.NoError(t, store.Clear("job1"))
	loaded, err = store.Load(ctx, "job1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}
