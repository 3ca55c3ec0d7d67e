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

package orchestrator

import (
	"context"
	"os"
	"os/exec"
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
	"github.com/kraklabs/coreindex/pkg/parsing"
	"github.com/kraklabs/coreindex/pkg/semantic"
	"github.com/kraklabs/coreindex/pkg/validator"
)

const sampleRepoSource = `package sample

func Add(a, b int) int {
	if a > b {
		return a + b
	}
	return b + a
}

type Greeter struct{}

func (g *Greeter) Greet(name string) string {
	return "hello " + name
}
`

func newTestOrchestrator(t *testing.T) *Orchestrator {
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

	deps := Deps{
		Discovery:       discovery.New(discovery.DefaultConfig(), nil),
		ChangeDetector:  change.New(nil),
		ParserPool:      parsing.DefaultPool(true, nil),
		IRBuilder:       ir.New(nil),
		SemanticBuilder: semantic.New(nil),
		GraphBuilder:    graph.New(graphStore, nil),
		ChunkBuilder:    chunk.New(0, nil),
		GraphStore:      graphStore,
		ChunkStore:      memstore.NewChunkStore(store),
		Indexing:        handlers,
		ProgressStore:   memstore.NewProgressStore(store),
		Validator:       validator.New(validator.DefaultTTL, nil),
		Impact:          impact.NewGraphHook(impact.New(impact.DefaultMaxDepth, impact.DefaultMaxAffected, nil), graphStore),
		ParseConcurrency: 2,
	}
	return New(deps)
}

func writeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.go"), []byte(sampleRepoSource), 0644))
	return dir
}

func TestOrchestratorRunFullIndex(t *testing.T) {
	o := newTestOrchestrator(t)
	dir := writeRepo(t)

	var checkpoints []model.Checkpoint
	result, err := o.Run(context.Background(), Request{
		RepoID:     "repo1",
		SnapshotID: "snap1",
		RepoPath:   dir,
		OnProgress: func(p model.JobProgress) { checkpoints = append(checkpoints, p.Checkpoint) },
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Equal(t, 1, result.FilesDiscovered)
	require.Equal(t, 1, result.FilesParsed)
	require.Zero(t, result.FilesFailed)
	require.Greater(t, result.NodesUpserted, 0)
	require.Greater(t, result.ChunksBuilt, 0)
	require.Equal(t, model.CheckpointCompleted, result.FinalCheckpoint)

	require.Contains(t, checkpoints, model.CheckpointStarted)
	require.Contains(t, checkpoints, model.CheckpointIndexesUpdated)
	require.Contains(t, checkpoints, model.CheckpointCompleted)

	// The parse/chunk stages' bounded worker pools must not leave any
	// goroutine running once Run has returned.
	coretesting.AssertNoLeaks(t)
}

func TestOrchestratorRunRespectsCancellation(t *testing.T) {
	o := newTestOrchestrator(t)
	dir := writeRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, Request{RepoID: "repo1", SnapshotID: "snap1", RepoPath: dir})
	require.Error(t, err)
}

func TestOrchestratorRunEmptyRepo(t *testing.T) {
	o := newTestOrchestrator(t)
	dir := t.TempDir()

	result, err := o.Run(context.Background(), Request{
		RepoID:     "repo1",
		SnapshotID: "snap1",
		RepoPath:   dir,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)
	require.Zero(t, result.FilesDiscovered)
	require.Equal(t, model.CheckpointCompleted, result.FinalCheckpoint)
	require.Contains(t, result.Warnings, "no files to process")
}

func TestOrchestratorIncrementalSkipsWhenNoChanges(t *testing.T) {
	o := newTestOrchestrator(t)
	dir := writeRepo(t)

	runGit := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	runGit("init")
	runGit("add", ".")
	runGit("commit", "-m", "initial")

	head, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	headSHA := string(head[:len(head)-1])

	result, err := o.Run(context.Background(), Request{
		RepoID:      "repo1",
		SnapshotID:  "snap2",
		RepoPath:    dir,
		BaseSHA:     headSHA,
		Incremental: true,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)
	require.Equal(t, model.CheckpointCompleted, result.FinalCheckpoint)
	require.Contains(t, result.Warnings, "no changes to process")
	require.Zero(t, result.FilesParsed, "parse stage must be skipped entirely")
}

func TestOrchestratorResumeSkipsCompletedFiles(t *testing.T) {
	o := newTestOrchestrator(t)
	dir := writeRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.go"), []byte("package sample\n\nfunc Other() {}\n"), 0644))

	resume := &model.JobProgress{
		JobID:          "repo1:snap1",
		Checkpoint:     model.CheckpointParsingDone,
		CompletedFiles: []string{"sample.go"},
	}

	result, err := o.Run(context.Background(), Request{
		RepoID:     "repo1",
		SnapshotID: "snap1",
		RepoPath:   dir,
		Resume:     resume,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesParsed, "only the not-yet-completed file should be reparsed")
}
