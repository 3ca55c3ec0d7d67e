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

// Package orchestrator implements the PipelineOrchestrator: the component
// that sequences file discovery, change detection, parsing, structural and
// semantic IR building, graph mutation, chunk building, and the five-way
// index fan-out into one resumable, cancellable run per job. It plays the
// role the teacher's LocalPipeline.Run plays for its own numbered-step
// ingestion, but drives the independently-testable pkg/discovery,
// pkg/change, pkg/parsing, pkg/ir, pkg/semantic, pkg/graph, and pkg/chunk
// packages instead of one monolithic method.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/coreindex/internal/contract"
	"github.com/kraklabs/coreindex/pkg/change"
	"github.com/kraklabs/coreindex/pkg/chunk"
	"github.com/kraklabs/coreindex/pkg/discovery"
	"github.com/kraklabs/coreindex/pkg/graph"
	"github.com/kraklabs/coreindex/pkg/impact"
	"github.com/kraklabs/coreindex/pkg/indexing"
	"github.com/kraklabs/coreindex/pkg/ir"
	"github.com/kraklabs/coreindex/pkg/metrics"
	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/parsing"
	"github.com/kraklabs/coreindex/pkg/ports"
	"github.com/kraklabs/coreindex/pkg/semantic"
)

// Deps collects every collaborator the orchestrator drives. Callers supply
// concrete implementations (pkg/memstore for local runs, anything
// conforming to pkg/ports for production) from a composition root — the
// orchestrator never constructs its own storage or indexes (spec §9, "no
// module-level singletons").
type Deps struct {
	Logger *slog.Logger

	Discovery       *discovery.Discovery
	ChangeDetector  *change.Detector
	ParserPool      *parsing.Pool
	IRBuilder       *ir.Builder
	SemanticBuilder *semantic.Builder
	GraphBuilder    *graph.Builder
	ChunkBuilder    *chunk.Builder

	GraphStore ports.GraphStore
	ChunkStore ports.ChunkStore

	Indexing *indexing.Handlers

	ProgressStore ports.ProgressStore

	Validator StaleMarker
	Impact    *impact.GraphHook

	// TypeAnalyzer is optional; when nil, ExpressionBuilder-level type
	// enrichment is skipped (spec §6, ExternalTypeAnalyzer is an optional
	// collaborator).
	TypeAnalyzer ports.ExternalTypeAnalyzer

	ParseConcurrency int

	// ChunkBatchBytes bounds the total Content size of one SaveChunks call
	// (spec §4.8, "streams output in configurable batches to bound
	// memory"). Zero uses contract.SoftLimitBytes().
	ChunkBatchBytes int
}

// StaleMarker mirrors graph.StaleMarker; redeclared here so Deps doesn't
// need to import pkg/validator just for its concrete type, matching how
// pkg/graph itself avoids that import.
type StaleMarker = graph.StaleMarker

// Request describes one indexing run.
type Request struct {
	RepoID     string
	SnapshotID string
	RepoPath   string
	// BaseSHA is the git ref changes are diffed against; empty means diff
	// against the empty tree (a full first index).
	BaseSHA string
	// ScopePaths restricts discovery to these repo-relative paths; empty
	// means a full repository walk.
	ScopePaths []string
	// Incremental, when true, lets the run short-circuit entirely once
	// change detection reports an empty ChangeSet (spec §4.1: "If
	// incremental and the ChangeSet is empty, all later stages are
	// skipped and the result is marked COMPLETED"). Full runs always
	// proceed regardless of what ChangeDetector reports.
	Incremental bool
	// Resume, if non-nil, lets the run skip files already recorded as
	// completed in a prior attempt (spec §4.12 resume semantics).
	Resume *model.JobProgress
	// OnProgress is called after every checkpoint transition; it must
	// return quickly and never block the pipeline (spec §4.12, "a
	// non-blocking progress callback").
	OnProgress func(model.JobProgress)
}

// RunStatus is the user-visible status every IndexingResult carries (spec
// §7: "every job returns IndexingResult{status, counts, durations,
// warnings, errors, failed_files, metadata}").
type RunStatus string

const (
	StatusCompleted  RunStatus = "COMPLETED"
	StatusInProgress RunStatus = "IN_PROGRESS"
	StatusFailed     RunStatus = "FAILED"
)

// IndexingResult summarizes one completed (or partially completed, on
// cancellation) run.
type IndexingResult struct {
	RepoID          string
	SnapshotID      string
	Status          RunStatus
	FilesDiscovered int
	FilesParsed     int
	FilesFailed     int
	FailedFiles     map[string]string
	NodesUpserted   int
	EdgesUpserted   int
	ChunksBuilt     int
	ImpactResult    *model.ImpactResult
	Duration        time.Duration
	FinalCheckpoint model.Checkpoint
	// Warnings are advisory; Errors indicate at least partial data
	// corruption risk (spec §7). Metadata carries stage-specific detail,
	// e.g. "stopped_at_stage" on a cancelled run.
	Warnings []string
	Errors   []string
	Metadata map[string]string
}

func (r *IndexingResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Orchestrator implements the PipelineOrchestrator (spec §4.12).
type Orchestrator struct {
	logger *slog.Logger
	deps   Deps
}

// New constructs an Orchestrator from its dependencies. When both
// deps.SemanticBuilder and deps.TypeAnalyzer are set, the analyzer is wired
// into the builder so ExpressionBuilder can enrich expressions with
// ExternalTypeAnalyzer.Hover results (spec §6, "invoked optionally by
// ExpressionBuilder for type enrichment").
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SemanticBuilder != nil && deps.TypeAnalyzer != nil {
		deps.SemanticBuilder.WithTypeAnalyzer(deps.TypeAnalyzer)
	}
	return &Orchestrator{logger: deps.Logger, deps: deps}
}

// Run drives one indexing job end to end, reporting a checkpoint after
// every stage and returning early (with ctx.Err()) if ctx is cancelled
// between stages — a cancelled run leaves every store in a consistent
// state up to its last persisted checkpoint (spec §4.12).
func (o *Orchestrator) Run(ctx context.Context, req Request) (*IndexingResult, error) {
	start := time.Now()
	stageTimer := metrics.PipelineStageDuration()

	result := &IndexingResult{RepoID: req.RepoID, SnapshotID: req.SnapshotID, FailedFiles: make(map[string]string)}

	progress := model.JobProgress{JobID: req.RepoID + ":" + req.SnapshotID}
	if req.Resume != nil {
		progress = *req.Resume
	}
	o.checkpoint(ctx, &progress, model.CheckpointStarted, req.OnProgress)

	if err := ctx.Err(); err != nil {
		return o.stageStop(result, start, "started", err)
	}

	// Stage: discovery (spec §4.1).
	stageStart := time.Now()
	files, err := o.deps.Discovery.DiscoverFiles(req.RepoPath, req.ScopePaths)
	if err != nil {
		return o.stageFail(result, start, fmt.Errorf("orchestrator: discover files: %w", err))
	}
	stageTimer.WithLabelValues("discovery").Observe(time.Since(stageStart).Seconds())
	result.FilesDiscovered = len(files)
	progress.TotalFiles = len(files)

	if len(files) == 0 {
		result.warn("no files to process")
		o.checkpoint(ctx, &progress, model.CheckpointCompleted, req.OnProgress)
		result.FinalCheckpoint = model.CheckpointCompleted
		result.Status = StatusCompleted
		result.Duration = time.Since(start)
		return result, nil
	}

	// Stage: change detection (spec §4.2).
	stageStart = time.Now()
	changes, err := o.deps.ChangeDetector.DetectChanges(req.RepoPath, req.RepoID, req.BaseSHA)
	if err != nil {
		o.logger.Warn("orchestrator.change_detect.failed", "repo_id", req.RepoID, "err", err)
		changes = model.ChangeSet{Added: pathsOf(files)}
	}
	stageTimer.WithLabelValues("change_detect").Observe(time.Since(stageStart).Seconds())
	o.checkpoint(ctx, &progress, model.CheckpointChangedFilesComputed, req.OnProgress)

	// Incremental runs with nothing to do skip every remaining stage and
	// complete immediately (spec §4.1).
	if req.Incremental && changes.IsEmpty() {
		result.warn("no changes to process")
		o.checkpoint(ctx, &progress, model.CheckpointCompleted, req.OnProgress)
		result.FinalCheckpoint = model.CheckpointCompleted
		result.Status = StatusCompleted
		result.Duration = time.Since(start)
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return o.stageStop(result, start, "change_detect", err)
	}

	// Stage: parse (spec §4.3/C2-C3).
	stageStart = time.Now()
	asts, fileText, err := o.parseFiles(ctx, req.RepoPath, files, &progress, req.OnProgress)
	if err != nil {
		return o.stageFail(result, start, err)
	}
	stageTimer.WithLabelValues("parse").Observe(time.Since(stageStart).Seconds())
	result.FilesParsed = len(asts)
	result.FilesFailed = len(progress.FailedFiles)
	for k, v := range progress.FailedFiles {
		result.FailedFiles[k] = v
	}
	o.checkpoint(ctx, &progress, model.CheckpointParsingDone, req.OnProgress)

	if err := ctx.Err(); err != nil {
		return o.stageStop(result, start, "parse", err)
	}

	// Stage: structural + semantic IR (spec §4.4-4.6).
	stageStart = time.Now()
	doc, snapshot := o.buildIR(req.RepoID, req.SnapshotID, asts)
	stageTimer.WithLabelValues("ir_semantic").Observe(time.Since(stageStart).Seconds())
	result.NodesUpserted = len(doc.Nodes)
	result.EdgesUpserted = len(doc.Edges)
	o.checkpoint(ctx, &progress, model.CheckpointIRDone, req.OnProgress)

	if err := ctx.Err(); err != nil {
		return o.stageStop(result, start, "ir_semantic", err)
	}

	// Stage: graph (spec §4.7).
	stageStart = time.Now()
	existing, err := o.deps.GraphStore.LoadGraph(ctx, req.RepoID, "")
	if err != nil {
		o.logger.Warn("orchestrator.graph.load_failed", "repo_id", req.RepoID, "err", err)
	}
	graphDoc, err := o.deps.GraphBuilder.ApplyIncremental(ctx, req.RepoID, existing, doc, snapshot, &changes, o.deps.Validator, o.deps.Impact)
	if err != nil {
		return o.stageFail(result, start, fmt.Errorf("orchestrator: apply incremental graph: %w", err))
	}
	nodesMetric, edgesMetric, graphDur := metrics.Graph()
	nodesMetric.Add(float64(len(doc.Nodes)))
	edgesMetric.Add(float64(len(doc.Edges)))
	graphDur.Observe(time.Since(stageStart).Seconds())

	// Stage: chunks (spec §4.8).
	stageStart = time.Now()
	chunkResult, err := o.deps.ChunkBuilder.Build(ctx, doc, graphDoc, fileText)
	if err != nil {
		return o.stageFail(result, start, fmt.Errorf("orchestrator: build chunks: %w", err))
	}
	batchLimit := o.deps.ChunkBatchBytes
	if batchLimit <= 0 {
		batchLimit = contract.SoftLimitBytes()
	}
	for _, batch := range contract.BatchChunksBySize(chunkResult.Chunks, batchLimit) {
		if err := o.deps.ChunkStore.SaveChunks(ctx, batch); err != nil {
			return o.stageFail(result, start, fmt.Errorf("orchestrator: save chunks: %w", err))
		}
	}
	built, drifted, chunkDur := metrics.Chunks()
	built.Add(float64(len(chunkResult.Chunks)))
	_ = drifted
	chunkDur.Observe(time.Since(stageStart).Seconds())
	result.ChunksBuilt = len(chunkResult.Chunks)
	o.checkpoint(ctx, &progress, model.CheckpointChunksStored, req.OnProgress)

	if err := ctx.Err(); err != nil {
		return o.stageStop(result, start, "chunks", err)
	}

	// Stage: index fan-out (spec §4.9-4.11).
	stageStart = time.Now()
	if o.deps.Indexing != nil {
		if err := o.deps.Indexing.Run(ctx, req.RepoID, req.SnapshotID, graphDoc, chunkResult.Chunks); err != nil {
			return o.stageFail(result, start, fmt.Errorf("orchestrator: index fan-out: %w", err))
		}
	}
	stageTimer.WithLabelValues("index_fanout").Observe(time.Since(stageStart).Seconds())
	o.checkpoint(ctx, &progress, model.CheckpointIndexesUpdated, req.OnProgress)

	// Stage: impact (already folded into ApplyIncremental step 5; surface
	// it on the result for the caller).
	if hook := o.deps.Impact; hook != nil {
		impactDur, truncated := metrics.Impact()
		impactStart := time.Now()
		ir, err := hook.AnalyzeImpact(ctx, req.RepoID, &changes)
		impactDur.Observe(time.Since(impactStart).Seconds())
		if err != nil {
			o.logger.Warn("orchestrator.impact.failed", "repo_id", req.RepoID, "err", err)
		} else {
			result.ImpactResult = ir
			if ir.Truncated {
				truncated.Inc()
			}
		}
	}

	o.checkpoint(ctx, &progress, model.CheckpointCompleted, req.OnProgress)
	result.FinalCheckpoint = model.CheckpointCompleted
	result.Status = StatusCompleted
	result.Duration = time.Since(start)

	o.logger.Info("orchestrator.run.complete",
		"repo_id", req.RepoID, "snapshot_id", req.SnapshotID,
		"files_discovered", result.FilesDiscovered, "files_parsed", result.FilesParsed,
		"files_failed", result.FilesFailed, "chunks", result.ChunksBuilt,
		"duration", result.Duration)

	return result, nil
}

// stageStop marks a run cancelled mid-stage (ctx.Err()), recording which
// stage it was about to enter so a resumed run can report where it left
// off (spec §4.12: cancellation leaves every store consistent up to its
// last persisted checkpoint).
func (o *Orchestrator) stageStop(result *IndexingResult, start time.Time, stage string, err error) (*IndexingResult, error) {
	result.Status = StatusInProgress
	if result.Metadata == nil {
		result.Metadata = make(map[string]string)
	}
	result.Metadata["stopped_at_stage"] = stage
	result.Duration = time.Since(start)
	return result, err
}

// stageFail marks a run as failed on a stage-fatal error.
func (o *Orchestrator) stageFail(result *IndexingResult, start time.Time, err error) (*IndexingResult, error) {
	result.Status = StatusFailed
	result.Errors = append(result.Errors, err.Error())
	result.Duration = time.Since(start)
	return result, err
}

func (o *Orchestrator) checkpoint(ctx context.Context, progress *model.JobProgress, cp model.Checkpoint, onProgress func(model.JobProgress)) {
	progress.Checkpoint = cp
	if o.deps.ProgressStore != nil {
		if err := o.deps.ProgressStore.Persist(ctx, *progress); err != nil {
			o.logger.Warn("orchestrator.checkpoint.persist_failed", "job_id", progress.JobID, "err", err)
		}
	}
	if onProgress != nil {
		onProgress(*progress)
	}
}

func pathsOf(files []discovery.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

// parseFiles parses every discovered code file, skipping files already
// marked completed by a resumed JobProgress, and fans work out across
// ParseConcurrency workers via errgroup the way pkg/chunk.Builder fans out
// per-file chunk building (replacing the teacher's manual channel +
// WaitGroup worker pool, spec §4.3 concurrency note).
func (o *Orchestrator) parseFiles(ctx context.Context, repoPath string, files []discovery.File, progress *model.JobProgress, onProgress func(model.JobProgress)) (map[string]*parsing.AST, map[string]string, error) {
	type parsed struct {
		path string
		ast  *parsing.AST
		text string
		err  error
	}

	parseErrs, skipped, parseDur := metrics.Parsing()

	candidates := make([]discovery.File, 0, len(files))
	for _, f := range files {
		if f.Class != discovery.ClassCode {
			continue
		}
		if progress.HasCompleted(f.Path) {
			continue
		}
		candidates = append(candidates, f)
	}

	results := make([]parsed, len(candidates))
	concurrency := o.deps.ParseConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, f := range candidates {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			t0 := time.Now()
			content, readErr := os.ReadFile(f.FullPath)
			if readErr != nil {
				results[i] = parsed{path: f.Path, err: readErr}
				return nil
			}
			ast, parseErr := o.deps.ParserPool.Parse(f.Language, f.Path, content)
			parseDur.Observe(time.Since(t0).Seconds())
			if parseErr != nil {
				var perr *parsing.Error
				if pe, ok := asParsingError(parseErr); ok {
					perr = pe
				}
				if perr != nil && perr.Skipped {
					skipped.Inc()
				} else {
					parseErrs.Inc()
				}
				results[i] = parsed{path: f.Path, text: string(content), err: parseErr}
				return nil
			}
			results[i] = parsed{path: f.Path, ast: ast, text: string(content)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	asts := make(map[string]*parsing.AST, len(results))
	text := make(map[string]string, len(results))
	for _, r := range results {
		if r.err != nil {
			progress.FailedFiles = addFailed(progress.FailedFiles, r.path, r.err.Error())
			continue
		}
		asts[r.path] = r.ast
		text[r.path] = r.text
		progress.CompletedFiles = append(progress.CompletedFiles, r.path)
		progress.ProcessingFile = r.path
		if onProgress != nil {
			onProgress(*progress)
		}
	}
	return asts, text, nil
}

func addFailed(m map[string]string, path, errMsg string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[path] = errMsg
	return m
}

func asParsingError(err error) (*parsing.Error, bool) {
	pe, ok := err.(*parsing.Error)
	return pe, ok
}

// buildIR runs C4 IRBuilder over every parsed file, then zips the resulting
// function/method nodes with their originating AST node (discarded by
// FileResult) to drive C5 SemanticIRBuilder.BuildFull.
func (o *Orchestrator) buildIR(repoID, snapshotID string, asts map[string]*parsing.AST) (*model.IRDocument, *model.SemanticSnapshot) {
	doc := &model.IRDocument{RepoID: repoID, SnapshotID: snapshotID, SchemaVersion: model.SchemaVersion}

	var functions []semantic.FunctionInput
	irDur := metrics.IRBuildDuration

	for path, ast := range asts {
		t0 := time.Now()
		res, err := o.deps.IRBuilder.BuildFile(repoID, ast)
		irDur().Observe(time.Since(t0).Seconds())
		if err != nil {
			o.logger.Warn("orchestrator.ir_build.failed", "path", path, "err", err)
			continue
		}
		doc.Nodes = append(doc.Nodes, res.Nodes...)
		doc.Edges = append(doc.Edges, res.Edges...)
		doc.Signatures = append(doc.Signatures, res.Signatures...)

		for _, fn := range ast.Root.FindAll("function_declaration", "method_declaration") {
			nameNode := fn.Child("name")
			if nameNode == nil {
				continue
			}
			for _, n := range res.Nodes {
				if (n.Kind == model.NodeFunction || n.Kind == model.NodeMethod) &&
					n.FilePath == path && n.Span.StartLine == fn.Span.StartLine && n.Name == nameNode.Text {
					functions = append(functions, semantic.FunctionInput{FunctionID: n.ID, FunctionFQN: n.FQN, FilePath: n.FilePath, Node: fn})
					break
				}
			}
		}
	}

	semDur, cfgFailures := metrics.Semantic()
	_ = cfgFailures
	t0 := time.Now()
	snapshot := o.deps.SemanticBuilder.BuildFull(repoID, snapshotID, doc, functions, asts)
	semDur.Observe(time.Since(t0).Seconds())

	return doc, snapshot
}

