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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/coreindex/internal/bootstrap"
	"github.com/kraklabs/coreindex/internal/errors"
	"github.com/kraklabs/coreindex/internal/output"
	"github.com/kraklabs/coreindex/internal/ui"
	"github.com/kraklabs/coreindex/pkg/model"
)

// indexResult mirrors orchestrator.IndexingResult, trimmed to what a CLI
// invocation needs to report.
type indexResult struct {
	JobID           string            `json:"job_id"`
	Status          string            `json:"status"`
	FilesDiscovered int               `json:"files_discovered"`
	FilesParsed     int               `json:"files_parsed"`
	FilesFailed     int               `json:"files_failed"`
	NodesUpserted   int               `json:"nodes_upserted"`
	EdgesUpserted   int               `json:"edges_upserted"`
	ChunksBuilt     int               `json:"chunks_built"`
	DurationMS      int64             `json:"duration_ms"`
	Warnings        []string          `json:"warnings,omitempty"`
	Errors          []string          `json:"errors,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// runIndex executes the 'index' CLI command: it submits an IndexJob to the
// repository's JobCoordinator and drives it to completion, printing
// IndexingResult when done.
//
// Flags:
//   - --incremental: diff against the last completed snapshot instead of a full walk
//   - --snapshot: the snapshot ID this run represents (default: current git
//     HEAD, or a timestamp outside a git repository)
//   - --scope: repo-relative path to restrict discovery to; repeatable
//     (--scope a --scope b) or comma-separated (--scope a,b)
//   - --debug: enable debug logging
//   - --metrics-addr: HTTP listen address for Prometheus metrics (default: disabled)
func runIndex(args []string, repoPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	incremental := fs.Bool("incremental", false, "Diff against the last completed snapshot instead of a full walk")
	snapshotID := fs.String("snapshot", "", "Snapshot ID for this run (default: current git HEAD, or a timestamp)")
	scope := fs.StringSlice("scope", nil, "Repo-relative path to restrict discovery to (repeatable or comma-separated)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: coreindex index [options]

Submits and runs an indexing job against the project configured by
'coreindex init'. Full by default; pass --incremental to diff against the
last completed snapshot.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if repoPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			errors.FatalError(errors.NewInternalError("Cannot determine working directory", err.Error(), "Pass --config explicitly", err), globals.JSON)
		}
		repoPath = wd
	}

	logLevel := slog.LevelInfo
	if debug != nil && *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	proj, err := bootstrap.OpenProject(repoPath, logger)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Failed to open coreindex project",
			err.Error(),
			"Run 'coreindex init --repo-id <id>' first",
			err,
		), globals.JSON)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	snap := *snapshotID
	if snap == "" {
		snap = resolveHeadSnapshot(repoPath)
	}

	job, err := proj.Coordinator.Submit(ctx, proj.Config.RepoID, snap, repoPath, model.TriggerManual, *scope, *incremental)
	if err != nil {
		errors.FatalError(errors.NewInternalError("Failed to submit index job", err.Error(), "", err), globals.JSON)
	}

	switch job.Status {
	case model.JobDeduped:
		printSkipped(job, "deduped against an already-running job covering this scope", globals)
		return
	case model.JobSuperseded:
		printSkipped(job, "superseded by a wider job already queued", globals)
		return
	}

	result, err := proj.Coordinator.Execute(ctx, job.ID)
	if result == nil {
		errors.FatalError(errors.NewInternalError("Index job produced no result", errString(err), "", err), globals.JSON)
	}

	res := indexResult{
		JobID:           job.ID,
		Status:          string(result.Status),
		FilesDiscovered: result.FilesDiscovered,
		FilesParsed:     result.FilesParsed,
		FilesFailed:     result.FilesFailed,
		NodesUpserted:   result.NodesUpserted,
		EdgesUpserted:   result.EdgesUpserted,
		ChunksBuilt:     result.ChunksBuilt,
		DurationMS:      result.Duration.Milliseconds(),
		Warnings:        result.Warnings,
		Errors:          result.Errors,
		Metadata:        result.Metadata,
	}

	if globals.JSON {
		if jerr := output.JSON(res); jerr != nil {
			errors.FatalError(jerr, true)
		}
		if err != nil {
			os.Exit(errors.ExitInternal)
		}
		return
	}

	printIndexResultHuman(res)
	if err != nil {
		os.Exit(errors.ExitInternal)
	}
}

func printSkipped(job *model.IndexJob, reason string, globals GlobalFlags) {
	if globals.JSON {
		_ = output.JSON(map[string]any{"job_id": job.ID, "status": string(job.Status), "reason": reason})
		return
	}
	ui.Warningf("Job %s %s", job.ID, reason)
}

func printIndexResultHuman(res indexResult) {
	switch res.Status {
	case "COMPLETED":
		ui.Success(fmt.Sprintf("Indexed %d files in %dms", res.FilesParsed, res.DurationMS))
	case "FAILED":
		ui.Error(fmt.Sprintf("Indexing failed after %dms", res.DurationMS))
	default:
		ui.Warning(fmt.Sprintf("Indexing stopped (%s) after %dms", res.Status, res.DurationMS))
	}

	fmt.Printf("  %s %d\n", ui.Label("Files discovered:"), res.FilesDiscovered)
	fmt.Printf("  %s %d\n", ui.Label("Files parsed:"), res.FilesParsed)
	if res.FilesFailed > 0 {
		fmt.Printf("  %s %d\n", ui.Label("Files failed:"), res.FilesFailed)
	}
	fmt.Printf("  %s %d\n", ui.Label("Nodes upserted:"), res.NodesUpserted)
	fmt.Printf("  %s %d\n", ui.Label("Edges upserted:"), res.EdgesUpserted)
	fmt.Printf("  %s %d\n", ui.Label("Chunks built:"), res.ChunksBuilt)

	for _, w := range res.Warnings {
		ui.Warning(w)
	}
	for _, e := range res.Errors {
		ui.Error(e)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
