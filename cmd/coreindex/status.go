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
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/kraklabs/coreindex/internal/bootstrap"
	"github.com/kraklabs/coreindex/internal/errors"
	"github.com/kraklabs/coreindex/internal/output"
	"github.com/kraklabs/coreindex/internal/ui"
)

// runStatus executes the 'status' CLI command: it lists the jobs tracked
// for the current project's repository, optionally narrowed to one
// snapshot.
//
// Flags:
//   - --snapshot: only list jobs for this snapshot ID (default: all snapshots)
func runStatus(args []string, repoPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	snapshotID := fs.String("snapshot", "", "Only list jobs for this snapshot ID")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: coreindex status [options]

Lists jobs tracked by the project's coordinator, most recent first.

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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	proj, err := bootstrap.OpenProject(repoPath, logger)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Failed to open coreindex project",
			err.Error(),
			"Run 'coreindex init --repo-id <id>' first",
			err,
		), globals.JSON)
	}

	jobs, err := proj.Coordinator.List(context.Background(), proj.Config.RepoID, *snapshotID)
	if err != nil {
		errors.FatalError(errors.NewInternalError("Failed to list jobs", err.Error(), "", err), globals.JSON)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].SubmittedAt.After(jobs[j].SubmittedAt) })

	if globals.JSON {
		if err := output.JSON(jobs); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	if len(jobs) == 0 {
		ui.Info("No jobs recorded yet. Run 'coreindex index' to start one.")
		return
	}

	ui.Header(fmt.Sprintf("coreindex status: %s", proj.Config.RepoID))
	for _, j := range jobs {
		fmt.Printf("  %s  %-12s  snapshot=%s  files=%d/%d  trigger=%s\n",
			ui.DimText(j.ID), j.Status, j.SnapshotID, j.FilesProcessed, j.FilesDiscovered, j.Trigger)
		if j.Error != "" {
			fmt.Printf("    %s %s\n", ui.Label("error:"), j.Error)
		}
	}
}
