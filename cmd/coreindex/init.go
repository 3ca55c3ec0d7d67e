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
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kraklabs/coreindex/internal/bootstrap"
	"github.com/kraklabs/coreindex/internal/config"
	"github.com/kraklabs/coreindex/internal/errors"
	"github.com/kraklabs/coreindex/internal/output"
	"github.com/kraklabs/coreindex/internal/ui"
)

type initResult struct {
	RepoID     string `json:"repo_id"`
	RepoPath   string `json:"repo_path"`
	ConfigPath string `json:"config_path"`
}

func runInit(args []string, repoPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	repoID := fs.String("repo-id", "", "Unique identifier for this repository (required)")
	excludeGlobs := fs.String("exclude", "", "Comma-separated glob patterns to exclude, in addition to the defaults")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: coreindex init --repo-id <id> [options]

Creates .coreindex/project.yaml for the repository rooted at the current
directory (or --config, if given as a directory path).

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

	if *repoID == "" {
		errors.FatalError(errors.NewInputError(
			"Missing --repo-id",
			"coreindex init requires a stable identifier for this repository",
			"Run: coreindex init --repo-id <your-repo-name>",
		), globals.JSON)
	}

	cfg := config.DefaultConfig()
	cfg.RepoID = *repoID
	cfg.RepoPath = repoPath
	if *excludeGlobs != "" {
		cfg.Indexing.ExcludeGlobs = splitCSV(*excludeGlobs)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	proj, err := bootstrap.InitProject(repoPath, cfg, logger)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Failed to initialize coreindex project",
			err.Error(),
			"Check that the repository path is writable",
			err,
		), globals.JSON)
	}

	res := initResult{RepoID: proj.Config.RepoID, RepoPath: proj.Config.RepoPath, ConfigPath: proj.ConfigPath}

	if globals.JSON {
		if err := output.JSON(res); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	ui.Success(fmt.Sprintf("Initialized coreindex project %q", res.RepoID))
	fmt.Printf("  %s %s\n", ui.Label("Repo path:"), res.RepoPath)
	fmt.Printf("  %s %s\n", ui.Label("Config:"), ui.DimText(res.ConfigPath))
	fmt.Println()
	fmt.Println("Run 'coreindex index' to build the first index.")
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
