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

// Package main implements the coreindex CLI: a thin wrapper around
// pkg/coordinator and pkg/orchestrator for indexing a repository locally.
//
// Usage:
//
//	coreindex init                Create .coreindex/project.yaml
//	coreindex index                Run a full or incremental index
//	coreindex status [--json]     List recent jobs for a repo
package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "unknown"
)

// GlobalFlags are options every subcommand inherits from top-level flags.
type GlobalFlags struct {
	JSON bool
}

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to the repository being indexed (default: current directory)")
		jsonOutput  = flag.Bool("json", false, "Output machine-readable JSON")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `coreindex - code-aware indexing and retrieval engine CLI

Usage:
  coreindex <command> [options]

Commands:
  init     Create .coreindex/project.yaml for the current repository
  index    Run an indexing job (full by default, --incremental for deltas)
  status   List recent jobs for a repo

Global Options:
  --config   Path to the repository being indexed (default: current directory)
  --json     Output machine-readable JSON
  --version  Show version and exit

Examples:
  coreindex init --repo-id my-service
  coreindex index
  coreindex index --incremental --scope pkg/foo,pkg/bar
  coreindex status --json
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("coreindex version %s (%s)\n", version, commit)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	globals := GlobalFlags{JSON: *jsonOutput}
	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, *configPath, globals)
	case "index":
		runIndex(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
