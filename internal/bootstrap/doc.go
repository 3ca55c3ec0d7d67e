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

// Package bootstrap wires a repository's configuration into a fully
// composed Project: the memstore-backed ports, the orchestrator, and the
// job coordinator, ready to submit and execute indexing jobs.
//
// # Initialization Workflow
//
//	proj, err := bootstrap.InitProject(repoPath, config.Config{
//	    RepoID:   "my-repo",
//	    RepoPath: repoPath,
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	job, err := proj.Coordinator.Submit(ctx, proj.Config.RepoID, snapshotID, repoPath, model.TriggerManual, nil, false)
//	result, err := proj.Coordinator.Execute(ctx, job.ID)
//
// Later, reopen the same project for another run:
//
//	proj, err := bootstrap.OpenProject(repoPath, logger)
//
// # Idempotency
//
// InitProject is idempotent: re-running it overwrites the project's
// project.yaml with the supplied config but never touches job or progress
// state already persisted under its checkpoint directory.
//
// # Storage
//
// Every composed Project is backed by pkg/memstore for the five indexes,
// the graph, and chunks, and by pkg/coordinator.FileProgressStore for
// checkpoints — the only state that survives a process restart on its
// own, since a fresh process otherwise loses memstore's in-memory state
// entirely and must re-run a full index.
package bootstrap
