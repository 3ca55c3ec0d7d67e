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

package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/coreindex/pkg/change"
	"github.com/kraklabs/coreindex/pkg/chunk"
	"github.com/kraklabs/coreindex/pkg/coordinator"
	"github.com/kraklabs/coreindex/pkg/discovery"
	"github.com/kraklabs/coreindex/pkg/graph"
	"github.com/kraklabs/coreindex/pkg/impact"
	"github.com/kraklabs/coreindex/pkg/indexing"
	"github.com/kraklabs/coreindex/pkg/ir"
	"github.com/kraklabs/coreindex/pkg/memstore"
	"github.com/kraklabs/coreindex/pkg/orchestrator"
	"github.com/kraklabs/coreindex/pkg/parsing"
	"github.com/kraklabs/coreindex/pkg/semantic"
	"github.com/kraklabs/coreindex/pkg/typeanalyzer"
	"github.com/kraklabs/coreindex/pkg/validator"

	"github.com/kraklabs/coreindex/internal/config"
)

// projectConfigName is the file a project's configuration is stored under,
// relative to ConfigDir(repoPath).
const projectConfigName = "project.yaml"

// Project is a fully wired composition root: one coordinator, one
// orchestrator, and the in-memory stores behind every port, all built
// from a single repository's Config (spec §9, "no module-level
// singletons" — every CLI invocation builds its own).
type Project struct {
	Config       *config.Config
	Store        *memstore.Store
	Orchestrator *orchestrator.Orchestrator
	Coordinator  *coordinator.Coordinator
	ConfigPath   string
}

// ConfigDir returns the per-repository directory coreindex keeps its
// project.yaml and checkpoints under.
func ConfigDir(repoPath string) string {
	return filepath.Join(repoPath, ".coreindex")
}

// InitProject creates a new project's configuration under repoPath and
// returns its wired composition root. Idempotent: re-running overwrites
// project.yaml with cfg but never touches already-persisted job/progress
// state.
func InitProject(repoPath string, cfg config.Config, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RepoPath == "" {
		cfg.RepoPath = repoPath
	}
	if cfg.RepoID == "" {
		return nil, fmt.Errorf("bootstrap: repo_id is required")
	}

	dir := ConfigDir(repoPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("bootstrap: create project dir: %w", err)
	}
	if cfg.Indexing.CheckpointPath == "" {
		cfg.Indexing.CheckpointPath = filepath.Join(dir, "checkpoints")
	}

	configPath := filepath.Join(dir, projectConfigName)
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("bootstrap: save project config: %w", err)
	}

	logger.Info("bootstrap.project.init", "repo_id", cfg.RepoID, "repo_path", repoPath, "config_path", configPath)
	return compose(cfg, configPath, logger)
}

// OpenProject loads an existing project's configuration from repoPath and
// returns its wired composition root.
func OpenProject(repoPath string, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = slog.Default()
	}

	configPath := filepath.Join(ConfigDir(repoPath), projectConfigName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("bootstrap: project not found at %s (run 'coreindex init' first)", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load project config: %w", err)
	}
	if cfg.RepoPath == "" {
		cfg.RepoPath = repoPath
	}

	logger.Debug("bootstrap.project.open", "repo_id", cfg.RepoID, "repo_path", repoPath)
	return compose(*cfg, configPath, logger)
}

// compose wires every C1-C12 component together from cfg, the way the
// teacher's InitProject wires one EmbeddedBackend from a ProjectConfig —
// here the backend is pkg/memstore plus a durable pkg/coordinator
// checkpoint file instead of an embedded database.
func compose(cfg config.Config, configPath string, logger *slog.Logger) (*Project, error) {
	store := memstore.New(logger)
	graphStore := memstore.NewGraphStore(store)

	handlers := indexing.New(logger)
	handlers.Lexical = memstore.NewLexicalIndex(store)
	handlers.Vector = memstore.NewVectorIndex(store)
	handlers.Symbol = memstore.NewSymbolIndex(store)
	handlers.Fuzzy = memstore.NewFuzzyIndex(store)
	handlers.Domain = memstore.NewDomainIndex(store)
	handlers.Queue = memstore.NewEmbeddingQueue(store, cfg.Indexing.QueueCapacity)

	progressStore, err := coordinator.NewFileProgressStore(cfg.Indexing.CheckpointPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: checkpoint store: %w", err)
	}

	deps := orchestrator.Deps{
		Logger: logger,

		Discovery: discovery.New(discovery.Config{
			ExcludeGlobs:     append(discovery.DefaultExcludeGlobs, cfg.Indexing.ExcludeGlobs...),
			MaxCodeBytes:     cfg.Indexing.MaxFileSizeBytes,
			MaxDocumentBytes: cfg.Indexing.MaxDocumentSizeBytes,
		}, logger),
		ChangeDetector:  change.New(logger),
		ParserPool:      parsing.DefaultPool(cfg.Indexing.SkipParseErrors, logger),
		IRBuilder:       ir.New(logger),
		SemanticBuilder: semantic.New(logger),
		GraphBuilder:    graph.New(graphStore, logger),
		ChunkBuilder:    chunk.New(cfg.Indexing.Concurrency.ChunkWorkers, logger),

		GraphStore: graphStore,
		ChunkStore: memstore.NewChunkStore(store),
		Indexing:   handlers,

		ProgressStore: progressStore,
		Validator:     validator.New(cfg.Indexing.StaleEdgeTTL, logger),

		ParseConcurrency: cfg.Indexing.Concurrency.ParseWorkers,
		ChunkBatchBytes:  cfg.Indexing.ChunkBatchBytes,
	}
	if cfg.Indexing.EnableImpactPass {
		deps.Impact = impact.NewGraphHook(
			impact.New(cfg.Indexing.MaxImpactDepth, cfg.Indexing.MaxImpactAffected, logger),
			graphStore,
		)
	}
	if cfg.Indexing.EnableTypeHover {
		deps.TypeAnalyzer = typeanalyzer.New(cfg.RepoPath, logger)
	}
	orch := orchestrator.New(deps)

	jobStore := memstore.NewJobStore(store)
	coord := coordinator.New(jobStore, progressStore, orch, logger)

	return &Project{
		Config:       &cfg,
		Store:        store,
		Orchestrator: orch,
		Coordinator:  coord,
		ConfigPath:   configPath,
	}, nil
}
