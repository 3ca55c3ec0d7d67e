// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads the YAML configuration a coreindex CLI invocation
// or composition root needs to wire up an Orchestrator: which repository
// to index, how aggressively to parallelize, where to checkpoint, and
// which paths to exclude. The shape mirrors how the teacher's ingestion
// package describes its own Config/IngestionConfig pair in doc.go, scaled
// down to this core's concerns (no remote embedding provider, no Primary
// Hub batching).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/coreindex/internal/contract"
)

// ConcurrencyConfig bounds the worker pools the orchestrator and chunk
// builder fan out across.
type ConcurrencyConfig struct {
	ParseWorkers int `yaml:"parse_workers"`
	ChunkWorkers int `yaml:"chunk_workers"`
	EmbedWorkers int `yaml:"embed_workers"`
}

// IndexingConfig controls one repository's indexing behavior.
type IndexingConfig struct {
	ParserMode            string        `yaml:"parser_mode"`
	MaxFileSizeBytes      int64         `yaml:"max_file_size_bytes"`
	MaxDocumentSizeBytes  int64         `yaml:"max_document_size_bytes"`
	ExcludeGlobs          []string      `yaml:"exclude_globs,omitempty"`
	Concurrency           ConcurrencyConfig `yaml:"concurrency"`
	CheckpointPath        string        `yaml:"checkpoint_path"`
	SkipParseErrors       bool          `yaml:"skip_parse_errors"`
	EnableImpactPass      bool          `yaml:"enable_impact_pass"`
	MaxImpactDepth        int           `yaml:"max_impact_depth"`
	MaxImpactAffected     int           `yaml:"max_impact_affected"`
	EnableTypeHover       bool          `yaml:"enable_type_hover"`
	StaleEdgeTTL          time.Duration `yaml:"stale_edge_ttl"`
	JobTimeout            time.Duration `yaml:"job_timeout"`
	MaxRetries            int           `yaml:"max_retries"`
	QueueCapacity         int           `yaml:"queue_capacity"`
	ChunkBatchBytes       int           `yaml:"chunk_batch_bytes"`
}

// Config is the top-level, YAML-loadable configuration for one repository.
type Config struct {
	ProjectID  string         `yaml:"project_id"`
	RepoID     string         `yaml:"repo_id"`
	RepoPath   string         `yaml:"repo_path"`
	Indexing   IndexingConfig `yaml:"indexing"`
}

// DefaultConcurrency returns sensible defaults, scaled the way the
// teacher's ingestion.Concurrency defaults do (parse_workers=4).
func DefaultConcurrency() ConcurrencyConfig {
	return ConcurrencyConfig{ParseWorkers: 4, ChunkWorkers: 8, EmbedWorkers: 2}
}

// DefaultIndexingConfig returns the baseline IndexingConfig, overridable by
// env vars the way internal/contract.SoftLimitBytes is (CIE_SOFT_LIMIT_BYTES).
func DefaultIndexingConfig() IndexingConfig {
	return IndexingConfig{
		ParserMode:           "treesitter",
		MaxFileSizeBytes:     envInt64("COREINDEX_MAX_FILE_SIZE_BYTES", 2<<20),
		MaxDocumentSizeBytes: envInt64("COREINDEX_MAX_DOCUMENT_SIZE_BYTES", 8<<20),
		Concurrency:          DefaultConcurrency(),
		CheckpointPath:       envString("COREINDEX_CHECKPOINT_PATH", ".coreindex/checkpoints"),
		SkipParseErrors:      true,
		EnableImpactPass:     true,
		MaxImpactDepth:       3,
		MaxImpactAffected:    500,
		EnableTypeHover:      true,
		StaleEdgeTTL:         24 * time.Hour,
		JobTimeout:           30 * time.Minute,
		MaxRetries:           2,
		QueueCapacity:        10000,
		ChunkBatchBytes:      contract.SoftLimitBytes(),
	}
}

// DefaultConfig returns a Config with every field at its documented
// default except RepoID/RepoPath, which the caller must fill in.
func DefaultConfig() Config {
	return Config{Indexing: DefaultIndexingConfig()}
}

// Load reads and parses a YAML config file, filling any zero-valued field
// left unset in the file from DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes cfg to path as YAML. The parent directory must already
// exist; Save does not create it.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func applyDefaults(cfg *Config) {
	d := DefaultIndexingConfig()
	if cfg.Indexing.ParserMode == "" {
		cfg.Indexing.ParserMode = d.ParserMode
	}
	if cfg.Indexing.MaxFileSizeBytes == 0 {
		cfg.Indexing.MaxFileSizeBytes = d.MaxFileSizeBytes
	}
	if cfg.Indexing.MaxDocumentSizeBytes == 0 {
		cfg.Indexing.MaxDocumentSizeBytes = d.MaxDocumentSizeBytes
	}
	if cfg.Indexing.Concurrency.ParseWorkers == 0 {
		cfg.Indexing.Concurrency.ParseWorkers = d.Concurrency.ParseWorkers
	}
	if cfg.Indexing.Concurrency.ChunkWorkers == 0 {
		cfg.Indexing.Concurrency.ChunkWorkers = d.Concurrency.ChunkWorkers
	}
	if cfg.Indexing.Concurrency.EmbedWorkers == 0 {
		cfg.Indexing.Concurrency.EmbedWorkers = d.Concurrency.EmbedWorkers
	}
	if cfg.Indexing.CheckpointPath == "" {
		cfg.Indexing.CheckpointPath = d.CheckpointPath
	}
	if cfg.Indexing.MaxImpactDepth == 0 {
		cfg.Indexing.MaxImpactDepth = d.MaxImpactDepth
	}
	if cfg.Indexing.MaxImpactAffected == 0 {
		cfg.Indexing.MaxImpactAffected = d.MaxImpactAffected
	}
	if cfg.Indexing.StaleEdgeTTL == 0 {
		cfg.Indexing.StaleEdgeTTL = d.StaleEdgeTTL
	}
	if cfg.Indexing.JobTimeout == 0 {
		cfg.Indexing.JobTimeout = d.JobTimeout
	}
	if cfg.Indexing.QueueCapacity == 0 {
		cfg.Indexing.QueueCapacity = d.QueueCapacity
	}
	if cfg.Indexing.ChunkBatchBytes == 0 {
		cfg.Indexing.ChunkBatchBytes = d.ChunkBatchBytes
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
