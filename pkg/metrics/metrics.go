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

// Package metrics holds the Prometheus instrumentation shared by every
// pipeline stage (C1-C12), registered once via sync.Once the way the
// teacher's pkg/ingestion/metrics.go registers its own ingMetrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var buckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

type registry struct {
	once sync.Once

	// Discovery / change detection
	FilesDiscovered  prometheus.Counter
	DiscoveryDuration prometheus.Histogram
	ChangeDetectDuration prometheus.Histogram

	// Parsing
	ParseErrors    prometheus.Counter
	ParseSkipped   prometheus.Counter
	ParseDuration  prometheus.Histogram

	// IR / semantic IR
	IRBuildDuration       prometheus.Histogram
	SemanticBuildDuration prometheus.Histogram
	CFGBuildFailures      prometheus.Counter

	// Graph
	GraphNodesUpserted prometheus.Counter
	GraphEdgesUpserted prometheus.Counter
	GraphMutateDuration prometheus.Histogram

	// Chunks
	ChunksBuilt       prometheus.Counter
	ChunkBuildDuration prometheus.Histogram
	ChunksDrifted     prometheus.Counter

	// Indexing fan-out
	IndexFanoutDuration *prometheus.HistogramVec
	IndexFanoutErrors   *prometheus.CounterVec
	EmbeddingQueueDepth prometheus.Gauge

	// Stale edges / impact
	StaleEdgesMarked     prometheus.Counter
	StaleEdgesCleaned    prometheus.Counter
	ImpactAnalyzeDuration prometheus.Histogram
	ImpactTruncated      prometheus.Counter

	// Job coordinator
	JobsSubmitted  prometheus.Counter
	JobsDeduped    prometheus.Counter
	JobsSuperseded prometheus.Counter
	JobsFailed     prometheus.Counter
	JobQueueDepth  prometheus.Gauge
	JobLockWaitDuration prometheus.Histogram

	// Whole-pipeline
	PipelineDuration *prometheus.HistogramVec
}

var m registry

func (r *registry) init() {
	r.once.Do(func() {
		r.FilesDiscovered = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_files_discovered_total", Help: "Files returned by FileDiscovery"})
		r.DiscoveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_discovery_seconds", Help: "Duration of FileDiscovery.discover_files", Buckets: buckets})
		r.ChangeDetectDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_change_detect_seconds", Help: "Duration of ChangeDetector.detect_changes", Buckets: buckets})

		r.ParseErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_parse_errors_total", Help: "Per-file parse failures"})
		r.ParseSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_parse_skipped_total", Help: "Files skipped due to unsupported language"})
		r.ParseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_parse_seconds", Help: "Duration of one file's parse", Buckets: buckets})

		r.IRBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_ir_build_seconds", Help: "Duration of IRBuilder.build_file", Buckets: buckets})
		r.SemanticBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_semantic_build_seconds", Help: "Duration of SemanticIRBuilder.build_full", Buckets: buckets})
		r.CFGBuildFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_cfg_build_failures_total", Help: "Functions whose CFG failed to build and were skipped"})

		r.GraphNodesUpserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_graph_nodes_upserted_total", Help: "Symbol graph nodes written"})
		r.GraphEdgesUpserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_graph_edges_upserted_total", Help: "Symbol graph edges written"})
		r.GraphMutateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_graph_mutate_seconds", Help: "Duration of one incremental graph protocol run", Buckets: buckets})

		r.ChunksBuilt = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_chunks_built_total", Help: "Chunks emitted by ChunkBuilder"})
		r.ChunkBuildDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_chunk_build_seconds", Help: "Duration of ChunkBuilder.build", Buckets: buckets})
		r.ChunksDrifted = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_chunks_drifted_total", Help: "Chunks classified as content drift (span-stable)"})

		r.IndexFanoutDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "coreindex_index_fanout_seconds", Help: "Duration of one indexer's fan-out call", Buckets: buckets}, []string{"index"})
		r.IndexFanoutErrors = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "coreindex_index_fanout_errors_total", Help: "Fan-out errors per index"}, []string{"index"})
		r.EmbeddingQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{Name: "coreindex_embedding_queue_depth", Help: "Chunks currently queued for background embedding"})

		r.StaleEdgesMarked = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_stale_edges_marked_total", Help: "Cross-file edges marked stale"})
		r.StaleEdgesCleaned = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_stale_edges_cleaned_total", Help: "Stale edge entries reaped by CleanupStaleEdges"})
		r.ImpactAnalyzeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_impact_analyze_seconds", Help: "Duration of GraphImpactAnalyzer.analyze_impact", Buckets: buckets})
		r.ImpactTruncated = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_impact_truncated_total", Help: "Impact analyses that hit max_depth/max_affected"})

		r.JobsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_jobs_submitted_total", Help: "Jobs submitted to the coordinator"})
		r.JobsDeduped = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_jobs_deduped_total", Help: "Jobs marked DEDUPED against a running job"})
		r.JobsSuperseded = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_jobs_superseded_total", Help: "Queued jobs marked SUPERSEDED"})
		r.JobsFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_jobs_failed_total", Help: "Jobs that terminated FAILED"})
		r.JobQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{Name: "coreindex_job_queue_depth", Help: "Jobs currently queued"})
		r.JobLockWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_job_lock_wait_seconds", Help: "Time spent acquiring a per-(repo,snapshot) lock", Buckets: buckets})

		r.PipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "coreindex_pipeline_stage_seconds", Help: "Duration of one orchestrator stage", Buckets: buckets}, []string{"stage"})

		prometheus.MustRegister(
			r.FilesDiscovered, r.DiscoveryDuration, r.ChangeDetectDuration,
			r.ParseErrors, r.ParseSkipped, r.ParseDuration,
			r.IRBuildDuration, r.SemanticBuildDuration, r.CFGBuildFailures,
			r.GraphNodesUpserted, r.GraphEdgesUpserted, r.GraphMutateDuration,
			r.ChunksBuilt, r.ChunkBuildDuration, r.ChunksDrifted,
			r.IndexFanoutDuration, r.IndexFanoutErrors, r.EmbeddingQueueDepth,
			r.StaleEdgesMarked, r.StaleEdgesCleaned, r.ImpactAnalyzeDuration, r.ImpactTruncated,
			r.JobsSubmitted, r.JobsDeduped, r.JobsSuperseded, r.JobsFailed, r.JobQueueDepth, r.JobLockWaitDuration,
			r.PipelineDuration,
		)
	})
}

// Discovery returns the FilesDiscovered/DiscoveryDuration pair, registering
// the package-wide metrics on first use.
func Discovery() (prometheus.Counter, prometheus.Histogram) {
	m.init()
	return m.FilesDiscovered, m.DiscoveryDuration
}

// ChangeDetectDuration returns the change-detection duration histogram.
func ChangeDetectDuration() prometheus.Histogram {
	m.init()
	return m.ChangeDetectDuration
}

// Parsing returns the parse error/skip counters and duration histogram.
func Parsing() (errs, skipped prometheus.Counter, duration prometheus.Histogram) {
	m.init()
	return m.ParseErrors, m.ParseSkipped, m.ParseDuration
}

// IRBuildDuration returns the IRBuilder duration histogram.
func IRBuildDuration() prometheus.Histogram {
	m.init()
	return m.IRBuildDuration
}

// Semantic returns the SemanticIRBuilder duration histogram and CFG
// failure counter.
func Semantic() (duration prometheus.Histogram, cfgFailures prometheus.Counter) {
	m.init()
	return m.SemanticBuildDuration, m.CFGBuildFailures
}

// Graph returns the graph mutation counters and duration histogram.
func Graph() (nodes, edges prometheus.Counter, duration prometheus.Histogram) {
	m.init()
	return m.GraphNodesUpserted, m.GraphEdgesUpserted, m.GraphMutateDuration
}

// Chunks returns the chunk build counters and duration histogram.
func Chunks() (built, drifted prometheus.Counter, duration prometheus.Histogram) {
	m.init()
	return m.ChunksBuilt, m.ChunksDrifted, m.ChunkBuildDuration
}

// IndexFanout returns the per-index fan-out duration/error vectors and the
// embedding queue depth gauge.
func IndexFanout() (duration *prometheus.HistogramVec, errs *prometheus.CounterVec, queueDepth prometheus.Gauge) {
	m.init()
	return m.IndexFanoutDuration, m.IndexFanoutErrors, m.EmbeddingQueueDepth
}

// Validation returns the stale-edge marked/cleaned counters.
func Validation() (marked, cleaned prometheus.Counter) {
	m.init()
	return m.StaleEdgesMarked, m.StaleEdgesCleaned
}

// Impact returns the impact-analysis duration histogram and truncation
// counter.
func Impact() (duration prometheus.Histogram, truncated prometheus.Counter) {
	m.init()
	return m.ImpactAnalyzeDuration, m.ImpactTruncated
}

// Jobs returns every job-coordinator counter/gauge/histogram.
func Jobs() (submitted, deduped, superseded, failed prometheus.Counter, queueDepth prometheus.Gauge, lockWait prometheus.Histogram) {
	m.init()
	return m.JobsSubmitted, m.JobsDeduped, m.JobsSuperseded, m.JobsFailed, m.JobQueueDepth, m.JobLockWaitDuration
}

// PipelineStageDuration returns the per-stage orchestrator duration vector.
func PipelineStageDuration() *prometheus.HistogramVec {
	m.init()
	return m.PipelineDuration
}
