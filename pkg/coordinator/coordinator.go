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

// Package coordinator implements C12 JobCoordinator: the single-writer
// queue per (repo_id, snapshot_id), with dedup/supersede coalescing on
// submission, leased locks renewed while a job runs, and checkpoint-based
// retry. Every job still flows through one pkg/orchestrator.Orchestrator
// run; the coordinator only decides whether, when, and under what lock a
// run happens.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kraklabs/coreindex/pkg/metrics"
	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/orchestrator"
	"github.com/kraklabs/coreindex/pkg/ports"
)

const (
	// DefaultLockTTL bounds how long a coordinator instance may hold a
	// (repo, snapshot) lock without renewing it.
	DefaultLockTTL = 2 * time.Minute
	// DefaultMaxRetries is the default IndexJob.MaxRetries for jobs
	// submitted without an explicit override.
	DefaultMaxRetries = 2
)

// Coordinator implements C12 JobCoordinator.
type Coordinator struct {
	logger *slog.Logger

	jobs     ports.JobStore
	progress ports.ProgressStore
	orch     *orchestrator.Orchestrator

	lockTTL    time.Duration
	maxRetries int
	holderID   string

	mu           sync.Mutex
	lastSnapshot map[string]string // repo_id -> snapshot_id of its last COMPLETED job
	incremental  map[string]bool   // job_id -> incremental flag from Submit, consumed by Execute
	cancels      map[string]context.CancelFunc
}

// New constructs a Coordinator. A nil logger defaults to slog.Default().
func New(jobs ports.JobStore, progress ports.ProgressStore, orch *orchestrator.Orchestrator, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger:       logger,
		jobs:         jobs,
		progress:     progress,
		orch:         orch,
		lockTTL:      DefaultLockTTL,
		maxRetries:   DefaultMaxRetries,
		holderID:     holderIdentity(),
		lastSnapshot: make(map[string]string),
		incremental:  make(map[string]bool),
		cancels:      make(map[string]context.CancelFunc),
	}
}

func holderIdentity() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// Submit applies the queueing/coalescing protocol (spec §4.12) and
// returns the resulting IndexJob — which may itself carry DEDUPED or
// SUPERSEDED if an equivalent or wider job already covers it.
func (c *Coordinator) Submit(ctx context.Context, repoID, snapshotID, repoPath string, trigger model.JobTrigger, scopePaths []string, incremental bool) (*model.IndexJob, error) {
	submitted, deduped, superseded, _, queueDepth, _ := metrics.Jobs()

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.jobs.List(ctx, repoID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("coordinator: list jobs: %w", err)
	}

	job := &model.IndexJob{
		ID:          c.generateJobID(repoID, snapshotID, scopePaths),
		RepoID:      repoID,
		SnapshotID:  snapshotID,
		RepoPath:    repoPath,
		ScopePaths:  scopePaths,
		Trigger:     trigger,
		Status:      model.JobQueued,
		SubmittedAt: time.Now(),
		MaxRetries:  c.maxRetries,
	}

	// Rule 1: a RUNNING job whose scope covers the new job's scope
	// dedupes the new submission outright.
	for _, r := range existing {
		if r.Status != model.JobRunning {
			continue
		}
		if job.ScopeSubsetOf(&r) {
			job.Status = model.JobDeduped
			if err := c.jobs.Create(ctx, *job); err != nil {
				return nil, fmt.Errorf("coordinator: record deduped job: %w", err)
			}
			deduped.Inc()
			c.logger.Info("coordinator.job.dedup", "job_id", job.ID, "against", r.ID, "repo_id", repoID)
			return job, nil
		}
	}

	// Rule 2: a QUEUED job with a wider-or-equal scope supersedes the
	// new submission before it is ever enqueued.
	for _, q := range existing {
		if q.Status != model.JobQueued {
			continue
		}
		if job.ScopeSubsetOf(&q) {
			job.Status = model.JobSuperseded
			if err := c.jobs.Create(ctx, *job); err != nil {
				return nil, fmt.Errorf("coordinator: record superseded job: %w", err)
			}
			superseded.Inc()
			c.logger.Info("coordinator.job.superseded_on_submit", "job_id", job.ID, "by", q.ID, "repo_id", repoID)
			return job, nil
		}
	}

	// Rule 3: any older QUEUED job with a strictly narrower scope is
	// superseded by this wider submission.
	for _, q := range existing {
		if q.Status != model.JobQueued {
			continue
		}
		if q.ScopeSubsetOf(job) {
			q.Status = model.JobSuperseded
			if err := c.jobs.Update(ctx, q); err != nil {
				return nil, fmt.Errorf("coordinator: supersede older job %s: %w", q.ID, err)
			}
			superseded.Inc()
			c.logger.Info("coordinator.job.superseded_older", "job_id", q.ID, "by", job.ID, "repo_id", repoID)
		}
	}

	c.incremental[job.ID] = incremental

	if err := c.jobs.Create(ctx, *job); err != nil {
		return nil, fmt.Errorf("coordinator: create job: %w", err)
	}
	submitted.Inc()
	queueDepth.Inc()
	c.logger.Info("coordinator.job.submitted", "job_id", job.ID, "repo_id", repoID, "snapshot_id", snapshotID, "trigger", trigger)
	return job, nil
}

// Get returns a job by ID.
func (c *Coordinator) Get(ctx context.Context, jobID string) (*model.IndexJob, error) {
	return c.jobs.Get(ctx, jobID)
}

// List returns every job tracked for (repoID, snapshotID); an empty
// snapshotID lists across every snapshot of that repo.
func (c *Coordinator) List(ctx context.Context, repoID, snapshotID string) ([]model.IndexJob, error) {
	return c.jobs.List(ctx, repoID, snapshotID)
}

// Cancel requests cancellation of a RUNNING job's orchestrator run. It is
// a no-op (returning false) if the job is not currently executing under
// this coordinator instance.
func (c *Coordinator) Cancel(jobID string) bool {
	c.mu.Lock()
	cancel, ok := c.cancels[jobID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Execute drives job through ACQUIRING_LOCK -> RUNNING -> COMPLETED|FAILED,
// renewing its lease for as long as the orchestrator run takes, and
// persisting every status transition via the JobStore (spec §4.12).
func (c *Coordinator) Execute(ctx context.Context, jobID string) (*orchestrator.IndexingResult, error) {
	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("coordinator: get job %s: %w", jobID, err)
	}
	if job == nil {
		return nil, fmt.Errorf("coordinator: job %s not found", jobID)
	}
	if job.Status != model.JobQueued {
		return nil, fmt.Errorf("coordinator: job %s is %s, not QUEUED", jobID, job.Status)
	}

	_, _, _, failedMetric, queueDepth, lockWait := metrics.Jobs()

	job.Status = model.JobAcquiringLock
	lockStart := time.Now()
	job.LockHolder = c.holderID
	job.LockExpiresAt = time.Now().Add(c.lockTTL)
	if err := c.jobs.Update(ctx, *job); err != nil {
		return nil, fmt.Errorf("coordinator: record lock acquisition: %w", err)
	}
	lockWait.Observe(time.Since(lockStart).Seconds())
	queueDepth.Dec()

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancels[jobID] = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.cancels, jobID)
		c.mu.Unlock()
		cancel()
	}()

	renewDone := make(chan struct{})
	go c.renewLease(runCtx, job, renewDone)
	defer close(renewDone)

	job.Status = model.JobRunning
	job.StartedAt = time.Now()
	if err := c.jobs.Update(ctx, *job); err != nil {
		return nil, fmt.Errorf("coordinator: record running: %w", err)
	}
	c.logger.Info("coordinator.job.running", "job_id", jobID, "repo_id", job.RepoID, "snapshot_id", job.SnapshotID)

	c.mu.Lock()
	wantIncremental := c.incremental[jobID]
	delete(c.incremental, jobID)
	c.mu.Unlock()

	req := orchestrator.Request{
		RepoID:      job.RepoID,
		SnapshotID:  job.SnapshotID,
		RepoPath:    job.RepoPath,
		BaseSHA:     c.resolveBaseSHA(job.RepoID),
		ScopePaths:  job.ScopePaths,
		Incremental: wantIncremental,
		OnProgress: func(p model.JobProgress) {
			job.FilesProcessed = len(p.CompletedFiles)
			_ = c.jobs.Update(ctx, *job)
		},
	}
	if resume, err := c.progress.Load(ctx, jobID); err == nil && resume != nil {
		req.Resume = resume
	}

	result, runErr := c.orch.Run(runCtx, req)

	if runErr != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			// Cancelled via Cancel(jobID), not parent context: terminal.
			job.Status = model.JobCancelled
			job.Error = runErr.Error()
			_ = c.jobs.Update(ctx, *job)
			c.logger.Info("coordinator.job.cancelled", "job_id", jobID)
			return result, runErr
		}

		job.RetryCount++
		if job.RetryCount < job.MaxRetries {
			job.Status = model.JobLockFailed
			job.Error = runErr.Error()
			_ = c.jobs.Update(ctx, *job)
			failedMetric.Inc()
			c.logger.Warn("coordinator.job.retry_eligible", "job_id", jobID, "retry_count", job.RetryCount, "err", runErr)
			return result, runErr
		}

		job.Status = model.JobFailed
		job.Error = runErr.Error()
		job.CompletedAt = time.Now()
		_ = c.jobs.Update(ctx, *job)
		failedMetric.Inc()
		c.logger.Error("coordinator.job.failed", "job_id", jobID, "err", runErr)
		return result, runErr
	}

	job.Status = model.JobCompleted
	job.CompletedAt = time.Now()
	job.FilesDiscovered = result.FilesDiscovered
	job.FilesProcessed = result.FilesParsed
	if err := c.jobs.Update(ctx, *job); err != nil {
		c.logger.Warn("coordinator.job.record_complete_failed", "job_id", jobID, "err", err)
	}

	c.mu.Lock()
	c.lastSnapshot[job.RepoID] = job.SnapshotID
	c.mu.Unlock()

	c.logger.Info("coordinator.job.completed", "job_id", jobID, "repo_id", job.RepoID, "duration", result.Duration)
	return result, nil
}

// renewLease keeps job's lock_expires_at ahead of now while ctx is alive,
// ticking at half the lease TTL (spec §4.12: "a coordinator instance must
// renew while holding").
func (c *Coordinator) renewLease(ctx context.Context, job *model.IndexJob, done <-chan struct{}) {
	ticker := time.NewTicker(c.lockTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job.LockExpiresAt = time.Now().Add(c.lockTTL)
			if err := c.jobs.Update(ctx, *job); err != nil {
				c.logger.Warn("coordinator.lease.renew_failed", "job_id", job.ID, "err", err)
			}
		}
	}
}

// resolveBaseSHA returns the snapshot ID of repoID's last completed job,
// used by the orchestrator's ChangeDetector as the diff base.
func (c *Coordinator) resolveBaseSHA(repoID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSnapshot[repoID]
}

// generateJobID mints a deterministic ID for log correlation, grounded on
// the teacher's generateRunID (pkg/ingestion/local_pipeline.go): a
// second-truncated timestamp plus the job's identity hashed to a fixed
// width, not a random UUID.
func (c *Coordinator) generateJobID(repoID, snapshotID string, scopePaths []string) string {
	base := fmt.Sprintf("job-%s-%s-%v-%d", repoID, snapshotID, scopePaths, time.Now().Truncate(time.Second).Unix())
	hash := sha256.Sum256([]byte(base))
	return hex.EncodeToString(hash[:16])
}
