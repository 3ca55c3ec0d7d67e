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

package memstore

import (
	"context"
	"fmt"

	"github.com/kraklabs/coreindex/pkg/model"
)

// ProgressStore adapts a shared Store to ports.ProgressStore, backed by a
// bounded LRU rather than unbounded process memory (spec §6 ProgressStore
// persists "durably enough to survive a process restart" — this in-
// memory default does not survive a restart; pkg/coordinator's file-
// backed default does, per DESIGN.md).
type ProgressStore struct {
	store *Store
}

// NewProgressStore wraps a shared Store as a ports.ProgressStore.
func NewProgressStore(store *Store) *ProgressStore {
	return &ProgressStore{store: store}
}

// Persist stores a job's checkpoint.
func (p *ProgressStore) Persist(ctx context.Context, progress model.JobProgress) error {
	p.store.progress.Add(progress.JobID, progress)
	return nil
}

// Load returns the last persisted checkpoint for a job, if any.
func (p *ProgressStore) Load(ctx context.Context, jobID string) (*model.JobProgress, error) {
	v, ok := p.store.progress.Get(jobID)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// JobStore adapts a shared Store to ports.JobStore.
type JobStore struct {
	store *Store
}

// NewJobStore wraps a shared Store as a ports.JobStore.
func NewJobStore(store *Store) *JobStore {
	return &JobStore{store: store}
}

// Create stores a new job record, failing if one with the same ID
// already exists — callers mint IDs, Create never silently overwrites.
func (j *JobStore) Create(ctx context.Context, job model.IndexJob) error {
	if _, ok := j.store.jobs.Get(job.ID); ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	j.store.jobs.Add(job.ID, job)
	return nil
}

// Update overwrites a job's stored record (status transitions, progress
// counters, etc).
func (j *JobStore) Update(ctx context.Context, job model.IndexJob) error {
	j.store.jobs.Add(job.ID, job)
	return nil
}

// Get returns a job by ID, or nil if not found.
func (j *JobStore) Get(ctx context.Context, id string) (*model.IndexJob, error) {
	v, ok := j.store.jobs.Get(id)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// List returns every stored job for (repo, snapshot); an empty
// snapshotID matches jobs across all snapshots of that repo.
func (j *JobStore) List(ctx context.Context, repoID, snapshotID string) ([]model.IndexJob, error) {
	var out []model.IndexJob
	for _, id := range j.store.jobs.Keys() {
		v, ok := j.store.jobs.Peek(id)
		if !ok {
			continue
		}
		if v.RepoID != repoID {
			continue
		}
		if snapshotID != "" && v.SnapshotID != snapshotID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
