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

package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kraklabs/coreindex/pkg/model"
)

// FileProgressStore persists JobProgress to one JSON file per job under a
// base directory, writing atomically via a temp-file-then-rename, exactly
// as the teacher's CheckpointManager does for its own Checkpoint type
// (pkg/ingestion/checkpoint.go). Unlike pkg/memstore's LRU-backed
// ProgressStore, this implementation survives a process restart, making
// it the coordinator's default (spec §6: ProgressStore "persists durably
// enough to survive a process restart").
type FileProgressStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileProgressStore returns a FileProgressStore rooted at dir, creating
// it if necessary.
func NewFileProgressStore(dir string) (*FileProgressStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileProgressStore{dir: dir}, nil
}

// Persist writes p's checkpoint to disk, replacing any prior checkpoint
// for the same job.
func (f *FileProgressStore) Persist(ctx context.Context, p model.JobProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	path := f.path(p.JobID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write progress temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename progress: %w", err)
	}
	return nil
}

// Load reads the last persisted checkpoint for jobID, returning (nil, nil)
// if none exists.
func (f *FileProgressStore) Load(ctx context.Context, jobID string) (*model.JobProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read progress: %w", err)
	}

	var p model.JobProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse progress: %w", err)
	}
	return &p, nil
}

// Clear removes a job's persisted checkpoint, e.g. once its job record
// itself no longer exists.
func (f *FileProgressStore) Clear(jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path(jobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove progress: %w", err)
	}
	return nil
}

func (f *FileProgressStore) path(jobID string) string {
	return filepath.Join(f.dir, fmt.Sprintf("progress-%s.json", jobID))
}
