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

package model

import "time"

// JobStatus is the lifecycle state of an IndexJob (spec §3).
type JobStatus string

const (
	JobQueued         JobStatus = "QUEUED"
	JobAcquiringLock  JobStatus = "ACQUIRING_LOCK"
	JobLockFailed     JobStatus = "LOCK_FAILED"
	JobRunning        JobStatus = "RUNNING"
	JobCompleted      JobStatus = "COMPLETED"
	JobFailed         JobStatus = "FAILED"
	JobDeduped        JobStatus = "DEDUPED"
	JobSuperseded     JobStatus = "SUPERSEDED"
	JobCancelled      JobStatus = "CANCELLED"
)

// JobTrigger names what caused a job submission.
type JobTrigger string

const (
	TriggerManual    JobTrigger = "manual"
	TriggerWatch     JobTrigger = "watch"
	TriggerWebhook   JobTrigger = "webhook"
	TriggerImpact    JobTrigger = "impact"
	TriggerScheduled JobTrigger = "scheduled"
)

// IndexJob is one unit of work tracked by the JobCoordinator (spec §3).
type IndexJob struct {
	ID             string     `json:"id"`
	RepoID         string     `json:"repo_id"`
	SnapshotID     string     `json:"snapshot_id"`
	RepoPath       string     `json:"repo_path"`
	ScopePaths     []string   `json:"scope_paths,omitempty"` // nil means whole repo
	Trigger        JobTrigger `json:"trigger"`
	Status         JobStatus  `json:"status"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	StartedAt      time.Time  `json:"started_at,omitempty"`
	CompletedAt    time.Time  `json:"completed_at,omitempty"`
	FilesDiscovered int       `json:"files_discovered,omitempty"`
	FilesProcessed  int       `json:"files_processed,omitempty"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	LockHolder     string     `json:"lock_holder,omitempty"`
	LockExpiresAt  time.Time  `json:"lock_expires_at,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// ScopeSubsetOf reports whether job j's scope is a subset of other's scope.
// A nil (whole-repo) scope is never a subset of a narrower scope, and
// always a superset of any scope (including itself).
func (j *IndexJob) ScopeSubsetOf(other *IndexJob) bool {
	if other.ScopePaths == nil {
		return true
	}
	if j.ScopePaths == nil {
		return false
	}
	wanted := make(map[string]bool, len(other.ScopePaths))
	for _, p := range other.ScopePaths {
		wanted[p] = true
	}
	for _, p := range j.ScopePaths {
		if !wanted[p] {
			return false
		}
	}
	return true
}

// Checkpoint enumerates the coarse-grained resume points of JobProgress
// (spec §3).
type Checkpoint string

const (
	CheckpointStarted              Checkpoint = "Started"
	CheckpointChangedFilesComputed Checkpoint = "ChangedFilesComputed"
	CheckpointParsingDone          Checkpoint = "ParsingDone"
	CheckpointIRDone               Checkpoint = "IRDone"
	CheckpointChunksStored         Checkpoint = "ChunksStored"
	CheckpointIndexesUpdated       Checkpoint = "IndexesUpdated"
	CheckpointCompleted            Checkpoint = "Completed"
)

// JobProgress is a per-job checkpoint record (spec §3).
type JobProgress struct {
	JobID          string            `json:"job_id"`
	Checkpoint     Checkpoint        `json:"checkpoint"`
	CompletedFiles []string          `json:"completed_files"`
	FailedFiles    map[string]string `json:"failed_files,omitempty"`
	ProcessingFile string            `json:"processing_file,omitempty"`
	TotalFiles     int               `json:"total_files"`
	PausedAt       time.Time         `json:"paused_at,omitempty"`
}

// HasCompleted reports whether path is already recorded as completed,
// letting a resumed run skip it.
func (p *JobProgress) HasCompleted(path string) bool {
	for _, f := range p.CompletedFiles {
		if f == path {
			return true
		}
	}
	return false
}

// SymbolChangeKind classifies how a symbol changed between two graphs.
type SymbolChangeKind string

const (
	SymbolModified         SymbolChangeKind = "MODIFIED"
	SymbolDeleted          SymbolChangeKind = "DELETED"
	SymbolSignatureChanged SymbolChangeKind = "SIGNATURE_CHANGED"
)

// SignatureChangeDetail refines SymbolSignatureChanged (SPEC_FULL §C.5).
type SignatureChangeDetail string

const (
	DetailParamAdded        SignatureChangeDetail = "ParamAdded"
	DetailParamRemoved      SignatureChangeDetail = "ParamRemoved"
	DetailParamTypeChanged  SignatureChangeDetail = "ParamTypeChanged"
	DetailReturnTypeChanged SignatureChangeDetail = "ReturnTypeChanged"
)

// SymbolChange records one symbol's classified change (spec §4.10).
type SymbolChange struct {
	SymbolID string                `json:"symbol_id"`
	FilePath string                `json:"file_path"`
	Kind     SymbolChangeKind      `json:"kind"`
	Detail   SignatureChangeDetail `json:"detail,omitempty"`
}

// ImpactChainHop is one hop in an impact provenance chain, carrying the
// edge kind traversed (SPEC_FULL §C.4).
type ImpactChainHop struct {
	SymbolID string   `json:"symbol_id"`
	EdgeKind EdgeKind `json:"edge_kind"`
}

// ImpactResult is the output of GraphImpactAnalyzer.analyze_impact
// (spec §4.10).
type ImpactResult struct {
	DirectAffected      []string                    `json:"direct_affected"`
	TransitiveAffected   []string                    `json:"transitive_affected"`
	AffectedFiles        []string                    `json:"affected_files"`
	ImpactChains         map[string][]ImpactChainHop `json:"impact_chains"` // root symbol -> path
	Truncated            bool                        `json:"truncated,omitempty"`
}
