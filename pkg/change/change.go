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

// Package change implements C2 ChangeDetector: diffing the working tree
// against the last indexed commit to produce a model.ChangeSet.
package change

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"

	"github.com/kraklabs/coreindex/pkg/model"
)

// emptyTreeSHA is git's well-known empty tree object, used as the base
// when there is no prior recorded commit (everything is "added").
const emptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Detector implements C2 ChangeDetector by shelling out to git, exactly as
// the teacher's DeltaDetector does — no Go git library is used anywhere in
// the retrieval pack for this purpose.
type Detector struct {
	logger *slog.Logger
}

// New creates a Detector. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// DetectChanges compares the HEAD commit at repoPath against baseSHA
// (the last indexed commit for repoID) and returns the resulting
// model.ChangeSet (spec §4.3). If baseSHA is empty, HEAD is diffed against
// the empty tree, so every file committed at HEAD is reported as added;
// uncommitted and untracked files are not part of the diff. If repoPath is
// not a git repository, an error is returned and no ChangeSet is produced.
func (d *Detector) DetectChanges(repoPath, repoID, baseSHA string) (model.ChangeSet, error) {
	if !d.isGitRepository(repoPath) {
		d.logger.Info("change.detect.no_vcs", "repo_id", repoID, "path", repoPath)
		return model.ChangeSet{}, fmt.Errorf("change: %s is not a git repository", repoPath)
	}

	head, err := d.resolveRef(repoPath, "HEAD")
	if err != nil {
		return model.ChangeSet{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	base := baseSHA
	if base == "" {
		base = emptyTreeSHA
		d.logger.Info("change.detect.initial", "repo_id", repoID, "head", head)
	}

	out, err := d.gitDiff(repoPath, base, head)
	if err != nil {
		return model.ChangeSet{}, err
	}

	cs := parseNameStatus(out)
	d.logger.Info("change.detect.complete",
		"repo_id", repoID,
		"added", len(cs.Added), "modified", len(cs.Modified),
		"deleted", len(cs.Deleted), "renamed", len(cs.Renamed),
	)
	return cs, nil
}

func (d *Detector) isGitRepository(repoPath string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = repoPath
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func (d *Detector) resolveRef(repoPath, ref string) (string, error) {
	cmd := exec.Command("git", "rev-parse", ref)
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git rev-parse %s: %s", ref, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("git rev-parse %s: %w", ref, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (d *Detector) gitDiff(repoPath, base, head string) ([]byte, error) {
	cmd := exec.Command("git", "diff", "--name-status", "-M", base, head)
	cmd.Dir = repoPath
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("git diff: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("git diff: %w", err)
	}
	return out, nil
}

// parseNameStatus parses `git diff --name-status -M` output into a
// model.ChangeSet. Renames are reported as (old, new) pairs, not as an
// add+delete (spec §4.3).
func parseNameStatus(out []byte) model.ChangeSet {
	cs := model.ChangeSet{Renamed: make(map[string]string)}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		status := parts[0]
		paths := parts[1:]
		for i, p := range paths {
			paths[i] = unquotePath(p)
		}

		switch status[0] {
		case 'A':
			cs.Added = append(cs.Added, paths[0])
		case 'M':
			cs.Modified = append(cs.Modified, paths[0])
		case 'D':
			cs.Deleted = append(cs.Deleted, paths[0])
		case 'R':
			if len(paths) >= 2 {
				cs.Renamed[paths[0]] = paths[1]
			}
		case 'C':
			if len(paths) >= 2 {
				cs.Added = append(cs.Added, paths[1])
			}
		}
	}

	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)
	return cs
}

// unquotePath strips git's C-style quoting of paths containing special
// characters.
func unquotePath(path string) string {
	if len(path) >= 2 && path[0] == '"' && path[len(path)-1] == '"' {
		unquoted := path[1 : len(path)-1]
		unquoted = strings.ReplaceAll(unquoted, `\n`, "\n")
		unquoted = strings.ReplaceAll(unquoted, `\t`, "\t")
		unquoted = strings.ReplaceAll(unquoted, `\\`, `\`)
		unquoted = strings.ReplaceAll(unquoted, `\"`, `"`)
		return unquoted
	}
	return path
}
