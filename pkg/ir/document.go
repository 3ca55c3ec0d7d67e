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

package ir

import (
	"sort"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/parsing"
)

// BuildResult is the outcome of building IR for a batch of files.
type BuildResult struct {
	Doc          *model.IRDocument
	FailedFiles  map[string]string // path -> error message
}

// BuildDocument builds one IRDocument from a set of parsed ASTs. Files are
// processed in path-sorted order for deterministic node/edge emission
// (spec §5, "results are collected in deterministic order"). A per-file
// failure is recorded in FailedFiles and never aborts the document.
func (b *Builder) BuildDocument(repoID, snapshotID string, asts map[string]*parsing.AST) *BuildResult {
	paths := make([]string, 0, len(asts))
	for p := range asts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	doc := &model.IRDocument{RepoID: repoID, SnapshotID: snapshotID, SchemaVersion: model.SchemaVersion}
	failed := make(map[string]string)

	for _, p := range paths {
		fr, err := b.BuildFile(repoID, asts[p])
		if err != nil {
			b.logger.Warn("ir.file.error", "path", p, "err", err)
			failed[p] = err.Error()
			continue
		}
		doc.Nodes = append(doc.Nodes, fr.Nodes...)
		doc.Edges = append(doc.Edges, fr.Edges...)
		doc.Signatures = append(doc.Signatures, fr.Signatures...)
	}

	return &BuildResult{Doc: doc, FailedFiles: failed}
}
