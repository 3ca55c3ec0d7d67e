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

// Package chunk implements C7 ChunkBuilder: turning an IRDocument and
// GraphDocument into addressable content chunks, fanning file-level work
// out across a bounded worker pool for repositories of ten files or more
// (spec §4.8), plus the incremental delta refresher and the overlay/base
// merge used by editor sessions.
package chunk

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// DefaultConcurrency is the default per-file fan-out width for repositories
// at or above FanOutThreshold files (spec §4.8).
const DefaultConcurrency = 8

// FanOutThreshold is the file count at which ChunkBuilder switches from
// sequential to concurrent per-file chunk building (spec §4.8).
const FanOutThreshold = 10

// Builder implements C7 ChunkBuilder.
type Builder struct {
	logger      *slog.Logger
	concurrency int
}

// New constructs a Builder. A zero concurrency uses DefaultConcurrency; a
// nil logger defaults to slog.Default().
func New(concurrency int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Builder{logger: logger, concurrency: concurrency}
}

// Result is the output of Build: the emitted chunks plus the two
// provenance indexes chunk→ir and chunk→graph the spec's operation
// signature names (spec §4.8, "build(ir_doc, graph_doc, file_text) ->
// {chunks[], chunk->ir, chunk->graph}").
type Result struct {
	Chunks    []model.Chunk
	ChunkToIR map[string][]string // chunk_id -> ir node ids it covers
	ChunkToGraph map[string][]string // chunk_id -> graph node ids it covers
}

// fileInput groups one file's IR nodes and source text for per-file
// chunk building.
type fileInput struct {
	path  string
	nodes []model.Node
	text  string
}

// Build fans per-file chunk construction out across a bounded worker pool
// when the repository has FanOutThreshold files or more (spec §4.8);
// below that it runs sequentially. Chunks emitted for the same chunk_id
// within one save batch are deduplicated, last write wins.
func (b *Builder) Build(ctx context.Context, doc *model.IRDocument, graph *ports.GraphDocument, fileText map[string]string) (*Result, error) {
	inputs := groupByFile(doc, fileText)

	type fileChunks struct {
		chunks []model.Chunk
		irIdx  map[string][]string
	}

	outputs := make([]fileChunks, len(inputs))

	buildOne := func(i int) {
		fi := inputs[i]
		chunks, irIdx := b.buildFile(doc.RepoID, doc.SnapshotID, fi)
		outputs[i] = fileChunks{chunks: chunks, irIdx: irIdx}
	}

	if len(inputs) >= FanOutThreshold {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.concurrency)
		for i := range inputs {
			i := i
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				buildOne(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range inputs {
			buildOne(i)
		}
	}

	result := &Result{ChunkToIR: make(map[string][]string), ChunkToGraph: make(map[string][]string)}
	dedup := make(map[string]model.Chunk)
	for _, out := range outputs {
		for _, c := range out.chunks {
			dedup[c.ChunkID] = c // last write wins within this save batch
		}
		for id, nodes := range out.irIdx {
			result.ChunkToIR[id] = nodes
		}
	}

	for id, c := range dedup {
		result.Chunks = append(result.Chunks, c)
		if graph != nil {
			result.ChunkToGraph[id] = graphNodesInSpan(graph, c.FilePath, c.Span)
		}
	}
	sort.Slice(result.Chunks, func(i, j int) bool { return result.Chunks[i].ChunkID < result.Chunks[j].ChunkID })

	b.logger.Info("chunk.build.complete", "repo_id", doc.RepoID, "files", len(inputs), "chunks", len(result.Chunks))
	return result, nil
}

func groupByFile(doc *model.IRDocument, fileText map[string]string) []fileInput {
	byFile := make(map[string][]model.Node)
	for _, n := range doc.Nodes {
		if n.Kind == model.NodeFunction || n.Kind == model.NodeMethod || n.Kind == model.NodeClass ||
			n.Kind == model.NodeInterface || n.Kind == model.NodeModule {
			byFile[n.FilePath] = append(byFile[n.FilePath], n)
		}
	}
	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]fileInput, 0, len(paths))
	for _, p := range paths {
		out = append(out, fileInput{path: p, nodes: byFile[p], text: fileText[p]})
	}
	return out
}

func (b *Builder) buildFile(repoID, snapshotID string, fi fileInput) ([]model.Chunk, map[string][]string) {
	var chunks []model.Chunk
	irIdx := make(map[string][]string)

	for _, n := range fi.nodes {
		kind := chunkKindForNode(n.Kind)
		if kind == "" {
			continue
		}
		content := sliceContent(fi.text, n.Span)
		id := model.ChunkID(repoID, fi.path, kind, n.Span)
		c := model.Chunk{
			ChunkID: id, RepoID: repoID, SnapshotID: snapshotID, FilePath: fi.path,
			Kind: kind, FQN: n.FQN, Span: n.Span, Content: content,
			ContentHash: model.ContentHash(content),
		}
		chunks = append(chunks, c)
		irIdx[id] = []string{n.ID}
	}

	return chunks, irIdx
}

func chunkKindForNode(k model.NodeKind) model.ChunkKind {
	switch k {
	case model.NodeFunction:
		return model.ChunkFunction
	case model.NodeMethod:
		return model.ChunkMethod
	case model.NodeClass, model.NodeInterface:
		return model.ChunkClass
	case model.NodeModule:
		return model.ChunkModule
	default:
		return ""
	}
}

func sliceContent(text string, span model.Span) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	start := span.StartLine - 1
	end := span.EndLine
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

func graphNodesInSpan(graph *ports.GraphDocument, filePath string, span model.Span) []string {
	var ids []string
	for id, n := range graph.Nodes {
		if n.FilePath == filePath && span.Contains(n.Span) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
