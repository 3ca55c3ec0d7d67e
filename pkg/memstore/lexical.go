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
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/kraklabs/coreindex/pkg/model"
)

// lexicalData is one repo's postings list: token -> bitmap of internal
// doc IDs, plus the id<->chunk_id mapping the bitmaps are indexed over.
type lexicalData struct {
	postings  map[string]*roaring.Bitmap
	idByChunk map[string]uint32
	chunkByID map[uint32]string
	next      uint32
}

func newLexicalData() *lexicalData {
	return &lexicalData{
		postings:  make(map[string]*roaring.Bitmap),
		idByChunk: make(map[string]uint32),
		chunkByID: make(map[uint32]string),
	}
}

// LexicalIndex adapts a shared Store to ports.LexicalIndex (and the
// optional ports.LexicalDelta).
type LexicalIndex struct {
	store *Store
}

// NewLexicalIndex wraps a shared Store as a ports.LexicalIndex.
func NewLexicalIndex(store *Store) *LexicalIndex {
	return &LexicalIndex{store: store}
}

// ReindexRepo rebuilds the full postings list for a repo from its
// currently stored chunks (spec §6 LexicalIndex.reindex_repo). The base
// layer is replaced wholesale, matching "the whole repo is reindexed"
// for implementations with no base+delta split (spec §4.11).
func (l *LexicalIndex) ReindexRepo(ctx context.Context, repoID, snapshotID string) error {
	s := l.store
	chunks := s.chunksForRepo(repoID)

	s.mu.Lock()
	defer s.mu.Unlock()
	data := newLexicalData()
	for _, c := range chunks {
		indexChunk(data, c)
	}
	s.lexical[repoID] = data

	s.logger.Info("memstore.lexical.reindex_repo", "repo_id", repoID, "chunks", len(chunks))
	return nil
}

// ReindexPaths rebuilds postings for only the chunks under the given
// paths, leaving the rest of the repo's base layer untouched (spec §4.11,
// "only the delta layer is updated per changed file").
func (l *LexicalIndex) ReindexPaths(ctx context.Context, repoID, snapshotID string, paths []string) error {
	s := l.store
	chunks := s.chunksForPaths(repoID, paths)

	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.lexical[repoID]
	if !ok {
		data = newLexicalData()
		s.lexical[repoID] = data
	}
	removeChunksForPathsLocked(data, paths)
	for _, c := range chunks {
		indexChunk(data, c)
	}

	s.logger.Info("memstore.lexical.reindex_paths", "repo_id", repoID, "paths", len(paths), "chunks", len(chunks))
	return nil
}

// IndexFile implements the optional LexicalDelta capability: index one
// file's content directly, without a round-trip through ChunkStore. It
// is keyed as a pseudo-chunk under the file path so a later ReindexPaths
// call supersedes it cleanly.
func (l *LexicalIndex) IndexFile(ctx context.Context, repoID, path, content string) error {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.lexical[repoID]
	if !ok {
		data = newLexicalData()
		s.lexical[repoID] = data
	}
	removeChunksForPathsLocked(data, []string{path})
	indexChunk(data, model.Chunk{ChunkID: "file:" + path, FilePath: path, Content: content})
	return nil
}

// Delete removes the given chunk IDs from the repo's postings (spec §6
// LexicalIndex.delete).
func (l *LexicalIndex) Delete(ctx context.Context, repoID, snapshotID string, ids []string) error {
	s := l.store
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.lexical[repoID]
	if !ok {
		return nil
	}
	for _, id := range ids {
		removeDocLocked(data, id)
	}
	return nil
}

// Query returns chunk IDs whose tokenized content contains at least one
// query token, ranked by descending match count. It is not part of the
// LexicalIndex port (spec §6 keeps it write-only, search is downstream)
// but is the natural read path a real lexical index exposes, and is what
// exercises the roaring postings for more than storage.
func (l *LexicalIndex) Query(repoID, query string, limit int) []string {
	s := l.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.lexical[repoID]
	if !ok {
		return nil
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	bitmaps := make([]*roaring.Bitmap, 0, len(terms))
	for _, t := range terms {
		if bm, ok := data.postings[t]; ok {
			bitmaps = append(bitmaps, bm)
		}
	}
	if len(bitmaps) == 0 {
		return nil
	}

	union := roaring.FastOr(bitmaps...)
	ids := union.ToArray()

	type scored struct {
		chunkID string
		score   int
	}
	scoredDocs := make([]scored, 0, len(ids))
	for _, docID := range ids {
		score := 0
		for _, bm := range bitmaps {
			if bm.Contains(docID) {
				score++
			}
		}
		scoredDocs = append(scoredDocs, scored{chunkID: data.chunkByID[docID], score: score})
	}

	for i := 1; i < len(scoredDocs); i++ {
		for j := i; j > 0 && scoredDocs[j].score > scoredDocs[j-1].score; j-- {
			scoredDocs[j], scoredDocs[j-1] = scoredDocs[j-1], scoredDocs[j]
		}
	}

	if limit <= 0 || limit > len(scoredDocs) {
		limit = len(scoredDocs)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = scoredDocs[i].chunkID
	}
	return out
}

func indexChunk(data *lexicalData, c model.Chunk) {
	removeDocLocked(data, c.ChunkID)

	id := data.next
	data.next++
	data.idByChunk[c.ChunkID] = id
	data.chunkByID[id] = c.ChunkID

	for _, term := range tokenize(c.Content) {
		bm, ok := data.postings[term]
		if !ok {
			bm = roaring.New()
			data.postings[term] = bm
		}
		bm.Add(id)
	}
}

func removeDocLocked(data *lexicalData, chunkID string) {
	id, ok := data.idByChunk[chunkID]
	if !ok {
		return
	}
	for _, bm := range data.postings {
		bm.Remove(id)
	}
	delete(data.idByChunk, chunkID)
	delete(data.chunkByID, id)
}

func removeChunksForPathsLocked(data *lexicalData, paths []string) {
	set := toSet(paths)
	for chunkID, id := range data.idByChunk {
		if set[pathOf(chunkID)] {
			for _, bm := range data.postings {
				bm.Remove(id)
			}
			delete(data.idByChunk, chunkID)
			delete(data.chunkByID, id)
		}
	}
}

// pathOf extracts the file-path portion of a pseudo-chunk ID minted by
// IndexFile; real chunk IDs are opaque so this only matches that prefix.
func pathOf(chunkID string) string {
	if strings.HasPrefix(chunkID, "file:") {
		return strings.TrimPrefix(chunkID, "file:")
	}
	return ""
}

// tokenize splits content into lowercase identifier tokens, stripping
// punctuation the way source-code search generally wants (grounded on
// ternarybob-iter/index/search.go's tokenize helper).
func tokenize(content string) []string {
	fields := strings.FieldsFunc(content, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		default:
			return true
		}
	})
	var out []string
	for _, f := range fields {
		f = strings.ToLower(f)
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
