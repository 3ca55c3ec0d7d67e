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

package chunk

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kraklabs/coreindex/pkg/model"
)

// OverlayStore holds unsaved editor-buffer chunks in memory, isolated by
// session, for overlay shadowing over the base chunk index (SPEC_FULL
// §C.2). It never touches persistent storage — overlays live only as long
// as the editor session that produced them.
type OverlayStore struct {
	logger *slog.Logger

	mu       sync.Mutex
	overlays map[string]map[string][]model.Chunk // session_id -> file_path -> chunks
}

// NewOverlayStore constructs an empty OverlayStore. A nil logger defaults
// to slog.Default().
func NewOverlayStore(logger *slog.Logger) *OverlayStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &OverlayStore{logger: logger, overlays: make(map[string]map[string][]model.Chunk)}
}

// Upsert stores (or replaces) the overlay chunks for one file in a
// session. Every chunk must already be marked IsOverlay; Upsert stamps
// OverlaySessionID to match sessionID.
func (s *OverlayStore) Upsert(sessionID, filePath string, chunks []model.Chunk) error {
	for i := range chunks {
		if !chunks[i].IsOverlay {
			return fmt.Errorf("chunk %s is not an overlay chunk", chunks[i].ChunkID)
		}
		chunks[i].OverlaySessionID = sessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	files, ok := s.overlays[sessionID]
	if !ok {
		files = make(map[string][]model.Chunk)
		s.overlays[sessionID] = files
	}
	files[filePath] = chunks

	s.logger.Debug("chunk.overlay.upserted", "session_id", sessionID, "file_path", filePath, "count", len(chunks))
	return nil
}

// Get returns the overlay chunks for a session, optionally scoped to one
// file. An empty filePath returns every overlay chunk in the session.
func (s *OverlayStore) Get(sessionID, filePath string) []model.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := s.overlays[sessionID]
	if filePath != "" {
		return append([]model.Chunk(nil), files[filePath]...)
	}

	var all []model.Chunk
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		all = append(all, files[p]...)
	}
	return all
}

// GetAll returns every file's overlay chunks for a session, grouped by
// file path.
func (s *OverlayStore) GetAll(sessionID string) map[string][]model.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]model.Chunk, len(s.overlays[sessionID]))
	for path, chunks := range s.overlays[sessionID] {
		out[path] = append([]model.Chunk(nil), chunks...)
	}
	return out
}

// Clear drops overlay chunks for a session, optionally scoped to one
// file. An empty filePath clears the whole session.
func (s *OverlayStore) Clear(sessionID, filePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if filePath != "" {
		if files, ok := s.overlays[sessionID]; ok {
			delete(files, filePath)
			s.logger.Debug("chunk.overlay.cleared", "session_id", sessionID, "file_path", filePath)
		}
		return
	}
	delete(s.overlays, sessionID)
	s.logger.Info("chunk.overlay.session_cleared", "session_id", sessionID)
}

// Promote returns and removes a session's overlay chunks for a file, for
// the caller to persist as base chunks (IsOverlay cleared) on save.
func (s *OverlayStore) Promote(sessionID, filePath string) []model.Chunk {
	chunks := s.Get(sessionID, filePath)
	s.Clear(sessionID, filePath)
	s.logger.Info("chunk.overlay.promoted", "session_id", sessionID, "file_path", filePath, "count", len(chunks))
	return chunks
}

// Merger merges base and overlay chunks, letting overlay chunks shadow
// the base chunks they supersede (SPEC_FULL §C.2).
type Merger struct{}

// NewMerger constructs a Merger.
func NewMerger() *Merger { return &Merger{} }

// Merge returns overlay chunks plus every base chunk not shadowed by one
// of them. A base chunk is shadowed when an overlay names it as
// BaseChunkID (exact replacement) or shares its file path with an
// overlapping span.
func (m *Merger) Merge(base, overlay []model.Chunk) []model.Chunk {
	if len(overlay) == 0 {
		return base
	}

	overlayByFile := make(map[string][]model.Chunk)
	for _, c := range overlay {
		if c.FilePath != "" {
			overlayByFile[c.FilePath] = append(overlayByFile[c.FilePath], c)
		}
	}

	merged := make([]model.Chunk, 0, len(base)+len(overlay))
	merged = append(merged, overlay...)
	for _, b := range base {
		if !m.isShadowed(b, overlayByFile[b.FilePath]) {
			merged = append(merged, b)
		}
	}
	return merged
}

// Shadowed returns the base chunks shadowed by the given overlays, useful
// for diff visualization (grounded on get_shadowed_chunks).
func (m *Merger) Shadowed(base, overlay []model.Chunk) []model.Chunk {
	if len(overlay) == 0 {
		return nil
	}
	overlayByFile := make(map[string][]model.Chunk)
	for _, c := range overlay {
		if c.FilePath != "" {
			overlayByFile[c.FilePath] = append(overlayByFile[c.FilePath], c)
		}
	}
	var shadowed []model.Chunk
	for _, b := range base {
		if m.isShadowed(b, overlayByFile[b.FilePath]) {
			shadowed = append(shadowed, b)
		}
	}
	return shadowed
}

func (m *Merger) isShadowed(base model.Chunk, overlays []model.Chunk) bool {
	for _, o := range overlays {
		if o.BaseChunkID == base.ChunkID {
			return true
		}
		if base.Span.Overlaps(o.Span) {
			return true
		}
	}
	return false
}
