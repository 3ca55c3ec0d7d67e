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

	"github.com/kraklabs/coreindex/pkg/ports"
)

// DomainIndex adapts a shared Store to ports.DomainIndex: a
// domain-specific document lookup (e.g. doc comments, README fragments)
// kept separate from the identifier-oriented FuzzyIndex (spec §6
// DomainIndex).
type DomainIndex struct {
	store *Store
}

// NewDomainIndex wraps a shared Store as a ports.DomainIndex.
func NewDomainIndex(store *Store) *DomainIndex {
	return &DomainIndex{store: store}
}

// Index replaces the stored domain documents for a repo (spec §6
// DomainIndex.index).
func (d *DomainIndex) Index(ctx context.Context, repoID, snapshotID string, docs []ports.FlatDoc) error {
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domain[repoID] = append([]ports.FlatDoc(nil), docs...)
	return nil
}

// Query returns domain docs whose text contains query as a case-
// insensitive substring. Not part of the DomainIndex port (spec §6 keeps
// it write-only) but the natural read path a domain index offers
// downstream.
func (d *DomainIndex) Query(repoID, query string, limit int) []ports.FlatDoc {
	s := d.store
	s.mu.RLock()
	docs := s.domain[repoID]
	s.mu.RUnlock()

	q := strings.ToLower(query)
	var out []ports.FlatDoc
	for _, doc := range docs {
		if strings.Contains(strings.ToLower(doc.Text), q) {
			out = append(out, doc)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}
