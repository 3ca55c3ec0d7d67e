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

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NormalizePath normalizes a file path for consistent ID generation:
// strips a leading "./", cleans the path, and converts separators to
// forward slashes so IDs are stable across platforms.
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	path = filepath.ToSlash(filepath.Clean(path))
	path = strings.TrimPrefix(path, "/")
	return path
}

// NodeID formats a stable node ID: <kind>:<repo>:<file>:[<parent>:]<name>[:<line>]
// per spec §3. parent and line are both optional; pass "" / 0 to omit them.
func NodeID(kind NodeKind, repo, file, parent, name string, line int) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(kind)))
	b.WriteByte(':')
	b.WriteString(repo)
	b.WriteByte(':')
	b.WriteString(NormalizePath(file))
	b.WriteByte(':')
	if parent != "" {
		b.WriteString(parent)
		b.WriteByte(':')
	}
	b.WriteString(name)
	if line > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(line))
	}
	return b.String()
}

// ContentHash returns the stable xxhash-based content hash used for
// Chunk.ContentHash and span-keying (spec §3 invariant 4).
func ContentHash(content string) string {
	h := xxhash.Sum64String(content)
	return fmt.Sprintf("%016x", h)
}

// ChunkID formats a deterministic chunk ID over (repo, file, span, kind)
// (spec §3 Chunk: "Chunk ID is deterministic over (repo, file, span, kind)").
// Editing whitespace within the same span never changes this ID; only
// ContentHash reflects content edits (invariant 4).
func ChunkID(repo, file string, kind ChunkKind, span Span) string {
	key := fmt.Sprintf("%s|%s|%s|%d:%d-%d:%d", repo, NormalizePath(file), kind,
		span.StartLine, span.StartCol, span.EndLine, span.EndCol)
	h := xxhash.Sum64String(key)
	return fmt.Sprintf("chunk:%016x", h)
}

// EdgeID formats a deterministic edge ID. Per spec §8 (Determinism), edge
// identity for comparison purposes is (kind, source_id, target_id, attrs);
// the ID itself carries a monotonic counter for emission-order
// determinism within one function/file and is not semantically salient.
func EdgeID(kind EdgeKind, sourceID, targetID string, counter int) string {
	return fmt.Sprintf("edge:%s:%s:%s:%d", strings.ToLower(string(kind)), sourceID, targetID, counter)
}

// SignatureID formats a signature ID tied to its owning function node.
func SignatureID(functionID string) string {
	return "sig:" + functionID
}
