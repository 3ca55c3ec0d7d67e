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

// Package contract provides the soft memory-budget knob that bounds one
// ChunkStore.SaveChunks call (spec §4.8: "streams output in configurable
// batches to bound memory").
//
// # Soft Limit
//
// coreindex enforces a soft limit on the total content size of one chunk
// save batch, to avoid materializing an entire large repository's chunks
// in a single store call:
//
//	// Default limit is 64 MiB
//	limit := contract.SoftLimitBytes()
//
//	// Split a file's emitted chunks into batches no single one of which
//	// exceeds the limit
//	batches := contract.BatchChunksBySize(chunks, limit)
//
// # Configuration via Environment
//
// The soft limit can be adjusted via the CIE_SOFT_LIMIT_BYTES environment
// variable:
//
//	export CIE_SOFT_LIMIT_BYTES=33554432  # 32 MiB
//
// If the environment variable is not set or invalid, the default limit
// of 64 MiB (DefaultSoftLimitBytes) is used.
package contract
