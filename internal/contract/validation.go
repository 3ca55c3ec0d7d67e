// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"os"
	"strconv"

	"github.com/kraklabs/coreindex/pkg/model"
)

const (
	// DefaultSoftLimitBytes is the baseline soft limit for one chunk save
	// batch's total content size.
	DefaultSoftLimitBytes = 64 << 20 // 64 MiB
)

// SoftLimitBytes returns the effective soft limit for one chunk save
// batch. Controlled via env CIE_SOFT_LIMIT_BYTES; falls back to
// DefaultSoftLimitBytes.
func SoftLimitBytes() int {
	if v := os.Getenv("CIE_SOFT_LIMIT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSoftLimitBytes
}

// BatchChunksBySize splits chunks into consecutive batches whose total
// Content length does not exceed limitBytes, preserving input order. A single
// chunk whose content alone exceeds limitBytes still gets its own batch
// rather than being dropped or split mid-content (spec §4.8: ChunkBuilder
// "streams output in configurable batches to bound memory", never drops
// data to make a batch fit).
func BatchChunksBySize(chunks []model.Chunk, limitBytes int) [][]model.Chunk {
	if len(chunks) == 0 {
		return nil
	}
	if limitBytes <= 0 {
		limitBytes = DefaultSoftLimitBytes
	}

	var batches [][]model.Chunk
	var current []model.Chunk
	var currentSize int

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentSize = 0
		}
	}

	for _, c := range chunks {
		size := len(c.Content)
		if currentSize > 0 && currentSize+size > limitBytes {
			flush()
		}
		current = append(current, c)
		currentSize += size
	}
	flush()

	return batches
}
