// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package contract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/model"
)

func chunkOfSize(id string, n int) model.Chunk {
	return model.Chunk{ChunkID: id, Content: strings.Repeat("x", n)}
}

func TestBatchChunksBySizeEmptyInput(t *testing.T) {
	require.Nil(t, BatchChunksBySize(nil, 1024))
}

func TestBatchChunksBySizeSingleOversizedChunkGetsOwnBatch(t *testing.T) {
	chunks := []model.Chunk{chunkOfSize("a", 100)}
	batches := BatchChunksBySize(chunks, 10)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	require.Equal(t, "a", batches[0][0].ChunkID)
}

func TestBatchChunksBySizeFitsUnderLimitInOneBatch(t *testing.T) {
	chunks := []model.Chunk{chunkOfSize("a", 10), chunkOfSize("b", 10), chunkOfSize("c", 10)}
	batches := BatchChunksBySize(chunks, 100)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
}

func TestBatchChunksBySizeSplitsAcrossBatches(t *testing.T) {
	chunks := []model.Chunk{chunkOfSize("a", 40), chunkOfSize("b", 40), chunkOfSize("c", 40)}
	batches := BatchChunksBySize(chunks, 50)
	require.Len(t, batches, 3)
	for i, b := range batches {
		require.Len(t, b, 1, "batch %d", i)
	}

	order := []string{batches[0][0].ChunkID, batches[1][0].ChunkID, batches[2][0].ChunkID}
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestBatchChunksBySizeNonPositiveLimitFallsBackToDefault(t *testing.T) {
	chunks := []model.Chunk{chunkOfSize("a", 10)}
	batches := BatchChunksBySize(chunks, 0)
	require.Len(t, batches, 1)
}

func TestSoftLimitBytesDefaultsWhenUnset(t *testing.T) {
	t.Setenv("CIE_SOFT_LIMIT_BYTES", "")
	require.Equal(t, DefaultSoftLimitBytes, SoftLimitBytes())
}

func TestSoftLimitBytesReadsEnvOverride(t *testing.T) {
	t.Setenv("CIE_SOFT_LIMIT_BYTES", "12345")
	require.Equal(t, 12345, SoftLimitBytes())
}

func TestSoftLimitBytesIgnoresInvalidEnv(t *testing.T) {
	t.Setenv("CIE_SOFT_LIMIT_BYTES", "not-a-number")
	require.Equal(t, DefaultSoftLimitBytes, SoftLimitBytes())
}
