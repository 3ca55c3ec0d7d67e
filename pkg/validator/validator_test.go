// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

func graphWithCallEdge() *ports.GraphDocument {
	g := ports.NewGraphDocument("r1", "s1")
	g.Nodes["func:a"] = model.Node{ID: "func:a", FilePath: "a.go"}
	g.Nodes["func:b"] = model.Node{ID: "func:b", FilePath: "b.go"}
	g.Edges["e1"] = model.Edge{
		ID: "e1", Kind: model.EdgeCalls, SourceID: "func:a", TargetID: "func:b",
		SourceFile: "a.go", TargetFile: "b.go",
	}
	return g
}

func TestMarkStaleEdgesCrossFileOnly(t *testing.T) {
	ctx := context.Background()
	v := New(0, nil)
	g := graphWithCallEdge()

	marked, err := v.MarkStaleEdges(ctx, "r1", []string{"b.go"}, g)
	require.NoError(t, err)
	require.Len(t, marked, 1)
	require.Equal(t, model.ReasonTargetModified, marked[0].Reason)
}

func TestMarkStaleEdgesSkipsSameFile(t *testing.T) {
	ctx := context.Background()
	v := New(0, nil)
	g := ports.NewGraphDocument("r1", "s1")
	g.Nodes["func:a"] = model.Node{ID: "func:a", FilePath: "a.go"}
	g.Edges["e1"] = model.Edge{
		ID: "e1", Kind: model.EdgeCalls, SourceID: "func:a", TargetID: "func:a",
		SourceFile: "a.go", TargetFile: "a.go",
	}

	marked, err := v.MarkStaleEdges(ctx, "r1", []string{"a.go"}, g)
	require.NoError(t, err)
	require.Empty(t, marked)
}

func TestValidateEdgesRevalidatesWhenTargetExists(t *testing.T) {
	ctx := context.Background()
	v := New(0, nil)
	g := graphWithCallEdge()

	_, err := v.MarkStaleEdges(ctx, "r1", []string{"b.go"}, g)
	require.NoError(t, err)

	results := v.ValidateEdges(ctx, "r1", []string{"e1"}, g)
	require.Equal(t, model.EdgeValid, results["e1"])

	// Revalidation drops the stale record — querying again sees no stale
	// info at all, still VALID.
	results = v.ValidateEdges(ctx, "r1", []string{"e1"}, g)
	require.Equal(t, model.EdgeValid, results["e1"])
}

func TestValidateEdgesInvalidAfterTargetDeleted(t *testing.T) {
	ctx := context.Background()
	v := New(0, nil)
	g := graphWithCallEdge()

	v.MarkDeletedSymbolEdges(ctx, "r1", []string{"func:b"}, g)
	delete(g.Nodes, "func:b")

	results := v.ValidateEdges(ctx, "r1", []string{"e1"}, g)
	require.Equal(t, model.EdgeInvalid, results["e1"])
}

func TestCleanupStaleEdgesForce(t *testing.T) {
	ctx := context.Background()
	v := New(0, nil)
	g := graphWithCallEdge()

	_, err := v.MarkStaleEdges(ctx, "r1", []string{"b.go"}, g)
	require.NoError(t, err)

	removed := v.CleanupStaleEdges(ctx, "r1", nil, true)
	require.Equal(t, 1, removed)
	require.Empty(t, v.GetStaleSourceFiles(ctx, "r1"))
}

func TestCleanupStaleEdgesTTL(t *testing.T) {
	ctx := context.Background()
	v := New(time.Millisecond, nil)
	g := graphWithCallEdge()

	_, err := v.MarkStaleEdges(ctx, "r1", []string{"b.go"}, g)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	removed := v.CleanupStaleEdges(ctx, "r1", nil, false)
	require.Equal(t, 1, removed)
}

func TestGetStaleSourceFiles(t *testing.T) {
	ctx := context.Background()
	v := New(0, nil)
	g := graphWithCallEdge()

	_, err := v.MarkStaleEdges(ctx, "r1", []string{"b.go"}, g)
	require.NoError(t, err)

	require.Equal(t, []string{"a.go"}, v.GetStaleSourceFiles(ctx, "r1"))
}

func TestClearStaleFor(t *testing.T) {
	ctx := context.Background()
	v := New(0, nil)
	g := graphWithCallEdge()

	_, err := v.MarkStaleEdges(ctx, "r1", []string{"b.go"}, g)
	require.NoError(t, err)

	v.ClearStaleFor(ctx, "r1", []string{"b.go"})
	require.Empty(t, v.GetStaleSourceFiles(ctx, "r1"))
}
