// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/impact"
	"github.com/kraklabs/coreindex/pkg/memstore"
	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
	"github.com/kraklabs/coreindex/pkg/validator"
)

func irDoc(repoID, snapshotID string, nodes []model.Node, edges []model.Edge) *model.IRDocument {
	return &model.IRDocument{RepoID: repoID, SnapshotID: snapshotID, Nodes: nodes, Edges: edges}
}

func TestBuildFullCopiesNodesAndEdges(t *testing.T) {
	doc := irDoc("r1", "s1",
		[]model.Node{
			{ID: "func:a", Kind: model.NodeFunction, Name: "a", FilePath: "a.go"},
			{ID: "func:b", Kind: model.NodeFunction, Name: "b", FilePath: "b.go"},
		},
		[]model.Edge{
			{ID: "e1", Kind: model.EdgeCalls, SourceID: "func:a", TargetID: "func:b", SourceFile: "a.go", TargetFile: "b.go"},
		},
	)

	b := New(nil, nil)
	g := b.BuildFull(doc, nil)

	require.Equal(t, "r1", g.RepoID)
	require.Equal(t, "s1", g.SnapshotID)
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	require.Equal(t, model.EdgeCalls, g.Edges["e1"].Kind)
}

func TestBuildFullFoldsUnresolvedSemanticCallsEdge(t *testing.T) {
	doc := irDoc("r1", "s1",
		[]model.Node{
			{ID: "func:caller", Kind: model.NodeFunction, Name: "caller", FilePath: "a.go"},
			{ID: "func:callee", Kind: model.NodeFunction, Name: "callee", FilePath: "b.go"},
		},
		nil,
	)
	snapshot := &model.SemanticSnapshot{
		DataFlowEdges: []model.DataFlowEdge{
			{
				FunctionID: "func:caller",
				Kind:       model.DFGParamToArg,
				TargetID:   model.SymbolicCalleeParamID("callee", 0),
				Symbolic:   true,
			},
		},
	}

	b := New(nil, nil)
	g := b.BuildFull(doc, snapshot)

	var found bool
	for _, e := range g.Edges {
		if e.Kind == model.EdgeCalls && e.SourceID == "func:caller" && e.TargetID == "func:callee" {
			found = true
			require.Equal(t, "dfg_param_to_arg", e.Attrs["derived_from"])
		}
	}
	require.True(t, found, "expected a derived CALLS edge from the symbolic param_to_arg DFG edge")
}

func TestBuildFullIgnoresNonSymbolicDataFlowEdges(t *testing.T) {
	doc := irDoc("r1", "s1",
		[]model.Node{{ID: "func:a", Kind: model.NodeFunction, Name: "a", FilePath: "a.go"}},
		nil,
	)
	snapshot := &model.SemanticSnapshot{
		DataFlowEdges: []model.DataFlowEdge{
			{FunctionID: "func:a", Kind: model.DFGAlias, TargetID: "x", Symbolic: false},
		},
	}

	b := New(nil, nil)
	g := b.BuildFull(doc, snapshot)

	require.Empty(t, g.Edges)
}

func newHarness(t *testing.T) (*Builder, ports.GraphStore, *validator.Validator, *impact.GraphHook) {
	t.Helper()
	store := memstore.New(nil)
	gs := memstore.NewGraphStore(store)
	v := validator.New(0, nil)
	ia := impact.New(3, 500, nil)
	hook := impact.NewGraphHook(ia, gs)
	return New(gs, nil), gs, v, hook
}

func TestApplyIncrementalDeletedFileRemovesNodesAndMarksInboundStale(t *testing.T) {
	ctx := context.Background()
	b, store, v, hook := newHarness(t)

	existing := ports.NewGraphDocument("r1", "s0")
	existing.Nodes["func:a"] = model.Node{ID: "func:a", Kind: model.NodeFunction, FilePath: "a.go"}
	existing.Nodes["func:b"] = model.Node{ID: "func:b", Kind: model.NodeFunction, FilePath: "b.go"}
	existing.Edges["e1"] = model.Edge{
		ID: "e1", Kind: model.EdgeCalls, SourceID: "func:a", TargetID: "func:b",
		SourceFile: "a.go", TargetFile: "b.go",
	}
	require.NoError(t, store.SaveGraph(ctx, existing, ports.SaveReplace))

	doc := irDoc("r1", "s1", nil, nil)
	changes := &model.ChangeSet{Deleted: []string{"b.go"}}

	updated, err := b.ApplyIncremental(ctx, "r1", existing, doc, nil, changes, v, hook)
	require.NoError(t, err)

	_, stillPresent := updated.Nodes["func:b"]
	require.False(t, stillPresent, "deleted file's node must be removed")

	// The inbound CALLS edge from the (unchanged) a.go remains addressable
	// but must be INVALID on validation.
	results := v.ValidateEdges(ctx, "r1", []string{"e1"}, updated)
	require.Equal(t, model.EdgeInvalid, results["e1"])
}

func TestApplyIncrementalModifiedFileKeepsNodeDropsOutboundEdges(t *testing.T) {
	ctx := context.Background()
	b, store, v, hook := newHarness(t)

	existing := ports.NewGraphDocument("r1", "s0")
	existing.Nodes["func:a"] = model.Node{ID: "func:a", Kind: model.NodeFunction, FilePath: "a.go"}
	existing.Nodes["func:b"] = model.Node{ID: "func:b", Kind: model.NodeFunction, FilePath: "b.go"}
	existing.Edges["e1"] = model.Edge{
		ID: "e1", Kind: model.EdgeCalls, SourceID: "func:a", TargetID: "func:b",
		SourceFile: "a.go", TargetFile: "b.go",
	}
	require.NoError(t, store.SaveGraph(ctx, existing, ports.SaveReplace))

	// a.go is modified: new content still defines func:a, no longer calls b.
	doc := irDoc("r1", "s1",
		[]model.Node{{ID: "func:a", Kind: model.NodeFunction, FilePath: "a.go", Name: "a2"}},
		nil,
	)
	changes := &model.ChangeSet{Modified: []string{"a.go"}}

	updated, err := b.ApplyIncremental(ctx, "r1", existing, doc, nil, changes, v, hook)
	require.NoError(t, err)

	n, ok := updated.Nodes["func:a"]
	require.True(t, ok, "modified file's node must be preserved, not deleted")
	require.Equal(t, "a2", n.Name)
	_, edgeStillThere := updated.Edges["e1"]
	require.False(t, edgeStillThere, "modified file's stale outbound edge must be dropped")

	// func:b (in the unchanged b.go) must still be present.
	_, bPresent := updated.Nodes["func:b"]
	require.True(t, bPresent)
}

func TestApplyIncrementalAddedFileUpsertsIntoExisting(t *testing.T) {
	ctx := context.Background()
	b, store, v, hook := newHarness(t)

	existing := ports.NewGraphDocument("r1", "s0")
	existing.Nodes["func:a"] = model.Node{ID: "func:a", Kind: model.NodeFunction, FilePath: "a.go"}
	require.NoError(t, store.SaveGraph(ctx, existing, ports.SaveReplace))

	doc := irDoc("r1", "s1",
		[]model.Node{{ID: "func:c", Kind: model.NodeFunction, FilePath: "c.go"}},
		[]model.Edge{{ID: "e2", Kind: model.EdgeCalls, SourceID: "func:c", TargetID: "func:a", SourceFile: "c.go", TargetFile: "a.go"}},
	)
	changes := &model.ChangeSet{Added: []string{"c.go"}}

	updated, err := b.ApplyIncremental(ctx, "r1", existing, doc, nil, changes, v, hook)
	require.NoError(t, err)

	require.Contains(t, updated.Nodes, "func:a")
	require.Contains(t, updated.Nodes, "func:c")
	require.Contains(t, updated.Edges, "e2")
}

func TestApplyIncrementalNilExistingGraphIsInitialized(t *testing.T) {
	ctx := context.Background()
	b, _, v, hook := newHarness(t)

	doc := irDoc("r1", "s1", []model.Node{{ID: "func:a", FilePath: "a.go"}}, nil)
	changes := &model.ChangeSet{Added: []string{"a.go"}}

	updated, err := b.ApplyIncremental(ctx, "r1", nil, doc, nil, changes, v, hook)
	require.NoError(t, err)
	require.Contains(t, updated.Nodes, "func:a")
}
