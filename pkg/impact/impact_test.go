// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package impact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

func chainGraph() *ports.GraphDocument {
	g := ports.NewGraphDocument("r1", "s1")
	g.Nodes["a"] = model.Node{ID: "a", FilePath: "a.go", Name: "a"}
	g.Nodes["b"] = model.Node{ID: "b", FilePath: "b.go", Name: "b"}
	g.Nodes["c"] = model.Node{ID: "c", FilePath: "c.go", Name: "c"}
	g.Edges["e1"] = model.Edge{ID: "e1", Kind: model.EdgeCalls, SourceID: "b", TargetID: "a"}
	g.Edges["e2"] = model.Edge{ID: "e2", Kind: model.EdgeCalls, SourceID: "c", TargetID: "b"}
	return g
}

func TestAnalyzeImpactDirectAndTransitive(t *testing.T) {
	a := New(3, 500, nil)
	g := chainGraph()

	result := a.AnalyzeImpact(context.Background(), g, []model.SymbolChange{{SymbolID: "a", Kind: model.SymbolModified}})

	require.Equal(t, []string{"b"}, result.DirectAffected)
	require.Equal(t, []string{"c"}, result.TransitiveAffected)
	require.ElementsMatch(t, []string{"b.go", "c.go"}, result.AffectedFiles)
}

func TestAnalyzeImpactRespectsMaxDepth(t *testing.T) {
	a := New(1, 500, nil)
	g := chainGraph()

	result := a.AnalyzeImpact(context.Background(), g, []model.SymbolChange{{SymbolID: "a", Kind: model.SymbolModified}})

	require.Equal(t, []string{"b"}, result.DirectAffected)
	require.Empty(t, result.TransitiveAffected)
}

func TestAnalyzeImpactNoChanges(t *testing.T) {
	a := New(0, 0, nil)
	result := a.AnalyzeImpact(context.Background(), chainGraph(), nil)
	require.Empty(t, result.DirectAffected)
	require.Empty(t, result.TransitiveAffected)
}

func TestDetectSymbolChangesDeletion(t *testing.T) {
	a := New(0, 0, nil)
	old := chainGraph()
	fresh := ports.NewGraphDocument("r1", "s2")
	fresh.Nodes["b"] = old.Nodes["b"]
	fresh.Nodes["c"] = old.Nodes["c"]

	changes := a.DetectSymbolChanges(old, fresh, []string{"a.go"})
	require.Len(t, changes, 1)
	require.Equal(t, model.SymbolDeleted, changes[0].Kind)
	require.Equal(t, "a", changes[0].SymbolID)
}
