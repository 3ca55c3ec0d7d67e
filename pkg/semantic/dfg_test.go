// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/ir"
	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/parsing"
)

// buildSnapshot parses src, builds the structural IR, and runs the full
// semantic builder over its functions, returning the resulting snapshot.
func buildSnapshot(t *testing.T, src string) *model.SemanticSnapshot {
	t.Helper()
	p := parsing.NewGoParser()
	ast, err := p.Parse("sample.go", []byte(src))
	require.NoError(t, err)

	irBuilder := ir.New(nil)
	fr, err := irBuilder.BuildFile("repo1", ast)
	require.NoError(t, err)

	doc := &model.IRDocument{RepoID: "repo1", SnapshotID: "snap1", Nodes: fr.Nodes, Edges: fr.Edges, Signatures: fr.Signatures}

	fnNodes := ast.Root.FindAll("function_declaration")

	var inputs []FunctionInput
	for _, n := range fr.Nodes {
		if n.Kind != model.NodeFunction {
			continue
		}
		for _, fnNode := range fnNodes {
			name := fnNode.Child("name")
			if name != nil && name.Text == n.Name {
				inputs = append(inputs, FunctionInput{FunctionID: n.ID, FunctionFQN: n.FQN, Node: fnNode})
			}
		}
	}
	require.NotEmpty(t, inputs)

	b := New(nil)
	return b.BuildFull("repo1", "snap1", doc, inputs, nil)
}

// TestDFGReturnValueEdgeMatchesSeedScenario2 asserts the seed scenario in
// spec §8/#2 end to end: `func Add(x int) int { return x + 1 }` produces
// exactly one param variable x, one read event for it, and one
// return_value edge from x to "return".
func TestDFGReturnValueEdgeMatchesSeedScenario2(t *testing.T) {
	snap := buildSnapshot(t, `package sample

func Add(x int) int {
	return x + 1
}
`)

	var paramVars []model.VariableEntity
	for _, v := range snap.Variables {
		if v.Name == "x" {
			paramVars = append(paramVars, v)
		}
	}
	require.Len(t, paramVars, 1)
	require.Equal(t, model.VarParam, paramVars[0].Kind)

	xID := paramVars[0].ID

	var reads int
	for _, ev := range snap.Events {
		if ev.VariableID == xID && ev.Kind == model.EventRead {
			reads++
		}
	}
	require.Equal(t, 1, reads)

	var returnEdges []model.DataFlowEdge
	for _, e := range snap.DataFlowEdges {
		if e.Kind == model.DFGReturnValue {
			returnEdges = append(returnEdges, e)
		}
	}
	require.Len(t, returnEdges, 1)
	require.Equal(t, xID, returnEdges[0].SourceID)
	require.Equal(t, "return", returnEdges[0].TargetID)
}

// TestDFGReturnValueEdgeForBareIdentifierReturn covers the narrower form
// `return x` (no containing expression around the returned name), which
// must still emit a return_value edge.
func TestDFGReturnValueEdgeForBareIdentifierReturn(t *testing.T) {
	snap := buildSnapshot(t, `package sample

func Identity(x int) int {
	return x
}
`)

	var returnEdges int
	for _, e := range snap.DataFlowEdges {
		if e.Kind == model.DFGReturnValue {
			returnEdges++
		}
	}
	require.Equal(t, 1, returnEdges)
}

// TestDFGShadowCounting asserts the §8 shadowing property: reassigning a
// name bumps its shadow count, and every read resolves to exactly one
// variable ID (whichever shadow was live at that point).
func TestDFGShadowCounting(t *testing.T) {
	snap := buildSnapshot(t, `package sample

func Shadow(a int) int {
	x := a
	x = x + 1
	return x
}
`)

	var xVars []model.VariableEntity
	for _, v := range snap.Variables {
		if v.Name == "x" {
			xVars = append(xVars, v)
		}
	}
	require.Len(t, xVars, 2, "expected two shadow boundaries for x")
	require.Equal(t, 0, xVars[0].ShadowCount)
	require.Equal(t, 1, xVars[1].ShadowCount)

	lastXID := xVars[1].ID

	var returnReadsLastShadow bool
	for _, e := range snap.DataFlowEdges {
		if e.Kind == model.DFGReturnValue && e.SourceID == lastXID {
			returnReadsLastShadow = true
		}
	}
	require.True(t, returnReadsLastShadow, "return x must resolve to the latest shadow of x")
}
