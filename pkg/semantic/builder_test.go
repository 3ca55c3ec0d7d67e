// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/ir"
	"github.com/kraklabs/coreindex/pkg/parsing"
)

func buildIRAndFunctions(t *testing.T, src string) (*ir.Builder, *parsing.AST) {
	t.Helper()
	p := parsing.NewGoParser()
	ast, err := p.Parse("sample.go", []byte(src))
	require.NoError(t, err)
	return ir.New(nil), ast
}

func TestBuilderTrivialFunctionMatchesSeedScenario(t *testing.T) {
	b, ast := buildIRAndFunctions(t, `package sample

func Add(x int) int {
	return x + 1
}
`)
	fr, err := b.BuildFile("repo1", ast)
	require.NoError(t, err)

	fns := ast.Root.FindAll("function_declaration")
	require.Len(t, fns, 1)

	var funcNodeID string
	for _, n := range fr.Nodes {
		if string(n.Kind) == "FUNCTION" {
			funcNodeID = n.ID
		}
	}
	require.NotEmpty(t, funcNodeID)

	sb := New(nil)
	flow, err := sb.cfg.BuildFunction(funcNodeID, fns[0])
	require.NoError(t, err)
	require.Len(t, flow.BFGBlocks, 3)

	var returnEdges int
	for _, e := range flow.CFGEdges {
		if e.Kind == "RETURN" {
			returnEdges++
		}
	}
	require.Equal(t, 1, returnEdges)

	paramNames := paramNamesOf(fns[0])
	require.Equal(t, []string{"x"}, paramNames)
}
