// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/parsing"
)

func parseFn(t *testing.T, src string) *parsing.Node {
	t.Helper()
	p := parsing.NewGoParser()
	ast, err := p.Parse("sample.go", []byte(src))
	require.NoError(t, err)
	fns := ast.Root.FindAll("function_declaration")
	require.Len(t, fns, 1)
	return fns[0]
}

func TestCFGBuilderTrivialFunction(t *testing.T) {
	fn := parseFn(t, `package sample

func Add(x int) int {
	return x + 1
}
`)
	b := NewCFGBuilder(nil)
	flow, err := b.BuildFunction("fn1", fn)
	require.NoError(t, err)

	require.Len(t, flow.BFGBlocks, 3) // entry, return-statement, exit
	require.Len(t, flow.CFGEdges, 2)  // entry->return, return->exit (RETURN)

	var returnEdges int
	for _, e := range flow.CFGEdges {
		if e.Kind == "RETURN" {
			returnEdges++
		}
	}
	require.Equal(t, 1, returnEdges)
}

func TestCFGBuilderNestedLoopWithBreak(t *testing.T) {
	fn := parseFn(t, `package sample

func Find(items []int) int {
	for i := 0; i < len(items); i++ {
		for j := 0; j < i; j++ {
			if items[j] == 0 {
				break
			}
		}
	}
	return -1
}
`)
	b := NewCFGBuilder(nil)
	flow, err := b.BuildFunction("fn2", fn)
	require.NoError(t, err)

	require.NotEmpty(t, flow.CFGEdges)

	var sawBreak, sawLoopBack bool
	for _, e := range flow.CFGEdges {
		switch e.Kind {
		case "BREAK":
			sawBreak = true
		case "LOOP_BACK":
			sawLoopBack = true
		}
	}
	require.True(t, sawBreak, "expected a BREAK edge targeting the inner loop's post-exit block")
	_ = sawLoopBack
}
