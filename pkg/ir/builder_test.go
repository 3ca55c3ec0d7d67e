// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/parsing"
)

const sampleSource = `package sample

func Add(a, b int) int {
	return a + b
}

type Greeter struct{}

func (g *Greeter) Greet() string {
	return "hi"
}
`

func parseSample(t *testing.T) *parsing.AST {
	t.Helper()
	p := parsing.NewGoParser()
	ast, err := p.Parse("sample.go", []byte(sampleSource))
	require.NoError(t, err)
	return ast
}

func TestBuildFileExtractsFunctionsAndMethods(t *testing.T) {
	ast := parseSample(t)
	b := New(nil)

	res, err := b.BuildFile("repo1", ast)
	require.NoError(t, err)

	var names []string
	for _, n := range res.Nodes {
		names = append(names, string(n.Kind)+":"+n.Name)
	}
	require.Contains(t, names, "FUNCTION:Add")
	require.Contains(t, names, "METHOD:Greet")
	require.Contains(t, names, "CLASS:Greeter")
	require.Len(t, res.Signatures, 2)
}

func TestBuildFileIDsStableAcrossRebuild(t *testing.T) {
	ast := parseSample(t)
	b := New(nil)

	r1, err := b.BuildFile("repo1", ast)
	require.NoError(t, err)
	r2, err := b.BuildFile("repo1", ast)
	require.NoError(t, err)

	require.Equal(t, len(r1.Nodes), len(r2.Nodes))
	for i := range r1.Nodes {
		require.Equal(t, r1.Nodes[i].ID, r2.Nodes[i].ID)
	}
}

func TestBuildDocumentCollectsFailures(t *testing.T) {
	ast := parseSample(t)
	b := New(nil)
	badAST := &parsing.AST{FilePath: "bad.py", Language: "python"}

	result := b.BuildDocument("repo1", "snap1", map[string]*parsing.AST{
		"sample.go": ast,
		"bad.py":    badAST,
	})

	require.NotEmpty(t, result.Doc.Nodes)
	require.Contains(t, result.FailedFiles, "bad.py")
}
