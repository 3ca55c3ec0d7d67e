// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package parsing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleGoSource = `package sample

func Add(a, b int) int {
	return a + b
}
`

func TestGoParserExtractsPackageAndFunction(t *testing.T) {
	parser := NewGoParser()
	ast, err := parser.Parse("sample.go", []byte(sampleGoSource))
	require.NoError(t, err)
	require.Equal(t, "sample", ast.PackageName)
	require.False(t, ast.HasErrors)

	funcs := ast.Root.FindAll("function_declaration")
	require.Len(t, funcs, 1)

	name := funcs[0].Child("name")
	require.NotNil(t, name)
	require.Equal(t, "Add", name.Text)
}

func TestPoolParseUnsupportedLanguage(t *testing.T) {
	pool := NewPool(true, nil)
	pool.Register("go", NewGoParser)

	_, err := pool.Parse("python", "x.py", []byte("x = 1"))
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.True(t, perr.Skipped)
}

func TestPoolParseGoFile(t *testing.T) {
	pool := DefaultPool(true, nil)
	ast, err := pool.Parse("go", "sample.go", []byte(sampleGoSource))
	require.NoError(t, err)
	require.Equal(t, "go", ast.Language)
}
