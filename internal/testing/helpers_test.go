// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/coreindex/pkg/model"
)

func TestSetupTestGraphStore(t *testing.T) {
	gs := SetupTestGraphStore(t)
	require.NotNil(t, gs)

	funcs := QueryNodesByKind(t, gs, "repo1", "snap1", model.NodeFunction)
	assert.Empty(t, funcs, "should start with no functions")
}

func TestSeedFunction(t *testing.T) {
	gs := SetupTestGraphStore(t)

	SeedFunction(t, gs, "repo1", "snap1", "func_123", "HandleAuth", "auth.go", 10, 25)

	funcs := QueryNodesByKind(t, gs, "repo1", "snap1", model.NodeFunction)
	require.Len(t, funcs, 1)
	assert.Equal(t, "func_123", funcs[0].ID)
	assert.Equal(t, "HandleAuth", funcs[0].Name)
}

func TestSeedFile(t *testing.T) {
	gs := SetupTestGraphStore(t)

	SeedFile(t, gs, "repo1", "snap1", "file_123", "auth.go", "go")

	files := QueryNodesByKind(t, gs, "repo1", "snap1", model.NodeFile)
	require.Len(t, files, 1)
	assert.Equal(t, "file_123", files[0].ID)
	assert.Equal(t, "auth.go", files[0].FilePath)
}

func TestSeedType(t *testing.T) {
	gs := SetupTestGraphStore(t)

	SeedType(t, gs, "repo1", "snap1", "type_123", "UserService", model.NodeClass, "user.go", 10, 50)

	types := QueryNodesByKind(t, gs, "repo1", "snap1", model.NodeClass)
	require.Len(t, types, 1)
	assert.Equal(t, "type_123", types[0].ID)
	assert.Equal(t, "UserService", types[0].Name)
}

func TestSeedMultipleFunctions(t *testing.T) {
	gs := SetupTestGraphStore(t)

	SeedFunction(t, gs, "repo1", "snap1", "func1", "Main", "main.go", 5, 10)
	SeedFunction(t, gs, "repo1", "snap1", "func2", "Helper", "util.go", 15, 20)
	SeedFunction(t, gs, "repo1", "snap1", "func3", "Process", "processor.go", 25, 35)

	funcs := QueryNodesByKind(t, gs, "repo1", "snap1", model.NodeFunction)
	require.Len(t, funcs, 3)
}

func TestSeedEdge(t *testing.T) {
	gs := SetupTestGraphStore(t)

	SeedFile(t, gs, "repo1", "snap1", "file1", "main.go", "go")
	SeedFunction(t, gs, "repo1", "snap1", "func1", "main", "main.go", 1, 10)
	SeedFunction(t, gs, "repo1", "snap1", "func2", "helper", "main.go", 12, 15)

	SeedEdge(t, gs, "repo1", "snap1", "contains1", model.EdgeContains, "file1", "main.go", "func1", "main.go")
	SeedEdge(t, gs, "repo1", "snap1", "calls1", model.EdgeCalls, "func1", "main.go", "func2", "main.go")

	contains := QueryEdgesByKind(t, gs, "repo1", "snap1", model.EdgeContains)
	require.Len(t, contains, 1)

	calls := QueryEdgesByKind(t, gs, "repo1", "snap1", model.EdgeCalls)
	require.Len(t, calls, 1)
	assert.Equal(t, "func1", calls[0].SourceID)
	assert.Equal(t, "func2", calls[0].TargetID)
}

func TestGraphStoreIsolation(t *testing.T) {
	gs1 := SetupTestGraphStore(t)
	SeedFunction(t, gs1, "repo1", "snap1", "func1", "Test1", "file1.go", 1, 10)

	gs2 := SetupTestGraphStore(t)
	funcs := QueryNodesByKind(t, gs2, "repo1", "snap1", model.NodeFunction)
	assert.Empty(t, funcs, "a fresh graph store should be isolated from others")

	funcs1 := QueryNodesByKind(t, gs1, "repo1", "snap1", model.NodeFunction)
	assert.Len(t, funcs1, 1)
}
