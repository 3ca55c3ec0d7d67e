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

// Package testing provides test helpers for coreindex integration tests.
//
// It wraps pkg/memstore's in-memory GraphStore with convenience seeding
// and querying functions, so package tests that exercise graph-shaped
// behavior (pkg/graph, pkg/validator, pkg/impact, pkg/indexing) don't each
// reimplement the same node/edge fixture boilerplate.
//
// # Quick Start
//
// Use SetupTestGraphStore to create an in-memory graph store:
//
//	func TestMyFeature(t *testing.T) {
//	    gs := testing.SetupTestGraphStore(t)
//
//	    testing.SeedFunction(t, gs, "repo1", "snap1", "func1", "HandleAuth", "auth.go", 10, 20)
//
//	    funcs := testing.QueryNodesByKind(t, gs, "repo1", "snap1", model.NodeFunction)
//	    require.Len(t, funcs, 1)
//	}
//
// # Seeding Test Data
//
//   - SeedFunction: add a FUNCTION node
//   - SeedFile: add a FILE node
//   - SeedType: add a node of any model.NodeKind (class, interface, ...)
//   - SeedEdge: add a typed edge between two seeded nodes
//
// # Querying Test Data
//
//   - QueryNodesByKind: all nodes of a given kind
//   - QueryEdgesByKind: all edges of a given kind
package testing
