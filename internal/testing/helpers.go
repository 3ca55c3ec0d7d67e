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
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kraklabs/coreindex/pkg/memstore"
	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// SetupTestGraphStore creates an in-memory graph store for testing, backed
// by pkg/memstore. There is nothing to clean up: the store is garbage
// collected once the test stops holding a reference to it.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    gs := testing.SetupTestGraphStore(t)
//	    testing.SeedFunction(t, gs, "repo1", "snap1", "func1", "HandleAuth", "auth.go", 10, 20)
//	}
func SetupTestGraphStore(t *testing.T) *memstore.GraphStore {
	t.Helper()
	store := memstore.New(nil)
	return memstore.NewGraphStore(store)
}

// SeedFunction adds a FUNCTION node to (repoID, snapshotID)'s graph.
func SeedFunction(t *testing.T, gs *memstore.GraphStore, repoID, snapshotID, id, name, filePath string, startLine, endLine int) {
	t.Helper()
	seedNode(t, gs, repoID, snapshotID, model.Node{
		ID:       id,
		Kind:     model.NodeFunction,
		Name:     name,
		FilePath: filePath,
		Span:     model.Span{StartLine: startLine, EndLine: endLine},
		Language: "go",
	})
}

// SeedFile adds a FILE node to (repoID, snapshotID)'s graph.
func SeedFile(t *testing.T, gs *memstore.GraphStore, repoID, snapshotID, id, path, language string) {
	t.Helper()
	seedNode(t, gs, repoID, snapshotID, model.Node{
		ID:       id,
		Kind:     model.NodeFile,
		Name:     path,
		FilePath: path,
		Language: language,
	})
}

// SeedType adds a node of the given kind (e.g. model.NodeClass,
// model.NodeInterface) to (repoID, snapshotID)'s graph.
func SeedType(t *testing.T, gs *memstore.GraphStore, repoID, snapshotID, id, name string, kind model.NodeKind, filePath string, startLine, endLine int) {
	t.Helper()
	seedNode(t, gs, repoID, snapshotID, model.Node{
		ID:       id,
		Kind:     kind,
		Name:     name,
		FilePath: filePath,
		Span:     model.Span{StartLine: startLine, EndLine: endLine},
		Language: "go",
	})
}

// SeedEdge adds a typed edge between two already-seeded nodes.
func SeedEdge(t *testing.T, gs *memstore.GraphStore, repoID, snapshotID, id string, kind model.EdgeKind, sourceID, sourceFile, targetID, targetFile string) {
	t.Helper()
	ctx := context.Background()
	doc, err := gs.LoadGraph(ctx, repoID, snapshotID)
	if err != nil {
		t.Fatalf("failed to load graph before seeding edge: %v", err)
	}
	if doc == nil {
		doc = ports.NewGraphDocument(repoID, snapshotID)
	}
	doc.Edges[id] = model.Edge{
		ID:         id,
		Kind:       kind,
		SourceID:   sourceID,
		TargetID:   targetID,
		SourceFile: sourceFile,
		TargetFile: targetFile,
	}
	if err := gs.SaveGraph(ctx, doc, ports.SaveUpsert); err != nil {
		t.Fatalf("failed to seed edge: %v", err)
	}
}

func seedNode(t *testing.T, gs *memstore.GraphStore, repoID, snapshotID string, node model.Node) {
	t.Helper()
	ctx := context.Background()
	doc, err := gs.LoadGraph(ctx, repoID, snapshotID)
	if err != nil {
		t.Fatalf("failed to load graph before seeding node: %v", err)
	}
	if doc == nil {
		doc = ports.NewGraphDocument(repoID, snapshotID)
	}
	doc.Nodes[node.ID] = node
	if err := gs.SaveGraph(ctx, doc, ports.SaveUpsert); err != nil {
		t.Fatalf("failed to seed node: %v", err)
	}
}

// QueryNodesByKind returns every seeded node of the given kind for
// (repoID, snapshotID), in no particular order.
func QueryNodesByKind(t *testing.T, gs *memstore.GraphStore, repoID, snapshotID string, kind model.NodeKind) []model.Node {
	t.Helper()
	doc, err := gs.LoadGraph(context.Background(), repoID, snapshotID)
	if err != nil {
		t.Fatalf("failed to query nodes: %v", err)
	}
	if doc == nil {
		return nil
	}
	var out []model.Node
	for _, n := range doc.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// QueryEdgesByKind returns every seeded edge of the given kind for
// (repoID, snapshotID), in no particular order.
func QueryEdgesByKind(t *testing.T, gs *memstore.GraphStore, repoID, snapshotID string, kind model.EdgeKind) []model.Edge {
	t.Helper()
	doc, err := gs.LoadGraph(context.Background(), repoID, snapshotID)
	if err != nil {
		t.Fatalf("failed to query edges: %v", err)
	}
	if doc == nil {
		return nil
	}
	var out []model.Edge
	for _, e := range doc.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// AssertNoLeaks verifies that, apart from the test runner's own goroutines,
// no goroutine is still running, after giving lease-renewal/worker-pool
// goroutines a moment to unwind. Used by pkg/coordinator and pkg/orchestrator tests that exercise
// background goroutines (lock-lease renewal, bounded worker pools).
func AssertNoLeaks(t *testing.T) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	if err := goleak.Find(); err != nil {
		t.Errorf("goroutine leak detected: %v", err)
	}
}
