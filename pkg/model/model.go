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

// Package model defines the shared in-memory arena types that flow between
// every stage of the indexing pipeline: nodes and edges of the symbol graph,
// the structural/semantic IR documents, control- and data-flow entities,
// chunks, change sets, and job bookkeeping records.
//
// Nothing in this package performs I/O or holds behavior beyond small
// derivations (ID formatting, span containment). It is the arena every other
// package imports.
package model

// NodeKind classifies a symbol-graph node.
type NodeKind string

const (
	NodeFile      NodeKind = "FILE"
	NodeModule    NodeKind = "MODULE"
	NodeFunction  NodeKind = "FUNCTION"
	NodeMethod    NodeKind = "METHOD"
	NodeClass     NodeKind = "CLASS"
	NodeInterface NodeKind = "INTERFACE"
	NodeVariable  NodeKind = "VARIABLE"
	NodeLambda    NodeKind = "LAMBDA"
)

// EdgeKind classifies a typed directed relation in the symbol graph.
type EdgeKind string

const (
	EdgeCalls             EdgeKind = "CALLS"
	EdgeImports           EdgeKind = "IMPORTS"
	EdgeInherits           EdgeKind = "INHERITS"
	EdgeImplements         EdgeKind = "IMPLEMENTS"
	EdgeReferencesSymbol   EdgeKind = "REFERENCES_SYMBOL"
	EdgeReferencesType     EdgeKind = "REFERENCES_TYPE"
	EdgeReads              EdgeKind = "READS"
	EdgeWrites             EdgeKind = "WRITES"
	EdgeContains           EdgeKind = "CONTAINS"
)

// crossFileKinds is the set of edge kinds eligible for cross-file
// staleness tracking (§4.9).
var crossFileKinds = map[EdgeKind]bool{
	EdgeCalls:           true,
	EdgeReferencesSymbol: true,
	EdgeReferencesType:   true,
	EdgeImports:          true,
	EdgeInherits:         true,
	EdgeImplements:       true,
}

// IsStaleTrackedKind reports whether edges of this kind participate in
// cross-file stale-edge tracking.
func IsStaleTrackedKind(k EdgeKind) bool {
	return crossFileKinds[k]
}

// Span is a half-open-by-convention source range, 1-indexed lines/cols.
type Span struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// Contains reports whether s fully contains other.
func (s Span) Contains(other Span) bool {
	if other.StartLine < s.StartLine || other.EndLine > s.EndLine {
		return false
	}
	if other.StartLine == s.StartLine && other.StartCol < s.StartCol {
		return false
	}
	if other.EndLine == s.EndLine && other.EndCol > s.EndCol {
		return false
	}
	return true
}

// Overlaps reports whether s and other share any source range.
func (s Span) Overlaps(other Span) bool {
	if s.EndLine < other.StartLine || other.EndLine < s.StartLine {
		return false
	}
	if s.EndLine == other.StartLine && s.EndCol < other.StartCol {
		return false
	}
	if other.EndLine == s.StartLine && other.EndCol < s.StartCol {
		return false
	}
	return true
}

// Node is the unit of the symbol graph (spec §3 Node).
type Node struct {
	ID             string            `json:"id"`
	Kind           NodeKind          `json:"kind"`
	Name           string            `json:"name"`
	FQN            string            `json:"fqn"`
	FilePath       string            `json:"file_path"`
	Span           Span              `json:"span"`
	BodySpan       *Span             `json:"body_span,omitempty"`
	ParentID       string            `json:"parent_id,omitempty"`
	Language       string            `json:"language"`
	SignatureID    string            `json:"signature_id,omitempty"`
	DeclaredTypeID string            `json:"declared_type_id,omitempty"`
	Attrs          map[string]string `json:"attrs,omitempty"`
}

// Edge is a typed directed relation between two nodes (spec §3 Edge).
type Edge struct {
	ID         string            `json:"id"`
	Kind       EdgeKind          `json:"kind"`
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	SourceFile string            `json:"source_file"`
	TargetFile string            `json:"target_file"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

// Signature describes a callable's parameters/return/visibility/throws.
type Signature struct {
	ID         string   `json:"id"`
	FunctionID string   `json:"function_id"`
	ParamTypes []string `json:"param_types"`
	ReturnType string   `json:"return_type"`
	Visibility string   `json:"visibility"`
	Throws     []string `json:"throws,omitempty"`
}

// IRDocument is the structural IR output of C4, immutable per snapshot once
// built (spec §3 IRDocument).
type IRDocument struct {
	RepoID        string      `json:"repo_id"`
	SnapshotID    string      `json:"snapshot_id"`
	SchemaVersion int         `json:"schema_version"`
	Nodes         []Node      `json:"nodes"`
	Edges         []Edge      `json:"edges"`
	Signatures    []Signature `json:"signatures"`
}

// NodeByID returns the node with the given ID, if present.
func (d *IRDocument) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

const SchemaVersion = 1
