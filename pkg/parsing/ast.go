// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package parsing implements C3, the per-language parser pool: thread-local
// parser instances producing a language-neutral AST that every downstream
// builder (IRBuilder, SemanticIRBuilder) consumes the same way regardless
// of source language (spec §9, "Dynamic dispatch to per-language
// analyzers").
package parsing

import "github.com/kraklabs/coreindex/pkg/model"

// Node is a language-neutral AST node. Every per-language parser
// implementation (Tree-sitter backed or otherwise) normalizes its native
// tree into this shape so IRBuilder and SemanticIRBuilder never special-case
// a concrete parser library.
type Node struct {
	Type     string
	Span     model.Span
	Text     string
	Field    string // the field name this node occupies in its parent, if any
	Children []*Node
}

// Child returns the first child with the given field name, or nil.
func (n *Node) Child(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// Walk invokes fn for n and every descendant, pre-order.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// FindAll returns every descendant (n included) whose Type is in kinds.
func (n *Node) FindAll(kinds ...string) []*Node {
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []*Node
	n.Walk(func(c *Node) {
		if want[c.Type] {
			out = append(out, c)
		}
	})
	return out
}

// AST is a parsed source file: its normalized tree plus bookkeeping the
// rest of the pipeline needs without re-reading the file.
type AST struct {
	FilePath    string
	Language    string
	Content     []byte
	Root        *Node
	PackageName string
	HasErrors   bool
}
