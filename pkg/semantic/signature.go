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

// Package semantic implements C5 SemanticIRBuilder: the six composed
// builders (type, signature, BFG, CFG, expression, DFG) that layer types,
// signatures, control flow, and data flow on top of the structural IR.
package semantic

import "github.com/kraklabs/coreindex/pkg/model"

// TypeIRBuilder builds the type entity table (spec §4.6.1).
type TypeIRBuilder struct{}

// NewTypeIRBuilder constructs a TypeIRBuilder.
func NewTypeIRBuilder() *TypeIRBuilder { return &TypeIRBuilder{} }

// Build derives TypeEntity rows from a signature's declared param/return
// types. It is intentionally shallow: this core does not run full type
// inference (spec §1 Non-goals, "re-specify language-specific parsers");
// it records the types the structural IR already observed.
func (b *TypeIRBuilder) Build(signatures []model.Signature) []model.TypeEntity {
	seen := make(map[string]bool)
	var out []model.TypeEntity
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, model.TypeEntity{ID: "type:" + name, Name: name, Kind: "declared"})
	}
	for _, sig := range signatures {
		for _, p := range sig.ParamTypes {
			add(p)
		}
		add(sig.ReturnType)
	}
	return out
}

// SignatureIRBuilder (re)builds signature entities and the function-id ->
// signature-id index (spec §4.6.2). The structural IR already embeds one
// Signature per callable (pkg/ir.Builder); this builder re-derives the
// function->signature index so a caller holding only a function ID can
// find the matching signature without a document scan.
type SignatureIRBuilder struct{}

// NewSignatureIRBuilder constructs a SignatureIRBuilder.
func NewSignatureIRBuilder() *SignatureIRBuilder { return &SignatureIRBuilder{} }

// Index maps function node ID -> signature ID.
func (b *SignatureIRBuilder) Index(signatures []model.Signature) map[string]string {
	idx := make(map[string]string, len(signatures))
	for _, sig := range signatures {
		idx[sig.FunctionID] = sig.ID
	}
	return idx
}
