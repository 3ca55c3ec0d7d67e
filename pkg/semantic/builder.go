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

package semantic

import (
	"log/slog"
	"sort"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/parsing"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// Builder composes TypeIRBuilder, SignatureIRBuilder, BFGBuilder,
// CFGBuilder, ExpressionBuilder, and DFGBuilder into the single C5
// SemanticIRBuilder entry point (spec §4.6).
type Builder struct {
	logger *slog.Logger
	typ    *TypeIRBuilder
	sig    *SignatureIRBuilder
	bfg    *BFGBuilder
	cfg    *CFGBuilder
	expr   *ExpressionBuilder
	dfg    *DFGBuilder
}

// New constructs a Builder. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		logger: logger,
		typ:    NewTypeIRBuilder(),
		sig:    NewSignatureIRBuilder(),
		bfg:    NewBFGBuilder(logger),
		cfg:    NewCFGBuilder(logger),
		expr:   NewExpressionBuilder(logger),
		dfg:    NewDFGBuilder(),
	}
}

// FunctionInput is the per-function input BuildFull needs: the node
// carrying FunctionFQN/ID and the raw parser AST node for its declaration,
// since the structural IR (pkg/ir) discards the AST after extracting nodes.
type FunctionInput struct {
	FunctionID  string
	FunctionFQN string
	FilePath    string
	Node        *parsing.Node
}

// WithTypeAnalyzer enables optional type enrichment of expressions through
// an ExternalTypeAnalyzer (spec §6: "invoked optionally by ExpressionBuilder
// for type enrichment"). Returns the Builder so callers can chain it onto
// New. A nil analyzer disables enrichment, which is also the default.
func (b *Builder) WithTypeAnalyzer(ta ports.ExternalTypeAnalyzer) *Builder {
	b.expr.typeAnalyzer = ta
	return b
}

// BuildFull runs every sub-builder over one IRDocument's functions/methods
// and returns the composed SemanticSnapshot (spec §4.6, "SemanticIRBuilder
// .build_full(ir_doc, source_map) -> semantic_snapshot"). A function whose
// CFG fails to build is skipped with a warning, never aborting the whole
// document (mirrors IRBuilder's per-file failure isolation, spec §4.5).
func (b *Builder) BuildFull(repoID, snapshotID string, doc *model.IRDocument, functions []FunctionInput, sourceMap map[string]*parsing.AST) *model.SemanticSnapshot {
	b.bfg.WarmCache(sourceMap)

	snap := &model.SemanticSnapshot{RepoID: repoID, SnapshotID: snapshotID}
	snap.Types = b.typ.Build(doc.Signatures)
	snap.Signatures = doc.Signatures

	sortedFns := make([]FunctionInput, len(functions))
	copy(sortedFns, functions)
	sort.Slice(sortedFns, func(i, j int) bool { return sortedFns[i].FunctionID < sortedFns[j].FunctionID })

	outerScope := make(map[string]string)

	for _, fn := range sortedFns {
		flow, err := b.cfg.BuildFunction(fn.FunctionID, fn.Node)
		if err != nil {
			b.logger.Warn("semantic.function.cfg_failed", "function_id", fn.FunctionID, "err", err)
			continue
		}
		snap.BFGBlocks = append(snap.BFGBlocks, flow.BFGBlocks...)
		snap.CFGBlocks = append(snap.CFGBlocks, flow.CFGBlocks...)
		snap.CFGEdges = append(snap.CFGEdges, flow.CFGEdges...)

		exprsByBlock, blockOrder := b.buildExpressions(fn, flow)
		for _, exprs := range exprsByBlock {
			snap.Expressions = append(snap.Expressions, exprs...)
		}

		blockIndex := make(map[string]int, len(flow.BFGBlocks))
		for _, blk := range flow.BFGBlocks {
			blockIndex[blk.ID] = blk.Index
		}

		paramNames := paramNamesOf(fn.Node)
		fnDFG := b.dfg.BuildFunction(fn.FunctionID, paramNames, exprsByBlock, blockOrder, blockIndex, outerScope)
		snap.Variables = append(snap.Variables, fnDFG.Variables...)
		snap.Events = append(snap.Events, fnDFG.Events...)
		snap.DataFlowEdges = append(snap.DataFlowEdges, fnDFG.Edges...)

		for _, v := range fnDFG.Variables {
			outerScope[fn.FunctionFQN+"."+v.Name] = v.ID
		}
	}

	return snap
}

func (b *Builder) buildExpressions(fn FunctionInput, flow *FunctionFlow) (map[string][]model.Expression, []string) {
	exprsByBlock := make(map[string][]model.Expression, len(flow.BFGBlocks))
	order := make([]string, 0, len(flow.BFGBlocks))

	stmtsByIndex := flattenStatements(fn.Node)

	for _, block := range flow.BFGBlocks {
		order = append(order, block.ID)
		stmt, ok := stmtsByIndex[block.Index]
		if !ok {
			continue
		}
		exprsByBlock[block.ID] = b.expr.BuildBlock(fn.FunctionID, fn.FunctionFQN, fn.FilePath, block, stmt)
	}

	return exprsByBlock, order
}

// flattenStatements maps BFG block index -> originating statement node, by
// re-walking the function body in the same order flowBuilder assigned
// indices. Entry/Exit carry no statement (index 0 and 1 are synthetic).
func flattenStatements(fnNode *parsing.Node) map[int]*parsing.Node {
	out := make(map[int]*parsing.Node)
	if fnNode == nil {
		return out
	}
	body := fnNode.Child("body")
	if body == nil {
		return out
	}
	idx := 2 // entry=0, exit=1
	var walk func(stmts []*parsing.Node)
	walk = func(stmts []*parsing.Node) {
		for _, s := range stmts {
			out[idx] = s
			idx++
			switch s.Type {
			case "if_statement":
				if cons := s.Child("consequence"); cons != nil {
					walk(cons.Children)
				}
				if alt := s.Child("alternative"); alt != nil {
					if alt.Type == "if_statement" {
						walk([]*parsing.Node{alt})
					} else {
						walk(alt.Children)
					}
				}
			case "for_statement":
				if fbody := s.Child("body"); fbody != nil {
					walk(fbody.Children)
				}
			}
		}
	}
	walk(body.Children)
	return out
}

func paramNamesOf(fnNode *parsing.Node) []string {
	if fnNode == nil {
		return nil
	}
	params := fnNode.Child("parameters")
	if params == nil {
		return nil
	}
	var names []string
	for _, p := range params.FindAll("parameter_declaration", "variadic_parameter_declaration") {
		for _, c := range p.Children {
			if c.Type == "identifier" {
				names = append(names, c.Text)
			}
		}
	}
	return names
}

// ApplyDelta recomputes the semantic snapshot for a changed subset of
// functions and merges the result into an existing snapshot, dropping the
// stale entries those functions previously contributed (spec §4.6,
// "apply_delta(old, new_ir) -> updated"). Functions are matched by
// FunctionID, so the caller passes only the functions whose IR actually
// changed (pkg/change's ChangeSet already narrowed this set upstream).
func (b *Builder) ApplyDelta(old *model.SemanticSnapshot, repoID, snapshotID string, doc *model.IRDocument, changedFunctions []FunctionInput, sourceMap map[string]*parsing.AST) *model.SemanticSnapshot {
	changed := make(map[string]bool, len(changedFunctions))
	for _, fn := range changedFunctions {
		changed[fn.FunctionID] = true
	}

	merged := &model.SemanticSnapshot{RepoID: repoID, SnapshotID: snapshotID}
	merged.Types = b.typ.Build(doc.Signatures)
	merged.Signatures = doc.Signatures

	for _, blk := range old.BFGBlocks {
		if !changed[blk.FunctionID] {
			merged.BFGBlocks = append(merged.BFGBlocks, blk)
		}
	}
	for _, blk := range old.CFGBlocks {
		if !changed[blk.FunctionID] {
			merged.CFGBlocks = append(merged.CFGBlocks, blk)
		}
	}
	for _, e := range old.CFGEdges {
		if !changed[e.FunctionID] {
			merged.CFGEdges = append(merged.CFGEdges, e)
		}
	}
	for _, v := range old.Variables {
		if !changed[v.FunctionID] {
			merged.Variables = append(merged.Variables, v)
		}
	}
	for _, e := range old.DataFlowEdges {
		if !changed[e.FunctionID] {
			merged.DataFlowEdges = append(merged.DataFlowEdges, e)
		}
	}

	retainedBlocks := make(map[string]bool, len(merged.BFGBlocks))
	for _, blk := range merged.BFGBlocks {
		retainedBlocks[blk.ID] = true
	}
	for _, e := range old.Expressions {
		if retainedBlocks[e.BlockID] {
			merged.Expressions = append(merged.Expressions, e)
		}
	}
	for _, ev := range old.Events {
		if retainedBlocks[ev.BlockID] {
			merged.Events = append(merged.Events, ev)
		}
	}

	fresh := b.BuildFull(repoID, snapshotID, doc, changedFunctions, sourceMap)
	merged.BFGBlocks = append(merged.BFGBlocks, fresh.BFGBlocks...)
	merged.CFGBlocks = append(merged.CFGBlocks, fresh.CFGBlocks...)
	merged.CFGEdges = append(merged.CFGEdges, fresh.CFGEdges...)
	merged.Expressions = append(merged.Expressions, fresh.Expressions...)
	merged.Variables = append(merged.Variables, fresh.Variables...)
	merged.Events = append(merged.Events, fresh.Events...)
	merged.DataFlowEdges = append(merged.DataFlowEdges, fresh.DataFlowEdges...)

	return merged
}
