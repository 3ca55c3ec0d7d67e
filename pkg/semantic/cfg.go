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
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/parsing"
)

// astCacheSize is the default LRU AST cache size (spec §4.6.3: "typ. 100
// entries, ≈ 0.5-1.5 GB headroom").
const astCacheSize = 100

// FunctionFlow is the combined BFG+CFG output for one function: the basic
// blocks and the typed control-flow edges between them.
type FunctionFlow struct {
	FunctionID string
	BFGBlocks  []model.BasicFlowBlock
	CFGBlocks  []model.ControlFlowBlock
	CFGEdges   []model.ControlFlowEdge
}

// BFGBuilder holds an LRU AST cache seeded from the pre-parsed source_map
// (spec §4.6.3: "Accepts pre-parsed ASTs via source_map to avoid duplicate
// parsing"). The basic blocks (entry/exit/body segments, with AST metadata
// and control-flow flags) are emitted by CFGBuilder.BuildFunction's
// flowBuilder pass; nothing in this package reads the cache back.
type BFGBuilder struct {
	logger *slog.Logger
	cache  *lru.Cache[string, *parsing.AST]
}

// NewBFGBuilder constructs a BFGBuilder with the default-sized AST cache.
func NewBFGBuilder(logger *slog.Logger) *BFGBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, *parsing.AST](astCacheSize)
	return &BFGBuilder{logger: logger, cache: cache}
}

// WarmCache seeds the AST cache from a pre-parsed source_map. CFGBuilder
// and ExpressionBuilder do not parse at all: they work from the AST nodes
// passed in each FunctionInput.
func (b *BFGBuilder) WarmCache(sourceMap map[string]*parsing.AST) {
	for path, ast := range sourceMap {
		b.cache.Add(path, ast)
	}
}

// CFGBuilder emits typed control-flow edges from BFG blocks and their AST
// metadata (spec §4.6.4). It builds the BFG blocks and their edges in one
// flowBuilder pass, since both are derived from the same AST walk;
// BFGBuilder and CFGBuilder are kept as distinct builder types so each concern is
// independently testable and the composition in Builder.BuildFull matches
// the component table's C5 sub-builder list.
type CFGBuilder struct {
	logger *slog.Logger
}

// NewCFGBuilder constructs a CFGBuilder.
func NewCFGBuilder(logger *slog.Logger) *CFGBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CFGBuilder{logger: logger}
}

// BuildFunction builds BFG blocks and CFG edges for one function AST node.
// It returns an error when BFG blocks were produced but no CFG blocks; the
// number of CFG edges is not checked. Builder.BuildFull logs a function
// that fails this way and skips it, so the error does not fail the run.
func (b *CFGBuilder) BuildFunction(functionID string, fnNode *parsing.Node) (*FunctionFlow, error) {
	fb := newFlowBuilder(functionID)
	fb.build(fnNode)

	flow := &FunctionFlow{FunctionID: functionID, BFGBlocks: fb.bfg, CFGBlocks: fb.cfg, CFGEdges: fb.edges}

	if len(flow.BFGBlocks) > 0 && len(flow.CFGBlocks) == 0 {
		return nil, fmt.Errorf("cfg: function %s produced BFG blocks but zero CFG blocks", functionID)
	}
	return flow, nil
}

// flowBuilder is the shared recursive-descent pass that produces BFG
// blocks, CFG blocks, and CFG edges together, since they are derived from
// one walk of the function body.
type flowBuilder struct {
	functionID string
	bfg        []model.BasicFlowBlock
	cfg        []model.ControlFlowBlock
	edges      []model.ControlFlowEdge
	edgeSeq    int
	loops      []loopTarget
	entryID    string
	exitID     string
}

type loopTarget struct {
	headerID   string
	postExitID string
}

func newFlowBuilder(functionID string) *flowBuilder {
	return &flowBuilder{functionID: functionID}
}

func (f *flowBuilder) newBlock(kind model.BlockKind, span model.Span, astType string) string {
	i := len(f.bfg)
	id := model.BFGBlockID(f.functionID, i)
	f.bfg = append(f.bfg, model.BasicFlowBlock{
		ID: id, FunctionID: f.functionID, Index: i, Kind: kind, Span: span, ASTNodeType: astType,
	})
	f.cfg = append(f.cfg, model.ControlFlowBlock{
		ID: model.CFGBlockID(f.functionID, i), BFGID: id, FunctionID: f.functionID, Index: i, Kind: kind, Span: span,
	})
	return id
}

func (f *flowBuilder) cfgIDFor(bfgID string) string {
	for _, b := range f.bfg {
		if b.ID == bfgID {
			return model.CFGBlockID(f.functionID, b.Index)
		}
	}
	return ""
}

func (f *flowBuilder) setFlag(blockID string, set func(*model.BasicFlowBlock)) {
	for i := range f.bfg {
		if f.bfg[i].ID == blockID {
			set(&f.bfg[i])
			return
		}
	}
}

func (f *flowBuilder) blockHasTerminalFlag(blockID string) bool {
	for _, b := range f.bfg {
		if b.ID == blockID {
			return b.IsBreak || b.IsContinue || b.IsReturn
		}
	}
	return false
}

func (f *flowBuilder) addEdge(kind model.ControlFlowEdgeKind, sourceBFGID, targetBFGID string) {
	if sourceBFGID == "" || targetBFGID == "" {
		return
	}
	f.edgeSeq++
	f.edges = append(f.edges, model.ControlFlowEdge{
		ID:         fmt.Sprintf("cfgedge:%s:%d", f.functionID, f.edgeSeq),
		FunctionID: f.functionID,
		Kind:       kind,
		SourceID:   f.cfgIDFor(sourceBFGID),
		TargetID:   f.cfgIDFor(targetBFGID),
	})
}

// build constructs Entry/body/Exit for the whole function.
func (f *flowBuilder) build(fnNode *parsing.Node) {
	zero := model.Span{}
	if fnNode != nil {
		zero = fnNode.Span
	}
	f.entryID = f.newBlock(model.BlockEntry, zero, "entry")
	f.exitID = f.newBlock(model.BlockExit, zero, "exit")

	body := fnNode.Child("body")
	current := f.entryID
	firstEdgeKind := model.CFGNormal
	if body != nil {
		current = f.buildStatements(body.Children, current, firstEdgeKind)
	}
	if current != "" {
		f.addEdge(model.CFGNormal, current, f.exitID)
	}
}

// buildStatements threads a block list, returning the block ID flow falls
// through to after the last statement (or "" if flow terminated).
// firstEdgeKind overrides the edge kind used to link prev into the first
// emitted block (used for LoopHeader TRUE_BRANCH / if-branch edges).
func (f *flowBuilder) buildStatements(stmts []*parsing.Node, prev string, firstEdgeKind model.ControlFlowEdgeKind) string {
	kindForNext := firstEdgeKind
	for _, stmt := range stmts {
		next := f.buildStatement(stmt, prev, kindForNext)
		kindForNext = model.CFGNormal
		prev = next
		if prev == "" {
			return ""
		}
	}
	return prev
}

func (f *flowBuilder) buildStatement(stmt *parsing.Node, prev string, edgeKind model.ControlFlowEdgeKind) string {
	switch stmt.Type {
	case "if_statement":
		return f.buildIf(stmt, prev, edgeKind)
	case "for_statement":
		return f.buildFor(stmt, prev, edgeKind)
	case "return_statement":
		id := f.newBlock(model.BlockStatement, stmt.Span, stmt.Type)
		f.setFlag(id, func(b *model.BasicFlowBlock) { b.IsReturn = true })
		f.addEdge(edgeKind, prev, id)
		f.addEdge(model.CFGReturn, id, f.exitID)
		return ""
	case "break_statement":
		id := f.newBlock(model.BlockStatement, stmt.Span, stmt.Type)
		f.setFlag(id, func(b *model.BasicFlowBlock) { b.IsBreak = true })
		f.addEdge(edgeKind, prev, id)
		if len(f.loops) > 0 {
			loop := f.loops[len(f.loops)-1]
			f.setFlag(id, func(b *model.BasicFlowBlock) { b.TargetLoopID = loop.headerID })
			f.addEdge(model.CFGBreak, id, loop.postExitID)
		}
		return ""
	case "continue_statement":
		id := f.newBlock(model.BlockStatement, stmt.Span, stmt.Type)
		f.setFlag(id, func(b *model.BasicFlowBlock) { b.IsContinue = true })
		f.addEdge(edgeKind, prev, id)
		if len(f.loops) > 0 {
			loop := f.loops[len(f.loops)-1]
			f.setFlag(id, func(b *model.BasicFlowBlock) { b.TargetLoopID = loop.headerID })
			f.addEdge(model.CFGContinue, id, loop.headerID)
		}
		return ""
	default:
		id := f.newBlock(model.BlockStatement, stmt.Span, stmt.Type)
		f.addEdge(edgeKind, prev, id)
		return id
	}
}

func (f *flowBuilder) buildIf(stmt *parsing.Node, prev string, edgeKind model.ControlFlowEdgeKind) string {
	condID := f.newBlock(model.BlockCondition, stmt.Span, "if_statement")
	f.addEdge(edgeKind, prev, condID)

	consequence := stmt.Child("consequence")
	alternative := stmt.Child("alternative")
	f.setFlag(condID, func(b *model.BasicFlowBlock) { b.HasAlternative = alternative != nil })

	var consStmts []*parsing.Node
	if consequence != nil {
		consStmts = consequence.Children
	}
	consEnd := f.buildStatements(consStmts, condID, model.CFGTrueBranch)
	if len(consStmts) == 0 {
		consEnd = "" // empty consequence falls straight through to post block via FALSE-side join below
	}

	var altEnd string
	altTerminal := false
	if alternative != nil {
		if alternative.Type == "if_statement" {
			altEnd = f.buildIf(alternative, condID, model.CFGFalseBranch)
		} else {
			altEnd = f.buildStatements(alternative.Children, condID, model.CFGFalseBranch)
		}
	} else {
		altTerminal = false
	}

	// Determine whether we need a post-join block: any side that falls
	// through (consEnd/altEnd non-empty), or no alternative at all (the
	// FALSE_BRANCH must land somewhere).
	needsPost := consEnd != "" || (alternative != nil && altEnd != "") || alternative == nil
	if !needsPost {
		return ""
	}

	postID := f.newBlock(model.BlockStatement, model.Span{StartLine: stmt.Span.EndLine, StartCol: stmt.Span.EndCol, EndLine: stmt.Span.EndLine, EndCol: stmt.Span.EndCol}, "if_join")

	if consEnd != "" {
		f.addEdge(model.CFGNormal, consEnd, postID)
	} else if len(consStmts) == 0 {
		f.addEdge(model.CFGTrueBranch, condID, postID)
	}

	if alternative == nil {
		f.addEdge(model.CFGFalseBranch, condID, postID)
	} else if altEnd != "" {
		f.addEdge(model.CFGNormal, altEnd, postID)
	}
	_ = altTerminal

	return postID
}

func (f *flowBuilder) buildFor(stmt *parsing.Node, prev string, edgeKind model.ControlFlowEdgeKind) string {
	headerID := f.newBlock(model.BlockLoopHeader, stmt.Span, "for_statement")
	f.addEdge(edgeKind, prev, headerID)

	postExitID := f.newBlock(model.BlockStatement, model.Span{StartLine: stmt.Span.EndLine, StartCol: stmt.Span.EndCol, EndLine: stmt.Span.EndLine, EndCol: stmt.Span.EndCol}, "for_post")

	f.loops = append(f.loops, loopTarget{headerID: headerID, postExitID: postExitID})

	body := stmt.Child("body")
	var bodyStmts []*parsing.Node
	if body != nil {
		bodyStmts = body.Children
	}

	bodyEnd := ""
	if len(bodyStmts) > 0 {
		bodyEnd = f.buildStatements(bodyStmts, headerID, model.CFGTrueBranch)
	} else {
		f.addEdge(model.CFGTrueBranch, headerID, headerID)
	}

	if bodyEnd != "" && !f.blockHasTerminalFlag(bodyEnd) {
		f.addEdge(model.CFGLoopBack, bodyEnd, headerID)
	}

	f.loops = f.loops[:len(f.loops)-1]

	f.addEdge(model.CFGFalseBranch, headerID, postExitID)

	return postExitID
}
