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
	"sort"
	"strings"

	"github.com/kraklabs/coreindex/pkg/model"
)

// DFGBuilder derives shadow-counted variable entities, read/write events,
// and typed value-flow edges from a function's parameters and its
// Expression tree (spec §3 DFG, §4.6.6).
type DFGBuilder struct{}

// NewDFGBuilder constructs a DFGBuilder.
func NewDFGBuilder() *DFGBuilder { return &DFGBuilder{} }

// FunctionDFG is one function's DFG contribution.
type FunctionDFG struct {
	Variables []model.VariableEntity
	Events    []model.VariableEvent
	Edges     []model.DataFlowEdge
}

// dfgState tracks, per variable name, the currently-live VariableID and the
// shadow count used so far within one function.
type dfgState struct {
	functionID string
	current    map[string]string
	shadow     map[string]int
	vars       map[string]model.VariableEntity
	out        FunctionDFG
	edgeSeq    int
}

func newDFGState(functionID string) *dfgState {
	return &dfgState{
		functionID: functionID,
		current:    make(map[string]string),
		shadow:     make(map[string]int),
		vars:       make(map[string]model.VariableEntity),
	}
}

func (s *dfgState) declare(name string, blockIndex int, kind model.VariableKind, capturedFrom string) string {
	shadow := s.shadow[name]
	s.shadow[name] = shadow + 1
	id := model.VariableID(s.functionID, name, blockIndex, shadow)
	s.vars[id] = model.VariableEntity{
		ID: id, FunctionID: s.functionID, Name: name, BlockIndex: blockIndex,
		ShadowCount: shadow, Kind: kind, CapturedFrom: capturedFrom,
	}
	s.current[name] = id
	s.out.Variables = append(s.out.Variables, s.vars[id])
	return id
}

func (s *dfgState) addEvent(varID string, kind model.EventKind, blockID, exprID string) {
	s.out.Events = append(s.out.Events, model.VariableEvent{
		ID: fmt.Sprintf("varevt:%s:%d", s.functionID, len(s.out.Events)), VariableID: varID, Kind: kind, BlockID: blockID, ExpressionID: exprID,
	})
}

func (s *dfgState) addEdge(kind model.DataFlowEdgeKind, source, target string, symbolic bool) {
	s.edgeSeq++
	s.out.Edges = append(s.out.Edges, model.DataFlowEdge{
		ID: fmt.Sprintf("dfgedge:%s:%d", s.functionID, s.edgeSeq), FunctionID: s.functionID,
		Kind: kind, SourceID: source, TargetID: target, Symbolic: symbolic,
	})
}

// BuildFunction derives the function's DFG from its parameter list and the
// Expression tree already produced by ExpressionBuilder for every block.
// exprsByBlock maps BFG block ID -> the expressions ExpressionBuilder
// derived for that block's statement, in source order. blockIndex maps BFG
// block ID -> its block index, so a variable's ID (spec §3: "encodes
// (function, name, block_index, shadow_count)") records the block it was
// actually defined in rather than collapsing every definition into block 0.
func (d *DFGBuilder) BuildFunction(functionID string, paramNames []string, exprsByBlock map[string][]model.Expression, blockOrder []string, blockIndex map[string]int, outerScope map[string]string) FunctionDFG {
	s := newDFGState(functionID)

	for _, p := range paramNames {
		s.declare(p, 0, model.VarParam, "")
	}

	for _, blockID := range blockOrder {
		for _, e := range exprsByBlock[blockID] {
			d.applyExpression(s, blockID, blockIndex[blockID], e, outerScope)
		}
	}

	return s.out
}

func (d *DFGBuilder) applyExpression(s *dfgState, blockID string, blockIdx int, e model.Expression, outerScope map[string]string) {
	for _, r := range e.ReadsVars {
		varID, ok := s.current[r]
		if !ok {
			varID, ok = d.resolveCapture(s, r, blockIdx, outerScope)
		}
		if ok {
			s.addEvent(varID, model.EventRead, blockID, e.ID)
		}
	}

	if e.DefinesVar != "" {
		newID := s.declare(e.DefinesVar, blockIdx, model.VarLocal, "")
		s.addEvent(newID, model.EventWrite, blockID, e.ID)

		kind := model.DFGAlias
		if e.Attrs["rhs_is_call"] == "true" {
			kind = model.DFGAssign
		}
		for _, r := range e.ReadsVars {
			if sourceID, ok := s.current[r]; ok && sourceID != newID {
				s.addEdge(kind, sourceID, newID, false)
			}
		}
	}

	if e.Kind == model.ExprCall {
		for i := 0; ; i++ {
			arg, ok := e.Attrs[fmt.Sprintf("arg_%d", i)]
			if !ok {
				break
			}
			name := strings.TrimSpace(arg)
			if varID, ok := s.current[name]; ok {
				calleeName := calleeNameFromReads(e.ReadsVars)
				s.addEdge(model.DFGParamToArg, varID, model.SymbolicCalleeParamID(calleeName, i), true)
			}
		}
	}

	if e.Attrs["is_return"] == "true" {
		for _, r := range e.ReadsVars {
			if varID, ok := s.current[r]; ok {
				s.addEdge(model.DFGReturnValue, varID, "return", false)
			}
		}
	}
}

func calleeNameFromReads(reads []string) string {
	if len(reads) == 0 {
		return "unknown"
	}
	return reads[0]
}

// resolveCapture attempts to bind a free identifier to an outer function's
// live variable, in outer-before-inner FQN-depth order (spec §4.6.6,
// "capture resolution walks enclosing scopes from outermost inward"). The
// caller supplies outerScope pre-flattened name->variable-id by the time an
// inner closure is built, since nested-function discovery is IRBuilder's
// job, not DFGBuilder's.
func (d *DFGBuilder) resolveCapture(s *dfgState, name string, blockIdx int, outerScope map[string]string) (string, bool) {
	if outerScope == nil {
		return "", false
	}
	outerID, ok := outerScope[name]
	if !ok {
		return "", false
	}
	capturedID := s.declare(name, blockIdx, model.VarCaptured, outerID)
	return capturedID, true
}

// sortedOuterScopeKeys returns outer-scope names ordered by FQN depth
// (fewer dots first) so shallower enclosing scopes resolve before deeper
// ones when multiple levels of nesting shadow the same name.
func sortedOuterScopeKeys(scope map[string]string) []string {
	keys := make([]string, 0, len(scope))
	for k := range scope {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.Count(keys[i], ".") < strings.Count(keys[j], ".")
	})
	return keys
}
