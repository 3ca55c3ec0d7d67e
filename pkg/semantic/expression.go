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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/parsing"
	"github.com/kraklabs/coreindex/pkg/ports"
)

// typeHoverTimeout bounds a single ExternalTypeAnalyzer.Hover call so one
// slow/stuck external type-analyzer process can't stall a whole file's
// expression build (spec §6: ExternalTypeAnalyzer is an optional, external
// collaborator, never load-bearing for CFG/DFG correctness).
const typeHoverTimeout = 2 * time.Second

// ExpressionBuilder derives value-level Expression nodes from each CFG
// block's AST subtree (spec §3 Expression, §4.6.5).
type ExpressionBuilder struct {
	logger *slog.Logger

	// typeAnalyzer is optional; when nil, Expression.InferredType is never
	// populated (spec §6, "invoked optionally by ExpressionBuilder for
	// type enrichment").
	typeAnalyzer ports.ExternalTypeAnalyzer
}

// NewExpressionBuilder constructs an ExpressionBuilder with no type
// enrichment. Use Builder.WithTypeAnalyzer to enable it.
func NewExpressionBuilder(logger *slog.Logger) *ExpressionBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpressionBuilder{logger: logger}
}

// exprSeq assigns deterministic, per-function expression IDs and carries
// the originating file path through the walk for type-enrichment lookups.
type exprSeq struct {
	functionID string
	filePath   string
	n          int
}

func (s *exprSeq) next() string {
	id := fmt.Sprintf("expr:%s:%d", s.functionID, s.n)
	s.n++
	return id
}

// BuildBlock walks one BFG/CFG block's statement subtree and returns every
// Expression it contains, tagging return statements and call arguments so
// DFGBuilder can derive return_value/param_to_arg edges without re-walking
// the AST.
func (b *ExpressionBuilder) BuildBlock(functionID, functionFQN, filePath string, block model.BasicFlowBlock, stmt *parsing.Node) []model.Expression {
	if stmt == nil {
		return nil
	}
	seq := &exprSeq{functionID: functionID, filePath: filePath}
	var out []model.Expression
	b.walk(stmt, block.ID, functionFQN, "", seq, &out, stmt.Type == "return_statement")
	return out
}

// enrichType populates InferredType from the optional ExternalTypeAnalyzer,
// keyed on the expression's own span (spec §6). Hover failures — unresolved
// identifier, unloadable package, timeout — are logged and otherwise
// ignored: enrichment is a convenience, never load-bearing for a CFG/DFG
// invariant.
func (b *ExpressionBuilder) enrichType(e *model.Expression, filePath string) {
	if b.typeAnalyzer == nil || filePath == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), typeHoverTimeout)
	defer cancel()
	hover, err := b.typeAnalyzer.Hover(ctx, filePath, e.Span.StartLine, e.Span.StartCol)
	if err != nil {
		b.logger.Debug("expression.type_enrich.failed", "expr_id", e.ID, "file", filePath, "err", err)
		return
	}
	e.InferredType = hover.Type
}

// tagReturn marks e as a returned expression per spec §4.6.5 ("Return
// statements tag every expression in the returned value with
// attrs.is_return=true"), so DFGBuilder can emit return_value edges
// without re-walking the AST.
func tagReturn(e *model.Expression, isReturn bool) {
	if !isReturn {
		return
	}
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	e.Attrs["is_return"] = "true"
}

func (b *ExpressionBuilder) walk(n *parsing.Node, blockID, fqn, parentExprID string, seq *exprSeq, out *[]model.Expression, isReturn bool) {
	if n == nil {
		return
	}

	switch n.Type {
	case "call_expression":
		e := model.Expression{ID: seq.next(), Kind: model.ExprCall, Span: n.Span, BlockID: blockID, FunctionFQN: fqn, ParentExprID: parentExprID}
		fn := n.Child("function")
		if fn != nil {
			e.ReadsVars = append(e.ReadsVars, collectIdentifiers(fn)...)
		}
		args := n.Child("arguments")
		if args != nil {
			attrs := map[string]string{}
			for i, arg := range args.Children {
				attrs[fmt.Sprintf("arg_%d", i)] = arg.Text
			}
			if len(attrs) > 0 {
				e.Attrs = attrs
			}
			e.ReadsVars = append(e.ReadsVars, collectIdentifiers(args)...)
		}
		tagReturn(&e, isReturn)
		b.enrichType(&e, seq.filePath)
		*out = append(*out, e)
		if args != nil {
			for _, arg := range args.Children {
				b.walk(arg, blockID, fqn, e.ID, seq, out, false)
			}
		}
		return

	case "binary_expression":
		e := model.Expression{ID: seq.next(), Kind: model.ExprBinOp, Span: n.Span, BlockID: blockID, FunctionFQN: fqn, ParentExprID: parentExprID, ReadsVars: collectIdentifiers(n)}
		tagReturn(&e, isReturn)
		b.enrichType(&e, seq.filePath)
		*out = append(*out, e)
		return

	case "unary_expression":
		e := model.Expression{ID: seq.next(), Kind: model.ExprUnaryOp, Span: n.Span, BlockID: blockID, FunctionFQN: fqn, ParentExprID: parentExprID, ReadsVars: collectIdentifiers(n)}
		tagReturn(&e, isReturn)
		b.enrichType(&e, seq.filePath)
		*out = append(*out, e)
		return

	case "selector_expression":
		e := model.Expression{ID: seq.next(), Kind: model.ExprAttribute, Span: n.Span, BlockID: blockID, FunctionFQN: fqn, ParentExprID: parentExprID, ReadsVars: collectIdentifiers(n)}
		tagReturn(&e, isReturn)
		b.enrichType(&e, seq.filePath)
		*out = append(*out, e)
		return

	case "index_expression":
		e := model.Expression{ID: seq.next(), Kind: model.ExprSubscript, Span: n.Span, BlockID: blockID, FunctionFQN: fqn, ParentExprID: parentExprID, ReadsVars: collectIdentifiers(n)}
		tagReturn(&e, isReturn)
		b.enrichType(&e, seq.filePath)
		*out = append(*out, e)
		return

	case "composite_literal":
		e := model.Expression{ID: seq.next(), Kind: model.ExprCollection, Span: n.Span, BlockID: blockID, FunctionFQN: fqn, ParentExprID: parentExprID}
		tagReturn(&e, isReturn)
		b.enrichType(&e, seq.filePath)
		*out = append(*out, e)
		return

	case "identifier":
		// A bare identifier only becomes its own Expression (a NAME_LOAD)
		// when it is itself the returned value, e.g. `return x`; elsewhere
		// identifiers are folded into their containing expression's
		// ReadsVars by collectIdentifiers.
		if isReturn {
			e := model.Expression{ID: seq.next(), Kind: model.ExprNameLoad, Span: n.Span, BlockID: blockID, FunctionFQN: fqn, ParentExprID: parentExprID, ReadsVars: []string{n.Text}}
			tagReturn(&e, true)
			b.enrichType(&e, seq.filePath)
			*out = append(*out, e)
		}
		return

	case "int_literal", "float_literal", "interpreted_string_literal", "raw_string_literal", "rune_literal", "true", "false", "nil":
		return

	case "assignment_statement", "short_var_declaration":
		b.walkAssignment(n, blockID, fqn, parentExprID, seq, out)
		return

	case "expression_list":
		// Go's grammar wraps both assignment RHS and return values in an
		// expression_list even when there is exactly one expression, so
		// the is_return tag must flow through this node.
		for _, c := range n.Children {
			b.walk(c, blockID, fqn, parentExprID, seq, out, isReturn)
		}
		return

	case "return_statement":
		for _, c := range n.Children {
			b.walk(c, blockID, fqn, parentExprID, seq, out, true)
		}
		return
	}

	for _, c := range n.Children {
		b.walk(c, blockID, fqn, parentExprID, seq, out, false)
	}
}

// walkAssignment special-cases simple vs. tuple-unpack assignment, tagging
// rhs_is_call when the right-hand side is a call so DFGBuilder emits assign
// edges for it and alias edges otherwise, per
// spec §4.6.6's DFG edge rules, which key off the assignment shape recorded
// here rather than re-deriving it from raw AST.
func (b *ExpressionBuilder) walkAssignment(n *parsing.Node, blockID, fqn, parentExprID string, seq *exprSeq, out *[]model.Expression) {
	left := n.Child("left")
	right := n.Child("right")

	lhsNames := identifierList(left)
	rhsExprs := exprList(right)

	isTuple := len(lhsNames) > 1

	for i, lhs := range lhsNames {
		e := model.Expression{ID: seq.next(), Kind: model.ExprAssign, Span: n.Span, BlockID: blockID, FunctionFQN: fqn, ParentExprID: parentExprID, DefinesVar: lhs}
		if i < len(rhsExprs) {
			rhs := rhsExprs[i]
			e.ReadsVars = collectIdentifiers(rhs)
			if rhs.Type == "call_expression" {
				if e.Attrs == nil {
					e.Attrs = map[string]string{}
				}
				e.Attrs["rhs_is_call"] = "true"
			}
		} else if len(rhsExprs) == 1 && isTuple {
			// multi-value call result, e.g. v, ok := m[k]
			e.ReadsVars = collectIdentifiers(rhsExprs[0])
			if e.Attrs == nil {
				e.Attrs = map[string]string{}
			}
			e.Attrs["rhs_is_call"] = "true"
		}
		b.enrichType(&e, seq.filePath)
		*out = append(*out, e)
	}

	for _, rhs := range rhsExprs {
		b.walk(rhs, blockID, fqn, "", seq, out, false)
	}
}

func identifierList(n *parsing.Node) []string {
	if n == nil {
		return nil
	}
	var names []string
	for _, c := range n.Children {
		if c.Type == "identifier" {
			names = append(names, c.Text)
		}
	}
	if len(names) == 0 && n.Type == "identifier" {
		names = append(names, n.Text)
	}
	return names
}

func exprList(n *parsing.Node) []*parsing.Node {
	if n == nil {
		return nil
	}
	if n.Type == "expression_list" {
		return n.Children
	}
	return []*parsing.Node{n}
}

func collectIdentifiers(n *parsing.Node) []string {
	if n == nil {
		return nil
	}
	var out []string
	n.Walk(func(c *parsing.Node) {
		if c.Type == "identifier" {
			out = append(out, c.Text)
		}
	})
	return out
}
