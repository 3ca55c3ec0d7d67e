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

package parsing

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/kraklabs/coreindex/pkg/model"
)

// GoParser parses Go source with Tree-sitter (the teacher's own parser
// binding, `pkg/ingestion/parser_go.go`).
type GoParser struct {
	ts *sitter.Parser
}

// NewGoParser constructs a fresh, non-shared Tree-sitter parser instance.
// Callers must obtain one per goroutine (spec §5 thread-local parsers).
func NewGoParser() CodeParser {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &GoParser{ts: p}
}

// Language implements CodeParser.
func (g *GoParser) Language() string { return "go" }

// Parse implements CodeParser, normalizing the Tree-sitter tree into the
// package's language-neutral AST.
func (g *GoParser) Parse(filePath string, content []byte) (*AST, error) {
	tree, err := g.ts.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	hasErrors := root != nil && root.HasError()

	ast := &AST{
		FilePath:  filePath,
		Language:  "go",
		Content:   content,
		Root:      normalize(root, "", content),
		HasErrors: hasErrors,
	}
	ast.PackageName = extractPackageName(ast.Root)
	return ast, nil
}

// normalize converts a *sitter.Node subtree into the package's Node shape.
// Unnamed (anonymous/punctuation) nodes are dropped to keep the tree the
// size downstream builders actually need to walk.
func normalize(n *sitter.Node, field string, content []byte) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Type:  n.Type(),
		Field: field,
		Span: model.Span{
			StartLine: int(n.StartPoint().Row) + 1,
			StartCol:  int(n.StartPoint().Column) + 1,
			EndLine:   int(n.EndPoint().Row) + 1,
			EndCol:    int(n.EndPoint().Column) + 1,
		},
	}
	if n.ChildCount() == 0 {
		out.Text = string(content[n.StartByte():n.EndByte()])
		return out
	}
	count := int(n.ChildCount())
	out.Children = make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		childField := n.FieldNameForChild(i)
		out.Children = append(out.Children, normalize(child, childField, content))
	}
	return out
}

func extractPackageName(root *Node) string {
	if root == nil {
		return ""
	}
	for _, c := range root.Children {
		if c.Type == "package_clause" {
			if id := c.Child("name"); id != nil {
				return id.Text
			}
			for _, cc := range c.Children {
				if cc.Type == "package_identifier" {
					return cc.Text
				}
			}
		}
	}
	return ""
}
