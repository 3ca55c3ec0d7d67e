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

// Package ir implements C4 IRBuilder: translating each file's AST into
// structural IR nodes and edges, assigning stable IDs, computing FQNs, and
// emitting signatures for callables.
package ir

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kraklabs/coreindex/pkg/model"
	"github.com/kraklabs/coreindex/pkg/parsing"
)

// Builder implements C4 IRBuilder.
type Builder struct {
	logger *slog.Logger
}

// New creates a Builder. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// FileResult is one file's contribution to the IRDocument, plus the import
// edges deferred to cross-file resolution.
type FileResult struct {
	Nodes      []model.Node
	Edges      []model.Edge
	Signatures []model.Signature
}

// BuildFile translates one parsed AST into IR nodes/edges. On failure the
// caller is expected to record the file in IndexingResult.failed_files and
// continue — a per-file IR failure never corrupts the document (spec §4.5).
func (b *Builder) BuildFile(repoID string, ast *parsing.AST) (*FileResult, error) {
	if ast == nil || ast.Root == nil {
		return nil, fmt.Errorf("build IR for %s: empty AST", ast.FilePath)
	}

	switch ast.Language {
	case "go":
		return b.buildGoFile(repoID, ast)
	default:
		return nil, fmt.Errorf("build IR for %s: unsupported language %q", ast.FilePath, ast.Language)
	}
}

func (b *Builder) buildGoFile(repoID string, ast *parsing.AST) (*FileResult, error) {
	res := &FileResult{}

	fileID := model.NodeID(model.NodeFile, repoID, ast.FilePath, "", ast.FilePath, 0)
	fileFQN := strings.ReplaceAll(model.NormalizePath(ast.FilePath), "/", ".")
	fileSpan := model.Span{StartLine: 1, StartCol: 1}
	if ast.Root != nil {
		fileSpan.EndLine, fileSpan.EndCol = ast.Root.Span.EndLine, ast.Root.Span.EndCol
	}
	res.Nodes = append(res.Nodes, model.Node{
		ID: fileID, Kind: model.NodeFile, Name: ast.FilePath, FQN: fileFQN,
		FilePath: ast.FilePath, Span: fileSpan, Language: "go",
	})

	if ast.PackageName != "" {
		moduleID := model.NodeID(model.NodeModule, repoID, ast.FilePath, "", ast.PackageName, 0)
		res.Nodes = append(res.Nodes, model.Node{
			ID: moduleID, Kind: model.NodeModule, Name: ast.PackageName, FQN: ast.PackageName,
			FilePath: ast.FilePath, Span: fileSpan, Language: "go",
		})
		res.Edges = append(res.Edges, containsEdge(fileID, moduleID, ast.FilePath))
	}

	for _, imp := range ast.Root.FindAll("import_spec") {
		pathNode := imp.Child("path")
		if pathNode == nil {
			continue
		}
		importPath := strings.Trim(pathNode.Text, `"`)
		res.Edges = append(res.Edges, model.Edge{
			ID:         model.EdgeID(model.EdgeImports, fileID, importPath, len(res.Edges)),
			Kind:       model.EdgeImports,
			SourceID:   fileID,
			TargetID:   "module:" + importPath,
			SourceFile: ast.FilePath,
			TargetFile: "",
			Attrs:      map[string]string{"import_path": importPath},
		})
	}

	for _, fn := range ast.Root.FindAll("function_declaration") {
		node, sig := b.buildFunction(repoID, ast, fn, fileID, "")
		if node == nil {
			continue
		}
		res.Nodes = append(res.Nodes, *node)
		res.Edges = append(res.Edges, containsEdge(fileID, node.ID, ast.FilePath))
		if sig != nil {
			res.Signatures = append(res.Signatures, *sig)
		}
	}

	for _, fn := range ast.Root.FindAll("method_declaration") {
		node, sig := b.buildMethod(repoID, ast, fn, fileID)
		if node == nil {
			continue
		}
		res.Nodes = append(res.Nodes, *node)
		res.Edges = append(res.Edges, containsEdge(fileID, node.ID, ast.FilePath))
		if sig != nil {
			res.Signatures = append(res.Signatures, *sig)
		}
	}

	for _, decl := range ast.Root.FindAll("type_declaration") {
		for _, spec := range decl.Children {
			node := b.buildType(repoID, ast, spec, fileID)
			if node == nil {
				continue
			}
			res.Nodes = append(res.Nodes, *node)
			res.Edges = append(res.Edges, containsEdge(fileID, node.ID, ast.FilePath))
		}
	}

	return res, nil
}

func containsEdge(parentID, childID, file string) model.Edge {
	return model.Edge{
		ID:         model.EdgeID(model.EdgeContains, parentID, childID, 0),
		Kind:       model.EdgeContains,
		SourceID:   parentID,
		TargetID:   childID,
		SourceFile: file,
		TargetFile: file,
	}
}

func (b *Builder) buildFunction(repoID string, ast *parsing.AST, fn *parsing.Node, fileID, parentFQN string) (*model.Node, *model.Signature) {
	nameNode := fn.Child("name")
	if nameNode == nil {
		return nil, nil
	}
	name := nameNode.Text
	fqn := name
	if parentFQN != "" {
		fqn = parentFQN + "." + name
	}
	id := model.NodeID(model.NodeFunction, repoID, ast.FilePath, "", name, fn.Span.StartLine)

	body := fn.Child("body")
	var bodySpan *model.Span
	if body != nil {
		s := body.Span
		bodySpan = &s
	}

	node := &model.Node{
		ID: id, Kind: model.NodeFunction, Name: name, FQN: fqn,
		FilePath: ast.FilePath, Span: fn.Span, BodySpan: bodySpan,
		Language: "go", SignatureID: model.SignatureID(id),
	}

	sig := b.buildSignature(id, fn)
	return node, sig
}

func (b *Builder) buildMethod(repoID string, ast *parsing.AST, fn *parsing.Node, fileID string) (*model.Node, *model.Signature) {
	nameNode := fn.Child("name")
	if nameNode == nil {
		return nil, nil
	}
	name := nameNode.Text
	receiverType := methodReceiverType(fn)
	fqn := name
	if receiverType != "" {
		fqn = receiverType + "." + name
	}
	id := model.NodeID(model.NodeMethod, repoID, ast.FilePath, receiverType, name, fn.Span.StartLine)

	body := fn.Child("body")
	var bodySpan *model.Span
	if body != nil {
		s := body.Span
		bodySpan = &s
	}

	node := &model.Node{
		ID: id, Kind: model.NodeMethod, Name: name, FQN: fqn,
		FilePath: ast.FilePath, Span: fn.Span, BodySpan: bodySpan,
		Language: "go", SignatureID: model.SignatureID(id),
		Attrs: map[string]string{"receiver_type": receiverType},
	}

	sig := b.buildSignature(id, fn)
	return node, sig
}

func methodReceiverType(fn *parsing.Node) string {
	recv := fn.Child("receiver")
	if recv == nil {
		return ""
	}
	for _, param := range recv.FindAll("parameter_declaration") {
		t := param.Child("type")
		if t == nil {
			continue
		}
		text := t.Text
		text = strings.TrimPrefix(text, "*")
		return text
	}
	return ""
}

func (b *Builder) buildSignature(functionID string, fn *parsing.Node) *model.Signature {
	sig := &model.Signature{ID: model.SignatureID(functionID), FunctionID: functionID, Visibility: visibilityOf(fn)}

	params := fn.Child("parameters")
	if params != nil {
		for _, p := range params.FindAll("parameter_declaration", "variadic_parameter_declaration") {
			t := p.Child("type")
			if t != nil {
				sig.ParamTypes = append(sig.ParamTypes, t.Text)
			}
		}
	}

	result := fn.Child("result")
	if result != nil {
		sig.ReturnType = result.Text
	}
	return sig
}

func visibilityOf(fn *parsing.Node) string {
	nameNode := fn.Child("name")
	if nameNode == nil || nameNode.Text == "" {
		return "private"
	}
	r := nameNode.Text[0]
	if r >= 'A' && r <= 'Z' {
		return "public"
	}
	return "private"
}

func (b *Builder) buildType(repoID string, ast *parsing.AST, spec *parsing.Node, fileID string) *model.Node {
	nameNode := spec.Child("name")
	if nameNode == nil {
		return nil
	}
	name := nameNode.Text
	kind := model.NodeClass

	typeExpr := spec.Child("type")
	if typeExpr != nil && typeExpr.Type == "interface_type" {
		kind = model.NodeInterface
	}

	id := model.NodeID(kind, repoID, ast.FilePath, "", name, 0)
	return &model.Node{
		ID: id, Kind: kind, Name: name, FQN: name,
		FilePath: ast.FilePath, Span: spec.Span, Language: "go",
	}
}
