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

// Package typeanalyzer is the default ports.ExternalTypeAnalyzer for Go
// repositories: it loads a module with golang.org/x/tools/go/packages and
// answers hover/definition queries from the resulting go/types.Info,
// rather than re-deriving types from the tree-sitter AST the way
// pkg/semantic's own TypeBuilder does for the fast, syntax-only pass.
package typeanalyzer

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/tools/go/packages"

	"github.com/kraklabs/coreindex/pkg/ports"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo

// Analyzer is a golang.org/x/tools-backed ports.ExternalTypeAnalyzer. It
// loads packages lazily, one directory at a time, and caches them for the
// lifetime of the process — a coreindex run type-checks the same module
// repeatedly as different files are hovered.
type Analyzer struct {
	logger *slog.Logger
	dir    string // module root passed to packages.Load

	mu    sync.Mutex
	cache map[string]*packages.Package // package dir -> loaded package
}

// New constructs an Analyzer rooted at dir (the repository's module root).
func New(dir string, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		logger: logger,
		dir:    dir,
		cache:  make(map[string]*packages.Package),
	}
}

// Hover resolves the type and signature of the identifier at (file, line,
// col), loading (and caching) the owning package on demand.
func (a *Analyzer) Hover(ctx context.Context, file string, line, col int) (*ports.TypeHover, error) {
	pkg, fset, err := a.loadFor(ctx, file)
	if err != nil {
		return nil, err
	}
	ident, err := identAt(pkg, fset, file, line, col)
	if err != nil {
		return nil, err
	}
	obj := pkg.TypesInfo.ObjectOf(ident)
	if obj == nil {
		return nil, fmt.Errorf("typeanalyzer: no object for identifier at %s:%d:%d", file, line, col)
	}
	hover := &ports.TypeHover{Type: obj.Type().String()}
	if sig, ok := obj.Type().(*types.Signature); ok {
		hover.Signature = sig.String()
	}
	return hover, nil
}

// Definition resolves the declaration site of the identifier at (file,
// line, col).
func (a *Analyzer) Definition(ctx context.Context, file string, line, col int) (*ports.TypeDefinition, error) {
	pkg, fset, err := a.loadFor(ctx, file)
	if err != nil {
		return nil, err
	}
	ident, err := identAt(pkg, fset, file, line, col)
	if err != nil {
		return nil, err
	}
	obj := pkg.TypesInfo.ObjectOf(ident)
	if obj == nil || obj.Pos() == token.NoPos {
		return nil, fmt.Errorf("typeanalyzer: no definition for identifier at %s:%d:%d", file, line, col)
	}
	pos := fset.Position(obj.Pos())
	return &ports.TypeDefinition{
		File: pos.Filename,
		Line: pos.Line,
		FQN:  obj.Pkg().Path() + "." + obj.Name(),
	}, nil
}

func (a *Analyzer) loadFor(ctx context.Context, file string) (*packages.Package, *token.FileSet, error) {
	dir := filepath.Dir(file)

	a.mu.Lock()
	pkg, ok := a.cache[dir]
	a.mu.Unlock()
	if ok {
		return pkg, pkg.Fset, nil
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     dir,
	}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("typeanalyzer: load %s: %w", dir, err)
	}
	if len(pkgs) == 0 || len(pkgs[0].Errors) > 0 {
		a.logger.Warn("typeanalyzer.load.errors", "dir", dir)
	}
	if len(pkgs) == 0 {
		return nil, nil, fmt.Errorf("typeanalyzer: no package loaded for %s", dir)
	}

	a.mu.Lock()
	a.cache[dir] = pkgs[0]
	a.mu.Unlock()
	return pkgs[0], pkgs[0].Fset, nil
}

func identAt(pkg *packages.Package, fset *token.FileSet, file string, line, col int) (*ast.Ident, error) {
	var target *ast.Ident
	for _, f := range pkg.Syntax {
		pos := fset.Position(f.Pos())
		if filepath.Base(pos.Filename) != filepath.Base(file) {
			continue
		}
		ast.Inspect(f, func(n ast.Node) bool {
			id, ok := n.(*ast.Ident)
			if !ok {
				return true
			}
			p := fset.Position(id.Pos())
			if p.Line == line && p.Column <= col && col <= p.Column+len(id.Name) {
				target = id
			}
			return true
		})
		if target != nil {
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("typeanalyzer: no identifier at %s:%d:%d", file, line, col)
	}
	return target, nil
}
