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
	"fmt"
	"log/slog"
	"sync"
)

// CodeParser parses one file's content into a normalized AST. Adding a
// language is adding a registry entry that implements this interface, not
// editing existing code (spec §9).
type CodeParser interface {
	Language() string
	Parse(filePath string, content []byte) (*AST, error)
}

// Error wraps a per-file parse failure. Per spec §4.4, failures are
// reported, never raised past the per-file boundary.
type Error struct {
	FilePath string
	Skipped  bool
	Err      error
}

func (e *Error) Error() string {
	if e.Skipped {
		return fmt.Sprintf("parse %s: skipped: %v", e.FilePath, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.FilePath, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// factory builds a fresh, non-shared parser instance for one language.
// Tree-sitter parsers are not safe for concurrent use, so every pool
// maintains one instance per (language, goroutine) via sync.Pool rather
// than sharing a single *CodeParser (spec §5 "Thread-local parsers. Never
// shared across threads.").
type factory func() CodeParser

// Pool is the per-language thread-local parser pool (C3 "Parser pool").
type Pool struct {
	logger          *slog.Logger
	skipParseErrors bool

	mu        sync.Mutex
	factories map[string]factory
	instances map[string]*sync.Pool
}

// NewPool builds an empty registry. Register languages with Register
// before calling Parse. skipParseErrors is stored on the pool but does not
// change what Parse returns: with either value every failure comes back
// as a *Error, and the pool never stops a caller's run.
func NewPool(skipParseErrors bool, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		logger:          logger,
		skipParseErrors: skipParseErrors,
		factories:       make(map[string]factory),
		instances:       make(map[string]*sync.Pool),
	}
}

// Register adds a language to the registry, keyed by language tag.
func (p *Pool) Register(language string, newParser factory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[language] = newParser
	p.instances[language] = &sync.Pool{New: func() any { return newParser() }}
}

// Languages returns the set of registered language tags.
func (p *Pool) Languages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.factories))
	for lang := range p.factories {
		out = append(out, lang)
	}
	return out
}

// Parse parses one file using the registered parser for language. On
// failure it returns a *Error, whatever skipParseErrors is set to; the
// orchestrator records such a file in IndexingResult.failed_files and
// continues (spec §4.4).
func (p *Pool) Parse(language, filePath string, content []byte) (*AST, error) {
	p.mu.Lock()
	pool, ok := p.instances[language]
	p.mu.Unlock()
	if !ok {
		err := &Error{FilePath: filePath, Skipped: true, Err: fmt.Errorf("no parser registered for language %q", language)}
		p.logger.Warn("parsing.unsupported_language", "path", filePath, "language", language)
		if p.skipParseErrors {
			return nil, err
		}
		return nil, err
	}

	parser := pool.Get().(CodeParser)
	defer pool.Put(parser)

	ast, err := parser.Parse(filePath, content)
	if err != nil {
		wrapped := &Error{FilePath: filePath, Err: err}
		p.logger.Warn("parsing.file.error", "path", filePath, "language", language, "err", err)
		return nil, wrapped
	}
	return ast, nil
}
