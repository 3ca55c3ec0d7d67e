// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package discovery implements C1 FileDiscovery: walking a repository tree,
// filtering by language/size/ignore rules, and classifying files as code,
// document, or binary.
package discovery

import (
	"bytes"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileClass classifies a discovered file.
type FileClass string

const (
	ClassCode     FileClass = "code"
	ClassDocument FileClass = "document"
)

// File describes one discovered, classified file.
type File struct {
	Path     string // relative to repo root
	FullPath string
	Size     int64
	Language string
	Class    FileClass
}

// Config controls FileDiscovery's filtering rules.
type Config struct {
	// ExcludeGlobs are doublestar patterns matched against the
	// repo-relative, slash-normalized path.
	ExcludeGlobs []string
	// MaxCodeBytes is the size limit for code files; 0 means unlimited.
	MaxCodeBytes int64
	// MaxDocumentBytes is the size limit for document files; 0 means
	// unlimited.
	MaxDocumentBytes int64
}

// DefaultExcludeGlobs are the directories/paths excluded unless the caller
// overrides Config.ExcludeGlobs.
var DefaultExcludeGlobs = []string{
	"**/.git/**", "**/.hg/**", "**/.svn/**",
	"**/node_modules/**", "**/vendor/**", "**/.venv/**", "**/venv/**",
	"**/__pycache__/**", "**/.mypy_cache/**", "**/.pytest_cache/**",
	"**/dist/**", "**/build/**", "**/target/**", "**/out/**",
	"**/.idea/**", "**/.vscode/**",
}

// DefaultConfig returns sensible discovery defaults.
func DefaultConfig() Config {
	return Config{
		ExcludeGlobs:     DefaultExcludeGlobs,
		MaxCodeBytes:     2 << 20,  // 2 MiB
		MaxDocumentBytes: 8 << 20, // 8 MiB
	}
}

var codeExtensions = map[string]string{
	".go": "go", ".py": "python", ".js": "javascript", ".ts": "typescript",
	".jsx": "javascript", ".tsx": "typescript", ".java": "java", ".rs": "rust",
	".cpp": "cpp", ".c": "c", ".h": "c", ".hpp": "cpp", ".cc": "cpp",
	".cs": "csharp", ".rb": "ruby", ".php": "php", ".swift": "swift",
	".kt": "kotlin", ".scala": "scala", ".proto": "protobuf",
}

var documentExtensions = map[string]string{
	".md": "markdown", ".rst": "restructuredtext", ".txt": "text",
	".adoc": "asciidoc",
}

// Discovery implements C1 FileDiscovery.
type Discovery struct {
	logger *slog.Logger
	cfg    Config
}

// New creates a Discovery with the given config. A nil logger defaults to
// slog.Default().
func New(cfg Config, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{logger: logger, cfg: cfg}
}

// DiscoverFiles walks repoPath and returns every non-excluded, non-binary,
// within-size-limit file in deterministic (sorted) path order. If changed
// is non-nil, only those paths are classified (the incremental fast path);
// otherwise the whole tree is walked.
func (d *Discovery) DiscoverFiles(repoPath string, changed []string) ([]File, error) {
	var files []File
	var err error
	if changed != nil {
		files, err = d.classifyPaths(repoPath, changed)
	} else {
		files, err = d.walk(repoPath)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (d *Discovery) classifyPaths(repoPath string, paths []string) ([]File, error) {
	var out []File
	for _, rel := range paths {
		full := filepath.Join(repoPath, rel)
		info, err := os.Stat(full)
		if err != nil {
			if os.IsNotExist(err) {
				continue // deleted files are not "discovered"
			}
			d.logger.Warn("discovery.stat.error", "path", rel, "err", err)
			continue
		}
		if info.IsDir() {
			continue
		}
		if d.shouldExclude(rel) {
			continue
		}
		f, ok, err := d.classify(full, rel, info.Size())
		if err != nil {
			d.logger.Warn("discovery.classify.error", "path", rel, "err", err)
			continue
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (d *Discovery) walk(repoPath string) ([]File, error) {
	var out []File
	err := filepath.WalkDir(repoPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.logger.Warn("discovery.walk.error", "path", path, "err", err)
			return nil
		}
		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			if d.shouldExclude(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.shouldExclude(rel) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		full := path
		f, ok, err := d.classify(full, rel, info.Size())
		if err != nil {
			d.logger.Warn("discovery.classify.error", "path", rel, "err", err)
			return nil
		}
		if ok {
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

func (d *Discovery) shouldExclude(relPath string) bool {
	normalized := filepath.ToSlash(relPath)
	globs := d.cfg.ExcludeGlobs
	if globs == nil {
		globs = DefaultExcludeGlobs
	}
	for _, pattern := range globs {
		if ok, _ := doublestar.Match(pattern, normalized); ok {
			return true
		}
		// Allow a bare "name/**" pattern to match at any depth, not just
		// rooted at the repo root.
		if !strings.HasPrefix(pattern, "**/") {
			if ok, _ := doublestar.Match("**/"+pattern, normalized); ok {
				return true
			}
		}
	}
	return false
}

// classify decides whether a file should be retained and how.
func (d *Discovery) classify(fullPath, relPath string, size int64) (File, bool, error) {
	ext := strings.ToLower(filepath.Ext(relPath))

	if lang, ok := codeExtensions[ext]; ok {
		limit := d.cfg.MaxCodeBytes
		if limit > 0 && size > limit {
			d.logger.Debug("discovery.skip.too_large", "path", relPath, "size", size, "limit", limit)
			return File{}, false, nil
		}
		if isBinary(fullPath) {
			return File{}, false, nil
		}
		return File{Path: relPath, FullPath: fullPath, Size: size, Language: lang, Class: ClassCode}, true, nil
	}

	if lang, ok := documentExtensions[ext]; ok {
		limit := d.cfg.MaxDocumentBytes
		if limit > 0 && size > limit {
			d.logger.Debug("discovery.skip.too_large", "path", relPath, "size", size, "limit", limit)
			return File{}, false, nil
		}
		if isBinary(fullPath) {
			return File{}, false, nil
		}
		return File{Path: relPath, FullPath: fullPath, Size: size, Language: lang, Class: ClassDocument}, true, nil
	}

	return File{}, false, nil
}

// isBinary classifies a file as binary if its first 512 bytes contain a
// NUL byte (spec §4.2).
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return bytes.IndexByte(buf[:n], 0) != -1
}
