// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestDiscoverFilesDeterministicOrderAndFilters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.go", "package b\n")
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "README.md", "# hi\n")
	writeFile(t, root, "vendor/dep.go", "package dep\n")
	writeFile(t, root, "image.bin", "\x00\x01\x02binarydata")

	d := New(DefaultConfig(), nil)
	files, err := d.DiscoverFiles(root, nil)
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	require.Equal(t, []string{"README.md", "a.go", "b.go"}, paths)
}

func TestDiscoverFilesIncrementalSkipsDeleted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	d := New(DefaultConfig(), nil)
	files, err := d.DiscoverFiles(root, []string{"a.go", "missing.go"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "a.go", files[0].Path)
}

func TestClassifySizeLimit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.go", "package big\n")

	cfg := DefaultConfig()
	cfg.MaxCodeBytes = 3
	d := New(cfg, nil)
	files, err := d.DiscoverFiles(root, nil)
	require.NoError(t, err)
	require.Empty(t, files)
}
