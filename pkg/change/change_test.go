// Copyright 2025 KrakLabs
// SPDX-License-Identifier: Apache-2.0

package change

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseNameStatus(t *testing.T) {
	out := []byte("A\tadded.go\nM\tmod.go\nD\tdel.go\nR100\told.go\tnew.go\n")
	cs := parseNameStatus(out)

	require.Equal(t, []string{"added.go"}, cs.Added)
	require.Equal(t, []string{"mod.go"}, cs.Modified)
	require.Equal(t, []string{"del.go"}, cs.Deleted)
	require.Equal(t, map[string]string{"old.go": "new.go"}, cs.Renamed)
	require.False(t, cs.IsEmpty())
}

func TestParseNameStatusCopyTreatedAsAdd(t *testing.T) {
	cs := parseNameStatus([]byte("C90\tsrc.go\tcopy.go\n"))
	require.Equal(t, []string{"copy.go"}, cs.Added)
}

func TestUnquotePath(t *testing.T) {
	require.Equal(t, "has space.go", unquotePath("has space.go"))
	require.Equal(t, `weird"name.go`, unquotePath(`"weird\"name.go"`))
}

func TestEmptyChangeSet(t *testing.T) {
	require.True(t, parseNameStatus(nil).IsEmpty())
}
