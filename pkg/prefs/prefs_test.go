// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")
	store := NewFileStore(path)

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, State{}, st)

	want := State{DesiredDepth: 3.75, PlayoutLevel: 960}
	require.NoError(t, store.Save(want))

	got, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestFileStoreFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("desired_depth: 2.5\nplayout_level: 480\n"), 0o600))

	st, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, State{DesiredDepth: 2.5, PlayoutLevel: 480}, st)
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("desired_depth: [oops"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(State{DesiredDepth: 1})
	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.DesiredDepth)

	require.NoError(t, store.Save(State{PlayoutLevel: 3}))
	st, _ = store.Load()
	assert.Equal(t, State{PlayoutLevel: 3}, st)
	assert.Equal(t, 1, store.Saves())
}
