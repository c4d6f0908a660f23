package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSource_ForEachManagedFile(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"a.sq",
		"nested/b.SQ",
		"nested/deeper/c.sq",
		"notes.txt",
		".hidden/d.sq",
		"gen/e.sq",
	}
	for _, name := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	src := &DirSource{Root: root, Extension: ".sq", SkipDirs: []string{filepath.Join(root, "gen")}}
	var got []string
	require.NoError(t, src.ForEachManagedFile(context.Background(), func(path string) error {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		got = append(got, filepath.ToSlash(rel))
		return nil
	}))

	assert.Equal(t, []string{"a.sq", "nested/b.SQ", "nested/deeper/c.sq"}, got)
}

func TestDirSource_MissingRoot(t *testing.T) {
	src := &DirSource{Root: filepath.Join(t.TempDir(), "missing"), Extension: ".sq"}
	called := false
	err := src.ForEachManagedFile(context.Background(), func(string) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestDirSource_StopsOnError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.sq"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.sq"), nil, 0o644))

	boom := errors.New("boom")
	calls := 0
	err := (&DirSource{Root: root, Extension: ".sq"}).ForEachManagedFile(context.Background(), func(string) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDirSource_Cancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.sq"), nil, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&DirSource{Root: root, Extension: ".sq"}).ForEachManagedFile(ctx, func(string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
