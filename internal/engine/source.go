package engine

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// FileSource enumerates the managed files of a project.
type FileSource interface {
	ForEachManagedFile(ctx context.Context, fn func(path string) error) error
}

// EventSource produces file change events.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan core.Event, error)
}

// DirSource enumerates managed files below Root in lexical order.
// Hidden directories and SkipDirs are not descended into.
type DirSource struct {
	Root      string
	Extension string
	SkipDirs  []string
}

// ForEachManagedFile calls fn for every file with the managed extension.
// A missing root yields no files.
func (s *DirSource) ForEachManagedFile(ctx context.Context, fn func(path string) error) error {
	skip := make(map[string]bool, len(s.SkipDirs))
	for _, dir := range s.SkipDirs {
		skip[core.CleanPath(dir)] = true
	}
	root := core.CleanPath(s.Root)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Root missing, or the entry vanished mid-walk.
				if path == root {
					return fs.SkipAll
				}
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || skip[path]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !core.HasExtension(path, s.Extension) {
			return nil
		}
		return fn(path)
	})
}
