package commit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

var (
	// ErrStale means the file no longer matches what the caller based its
	// edit on. It is always wrapped in a *core.CommitError.
	ErrStale = errors.New("file changed since it was read")

	// ErrDiscarded means the target's guard rejected the write because the
	// output is no longer authoritative. Nothing is wrong; nothing was written.
	ErrDiscarded = errors.New("output discarded")
)

// Target describes where a mutation applies.
type Target struct {
	// Path of the file to write.
	Path string

	// Region limits the replacement to a byte range of the current content.
	// Nil replaces the whole file (creating it if needed).
	Region *core.Span

	// Expect, when set, is the stamp the current content must have.
	Expect *uint64

	// Guard is evaluated with exclusive rights just before writing.
	// Returning false discards the write with ErrDiscarded.
	Guard func() bool
}

// Committer writes text into files through an Executor.
type Committer struct {
	exec   Executor
	logger *slog.Logger
}

// New creates a Committer. A nil logger discards logs.
func New(exec Executor, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Committer{exec: exec, logger: logger}
}

// Commit replaces the target with newText. It reports whether the file was
// written; identical content is left untouched. Failures return a
// *core.CommitError and leave the file as it was.
func (c *Committer) Commit(ctx context.Context, t Target, newText string) (bool, error) {
	var written bool
	err := c.exec.RunExclusive(ctx, func() error {
		var err error
		written, err = c.apply(t, newText)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDiscarded) {
			return false, err
		}
		var commitErr *core.CommitError
		if !errors.As(err, &commitErr) {
			err = &core.CommitError{Path: t.Path, Err: err}
		}
		return false, err
	}
	return written, nil
}

func (c *Committer) apply(t Target, newText string) (bool, error) {
	if t.Guard != nil && !t.Guard() {
		return false, ErrDiscarded
	}

	perm := fs.FileMode(0o644)
	current, err := os.ReadFile(t.Path)
	exists := err == nil
	switch {
	case exists:
		if info, statErr := os.Stat(t.Path); statErr == nil {
			perm = info.Mode().Perm()
		}
	case errors.Is(err, fs.ErrNotExist):
		if t.Region != nil || t.Expect != nil {
			return false, &core.CommitError{Path: t.Path, Err: ErrStale}
		}
	default:
		return false, &core.CommitError{Path: t.Path, Err: err}
	}

	if t.Expect != nil && core.Stamp(current) != *t.Expect {
		return false, &core.CommitError{Path: t.Path, Err: ErrStale}
	}

	next := []byte(newText)
	if t.Region != nil {
		r := *t.Region
		if r.Start < 0 || r.End < r.Start || r.End > len(current) {
			return false, &core.CommitError{
				Path: t.Path,
				Err:  fmt.Errorf("region %d-%d outside %d bytes: %w", r.Start, r.End, len(current), ErrStale),
			}
		}
		next = make([]byte, 0, len(current)-r.Len()+len(newText))
		next = append(next, current[:r.Start]...)
		next = append(next, newText...)
		next = append(next, current[r.End:]...)
	}

	if exists && bytes.Equal(current, next) {
		c.logger.Debug("commit unchanged", "path", t.Path)
		return false, nil
	}

	if err := writeAtomic(t.Path, next, perm); err != nil {
		return false, &core.CommitError{Path: t.Path, Err: err}
	}
	c.logger.Debug("committed", "path", t.Path, "bytes", len(next))
	return true, nil
}

// Remove deletes path with exclusive rights. A missing file is not an error.
// A guard returning false discards the removal with ErrDiscarded.
func (c *Committer) Remove(ctx context.Context, path string, guard func() bool) error {
	err := c.exec.RunExclusive(ctx, func() error {
		if guard != nil && !guard() {
			return ErrDiscarded
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &core.CommitError{Path: path, Err: err}
		}
		c.logger.Debug("removed", "path", path)
		return nil
	})
	if err != nil && !errors.Is(err, ErrDiscarded) {
		var commitErr *core.CommitError
		if !errors.As(err, &commitErr) {
			err = &core.CommitError{Path: path, Err: err}
		}
	}
	return err
}
