package pipeline

import (
	"fmt"
	"time"
)

// ErrorKind classifies a per-file failure.
type ErrorKind string

// Per-file failure kinds.
const (
	KindRead     ErrorKind = "read"
	KindParse    ErrorKind = "parse"
	KindGenerate ErrorKind = "generate"
	KindCommit   ErrorKind = "commit"
)

// FileError is a failure isolated to one managed file.
type FileError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// RunResult summarizes a pipeline pass or a handled change event.
type RunResult struct {
	RunID      string
	Files      int // Files considered
	Registered int // Files registered in the symbol table
	Generated  int // Artifacts written
	Unchanged  int // Artifacts already up to date
	Discarded  int // Outputs dropped because their source was superseded
	Removed    int // Artifacts deleted along with their source
	Errors     []*FileError
	Duration   time.Duration
}

// HasErrors reports whether any file failed.
func (r *RunResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// ErrorFor returns the failure recorded for path, if any.
func (r *RunResult) ErrorFor(path string) *FileError {
	for _, e := range r.Errors {
		if e.Path == path {
			return e
		}
	}
	return nil
}
