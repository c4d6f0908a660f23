package core

import "fmt"

// ParseError reports malformed source in a managed file.
// It is isolated to the offending file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// GenerationError reports a code generation failure for one file.
type GenerationError struct {
	Path string
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for %s: %v", e.Path, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// CommitError reports that a write could not be applied.
// Nothing was written when a CommitError is returned.
type CommitError struct {
	Path string
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit to %s failed: %v", e.Path, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// ConfigScanError reports an unreadable or malformed configuration file.
// The file is skipped; the rest of the scan continues.
type ConfigScanError struct {
	Path string
	Err  error
}

func (e *ConfigScanError) Error() string {
	return fmt.Sprintf("cannot scan %s: %v", e.Path, e.Err)
}

func (e *ConfigScanError) Unwrap() error { return e.Err }

// UnknownActionError reports a user action outside the set a notification
// or the reconciler offers.
type UnknownActionError struct {
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Action)
}

// VersionParseError reports a declared version that is not a recognizable
// version string.
type VersionParseError struct {
	Version string
	Err     error
}

func (e *VersionParseError) Error() string {
	return fmt.Sprintf("invalid version %q: %v", e.Version, e.Err)
}

func (e *VersionParseError) Unwrap() error { return e.Err }
