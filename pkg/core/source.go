package core

import (
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// seqCounter orders every read of a managed file across the process.
var seqCounter atomic.Uint64

// NextSeq returns the next read sequence number. Sequence numbers are strictly
// increasing, so a later read of the same path always supersedes an earlier one.
func NextSeq() uint64 {
	return seqCounter.Add(1)
}

// SourceFile is an immutable snapshot of one managed file's content.
// A content change never mutates a SourceFile; it produces a new one with a
// higher Seq.
type SourceFile struct {
	Path    string // Absolute, cleaned path (identity)
	Stamp   uint64 // Content hash
	Seq     uint64 // Read order, see NextSeq
	Content []byte
}

// NewSourceFile builds a SourceFile for path with the given content and
// assigns it a fresh sequence number.
func NewSourceFile(path string, content []byte) SourceFile {
	return SourceFile{
		Path:    CleanPath(path),
		Stamp:   Stamp(content),
		Seq:     NextSeq(),
		Content: content,
	}
}

// Ext returns the lowercase file extension including the dot.
func (f SourceFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.Path))
}

// Supersedes reports whether f is a newer version of the same file than other.
func (f SourceFile) Supersedes(other SourceFile) bool {
	return f.Path == other.Path && f.Seq > other.Seq
}

// Stamp hashes content into a version stamp.
func Stamp(content []byte) uint64 {
	return xxh3.Hash(content)
}

// CleanPath normalizes a path into a file identity.
func CleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// HasExtension reports whether path carries ext (case-insensitive, with dot).
func HasExtension(path, ext string) bool {
	return ext != "" && strings.EqualFold(filepath.Ext(path), ext)
}

// Span locates a region of source text.
// Offsets are byte offsets into the content; Line and Column are 1-based and
// refer to Start.
type Span struct {
	Start  int
	End    int
	Line   int
	Column int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Text returns the slice of content covered by the span.
func (s Span) Text(content []byte) string {
	if s.Start < 0 || s.End > len(content) || s.Start > s.End {
		return ""
	}
	return string(content[s.Start:s.End])
}
