package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSourceFile_Supersedes(t *testing.T) {
	first := NewSourceFile("/tmp/a.sq", []byte("CREATE TABLE a (id INTEGER);"))
	second := NewSourceFile("/tmp/a.sq", []byte("CREATE TABLE a (id TEXT);"))
	other := NewSourceFile("/tmp/b.sq", []byte("CREATE TABLE a (id TEXT);"))

	assert.True(t, second.Supersedes(first))
	assert.False(t, first.Supersedes(second))
	assert.False(t, other.Supersedes(first), "different identity never supersedes")
	assert.NotEqual(t, first.Stamp, second.Stamp)
	assert.Equal(t, second.Stamp, other.Stamp, "stamp depends on content only")
}

func TestHasExtension(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		want bool
	}{
		{"queries/player.sq", ".sq", true},
		{"queries/player.SQ", ".sq", true},
		{"queries/player.sql", ".sq", false},
		{"build.gradle", ".sq", false},
		{"player.sq", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, HasExtension(tt.path, tt.ext))
		})
	}
}

func TestSpan_Text(t *testing.T) {
	content := []byte("hello world")
	assert.Equal(t, "world", Span{Start: 6, End: 11}.Text(content))
	assert.Equal(t, "", Span{Start: 6, End: 20}.Text(content))
	assert.Equal(t, 5, Span{Start: 6, End: 11}.Len())
}

func TestSymbol_QualifiedName(t *testing.T) {
	assert.Equal(t, "player", Symbol{Name: "player", Kind: SymbolTable}.QualifiedName())
	assert.Equal(t, "player.name", Symbol{Name: "name", Parent: "player", Kind: SymbolColumn}.QualifiedName())
}

func TestErrors_Unwrap(t *testing.T) {
	base := fmt.Errorf("disk full")

	var commitErr *CommitError
	err := fmt.Errorf("update: %w", &CommitError{Path: "build.gradle", Err: base})
	require.True(t, errors.As(err, &commitErr))
	assert.Equal(t, "build.gradle", commitErr.Path)
	assert.ErrorIs(t, err, base)

	parseErr := &ParseError{Path: "a.sq", Line: 3, Column: 7, Message: "unexpected end of input"}
	assert.Contains(t, parseErr.Error(), "line 3, column 7")
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "created", EventCreated.String())
	assert.Equal(t, "moved", EventMoved.String())
	assert.Equal(t, "moved /a.sq -> /b.sq", Event{Kind: EventMoved, OldPath: "/a.sq", Path: "/b.sq"}.String())
}
