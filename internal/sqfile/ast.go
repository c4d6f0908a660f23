// Package sqfile parses .sq files: SQL schema and labelled query files.
//
// A .sq file is a sequence of semicolon-terminated statements. CREATE
// statements declare schema; every other statement must be preceded by a
// label ("name:") which names the query.
package sqfile

import "github.com/leapstack-labs/sqgen/pkg/core"

// StatementKind classifies a top-level statement.
type StatementKind int

// Statement kinds.
const (
	StmtCreateTable StatementKind = iota
	StmtCreateView
	StmtCreateOther // indexes, triggers
	StmtQuery
)

func (k StatementKind) String() string {
	switch k {
	case StmtCreateTable:
		return "create_table"
	case StmtCreateView:
		return "create_view"
	case StmtCreateOther:
		return "create_other"
	case StmtQuery:
		return "query"
	default:
		return "unknown"
	}
}

// File is the parsed form of one .sq file.
type File struct {
	Path       string
	Statements []*Statement
}

// Statement is one top-level statement.
type Statement struct {
	Kind StatementKind

	// Label names a query statement. Empty for CREATE statements.
	Label     string
	LabelSpan core.Span

	// Name is the declared object for CREATE statements.
	Name     string
	NameSpan core.Span

	// Columns declared by CREATE TABLE, in order.
	Columns []Column

	// Tables referenced by the statement (FROM, JOIN, INTO, UPDATE, ON),
	// deduplicated, in order of first reference, CTE names excluded.
	Tables []string

	// SQL is the statement text without its label and terminating semicolon.
	SQL  string
	Span core.Span
}

// Column is a column definition inside CREATE TABLE.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
	Span       core.Span
}

// Nullable reports whether the column admits NULL.
func (c Column) Nullable() bool {
	return !c.NotNull && !c.PrimaryKey
}

// Tables returns the CREATE TABLE statements of f.
func (f *File) Tables() []*Statement {
	return f.ofKind(StmtCreateTable)
}

// Queries returns the labelled statements of f.
func (f *File) Queries() []*Statement {
	return f.ofKind(StmtQuery)
}

// Views returns the CREATE VIEW statements of f.
func (f *File) Views() []*Statement {
	return f.ofKind(StmtCreateView)
}

func (f *File) ofKind(kind StatementKind) []*Statement {
	var out []*Statement
	for _, s := range f.Statements {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
