// Package symbols extracts named declarations from parsed .sq files and keeps
// them in a process-wide, file-granular symbol table.
package symbols

import (
	"github.com/leapstack-labs/sqgen/internal/sqfile"
	"github.com/leapstack-labs/sqgen/pkg/core"
)

// Extract walks a parsed file and returns the symbols it declares, in source
// order: each table followed by its columns, views, then labelled queries in
// the order they appear.
func Extract(file *sqfile.File) []core.Symbol {
	if file == nil {
		return nil
	}

	var out []core.Symbol
	for _, stmt := range file.Statements {
		switch stmt.Kind {
		case sqfile.StmtCreateTable:
			out = append(out, core.Symbol{
				Name: stmt.Name,
				File: file.Path,
				Kind: core.SymbolTable,
				Span: stmt.NameSpan,
			})
			for _, col := range stmt.Columns {
				out = append(out, core.Symbol{
					Name:   col.Name,
					File:   file.Path,
					Kind:   core.SymbolColumn,
					Span:   col.Span,
					Parent: stmt.Name,
					Type:   col.Type,
				})
			}
		case sqfile.StmtCreateView:
			out = append(out, core.Symbol{
				Name: stmt.Name,
				File: file.Path,
				Kind: core.SymbolView,
				Span: stmt.NameSpan,
			})
		case sqfile.StmtQuery:
			out = append(out, core.Symbol{
				Name: stmt.Label,
				File: file.Path,
				Kind: core.SymbolQuery,
				Span: stmt.LabelSpan,
			})
		}
	}
	return out
}
