// Package codegen renders one Go source file per parsed .sq file.
//
// Generation reads the complete symbol table snapshot so that queries can
// reference tables declared in other files.
package codegen

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/leapstack-labs/sqgen/internal/sqfile"
	"github.com/leapstack-labs/sqgen/internal/symbols"
	"github.com/leapstack-labs/sqgen/pkg/core"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Options configures a Generator.
type Options struct {
	SourceRoot string // Directory output paths are computed relative to
	OutputDir  string // Directory generated files are written to
	Package    string // Go package name of generated files
}

// Output is one generated artifact.
type Output struct {
	Path    string
	Content []byte
}

// Generator renders Go code. It is safe for concurrent use.
type Generator struct {
	opts Options
	tmpl *template.Template
}

// New creates a Generator.
func New(opts Options) (*Generator, error) {
	if opts.Package == "" {
		opts.Package = "db"
	}
	tmpl, err := template.New("file.go.tmpl").Funcs(template.FuncMap{
		"literal": literal,
		"join":    strings.Join,
	}).ParseFS(templateFS, "templates/file.go.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Generator{opts: opts, tmpl: tmpl}, nil
}

// OutputPath returns where the artifact generated from sourcePath lives.
// The directory layout under the source root is mirrored in the output dir.
func (g *Generator) OutputPath(sourcePath string) string {
	rel, err := filepath.Rel(g.opts.SourceRoot, sourcePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(sourcePath)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(g.opts.OutputDir, rel+".go")
}

// Generate renders the artifact for file against snap.
// Failures are returned as *core.GenerationError.
func (g *Generator) Generate(snap *symbols.Snapshot, file *sqfile.File) (Output, error) {
	data, err := g.buildData(snap, file)
	if err != nil {
		return Output{}, &core.GenerationError{Path: file.Path, Err: err}
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return Output{}, &core.GenerationError{Path: file.Path, Err: fmt.Errorf("render: %w", err)}
	}

	outPath := g.OutputPath(file.Path)
	formatted, err := imports.Process(outPath, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return Output{}, &core.GenerationError{Path: file.Path, Err: fmt.Errorf("format: %w", err)}
	}

	return Output{Path: outPath, Content: formatted}, nil
}

type fileData struct {
	Source  string
	Package string
	Tables  []tableData
	Views   []viewData
	Queries []queryData
}

type tableData struct {
	GoName  string
	SQLName string
	Fields  []fieldData
}

type fieldData struct {
	GoName  string
	GoType  string
	SQLName string
}

type viewData struct {
	GoName  string
	SQLName string
}

type queryData struct {
	Label     string
	GoName    string
	ConstName string
	SQL       string
	Tables    []string
	Exec      bool
}

func (g *Generator) buildData(snap *symbols.Snapshot, file *sqfile.File) (fileData, error) {
	source := filepath.Base(file.Path)
	if rel, err := filepath.Rel(g.opts.SourceRoot, file.Path); err == nil && !strings.HasPrefix(rel, "..") {
		source = filepath.ToSlash(rel)
	}

	data := fileData{Source: source, Package: g.opts.Package}

	for _, stmt := range file.Tables() {
		if err := checkUnique(snap, file.Path, stmt.Name, core.SymbolTable, core.SymbolView); err != nil {
			return fileData{}, err
		}
		t := tableData{GoName: goName(stmt.Name), SQLName: stmt.Name}
		for _, col := range stmt.Columns {
			t.Fields = append(t.Fields, fieldData{
				GoName:  goName(col.Name),
				GoType:  goType(col.Type, col.Nullable()),
				SQLName: col.Name,
			})
		}
		data.Tables = append(data.Tables, t)
	}

	for _, stmt := range file.Views() {
		if err := checkUnique(snap, file.Path, stmt.Name, core.SymbolTable, core.SymbolView); err != nil {
			return fileData{}, err
		}
		data.Views = append(data.Views, viewData{GoName: goName(stmt.Name), SQLName: stmt.Name})
	}

	for _, stmt := range file.Queries() {
		if err := checkUnique(snap, file.Path, stmt.Label, core.SymbolQuery); err != nil {
			return fileData{}, err
		}
		for _, table := range stmt.Tables {
			if _, ok := snap.Relation(table); !ok {
				return fileData{}, fmt.Errorf("query %s (line %d) references unknown table %s", stmt.Label, stmt.LabelSpan.Line, table)
			}
		}
		name := goName(stmt.Label)
		data.Queries = append(data.Queries, queryData{
			Label:     stmt.Label,
			GoName:    name,
			ConstName: lowerFirst(name) + "SQL",
			SQL:       stmt.SQL,
			Tables:    stmt.Tables,
			Exec:      isExec(stmt.SQL),
		})
	}

	if err := g.checkGoNames(snap, file); err != nil {
		return fileData{}, err
	}
	return data, nil
}

// checkUnique fails when another file declares name with one of kinds.
func checkUnique(snap *symbols.Snapshot, path, name string, kinds ...core.SymbolKind) error {
	for _, sym := range snap.Lookup(name) {
		if sym.File == path {
			continue
		}
		for _, k := range kinds {
			if sym.Kind == k {
				return fmt.Errorf("%s %s is also declared in %s", k, name, sym.File)
			}
		}
	}
	return nil
}

// goIdents returns the package-level Go identifiers generated for sym.
func goIdents(sym core.Symbol) []string {
	switch sym.Kind {
	case core.SymbolTable:
		return []string{goName(sym.Name)}
	case core.SymbolView:
		return []string{goName(sym.Name) + "View"}
	case core.SymbolQuery:
		name := goName(sym.Name)
		return []string{name, lowerFirst(name) + "SQL"}
	}
	return nil
}

// checkGoNames fails when two declarations generate the same Go identifier
// in the package file is generated into: within file itself, or against
// another file whose output shares the directory.
func (g *Generator) checkGoNames(snap *symbols.Snapshot, file *sqfile.File) error {
	owners := make(map[string]core.Symbol)
	for _, sym := range symbols.Extract(file) {
		for _, ident := range goIdents(sym) {
			if prev, ok := owners[ident]; ok {
				return fmt.Errorf("%s %s and %s %s both generate Go identifier %s", prev.Kind, prev.Name, sym.Kind, sym.Name, ident)
			}
			owners[ident] = sym
		}
	}

	dir := filepath.Dir(g.OutputPath(file.Path))
	for _, path := range snap.Files() {
		if path == file.Path || filepath.Dir(g.OutputPath(path)) != dir {
			continue
		}
		entry, _ := snap.Entry(path)
		for _, sym := range entry.Symbols {
			for _, ident := range goIdents(sym) {
				if own, ok := owners[ident]; ok {
					return fmt.Errorf("%s %s generates Go identifier %s, also generated by %s %s in %s",
						own.Kind, own.Name, ident, sym.Kind, sym.Name, path)
				}
			}
		}
	}
	return nil
}

func isExec(sql string) bool {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
		return !strings.Contains(strings.ToUpper(sql), "RETURNING")
	}
	return false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	// Leading initialisms lower as a unit: IDList -> idList.
	for _, up := range initialisms {
		if strings.HasPrefix(s, up) && (len(s) == len(up) || s[len(up)] < 'a' || s[len(up)] > 'z') {
			return strings.ToLower(up) + s[len(up):]
		}
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// literal quotes s as a Go string, preferring a raw string for readability.
func literal(s string) string {
	if !strings.Contains(s, "`") && !strings.Contains(s, "\r") {
		return "`" + s + "`"
	}
	return strconv.Quote(s)
}
