package sqfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// Parser parses .sq files. It holds no state and is safe for concurrent use.
type Parser struct{}

// NewParser creates a new parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses the content of file.
func (p *Parser) Parse(file core.SourceFile) (*File, error) {
	return Parse(file.Path, file.Content)
}

// Parse parses .sq content. Malformed input yields a *core.ParseError.
func Parse(path string, content []byte) (*File, error) {
	toks, err := newLexer(string(content)).tokens()
	if err != nil {
		var lexErr *lexError
		if errors.As(err, &lexErr) {
			return nil, &core.ParseError{Path: path, Line: lexErr.line, Column: lexErr.col, Message: lexErr.message}
		}
		return nil, &core.ParseError{Path: path, Message: err.Error()}
	}

	sp := &stmtParser{path: path, content: content}
	file := &File{Path: path}

	var group []token
	for _, tok := range toks {
		if tok.kind == tokPunct && tok.text == ";" {
			if len(group) > 0 {
				stmt, err := sp.parse(group)
				if err != nil {
					return nil, err
				}
				file.Statements = append(file.Statements, stmt)
			}
			group = nil
			continue
		}
		group = append(group, tok)
	}
	// A final statement may omit its semicolon
	if len(group) > 0 {
		stmt, err := sp.parse(group)
		if err != nil {
			return nil, err
		}
		file.Statements = append(file.Statements, stmt)
	}

	return file, nil
}

// stmtParser turns one semicolon-delimited token group into a Statement.
type stmtParser struct {
	path    string
	content []byte
}

func (p *stmtParser) errorAt(tok token, format string, args ...any) error {
	return &core.ParseError{
		Path:    p.path,
		Line:    tok.line,
		Column:  tok.col,
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *stmtParser) span(first, last token) core.Span {
	return core.Span{Start: first.offset, End: last.end, Line: first.line, Column: first.col}
}

func (p *stmtParser) parse(toks []token) (*Statement, error) {
	stmt := &Statement{}

	body := toks
	if isLabel(toks) {
		stmt.Label = toks[0].text
		stmt.LabelSpan = p.span(toks[0], toks[0])
		body = toks[2:]
		if len(body) == 0 {
			return nil, p.errorAt(toks[0], "label %q has no statement", stmt.Label)
		}
	}

	stmt.Span = p.span(body[0], body[len(body)-1])
	stmt.SQL = stmt.Span.Text(p.content)

	switch keyword(body[0]) {
	case "CREATE":
		if stmt.Label != "" {
			return nil, p.errorAt(toks[0], "CREATE statements cannot be labelled")
		}
		if err := p.parseCreate(stmt, body); err != nil {
			return nil, err
		}
	case "SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "REPLACE", "VALUES":
		if stmt.Label == "" {
			return nil, p.errorAt(body[0], "%s statement must be labelled (name: %s ...)", keyword(body[0]), keyword(body[0]))
		}
		stmt.Kind = StmtQuery
		stmt.Tables = tableRefs(body, false)
	default:
		return nil, p.errorAt(body[0], "unsupported statement starting with %q", body[0].text)
	}

	return stmt, nil
}

func (p *stmtParser) parseCreate(stmt *Statement, toks []token) error {
	i := 1
	for i < len(toks) && isOneOf(keyword(toks[i]), "TEMP", "TEMPORARY", "UNIQUE", "VIRTUAL") {
		i++
	}
	if i >= len(toks) {
		return p.errorAt(toks[len(toks)-1], "incomplete CREATE statement")
	}

	object := keyword(toks[i])
	i++
	if i+2 < len(toks) && keyword(toks[i]) == "IF" && keyword(toks[i+1]) == "NOT" && keyword(toks[i+2]) == "EXISTS" {
		i += 3
	}

	name, nameTok, next, ok := qualifiedName(toks, i)
	if !ok {
		return p.errorAt(toks[min(i, len(toks)-1)], "expected name after CREATE %s", object)
	}
	stmt.Name = name
	stmt.NameSpan = p.span(nameTok, nameTok)

	switch object {
	case "TABLE":
		stmt.Kind = StmtCreateTable
		if next < len(toks) && keyword(toks[next]) == "AS" {
			stmt.Tables = tableRefs(toks[next:], false)
			return nil
		}
		if next >= len(toks) || toks[next].text != "(" {
			return p.errorAt(toks[min(next, len(toks)-1)], "expected column list for table %s", name)
		}
		cols, err := p.parseColumns(toks, next)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			return p.errorAt(nameTok, "table %s declares no columns", name)
		}
		stmt.Columns = cols
	case "VIEW":
		stmt.Kind = StmtCreateView
		stmt.Tables = tableRefs(toks[next:], false)
	case "INDEX", "TRIGGER":
		stmt.Kind = StmtCreateOther
		stmt.Tables = tableRefs(toks[next:], true)
	default:
		return p.errorAt(toks[i-1], "unsupported CREATE %s", object)
	}
	return nil
}

// parseColumns parses the parenthesized column list starting at toks[open].
func (p *stmtParser) parseColumns(toks []token, open int) ([]Column, error) {
	closeIdx := matchParen(toks, open)
	if closeIdx < 0 {
		return nil, p.errorAt(toks[open], "unterminated column list")
	}

	var cols []Column
	var primaryKeys []string
	for _, item := range splitTopLevel(toks[open+1 : closeIdx]) {
		if len(item) == 0 {
			return nil, p.errorAt(toks[open], "empty column definition")
		}

		switch keyword(item[0]) {
		case "CONSTRAINT", "UNIQUE", "CHECK", "FOREIGN":
			continue
		case "PRIMARY":
			primaryKeys = append(primaryKeys, parenIdents(item)...)
			continue
		}

		if item[0].kind != tokIdent && item[0].kind != tokQuotedIdent {
			return nil, p.errorAt(item[0], "expected column name, found %q", item[0].text)
		}

		col := Column{
			Name: unquote(item[0]),
			Span: p.span(item[0], item[len(item)-1]),
		}

		typeEnd := 1
		for typeEnd < len(item) && !isOneOf(keyword(item[typeEnd]),
			"CONSTRAINT", "PRIMARY", "NOT", "NULL", "UNIQUE", "CHECK", "DEFAULT",
			"COLLATE", "REFERENCES", "GENERATED", "AS") {
			typeEnd++
		}
		if typeEnd > 1 {
			col.Type = strings.ToUpper(p.span(item[1], item[typeEnd-1]).Text(p.content))
		}

		for j := typeEnd; j < len(item)-1; j++ {
			switch {
			case keyword(item[j]) == "NOT" && keyword(item[j+1]) == "NULL":
				col.NotNull = true
			case keyword(item[j]) == "PRIMARY" && keyword(item[j+1]) == "KEY":
				col.PrimaryKey = true
			}
		}
		cols = append(cols, col)
	}

	for _, pk := range primaryKeys {
		for i := range cols {
			if strings.EqualFold(cols[i].Name, pk) {
				cols[i].PrimaryKey = true
			}
		}
	}
	return cols, nil
}

// tableRefs collects the tables a statement reads or writes. onRefs also
// treats ON as a table reference, which holds for CREATE INDEX and TRIGGER.
func tableRefs(toks []token, onRefs bool) []string {
	ctes := cteNames(toks)

	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		key := strings.ToLower(name)
		if ctes[key] || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	for i := 0; i < len(toks); i++ {
		kw := keyword(toks[i])
		isRef := kw == "FROM" || kw == "JOIN" || kw == "INTO" || kw == "UPDATE" || (onRefs && kw == "ON")
		if !isRef {
			continue
		}

		j := i + 1
		if kw == "UPDATE" && j < len(toks) && keyword(toks[j]) == "OR" {
			j += 2
		}
		for j < len(toks) {
			if toks[j].text == "(" {
				break // subquery or column list
			}
			name, _, next, ok := qualifiedName(toks, j)
			if !ok {
				break
			}
			add(name)
			j = next

			// Optional alias
			if j < len(toks) && keyword(toks[j]) == "AS" {
				j += 2
			} else if j < len(toks) && toks[j].kind == tokIdent && !isReserved(keyword(toks[j])) {
				j++
			}

			if kw != "FROM" || j >= len(toks) || toks[j].text != "," {
				break
			}
			j++
		}
	}
	return out
}

// cteNames returns the lowercased names bound by a leading WITH clause.
func cteNames(toks []token) map[string]bool {
	names := make(map[string]bool)
	if len(toks) == 0 || keyword(toks[0]) != "WITH" {
		return names
	}
	i := 1
	if i < len(toks) && keyword(toks[i]) == "RECURSIVE" {
		i++
	}
	for i < len(toks) {
		if toks[i].kind != tokIdent && toks[i].kind != tokQuotedIdent {
			break
		}
		names[strings.ToLower(unquote(toks[i]))] = true
		i++
		if i < len(toks) && toks[i].text == "(" {
			if i = matchParen(toks, i); i < 0 {
				break
			}
			i++
		}
		if i >= len(toks) || keyword(toks[i]) != "AS" {
			break
		}
		i++
		if i >= len(toks) || toks[i].text != "(" {
			break
		}
		if i = matchParen(toks, i); i < 0 {
			break
		}
		i++
		if i >= len(toks) || toks[i].text != "," {
			break
		}
		i++
	}
	return names
}

// qualifiedName reads name or schema.name at toks[i] and returns the last
// component, its token and the index after the name.
func qualifiedName(toks []token, i int) (string, token, int, bool) {
	if i >= len(toks) || (toks[i].kind != tokIdent && toks[i].kind != tokQuotedIdent) {
		return "", token{}, i, false
	}
	if toks[i].kind == tokIdent && isReserved(keyword(toks[i])) {
		return "", token{}, i, false
	}
	last := toks[i]
	i++
	for i+1 < len(toks) && toks[i].text == "." && (toks[i+1].kind == tokIdent || toks[i+1].kind == tokQuotedIdent) {
		last = toks[i+1]
		i += 2
	}
	return unquote(last), last, i, true
}

// matchParen returns the index of the parenthesis closing toks[open], or -1.
func matchParen(toks []token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits toks at commas outside parentheses.
func splitTopLevel(toks []token) [][]token {
	var out [][]token
	depth, start := 0, 0
	for i, tok := range toks {
		switch tok.text {
		case "(":
			depth++
		case ")":
			depth--
		case ",":
			if depth == 0 {
				out = append(out, toks[start:i])
				start = i + 1
			}
		}
	}
	if start < len(toks) || len(out) > 0 {
		out = append(out, toks[start:])
	}
	return out
}

// parenIdents returns the identifiers inside the first parenthesized group.
func parenIdents(toks []token) []string {
	var out []string
	for i, tok := range toks {
		if tok.text != "(" {
			continue
		}
		end := matchParen(toks, i)
		if end < 0 {
			return out
		}
		for _, t := range toks[i+1 : end] {
			if t.kind == tokIdent || t.kind == tokQuotedIdent {
				out = append(out, unquote(t))
			}
		}
		return out
	}
	return out
}

func isLabel(toks []token) bool {
	if len(toks) < 2 || toks[0].kind != tokIdent || toks[1].text != ":" {
		return false
	}
	// "a::b" is a cast, not a label
	return len(toks) < 3 || toks[2].text != ":"
}

func keyword(tok token) string {
	if tok.kind != tokIdent {
		return ""
	}
	return strings.ToUpper(tok.text)
}

func unquote(tok token) string {
	if tok.kind != tokQuotedIdent || len(tok.text) < 2 {
		return tok.text
	}
	inner := tok.text[1 : len(tok.text)-1]
	switch tok.text[0] {
	case '"':
		return strings.ReplaceAll(inner, `""`, `"`)
	case '`':
		return strings.ReplaceAll(inner, "``", "`")
	}
	return inner
}

func isOneOf(s string, options ...string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

// reserved words that can never name a table or alias.
var reserved = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "JOIN": true, "INNER": true,
	"LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true, "CROSS": true,
	"NATURAL": true, "ON": true, "USING": true, "GROUP": true, "ORDER": true,
	"BY": true, "HAVING": true, "LIMIT": true, "OFFSET": true, "UNION": true,
	"INTERSECT": true, "EXCEPT": true, "VALUES": true, "SET": true, "AS": true,
	"WITH": true, "INTO": true, "DEFAULT": true, "RETURNING": true, "WINDOW": true,
	"BEGIN": true, "END": true, "WHEN": true, "FOR": true, "EACH": true, "ROW": true,
	"AFTER": true, "BEFORE": true, "INSTEAD": true, "OF": true, "INSERT": true,
	"UPDATE": true, "DELETE": true,
}

func isReserved(kw string) bool {
	return reserved[kw]
}
