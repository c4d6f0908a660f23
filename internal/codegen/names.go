package codegen

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var initialisms = map[string]string{
	"id":   "ID",
	"url":  "URL",
	"uri":  "URI",
	"uuid": "UUID",
	"api":  "API",
	"http": "HTTP",
	"json": "JSON",
	"sql":  "SQL",
	"ip":   "IP",
}

// goName converts an SQL identifier (snake_case, kebab-case or mixed) into an
// exported Go identifier.
func goName(ident string) string {
	parts := strings.FieldsFunc(ident, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	// Casers carry state and must not be shared across goroutines.
	title := cases.Title(language.Und, cases.NoLower)

	var b strings.Builder
	for _, part := range parts {
		if up, ok := initialisms[strings.ToLower(part)]; ok {
			b.WriteString(up)
			continue
		}
		b.WriteString(title.String(part))
	}

	name := b.String()
	if name == "" {
		return "X"
	}
	if unicode.IsDigit(rune(name[0])) {
		return "X" + name
	}
	return name
}

// goType maps a declared SQL column type to a Go type using SQLite affinity
// rules. Nullable columns become pointers.
func goType(sqlType string, nullable bool) string {
	t := strings.ToUpper(sqlType)

	var base string
	switch {
	case strings.Contains(t, "BOOL"):
		base = "bool"
	case strings.Contains(t, "INT"):
		base = "int64"
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		base = "string"
	case t == "", strings.Contains(t, "BLOB"):
		return "[]byte"
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		base = "float64"
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		base = "string"
	default:
		base = "float64"
	}

	if nullable {
		return "*" + base
	}
	return base
}
