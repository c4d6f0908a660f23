package core

// SymbolKind classifies a named declaration. The symbol table treats it as
// opaque; only code generation interprets it.
type SymbolKind string

// Symbol kinds produced by the .sq extractor.
const (
	SymbolTable  SymbolKind = "table"
	SymbolColumn SymbolKind = "column"
	SymbolView   SymbolKind = "view"
	SymbolQuery  SymbolKind = "query"
)

// Symbol is a named declaration contributed by one managed file.
type Symbol struct {
	Name   string
	File   string // Declaring file path
	Kind   SymbolKind
	Span   Span
	Parent string // Owning table or view, for columns
	Type   string // Declared column type, for columns
}

// QualifiedName returns Parent.Name for columns and Name otherwise.
func (s Symbol) QualifiedName() string {
	if s.Parent == "" {
		return s.Name
	}
	return s.Parent + "." + s.Name
}
