// Package core defines the shared language of sqgen.
//
// This package contains:
//   - Source identity (SourceFile, Span)
//   - Symbols extracted from managed files (Symbol, SymbolKind)
//   - File change events (Event, EventKind)
//   - Error kinds shared by the pipeline and the reconciler
//
// The Golden Rule: pkg/core imports ONLY stdlib and the content hash.
// All other packages depend on core, not the reverse.
package core
