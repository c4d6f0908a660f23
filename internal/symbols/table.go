package symbols

import (
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/sqgen/pkg/core"
)

// Entry is the immutable registration of one file's symbols.
type Entry struct {
	File    core.SourceFile
	Symbols []core.Symbol
}

// Table maps file identity to the symbols that file declares.
//
// Registrations for the same path serialize on a per-path lock and are
// ordered by SourceFile.Seq, so the newest read always wins. Registrations for
// different paths only share the brief pointer swap on the entry map.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	// tombstones holds the Seq at which a path was removed, so a slower
	// registration of older content cannot resurrect a deleted file.
	tombstones map[string]uint64

	locksMu sync.Mutex
	locks   map[string]*pathLock
}

// pathLock serializes writers of one path. It lives in Table.locks only while
// some writer holds or waits for it.
type pathLock struct {
	sync.Mutex
	refs int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:    make(map[string]*Entry),
		tombstones: make(map[string]uint64),
		locks:      make(map[string]*pathLock),
	}
}

// lockPath acquires the lock serializing writes for path.
func (t *Table) lockPath(path string) *pathLock {
	t.locksMu.Lock()
	l, ok := t.locks[path]
	if !ok {
		l = &pathLock{}
		t.locks[path] = l
	}
	l.refs++
	t.locksMu.Unlock()

	l.Lock()
	return l
}

// unlockPath releases l and forgets it once no writer references it.
func (t *Table) unlockPath(path string, l *pathLock) {
	l.Unlock()

	t.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, path)
	}
	t.locksMu.Unlock()
}

// lockCount returns the number of live path locks.
func (t *Table) lockCount() int {
	t.locksMu.Lock()
	defer t.locksMu.Unlock()
	return len(t.locks)
}

// Register replaces the entry for file.Path with symbols.
// It returns false when file is older than the current entry or than a
// removal of the same path; the table is unchanged in that case.
func (t *Table) Register(file core.SourceFile, symbols []core.Symbol) bool {
	l := t.lockPath(file.Path)
	defer t.unlockPath(file.Path, l)

	t.mu.RLock()
	existing := t.entries[file.Path]
	removedAt := t.tombstones[file.Path]
	t.mu.RUnlock()

	if existing != nil && existing.File.Seq > file.Seq {
		return false
	}
	if removedAt > file.Seq {
		return false
	}

	syms := make([]core.Symbol, len(symbols))
	copy(syms, symbols)
	entry := &Entry{File: file, Symbols: syms}

	t.mu.Lock()
	t.entries[file.Path] = entry
	delete(t.tombstones, file.Path)
	t.mu.Unlock()
	return true
}

// Remove drops the entry for path if it is not newer than seq.
// It returns true if an entry was removed.
func (t *Table) Remove(path string, seq uint64) bool {
	l := t.lockPath(path)
	defer t.unlockPath(path, l)

	t.mu.Lock()
	defer t.mu.Unlock()

	existing := t.entries[path]
	if existing != nil && existing.File.Seq > seq {
		return false
	}
	if seq > t.tombstones[path] {
		t.tombstones[path] = seq
	}
	if existing == nil {
		return false
	}
	delete(t.entries, path)
	return true
}

// Current reports whether seq is the registered version of path.
func (t *Table) Current(path string, seq uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[path]
	return ok && e.File.Seq == seq
}

// Get returns the entry for path.
func (t *Table) Get(path string) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[path]
	return e, ok
}

// Len returns the number of registered files.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns a consistent, immutable view of the table.
// Entries are shared, not copied; they are never mutated after registration.
func (t *Table) Snapshot() *Snapshot {
	t.mu.RLock()
	entries := make(map[string]*Entry, len(t.entries))
	for path, e := range t.entries {
		entries[path] = e
	}
	t.mu.RUnlock()

	s := &Snapshot{
		entries: entries,
		byName:  make(map[string][]core.Symbol),
	}
	for _, path := range s.Files() {
		for _, sym := range entries[path].Symbols {
			key := strings.ToLower(sym.QualifiedName())
			s.byName[key] = append(s.byName[key], sym)
		}
	}
	return s
}

// Snapshot is a read-only view of the table at one point in time.
// It is safe for concurrent use.
type Snapshot struct {
	entries map[string]*Entry
	byName  map[string][]core.Symbol
}

// Files returns the registered paths, sorted.
func (s *Snapshot) Files() []string {
	paths := make([]string, 0, len(s.entries))
	for path := range s.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Entry returns the registration for path.
func (s *Snapshot) Entry(path string) (*Entry, bool) {
	e, ok := s.entries[path]
	return e, ok
}

// Has reports whether path is registered.
func (s *Snapshot) Has(path string) bool {
	_, ok := s.entries[path]
	return ok
}

// Len returns the number of registered files.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Lookup returns the symbols named name (case-insensitive). Columns are found
// by their qualified name "table.column". Results are ordered by file path.
func (s *Snapshot) Lookup(name string) []core.Symbol {
	return s.byName[strings.ToLower(name)]
}

// Relation returns the table or view named name, if any file declares one.
func (s *Snapshot) Relation(name string) (core.Symbol, bool) {
	for _, sym := range s.Lookup(name) {
		if sym.Kind == core.SymbolTable || sym.Kind == core.SymbolView {
			return sym, true
		}
	}
	return core.Symbol{}, false
}

// Columns returns the columns of table, in declaration order.
func (s *Snapshot) Columns(table string) []core.Symbol {
	rel, ok := s.Relation(table)
	if !ok {
		return nil
	}
	var out []core.Symbol
	for _, sym := range s.entries[rel.File].Symbols {
		if sym.Kind == core.SymbolColumn && strings.EqualFold(sym.Parent, rel.Name) {
			out = append(out, sym)
		}
	}
	return out
}

// Tables returns every table and view symbol, ordered by file path then
// declaration order.
func (s *Snapshot) Tables() []core.Symbol {
	var out []core.Symbol
	for _, path := range s.Files() {
		for _, sym := range s.entries[path].Symbols {
			if sym.Kind == core.SymbolTable || sym.Kind == core.SymbolView {
				out = append(out, sym)
			}
		}
	}
	return out
}
