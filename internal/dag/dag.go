// Package dag models the dependencies between managed files. A file depends
// on every other file declaring a relation it references. Relation names are
// matched case-insensitively.
package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a file dependency graph. Unlike a build DAG it may contain
// cycles, since two files can reference each other's tables.
type Graph struct {
	files    map[string]bool
	declares map[string]map[string]bool // relation -> declaring files
	refs     map[string]map[string]bool // file -> referenced relations

	linked  bool
	edges   map[string][]string // file -> dependents
	parents map[string][]string // file -> dependencies
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		files:    make(map[string]bool),
		declares: make(map[string]map[string]bool),
		refs:     make(map[string]map[string]bool),
	}
}

// AddFile adds path with the relations it declares and references. Adding a
// path again merges the names.
func (g *Graph) AddFile(path string, declares, references []string) {
	g.files[path] = true
	g.linked = false

	for _, name := range declares {
		name = strings.ToLower(name)
		if g.declares[name] == nil {
			g.declares[name] = make(map[string]bool)
		}
		g.declares[name][path] = true
	}
	if g.refs[path] == nil {
		g.refs[path] = make(map[string]bool)
	}
	for _, name := range references {
		g.refs[path][strings.ToLower(name)] = true
	}
}

// link derives file edges from the recorded names.
func (g *Graph) link() {
	if g.linked {
		return
	}
	edges := make(map[string]map[string]bool)
	parents := make(map[string]map[string]bool)
	for file, names := range g.refs {
		for name := range names {
			for decl := range g.declares[name] {
				if decl == file {
					continue
				}
				if edges[decl] == nil {
					edges[decl] = make(map[string]bool)
				}
				edges[decl][file] = true
				if parents[file] == nil {
					parents[file] = make(map[string]bool)
				}
				parents[file][decl] = true
			}
		}
	}
	g.edges = make(map[string][]string, len(edges))
	for k, v := range edges {
		g.edges[k] = sortedKeys(v)
	}
	g.parents = make(map[string][]string, len(parents))
	for k, v := range parents {
		g.parents[k] = sortedKeys(v)
	}
	g.linked = true
}

// Files returns every file in lexical order.
func (g *Graph) Files() []string {
	return sortedKeys(g.files)
}

// FileCount returns the number of files.
func (g *Graph) FileCount() int {
	return len(g.files)
}

// EdgeCount returns the number of file to file dependencies.
func (g *Graph) EdgeCount() int {
	g.link()
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// Dependencies returns the files declaring relations path references.
func (g *Graph) Dependencies(path string) []string {
	g.link()
	return g.parents[path]
}

// Dependents returns the files referencing relations path declares.
func (g *Graph) Dependents(path string) []string {
	g.link()
	return g.edges[path]
}

// Referencing returns the files referencing any of relations, including
// files that declare them too.
func (g *Graph) Referencing(relations map[string]bool) []string {
	if len(relations) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(relations))
	for name, ok := range relations {
		if ok {
			wanted[strings.ToLower(name)] = true
		}
	}
	out := make(map[string]bool)
	for file, names := range g.refs {
		for name := range names {
			if wanted[name] {
				out[file] = true
				break
			}
		}
	}
	return sortedKeys(out)
}

// Unresolved returns the relations path references that no file declares.
func (g *Graph) Unresolved(path string) []string {
	out := make(map[string]bool)
	for name := range g.refs[path] {
		if len(g.declares[name]) == 0 {
			out[name] = true
		}
	}
	return sortedKeys(out)
}

// Affected returns the changed files and everything downstream of them.
func (g *Graph) Affected(changed []string) []string {
	g.link()
	affected := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true
		for _, child := range g.edges[id] {
			mark(child)
		}
	}
	for _, id := range changed {
		if g.files[id] {
			mark(id)
		}
	}
	return sortedKeys(affected)
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	g.link()
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string
	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, child := range g.edges[id] {
			if !visited[child] {
				path[child] = id
				if dfs(child) {
					return true
				}
			} else if recStack[child] {
				cyclePath = []string{child}
				for curr := id; curr != child; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{child}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.Files() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// Levels groups files so that every file's dependencies sit in an earlier
// level. Level 0 holds files without dependencies.
func (g *Graph) Levels() ([][]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	assigned := make(map[string]int)
	var level func(id string) int
	level = func(id string) int {
		if l, ok := assigned[id]; ok {
			return l
		}
		l := 0
		for _, parent := range g.parents[id] {
			if pl := level(parent) + 1; pl > l {
				l = pl
			}
		}
		assigned[id] = l
		return l
	}

	maxLevel := -1
	for id := range g.files {
		if l := level(id); l > maxLevel {
			maxLevel = l
		}
	}
	levels := make([][]string, maxLevel+1)
	for id, l := range assigned {
		levels[l] = append(levels[l], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
