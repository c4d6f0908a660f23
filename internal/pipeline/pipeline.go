// Package pipeline schedules parsing, symbol registration and code generation
// for managed files.
//
// A full pass runs in two phases separated by a barrier: every file is read,
// parsed and registered in the symbol table first, then one generation task
// per file runs against the same complete snapshot. Change events re-enter
// the same steps for the affected files only.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sqgen/internal/codegen"
	"github.com/leapstack-labs/sqgen/internal/commit"
	"github.com/leapstack-labs/sqgen/internal/dag"
	"github.com/leapstack-labs/sqgen/internal/sqfile"
	"github.com/leapstack-labs/sqgen/internal/symbols"
	"github.com/leapstack-labs/sqgen/pkg/core"
)

// Parser turns a source file into its AST.
type Parser interface {
	Parse(file core.SourceFile) (*sqfile.File, error)
}

// Generator renders the artifact of one parsed file.
type Generator interface {
	Generate(snap *symbols.Snapshot, file *sqfile.File) (codegen.Output, error)
	OutputPath(sourcePath string) string
}

// Writer applies generated output. *commit.Committer implements it.
type Writer interface {
	Commit(ctx context.Context, target commit.Target, newText string) (bool, error)
	Remove(ctx context.Context, path string, guard func() bool) error
}

// Recorder persists generation history.
type Recorder interface {
	RecordGeneration(ctx context.Context, g core.Generation) error
}

// Pool runs tasks concurrently. *errgroup.Group implements it.
type Pool interface {
	Go(f func() error)
	Wait() error
}

// Options configures a Pipeline.
type Options struct {
	Extension string      // Managed file extension, default ".sq"
	Workers   int         // Concurrency limit, default runtime.NumCPU()
	NewPool   func() Pool // Overrides the default errgroup pool
	Recorder  Recorder    // Optional generation history
	Logger    *slog.Logger
}

// Pipeline owns the symbol table and drives generation.
type Pipeline struct {
	table    *symbols.Table
	parser   Parser
	gen      Generator
	writer   Writer
	recorder Recorder
	ext      string
	newPool  func() Pool
	logger   *slog.Logger

	mu     sync.Mutex
	parsed map[string]parsedFile
	failed map[string]bool
}

// parsedFile is the latest registered read of a path. ast is nil when the
// content failed to parse.
type parsedFile struct {
	src core.SourceFile
	ast *sqfile.File
}

// New creates a Pipeline.
func New(table *symbols.Table, parser Parser, gen Generator, writer Writer, opts Options) *Pipeline {
	if opts.Extension == "" {
		opts.Extension = ".sq"
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.NewPool == nil {
		workers := opts.Workers
		opts.NewPool = func() Pool {
			g := new(errgroup.Group)
			g.SetLimit(workers)
			return g
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		table:    table,
		parser:   parser,
		gen:      gen,
		writer:   writer,
		recorder: opts.Recorder,
		ext:      opts.Extension,
		newPool:  opts.NewPool,
		logger:   opts.Logger,
		parsed:   make(map[string]parsedFile),
		failed:   make(map[string]bool),
	}
}

// Table returns the symbol table the pipeline maintains.
func (p *Pipeline) Table() *symbols.Table {
	return p.table
}

// Managed reports whether path has the managed extension.
func (p *Pipeline) Managed(path string) bool {
	return core.HasExtension(path, p.ext)
}

// Run processes paths as one pass. No generation task starts before every
// file has been registered. Per-file failures are collected in the result;
// the returned error is non-nil only when ctx ends the pass early.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{RunID: uuid.NewString(), Files: len(paths)}
	t := &tally{res: res}

	p.logger.Debug("pipeline started", "run_id", res.RunID, "files", len(paths))

	loaded, err := p.index(ctx, paths, t)
	if err != nil {
		return t.finish(start), err
	}

	snap := p.table.Snapshot()

	pool := p.newPool()
	for _, pf := range loaded {
		if pf == nil {
			continue
		}
		pool.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.generate(ctx, res.RunID, snap, *pf, t)
			return nil
		})
	}
	err = pool.Wait()

	t.finish(start)
	p.logger.Info("pipeline finished",
		"run_id", res.RunID,
		"files", res.Files,
		"generated", res.Generated,
		"unchanged", res.Unchanged,
		"errors", len(res.Errors),
		"duration", res.Duration)
	return res, err
}

// Index reads, parses and registers paths without generating anything.
func (p *Pipeline) Index(ctx context.Context, paths []string) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{RunID: uuid.NewString(), Files: len(paths)}
	t := &tally{res: res}
	_, err := p.index(ctx, paths, t)
	return t.finish(start), err
}

// index is the first phase of a pass. It returns once every path has been
// registered or has failed.
func (p *Pipeline) index(ctx context.Context, paths []string, t *tally) ([]*parsedFile, error) {
	loaded := make([]*parsedFile, len(paths))
	pool := p.newPool()
	for i, path := range paths {
		pool.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pf, registered, ferr := p.load(core.CleanPath(path))
			if registered {
				t.add(func(r *RunResult) { r.Registered++ })
			}
			if ferr != nil {
				t.fail(ferr)
				p.logger.Warn("file skipped", "path", ferr.Path, "kind", ferr.Kind, "error", ferr.Err)
			}
			loaded[i] = pf
			return nil
		})
	}
	return loaded, pool.Wait()
}

// HandleEvent applies one change event. Created and modified files are
// re-read, re-registered and regenerated together with the files that depend
// on their declarations. Deleted files lose their entry and their artifact.
// Moves are a deletion of the old path plus a creation of the new one.
func (p *Pipeline) HandleEvent(ctx context.Context, ev core.Event) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{RunID: uuid.NewString()}
	t := &tally{res: res}

	touched := make(map[string]bool)
	affected := make(map[string]bool)
	switch ev.Kind {
	case core.EventCreated, core.EventModified:
		if p.Managed(ev.Path) {
			path := core.CleanPath(ev.Path)
			touched[path] = true
			merge(affected, p.update(ctx, path, t))
		}
	case core.EventDeleted:
		for _, path := range p.removedBy(ev.Path) {
			touched[path] = true
			merge(affected, p.remove(ctx, path, t))
		}
	case core.EventMoved:
		if ev.OldPath != "" {
			for _, path := range p.removedBy(ev.OldPath) {
				touched[path] = true
				merge(affected, p.remove(ctx, path, t))
			}
		}
		if p.Managed(ev.Path) {
			path := core.CleanPath(ev.Path)
			touched[path] = true
			merge(affected, p.update(ctx, path, t))
		}
	}
	merge(touched, affected)
	res.Files = len(touched)
	if len(affected) == 0 {
		return t.finish(start), ctx.Err()
	}

	err := p.regenerate(ctx, res.RunID, affected, t)
	t.finish(start)
	p.logger.Info("change applied",
		"event", ev.String(),
		"files", res.Files,
		"generated", res.Generated,
		"removed", res.Removed,
		"errors", len(res.Errors))
	return res, err
}

// removedBy returns the paths a deletion of path removes: path itself when it
// is managed, otherwise every registered file below it, since a removed or
// renamed directory may not be reported file by file.
func (p *Pipeline) removedBy(path string) []string {
	path = core.CleanPath(path)
	if p.Managed(path) {
		return []string{path}
	}
	prefix := path + string(os.PathSeparator)
	var out []string
	for _, file := range p.table.Snapshot().Files() {
		if strings.HasPrefix(file, prefix) {
			out = append(out, file)
		}
	}
	return out
}

// update registers the current content of path and returns the paths to
// regenerate.
func (p *Pipeline) update(ctx context.Context, path string, t *tally) map[string]bool {
	before := p.declaredNames(path)

	pf, registered, ferr := p.load(path)
	if ferr != nil && ferr.Kind == KindRead && errors.Is(ferr.Err, os.ErrNotExist) {
		return p.remove(ctx, path, t)
	}
	if registered {
		t.add(func(r *RunResult) { r.Registered++ })
	}
	if ferr != nil {
		t.fail(ferr)
		p.logger.Warn("file skipped", "path", path, "kind", ferr.Kind, "error", ferr.Err)
	}
	if !registered {
		return nil
	}

	merge(before, p.declaredNames(path))
	affected := p.dependents(before)
	if pf != nil {
		affected[path] = true
	} else {
		delete(affected, path)
	}
	return affected
}

// remove drops path and its artifact and returns the paths to regenerate.
func (p *Pipeline) remove(ctx context.Context, path string, t *tally) map[string]bool {
	names := p.declaredNames(path)
	seq := core.NextSeq()

	p.table.Remove(path, seq)
	p.mu.Lock()
	if cached, ok := p.parsed[path]; ok && cached.src.Seq < seq {
		delete(p.parsed, path)
		delete(p.failed, path)
	}
	p.mu.Unlock()

	out := p.gen.OutputPath(path)
	err := p.writer.Remove(ctx, out, func() bool {
		_, ok := p.table.Get(path)
		return !ok
	})
	switch {
	case errors.Is(err, commit.ErrDiscarded):
		p.logger.Debug("artifact kept, source recreated", "path", path)
	case err != nil:
		t.fail(&FileError{Path: path, Kind: KindCommit, Err: err})
		p.logger.Warn("artifact removal failed", "path", out, "error", err)
	default:
		t.add(func(r *RunResult) { r.Removed++ })
		p.logger.Debug("artifact removed", "path", out)
	}

	affected := p.dependents(names)
	delete(affected, path)
	return affected
}

func (p *Pipeline) regenerate(ctx context.Context, runID string, paths map[string]bool, t *tally) error {
	snap := p.table.Snapshot()

	p.mu.Lock()
	var targets []parsedFile
	for path := range paths {
		if pf, ok := p.parsed[path]; ok && pf.ast != nil {
			targets = append(targets, pf)
		}
	}
	p.mu.Unlock()

	pool := p.newPool()
	for _, pf := range targets {
		pool.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.generate(ctx, runID, snap, pf, t)
			return nil
		})
	}
	return pool.Wait()
}

// load reads, parses and registers path. It returns the parsed file when it
// is ready for generation and whether the table accepted the registration.
// Unparseable files are registered with no symbols.
func (p *Pipeline) load(path string) (*parsedFile, bool, *FileError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, &FileError{Path: path, Kind: KindRead, Err: err}
	}
	src := core.NewSourceFile(path, content)

	ast, perr := p.parser.Parse(src)
	var syms []core.Symbol
	if perr == nil {
		syms = symbols.Extract(ast)
	} else {
		ast = nil
	}

	if !p.table.Register(src, syms) {
		p.logger.Debug("registration superseded", "path", path, "seq", src.Seq)
		return nil, false, nil
	}

	pf := parsedFile{src: src, ast: ast}
	p.mu.Lock()
	if cached, ok := p.parsed[path]; !ok || cached.src.Seq < src.Seq {
		p.parsed[path] = pf
	}
	p.mu.Unlock()

	if perr != nil {
		return nil, true, &FileError{Path: path, Kind: KindParse, Err: perr}
	}
	p.logger.Debug("file registered", "path", path, "symbols", len(syms))
	return &pf, true, nil
}

func (p *Pipeline) generate(ctx context.Context, runID string, snap *symbols.Snapshot, pf parsedFile, t *tally) {
	path := pf.src.Path

	out, err := p.gen.Generate(snap, pf.ast)
	if err != nil {
		p.setFailed(path, true)
		t.fail(&FileError{Path: path, Kind: KindGenerate, Err: err})
		p.logger.Warn("generation failed", "path", path, "error", err)
		return
	}

	written, err := p.writer.Commit(ctx, commit.Target{
		Path:  out.Path,
		Guard: func() bool { return p.table.Current(path, pf.src.Seq) },
	}, string(out.Content))
	switch {
	case errors.Is(err, commit.ErrDiscarded):
		t.add(func(r *RunResult) { r.Discarded++ })
		p.logger.Debug("output discarded", "path", path, "seq", pf.src.Seq)
		return
	case err != nil:
		t.fail(&FileError{Path: path, Kind: KindCommit, Err: err})
		p.logger.Warn("commit failed", "path", path, "error", err)
		return
	}

	p.setFailed(path, false)
	t.add(func(r *RunResult) {
		if written {
			r.Generated++
		} else {
			r.Unchanged++
		}
	})
	p.logger.Debug("file generated", "path", path, "output", out.Path, "written", written)

	if p.recorder != nil {
		rec := core.Generation{
			RunID:   runID,
			Source:  path,
			Stamp:   pf.src.Stamp,
			Output:  out.Path,
			Written: written,
			At:      time.Now().UTC(),
		}
		if err := p.recorder.RecordGeneration(ctx, rec); err != nil {
			p.logger.Warn("failed to record generation", "path", path, "error", err)
		}
	}
}

func (p *Pipeline) setFailed(path string, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if failed {
		p.failed[path] = true
	} else {
		delete(p.failed, path)
	}
}

// declaredNames returns the lowercased relation names path declares.
func (p *Pipeline) declaredNames(path string) map[string]bool {
	names := make(map[string]bool)
	if e, ok := p.table.Get(path); ok {
		for _, sym := range e.Symbols {
			if sym.Kind == core.SymbolTable || sym.Kind == core.SymbolView {
				names[strings.ToLower(sym.Name)] = true
			}
		}
	}
	return names
}

// dependents returns the files referencing any of names, everything
// downstream of those, and the files whose last generation failed, which may
// now succeed.
func (p *Pipeline) dependents(names map[string]bool) map[string]bool {
	g := p.Graph()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.failed))
	for path := range p.failed {
		out[path] = true
	}
	for _, path := range g.Affected(g.Referencing(names)) {
		out[path] = true
	}
	return out
}

// Graph returns the dependency graph of the registered files as of the
// latest parse of each.
func (p *Pipeline) Graph() *dag.Graph {
	p.mu.Lock()
	parsed := make(map[string]*sqfile.File, len(p.parsed))
	for path, pf := range p.parsed {
		parsed[path] = pf.ast
	}
	p.mu.Unlock()

	g := dag.NewGraph()
	for path, ast := range parsed {
		var refs []string
		if ast != nil {
			for _, stmt := range ast.Statements {
				refs = append(refs, stmt.Tables...)
			}
		}
		var decls []string
		for name := range p.declaredNames(path) {
			decls = append(decls, name)
		}
		g.AddFile(path, decls, refs)
	}
	return g
}

func merge(dst, src map[string]bool) {
	for k, v := range src {
		if v {
			dst[k] = true
		}
	}
}

// tally accumulates a RunResult from concurrent tasks.
type tally struct {
	mu  sync.Mutex
	res *RunResult
}

func (t *tally) add(fn func(r *RunResult)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.res)
}

func (t *tally) fail(e *FileError) {
	t.add(func(r *RunResult) { r.Errors = append(r.Errors, e) })
}

func (t *tally) finish(start time.Time) *RunResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	sort.SliceStable(t.res.Errors, func(i, j int) bool {
		return t.res.Errors[i].Path < t.res.Errors[j].Path
	})
	t.res.Duration = time.Since(start)
	return t.res
}
