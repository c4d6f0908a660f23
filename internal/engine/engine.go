// Package engine wires the sqgen components into a project session.
// It handles the initial pass over all managed files, version reconciliation
// and following change events afterwards.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqgen/internal/codegen"
	"github.com/leapstack-labs/sqgen/internal/commit"
	"github.com/leapstack-labs/sqgen/internal/config"
	"github.com/leapstack-labs/sqgen/internal/dag"
	"github.com/leapstack-labs/sqgen/internal/notify"
	"github.com/leapstack-labs/sqgen/internal/pipeline"
	"github.com/leapstack-labs/sqgen/internal/reconcile"
	"github.com/leapstack-labs/sqgen/internal/sqfile"
	"github.com/leapstack-labs/sqgen/internal/state"
	"github.com/leapstack-labs/sqgen/internal/symbols"
	"github.com/leapstack-labs/sqgen/internal/watch"
	"github.com/leapstack-labs/sqgen/pkg/core"
)

// Config holds engine configuration.
type Config struct {
	// Project is the loaded project configuration (required).
	Project *config.ProjectConfig

	// RunningVersion is compared against the declared plugin version when
	// Project.Reconcile.RunningVersion is empty.
	RunningVersion string

	// Notifier receives reconciliation notifications (optional).
	Notifier notify.Notifier

	// Store overrides the SQLite state store opened at Project.StatePath.
	// The engine does not close a store it did not open.
	Store state.Store

	// Files and Events override directory enumeration and fsnotify.
	Files  FileSource
	Events EventSource

	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine is an open sqgen project.
type Engine struct {
	cfg        *config.ProjectConfig
	logger     *slog.Logger
	store      state.Store
	ownsStore  bool
	exec       *commit.Serial
	committer  *commit.Committer
	pipeline   *pipeline.Pipeline
	reconciler *reconcile.Reconciler
	hub        *notify.Hub
	files      FileSource
	events     EventSource
}

// OpenResult summarizes Engine.Open.
type OpenResult struct {
	Run *pipeline.RunResult

	// Reconcile is nil when the version check is disabled or failed.
	Reconcile *reconcile.Evaluation
}

// New creates an engine. Nothing is read or generated until Open.
func New(cfg Config) (*Engine, error) {
	if cfg.Project == nil {
		return nil, fmt.Errorf("project configuration is required")
	}
	if err := cfg.Project.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project configuration: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := cfg.Project

	gen, err := codegen.New(codegen.Options{
		SourceRoot: p.SourceDir,
		OutputDir:  p.OutputDir,
		Package:    p.Package,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	store, ownsStore := cfg.Store, false
	if store == nil {
		store, err = openStore(p.StatePath, logger)
		if err != nil {
			return nil, err
		}
		ownsStore = true
	}

	e := &Engine{
		cfg:       p,
		logger:    logger,
		store:     store,
		ownsStore: ownsStore,
		exec:      commit.NewSerial(),
		hub:       notify.NewHub(),
		files:     cfg.Files,
		events:    cfg.Events,
	}
	if cfg.Notifier != nil {
		e.hub.Attach(cfg.Notifier)
	}
	e.committer = commit.New(e.exec, logger)

	skipDirs := []string{p.OutputDir}
	if p.StatePath != ":memory:" {
		skipDirs = append(skipDirs, filepath.Dir(p.StatePath))
	}

	e.pipeline = pipeline.New(symbols.NewTable(), sqfile.NewParser(), gen, e.committer, pipeline.Options{
		Extension: p.Extension,
		Workers:   p.Workers,
		Recorder:  store,
		Logger:    logger,
	})

	running := p.Reconcile.RunningVersion
	if running == "" {
		running = cfg.RunningVersion
	}
	e.reconciler = reconcile.New(reconcile.Options{
		Project:        p.ProjectRoot,
		Root:           p.ProjectRoot,
		RunningVersion: running,
		Scanner:        reconcile.NewScanner(p.Reconcile.Prefix, p.Reconcile.ConfigFiles, p.Extension, skipDirs),
		Logger:         logger,
	}, store, e.hub, e.committer)

	if e.files == nil {
		e.files = &DirSource{Root: p.SourceDir, Extension: p.Extension, SkipDirs: skipDirs}
	}
	if e.events == nil {
		e.events = watch.New(p.SourceDir, watch.Options{
			Extension:    p.Extension,
			SkipDirs:     skipDirs,
			RenameWindow: p.Watch.RenameWindow,
			Logger:       logger,
		})
	}
	return e, nil
}

func openStore(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

// Close stops the commit executor and closes the state store if the engine
// opened it.
func (e *Engine) Close() error {
	e.exec.Close()
	if e.ownsStore {
		return e.store.Close()
	}
	return nil
}

// Open runs the initial pass: every managed file is registered, then
// generated, then the plugin version is reconciled.
func (e *Engine) Open(ctx context.Context) (*OpenResult, error) {
	run, err := e.Generate(ctx)
	if err != nil {
		return nil, err
	}
	res := &OpenResult{Run: run}

	if e.cfg.Reconcile.Disabled {
		return res, nil
	}
	ev, err := e.reconciler.Reconcile(ctx)
	if err != nil {
		// Reconciliation never fails the session.
		e.logger.Warn("version reconciliation failed", "error", err)
		return res, nil
	}
	res.Reconcile = ev
	return res, nil
}

// Generate enumerates the managed files and runs a full pipeline pass.
func (e *Engine) Generate(ctx context.Context) (*pipeline.RunResult, error) {
	paths, err := e.managedFiles(ctx)
	if err != nil {
		return nil, err
	}
	return e.pipeline.Run(ctx, paths)
}

// Index registers every managed file without generating.
func (e *Engine) Index(ctx context.Context) (*pipeline.RunResult, error) {
	paths, err := e.managedFiles(ctx)
	if err != nil {
		return nil, err
	}
	return e.pipeline.Index(ctx, paths)
}

// Graph returns the dependency graph of the files parsed so far.
func (e *Engine) Graph() *dag.Graph {
	return e.pipeline.Graph()
}

func (e *Engine) managedFiles(ctx context.Context) ([]string, error) {
	var paths []string
	if err := e.files.ForEachManagedFile(ctx, func(path string) error {
		paths = append(paths, path)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to enumerate source files: %w", err)
	}
	e.logger.Debug("enumerated source files", "count", len(paths), "source_dir", e.cfg.SourceDir)
	return paths, nil
}

// Watch follows change events until ctx is done. Each handled event is
// reported to onResult, which may be nil. Watch returns nil on cancellation.
func (e *Engine) Watch(ctx context.Context, onResult func(core.Event, *pipeline.RunResult)) error {
	events, err := e.events.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", e.cfg.SourceDir, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			res, err := e.pipeline.HandleEvent(ctx, ev)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.logger.Warn("failed to handle change", "event", ev.String(), "error", err)
				continue
			}
			if onResult != nil {
				onResult(ev, res)
			}
		}
	}
}

// Evaluate scans the project and decides the plugin version verdict
// without notifying.
func (e *Engine) Evaluate(ctx context.Context) (*reconcile.Evaluation, error) {
	return e.reconciler.Evaluate(ctx)
}

// Reconcile evaluates the plugin version and notifies on a mismatch.
func (e *Engine) Reconcile(ctx context.Context) (*reconcile.Evaluation, error) {
	return e.reconciler.Reconcile(ctx)
}

// Apply performs a notification action for an outdated evaluation.
func (e *Engine) Apply(ctx context.Context, ev *reconcile.Evaluation, action reconcile.Action) error {
	return e.reconciler.Apply(ctx, ev, action)
}

// Store returns the state store.
func (e *Engine) Store() state.Store {
	return e.store
}

// Hub returns the notification hub.
func (e *Engine) Hub() *notify.Hub {
	return e.hub
}

// Pipeline returns the generation pipeline.
func (e *Engine) Pipeline() *pipeline.Pipeline {
	return e.pipeline
}

// Config returns the project configuration.
func (e *Engine) Config() *config.ProjectConfig {
	return e.cfg
}
