package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/sqgen/internal/config"
	"github.com/leapstack-labs/sqgen/internal/notify"
	"github.com/leapstack-labs/sqgen/internal/pipeline"
	"github.com/leapstack-labs/sqgen/internal/reconcile"
	"github.com/leapstack-labs/sqgen/internal/testutil"
	"github.com/leapstack-labs/sqgen/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	playerSQ = "CREATE TABLE player (id INTEGER NOT NULL PRIMARY KEY, name TEXT NOT NULL);\n" +
		"by_name: SELECT * FROM player WHERE name = ?;\n"
	gradle = "buildscript {\n  dependencies {\n    classpath \"com.squareup.sqldelight:gradle-plugin:1.0.0\"\n  }\n}\n"
)

type recorder struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.notes...)
}

type project struct {
	root  string
	cfg   *config.ProjectConfig
	notes *recorder
}

func newProject(t *testing.T, files map[string]string) *project {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	cfg, err := config.LoadFromDir(root)
	require.NoError(t, err)
	cfg.StatePath = ":memory:"
	return &project{root: root, cfg: cfg, notes: &recorder{}}
}

func (p *project) engine(t *testing.T, running string, events EventSource) *Engine {
	t.Helper()
	eng, err := New(Config{
		Project:        p.cfg,
		RunningVersion: running,
		Notifier:       p.notes,
		Events:         events,
		Logger:         testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func TestNew_RequiresProject(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	cfg := config.Default(t.TempDir())
	cfg.Extension = "sq"
	_, err = New(Config{Project: cfg})
	assert.ErrorContains(t, err, "extension")
}

func TestOpen_GeneratesAndReportsOutdatedPlugin(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/player.sq": playerSQ,
		"build.gradle":  gradle,
	})
	eng := p.engine(t, "1.2.0", nil)

	res, err := eng.Open(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Run.Files)
	assert.Equal(t, 1, res.Run.Generated)
	assert.Empty(t, res.Run.Errors)
	assert.FileExists(t, filepath.Join(p.root, "gen", "player.go"))

	require.NotNil(t, res.Reconcile)
	assert.Equal(t, reconcile.VerdictOutdated, res.Reconcile.Verdict)
	notes := p.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, reconcile.TitleOutdated, notes[0].Title)

	history, err := eng.Store().LatestGenerations(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.Run.RunID, history[0].RunID)
	assert.True(t, history[0].Written)
}

func TestOpen_UpdateRewritesDeclaration(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/player.sq": playerSQ,
		"build.gradle":  gradle,
	})
	eng := p.engine(t, "1.2.0", nil)
	ctx := context.Background()

	res, err := eng.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, res.Reconcile, reconcile.ActionUpdate))

	data, err := os.ReadFile(filepath.Join(p.root, "build.gradle"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"com.squareup.sqldelight:gradle-plugin:1.2.0"`)

	ev, err := eng.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.VerdictCompatible, ev.Verdict)
}

func TestOpen_IgnoreSuppressesUntilNewerVersion(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/player.sq": playerSQ,
		"build.gradle":  gradle,
	})
	eng := p.engine(t, "1.2.0", nil)
	ctx := context.Background()

	res, err := eng.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, eng.Apply(ctx, res.Reconcile, reconcile.ActionIgnore))

	res, err = eng.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.VerdictSuppressed, res.Reconcile.Verdict)
	assert.Len(t, p.notes.all(), 1, "suppressed verdict does not notify")
	assert.Equal(t, 1, res.Run.Unchanged)
}

func TestOpen_PluginMissing(t *testing.T) {
	p := newProject(t, map[string]string{"src/player.sq": playerSQ})
	eng := p.engine(t, "1.2.0", nil)

	res, err := eng.Open(context.Background())
	require.NoError(t, err)

	assert.Equal(t, reconcile.VerdictPluginMissing, res.Reconcile.Verdict)
	notes := p.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, reconcile.TitleMissing, notes[0].Title)
	assert.Equal(t, core.SeverityError, notes[0].Severity)
	assert.Empty(t, notes[0].Actions)
}

func TestOpen_ReconcileDisabled(t *testing.T) {
	p := newProject(t, map[string]string{"src/player.sq": playerSQ})
	p.cfg.Reconcile.Disabled = true
	eng := p.engine(t, "1.2.0", nil)

	res, err := eng.Open(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Reconcile)
	assert.Empty(t, p.notes.all())
}

func TestOpen_ConfiguredRunningVersionWins(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/player.sq": playerSQ,
		"build.gradle":  gradle,
	})
	p.cfg.Reconcile.RunningVersion = "1.0.0"
	eng := p.engine(t, "9.9.9", nil)

	res, err := eng.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reconcile.VerdictCompatible, res.Reconcile.Verdict)
}

func TestOpen_MissingSourceDir(t *testing.T) {
	p := newProject(t, nil)
	eng := p.engine(t, "1.0.0", nil)

	res, err := eng.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Run.Files)
	assert.Equal(t, reconcile.VerdictCompatible, res.Reconcile.Verdict)
}

type chanSource struct {
	ch chan core.Event
}

func (s *chanSource) Subscribe(context.Context) (<-chan core.Event, error) {
	return s.ch, nil
}

func TestWatch_HandlesEvents(t *testing.T) {
	p := newProject(t, map[string]string{"src/player.sq": playerSQ})
	p.cfg.Reconcile.Disabled = true
	src := &chanSource{ch: make(chan core.Event)}
	eng := p.engine(t, "1.0.0", src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := eng.Open(ctx)
	require.NoError(t, err)

	results := make(chan *pipeline.RunResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- eng.Watch(ctx, func(_ core.Event, res *pipeline.RunResult) {
			results <- res
		})
	}()

	teamPath := filepath.Join(p.cfg.SourceDir, "team.sq")
	require.NoError(t, os.WriteFile(teamPath, []byte("CREATE TABLE team (id INTEGER);\n"), 0o644))
	src.ch <- core.Event{Kind: core.EventCreated, Path: teamPath}

	select {
	case res := <-results:
		assert.Equal(t, 1, res.Generated)
	case <-time.After(5 * time.Second):
		t.Fatal("event not handled")
	}
	assert.FileExists(t, filepath.Join(p.cfg.OutputDir, "team.go"))

	require.NoError(t, os.Remove(teamPath))
	src.ch <- core.Event{Kind: core.EventDeleted, Path: teamPath}
	select {
	case res := <-results:
		assert.Equal(t, 1, res.Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("event not handled")
	}
	assert.NoFileExists(t, filepath.Join(p.cfg.OutputDir, "team.go"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_ClosedStream(t *testing.T) {
	p := newProject(t, nil)
	src := &chanSource{ch: make(chan core.Event)}
	close(src.ch)
	eng := p.engine(t, "1.0.0", src)

	assert.NoError(t, eng.Watch(context.Background(), nil))
}

func TestWatch_Fsnotify(t *testing.T) {
	p := newProject(t, map[string]string{"src/player.sq": playerSQ})
	p.cfg.Reconcile.Disabled = true
	eng := p.engine(t, "1.0.0", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := eng.Open(ctx)
	require.NoError(t, err)

	go func() { _ = eng.Watch(ctx, nil) }()

	out := filepath.Join(p.cfg.OutputDir, "team.go")
	path := filepath.Join(p.cfg.SourceDir, "team.sq")
	require.Eventually(t, func() bool {
		// Rewrite until the watcher has registered the directory.
		_ = os.WriteFile(path, []byte("CREATE TABLE team (id INTEGER);\n"), 0o644)
		_, err := os.Stat(out)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
}

func TestIndex_BuildsGraph(t *testing.T) {
	p := newProject(t, map[string]string{
		"src/player.sq": playerSQ,
		"src/stats.sq":  "top: SELECT name FROM player WHERE id > ?;\n",
	})
	eng := p.engine(t, "1.0.0", nil)

	res, err := eng.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Registered)
	assert.NoDirExists(t, p.cfg.OutputDir)

	g := eng.Graph()
	assert.Equal(t, []string{filepath.Join(p.cfg.SourceDir, "stats.sq")},
		g.Dependents(filepath.Join(p.cfg.SourceDir, "player.sq")))
}
