package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/sqgen/internal/dag"
	"github.com/leapstack-labs/sqgen/internal/pipeline"
	"github.com/leapstack-labs/sqgen/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandConstruction(t *testing.T) {
	tests := []struct {
		name  string
		use   string
		flags []string
	}{
		{name: "generate", use: "generate", flags: []string{"no-prompt"}},
		{name: "watch", use: "watch", flags: []string{"no-prompt"}},
		{name: "check", use: "check", flags: []string{"update", "ignore"}},
		{name: "status", use: "status", flags: []string{"run"}},
		{name: "init", use: "init [directory]", flags: []string{"force"}},
		{name: "graph", use: "graph"},
	}
	constructors := map[string]func() *cobra.Command{
		"generate": NewGenerateCommand,
		"watch":    NewWatchCommand,
		"check":    NewCheckCommand,
		"status":   NewStatusCommand,
		"init":     NewInitCommand,
		"graph":    NewGraphCommand,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := constructors[tt.name]()
			assert.Equal(t, tt.use, cmd.Use)
			assert.NotEmpty(t, cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestGenerateCommand_Alias(t *testing.T) {
	cmd := NewGenerateCommand()
	require.NotEmpty(t, cmd.Aliases)
	assert.Equal(t, "gen", cmd.Aliases[0])
}

func TestCheckCommand_FlagsExclusive(t *testing.T) {
	cmd := NewCheckCommand()
	cmd.SetArgs([]string{"--update", "--ignore"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut []string
	}{
		{name: "default version", version: "0.1.0", wantOut: []string{"sqgen v0.1.0", "SQL"}},
		{name: "dev version", version: "dev", wantOut: []string{"sqgen vdev"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			require.NoError(t, cmd.Execute())
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name:      "init empty directory",
			wantFiles: []string{"sqgen.yaml", ".gitignore", "src/player.sq"},
		},
		{
			name: "existing config without force",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "sqgen.yaml"), []byte("existing"), 0o600))
			},
			wantErr: true,
		},
		{
			name: "existing config with force",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "sqgen.yaml"), []byte("existing"), 0o600))
			},
			args:      []string{"--force"},
			wantFiles: []string{"sqgen.yaml", "src/player.sq"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, dir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(append([]string{dir}, tt.args...))

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, f := range tt.wantFiles {
				assert.FileExists(t, filepath.Join(dir, f))
			}
			data, err := os.ReadFile(filepath.Join(dir, "sqgen.yaml"))
			require.NoError(t, err)
			assert.Contains(t, string(data), "source_dir: src")
			assert.Contains(t, buf.String(), "sqgen project initialized")
		})
	}
}

func TestPrintRunResult(t *testing.T) {
	src := t.TempDir()
	res := &pipeline.RunResult{
		Files:     3,
		Generated: 1,
		Unchanged: 1,
		Removed:   1,
		Errors: []*pipeline.FileError{
			{Path: filepath.Join(src, "bad.sq"), Kind: pipeline.KindParse, Err: errors.New("unexpected token")},
		},
		Duration: 1500 * time.Microsecond,
	}

	buf := new(bytes.Buffer)
	printRunResult(buf, res, src)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "3 file(s): 1 generated, 1 unchanged, 1 removed, 1 failed in 2ms", lines[0])
	assert.Equal(t, "  bad.sq: unexpected token", lines[1])
}

func TestRenderGenerations(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")

	buf := new(bytes.Buffer)
	renderGenerations(buf, nil, src, root)
	assert.Contains(t, buf.String(), "no generations recorded")

	buf.Reset()
	renderGenerations(buf, []core.Generation{{
		RunID:   "0123456789abcdef",
		Source:  filepath.Join(src, "player.sq"),
		Stamp:   0xabc,
		Output:  filepath.Join(root, "gen", "player.go"),
		Written: true,
		At:      time.Now(),
	}}, src, root)

	out := buf.String()
	assert.Contains(t, out, "player.sq")
	assert.Contains(t, out, filepath.Join("gen", "player.go"))
	assert.Contains(t, out, "0000000000000abc")
	assert.Contains(t, out, "01234567")
	assert.Contains(t, out, "(1 files)")
}

func TestRenderGraph(t *testing.T) {
	src := t.TempDir()
	path := func(name string) string { return filepath.Join(src, name) }

	g := dag.NewGraph()
	g.AddFile(path("team.sq"), []string{"team"}, nil)
	g.AddFile(path("player.sq"), []string{"player"}, []string{"team", "coach"})

	buf := new(bytes.Buffer)
	renderGraph(buf, g, src)
	out := buf.String()

	assert.Contains(t, out, "Level 0:\n  team.sq\n    used by: player.sq")
	assert.Contains(t, out, "Level 1:\n  player.sq\n    depends on: team.sq\n    unresolved: coach")
	assert.Contains(t, out, "Total: 2 files, 1 dependencies")

	g.AddFile(path("team.sq"), nil, []string{"player"})
	buf.Reset()
	renderGraph(buf, g, src)
	assert.Contains(t, buf.String(), "cycle detected")
}
