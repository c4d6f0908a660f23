package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDir_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "src"), cfg.SourceDir)
	assert.Equal(t, filepath.Join(dir, "gen"), cfg.OutputDir)
	assert.Equal(t, filepath.Join(dir, ".sqgen", "state.db"), cfg.StatePath)
	assert.Equal(t, ".sq", cfg.Extension)
	assert.Equal(t, "db", cfg.Package)
	assert.Equal(t, DefaultPrefix, cfg.Reconcile.Prefix)
	assert.Equal(t, DefaultConfigFiles, cfg.Reconcile.ConfigFiles)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.RenameWindow)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromDir_File(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileNameAlt), []byte(`
source_dir: sql
output_dir: /abs/out
package: store
workers: 3
reconcile:
  prefix: "com.example:plugin:"
  config_files: [settings.gradle]
  running_version: 2.0.0
watch:
  rename_window: 250ms
`), 0o644))

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "sql"), cfg.SourceDir)
	assert.Equal(t, "/abs/out", cfg.OutputDir)
	assert.Equal(t, "store", cfg.Package)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "com.example:plugin:", cfg.Reconcile.Prefix)
	assert.Equal(t, []string{"settings.gradle"}, cfg.Reconcile.ConfigFiles)
	assert.Equal(t, "2.0.0", cfg.Reconcile.RunningVersion)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.RenameWindow)
}

func TestLoadFromDir_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("source_dir: [unclosed"), 0o644))

	_, err := LoadFromDir(dir)
	assert.Error(t, err)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("{}"), 0o644))

	assert.Equal(t, root, FindProjectRoot(nested, 10))
	assert.Equal(t, "", FindProjectRoot(nested, 2))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ProjectConfig)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*ProjectConfig) {}},
		{name: "missing source", mutate: func(c *ProjectConfig) { c.SourceDir = "" }, wantErr: "source_dir"},
		{name: "missing output", mutate: func(c *ProjectConfig) { c.OutputDir = "" }, wantErr: "output_dir"},
		{name: "bad extension", mutate: func(c *ProjectConfig) { c.Extension = "sq" }, wantErr: "extension"},
		{name: "same dirs", mutate: func(c *ProjectConfig) { c.OutputDir = c.SourceDir }, wantErr: "must differ"},
		{name: "negative workers", mutate: func(c *ProjectConfig) { c.Workers = -1 }, wantErr: "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
