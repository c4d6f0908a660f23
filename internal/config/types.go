// Package config provides shared project configuration for sqgen.
// It is decoupled from CLI concerns so the engine and tests can load a
// project without cobra or flags.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ReconcileConfig configures the build plugin version check.
type ReconcileConfig struct {
	// Prefix is the quoted literal prefix preceding the version,
	// e.g. "com.squareup.sqldelight:gradle-plugin:".
	Prefix string `koanf:"prefix"`

	// ConfigFiles are the file names scanned for the declaration.
	ConfigFiles []string `koanf:"config_files"`

	// RunningVersion overrides the version compared against the declaration.
	// Empty means the sqgen build version.
	RunningVersion string `koanf:"running_version"`

	// Disabled skips the check entirely.
	Disabled bool `koanf:"disabled"`
}

// WatchConfig configures the change listener.
type WatchConfig struct {
	RenameWindow time.Duration `koanf:"rename_window"`
}

// ProjectConfig holds the configuration needed to open a project.
type ProjectConfig struct {
	SourceDir string          `koanf:"source_dir"`
	OutputDir string          `koanf:"output_dir"`
	Extension string          `koanf:"extension"`
	Package   string          `koanf:"package"`
	StatePath string          `koanf:"state_path"`
	Workers   int             `koanf:"workers"`
	Reconcile ReconcileConfig `koanf:"reconcile"`
	Watch     WatchConfig     `koanf:"watch"`

	// ProjectRoot is where relative paths are resolved from. Not loaded
	// from the config file.
	ProjectRoot string `koanf:"-"`
}

// Resolve makes relative paths absolute against the project root.
func (c *ProjectConfig) Resolve() {
	if c.ProjectRoot == "" {
		c.ProjectRoot = "."
	}
	if abs, err := filepath.Abs(c.ProjectRoot); err == nil {
		c.ProjectRoot = abs
	}
	c.SourceDir = resolvePathRelativeTo(c.SourceDir, c.ProjectRoot)
	c.OutputDir = resolvePathRelativeTo(c.OutputDir, c.ProjectRoot)
	if c.StatePath != ":memory:" {
		c.StatePath = resolvePathRelativeTo(c.StatePath, c.ProjectRoot)
	}
}

// Validate checks if the configuration is usable.
func (c *ProjectConfig) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source_dir is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if !strings.HasPrefix(c.Extension, ".") || len(c.Extension) < 2 {
		return fmt.Errorf("extension must start with a dot, got %q", c.Extension)
	}
	if filepath.Clean(c.SourceDir) == filepath.Clean(c.OutputDir) {
		return fmt.Errorf("output_dir must differ from source_dir")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
