package config

import "time"

// Default configuration values.
const (
	DefaultSourceDir    = "src"
	DefaultOutputDir    = "gen"
	DefaultExtension    = ".sq"
	DefaultPackage      = "db"
	DefaultStateFile    = ".sqgen/state.db"
	DefaultPrefix       = "com.squareup.sqldelight:gradle-plugin:"
	DefaultRenameWindow = 100 * time.Millisecond
)

// DefaultConfigFiles are the build scripts scanned for the plugin version.
var DefaultConfigFiles = []string{"build.gradle", "build.gradle.kts"}

// Defaults returns the default values keyed like the config file, for
// loading as the lowest configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"source_dir":             DefaultSourceDir,
		"output_dir":             DefaultOutputDir,
		"extension":              DefaultExtension,
		"package":                DefaultPackage,
		"state_path":             DefaultStateFile,
		"workers":                0,
		"reconcile.prefix":       DefaultPrefix,
		"reconcile.config_files": DefaultConfigFiles,
		"reconcile.disabled":     false,
		"watch.rename_window":    DefaultRenameWindow.String(),
	}
}

// Default returns a ProjectConfig with default values rooted at root.
func Default(root string) *ProjectConfig {
	cfg := &ProjectConfig{
		SourceDir: DefaultSourceDir,
		OutputDir: DefaultOutputDir,
		Extension: DefaultExtension,
		Package:   DefaultPackage,
		StatePath: DefaultStateFile,
		Reconcile: ReconcileConfig{
			Prefix:      DefaultPrefix,
			ConfigFiles: append([]string(nil), DefaultConfigFiles...),
		},
		Watch:       WatchConfig{RenameWindow: DefaultRenameWindow},
		ProjectRoot: root,
	}
	cfg.Resolve()
	return cfg
}
