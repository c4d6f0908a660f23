// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// PlayerSQ declares a table and a query against it.
const PlayerSQ = `CREATE TABLE player (
  id INTEGER NOT NULL PRIMARY KEY,
  name TEXT NOT NULL
);

by_name: SELECT * FROM player WHERE name = ?;
`

// TeamSQ declares a table and a query joining a table from another file.
const TeamSQ = `CREATE TABLE team (id INTEGER NOT NULL PRIMARY KEY, name TEXT);

roster: SELECT player.name FROM player JOIN team ON team.id = player.id WHERE team.name = ?;
`

// BuildGradle returns a build script declaring the plugin at version.
func BuildGradle(version string) string {
	return "buildscript {\n  dependencies {\n    classpath \"com.squareup.sqldelight:gradle-plugin:" +
		version + "\"\n  }\n}\n"
}

// SetupTestProject creates a temporary project with two source files, a
// config file and, when pluginVersion is not empty, a build script.
func SetupTestProject(t *testing.T, pluginVersion string) string {
	t.Helper()

	tmpDir := t.TempDir()
	files := map[string]string{
		"sqgen.yaml":         "source_dir: src\noutput_dir: gen\nstate_path: .sqgen/state.db\n",
		"src/player.sq":      PlayerSQ,
		"src/league/team.sq": TeamSQ,
	}
	if pluginVersion != "" {
		files["build.gradle"] = BuildGradle(pluginVersion)
	}
	for name, content := range files {
		WriteFile(t, tmpDir, name, content)
	}
	return tmpDir
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}
