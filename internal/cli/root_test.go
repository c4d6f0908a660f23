package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqgen/internal/cli/config"
	"github.com/leapstack-labs/sqgen/internal/cli/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(config.ResetConfig)

	cmd := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRoot_Help(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"generate", "watch", "check", "status", "graph", "init", "version", "completion"} {
		assert.Contains(t, out, name)
	}
}

func TestRoot_Completion(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "sqgen")

	_, _, err = execute(t, "completion", "tcsh")
	assert.Error(t, err)
}

func TestGenerate_OutdatedPlugin(t *testing.T) {
	dir := testutil.SetupTestProject(t, "1.0.0")

	out, errOut, err := execute(t, "--project-dir", dir, "--running-version", "1.2.0", "generate", "--no-prompt")
	require.NoError(t, err)

	assert.Contains(t, out, "2 file(s): 2 generated, 0 unchanged")
	assert.FileExists(t, filepath.Join(dir, "gen", "player.go"))
	assert.FileExists(t, filepath.Join(dir, "gen", "league", "team.go"))
	assert.FileExists(t, filepath.Join(dir, ".sqgen", "state.db"))

	assert.Contains(t, errOut, "Outdated SQLDelight Gradle Plugin")
	assert.Contains(t, errOut, "update")
	testutil.AssertNoANSI(t, errOut)

	out, _, err = execute(t, "--project-dir", dir, "--no-check", "generate")
	require.NoError(t, err)
	assert.Contains(t, out, "2 file(s): 0 generated, 2 unchanged")
}

func TestGenerate_FailingFileFailsCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t, "")
	testutil.WriteFile(t, dir, "src/broken.sq", "orphans: SELECT * FROM nowhere;\n")

	out, errOut, err := execute(t, "--project-dir", dir, "generate", "--no-prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation failed for 1 file(s)")
	assert.Contains(t, out, "broken.sq")
	assert.FileExists(t, filepath.Join(dir, "gen", "player.go"), "other files still generate")
	assert.Contains(t, errOut, "SQLDelight Gradle Plugin Not Found")
}

func TestCheck_UpdateAndIgnore(t *testing.T) {
	dir := testutil.SetupTestProject(t, "1.0.0")

	out, _, err := execute(t, "--project-dir", dir, "--running-version", "1.2.0", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Plugin version: outdated")
	assert.Contains(t, out, "declared: 1.0.0 (build.gradle:3)")

	out, _, err = execute(t, "--project-dir", dir, "--running-version", "1.2.0", "check", "--ignore")
	require.NoError(t, err)
	assert.Contains(t, out, "Suppressed the warning for version 1.2.0")

	out, _, err = execute(t, "--project-dir", dir, "--running-version", "1.2.0", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Plugin version: suppressed")

	out, _, err = execute(t, "--project-dir", dir, "--running-version", "1.3.0", "check", "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated build.gradle to 1.3.0")

	data, err := os.ReadFile(filepath.Join(dir, "build.gradle"))
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildGradle("1.3.0"), string(data))

	out, _, err = execute(t, "--project-dir", dir, "--running-version", "1.3.0", "check", "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to apply")
}

func TestStatus(t *testing.T) {
	dir := testutil.SetupTestProject(t, "")

	out, _, err := execute(t, "--project-dir", dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "no generations recorded")

	_, _, err = execute(t, "--project-dir", dir, "--no-check", "generate")
	require.NoError(t, err)

	out, _, err = execute(t, "--project-dir", dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "player.sq")
	assert.Contains(t, out, filepath.Join("league", "team.sq"))
	assert.Contains(t, out, "(2 files)")

	_, _, err = execute(t, "--project-dir", dir, "status", "--run", "no-such-run")
	require.NoError(t, err)
}

func TestGraph(t *testing.T) {
	dir := testutil.SetupTestProject(t, "")

	out, _, err := execute(t, "--project-dir", dir, "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "Level 0:\n  player.sq\n    used by: "+filepath.Join("league", "team.sq"))
	assert.Contains(t, out, "depends on: player.sq")
	assert.Contains(t, out, "Total: 2 files, 1 dependencies")
	assert.NoDirExists(t, filepath.Join(dir, "gen"))
}

func TestRoot_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "sqgen.yaml", "extension: sq\n")

	_, _, err := execute(t, "--project-dir", dir, "generate")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "extension"), err.Error())
}

func TestRoot_VerboseLogs(t *testing.T) {
	dir := testutil.SetupTestProject(t, "")

	_, errOut, err := execute(t, "--project-dir", dir, "--no-check", "-v", "generate")
	require.NoError(t, err)
	assert.Contains(t, errOut, "level=DEBUG")
	assert.Contains(t, errOut, "pipeline finished")
}
