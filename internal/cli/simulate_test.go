package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../harness/testdata/scenarios"

func writeScenario(t *testing.T, name, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestSimulate_DirectoryPasses(t *testing.T) {
	out, _, err := execute(t, "simulate", scenarioDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ board_lifecycle")
	assert.Contains(t, out, "✓ board_restart")
	assert.Contains(t, out, "✓ sticky_repost")
	assert.Contains(t, out, "3 passed, 0 failed")
}

func TestSimulate_JSONReport(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "simulate",
		filepath.Join(scenarioDir, "board_restart.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   SimulationReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)

	sr := resp.Data.Scenarios[0]
	assert.Equal(t, "board_restart", sr.Name)
	assert.True(t, sr.Pass)
	assert.Equal(t, 1, sr.Live)
	assert.NotEmpty(t, sr.Trace)
}

func TestSimulate_DuplicatePathsRunOnce(t *testing.T) {
	path := filepath.Join(scenarioDir, "sticky_repost.yaml")
	out, _, err := execute(t, "simulate", path, scenarioDir)
	require.NoError(t, err)
	assert.Contains(t, out, "3 passed, 0 failed")
}

func TestSimulate_FailingScenario(t *testing.T) {
	path := writeScenario(t, "wrong.yaml", `
name: wrong
description: "expects the wrong outcome"
board:
  channel_id: board
sources:
  - id: s1
    channel: general
    author: alice
    content: "hello"
steps:
  - do: react
    message: s1
    count: 4
    expect: updated
`)

	out, _, err := execute(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeScenarioFailed)
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "expected outcome updated, got created")
	assert.Contains(t, out, "0 passed, 1 failed")
}

func TestSimulate_InvalidScenario(t *testing.T) {
	path := writeScenario(t, "bad.yaml", "name: bad\ndescription: x\nsteps:\n  - do: dance\n")

	out, _, err := execute(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestSimulate_MissingPath(t *testing.T) {
	out, _, err := execute(t, "simulate", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestSimulate_EmptyDirectory(t *testing.T) {
	_, _, err := execute(t, "simulate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no scenario files found")
}

func TestSimulate_Metrics(t *testing.T) {
	out, errOut, err := execute(t, "simulate", "--metrics",
		filepath.Join(scenarioDir, "board_lifecycle.yaml"))
	require.NoError(t, err)

	assert.NotContains(t, out, "husk_reconcile")
	assert.Contains(t, errOut, "# TYPE husk_reconcile_outcomes_total counter")
	assert.Contains(t, errOut, `husk_reconcile_outcomes_total{domain="board",outcome="created"} 2`)
}

func TestExpandScenarioPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	paths, err := expandScenarioPaths([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)
}

func TestSimulate_ConfigDisablesSticky(t *testing.T) {
	cfgPath := writeConfig(t, "husk.yaml", "sticky:\n  enabled: false\n")

	out, _, err := execute(t, "-c", cfgPath, "simulate",
		filepath.Join(scenarioDir, "board_lifecycle.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed")

	out, _, err = execute(t, "-c", cfgPath, "simulate",
		filepath.Join(scenarioDir, "sticky_repost.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "sticky domain is disabled")
}

func TestSimulate_InvalidConfig(t *testing.T) {
	cfgPath := writeConfig(t, "husk.yaml", "lookback: 0\n")

	out, _, err := execute(t, "-c", cfgPath, "simulate", scenarioDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}
