package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"
const harnessGolden = "../harness/testdata/golden"

func runTestCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"test"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestTestCommand_AllScenariosPass(t *testing.T) {
	out, err := runTestCommand(t, harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ add_auto_accept")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_FilterJSON(t *testing.T) {
	out, err := runTestCommand(t, harnessScenarios, "--filter", "remove_*", "--format", "json")
	require.NoError(t, err, out)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "remove_cascade", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	golden := t.TempDir()
	out, err := runTestCommand(t, harnessScenarios, "--filter", "add_*", "--golden", golden, "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "(golden updated)")

	written, err := os.ReadFile(filepath.Join(golden, "add_auto_accept.golden"))
	require.NoError(t, err)
	expected, err := os.ReadFile(filepath.Join(harnessGolden, "add_auto_accept.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(expected), string(written))
}

func TestTestCommand_Failures(t *testing.T) {
	dir := t.TempDir()
	scenario := `
name: broken
description: "Expects the wrong outcome"
accounts:
  - id: alice
steps:
  - { as: alice, op: accept_all }
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(scenario), 0644))

	out, err := runTestCommand(t, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "BAD_REQUEST")

	_, err = runTestCommand(t, filepath.Join(dir, "missing"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runTestCommand(t, dir, "--update")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = runTestCommand(t, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
