package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_RecordsMismatches(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: wrong_expectations
description: "Every expectation here is wrong"
accounts:
  - id: alice
  - id: bob
connections:
  - [alice, bob]
steps:
  - as: alice
    op: add
    save: d
    args: { with: bob, amount: "10", currency_code: USD, timestamp: "2024-05-01" }
    expect:
      result: { reverse_accepted: false }
  - as: alice
    op: remove
    args: { id: missing }
  - as: bob
    op: accept_all
    expect: { error: NOT_FOUND }
assertions:
  - { type: debt_count, owner: bob, count: 0 }
  - { type: debt_absent, owner: alice, id: d }
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "steps[0]: result mismatch")
	assert.Contains(t, result.Errors[1], "steps[1]: unexpected error")
	assert.Contains(t, result.Errors[2], "expected error NOT_FOUND, got BAD_REQUEST")
	assert.Contains(t, result.Errors[3], "assertions[0]")
	assert.Contains(t, result.Errors[4], "assertions[1]")

	require.Len(t, result.Trace, 3)
	assert.Equal(t, TraceEvent{Step: "steps[1]", As: "alice", Op: OpRemove, Target: "missing", Outcome: "NOT_FOUND"}, result.Trace[1])
}

func TestRun_LabelsAndAccounts(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: labels
description: "Labels and contacts are exposed on the result"
accounts:
  - id: alice
  - id: bob
connections:
  - [alice, bob]
steps:
  - { as: bob, op: add, save: x, args: { with: alice, amount: "2", currency_code: USD, timestamp: "2024-05-01" } }
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)
	require.Len(t, result.Ledger, 2)

	for _, d := range result.Ledger {
		assert.Equal(t, "x", result.Labels[d.ID])
	}
	accounts := map[string]bool{}
	for _, acc := range result.Accounts {
		accounts[acc] = true
	}
	assert.Equal(t, map[string]bool{"alice": true, "bob": true}, accounts)
}
