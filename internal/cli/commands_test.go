package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes one command line against db and returns stdout.
func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, db, args...)
	require.NoError(t, err, out)
	return out
}

// runJSON executes with --format json and decodes the data payload.
func runJSON(t *testing.T, db string, data any, args ...string) {
	t.Helper()
	out := mustRun(t, db, append([]string{"--format", "json"}, args...)...)
	resp := struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, data))
}

// setupPair creates alice and bob, connected, and returns alice's user for
// bob and bob's user for alice.
func setupPair(t *testing.T) (db, aliceBob, bobAlice string) {
	t.Helper()
	db = filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("SPLITLEDGER_LOG_LEVEL", "error")

	assert.Contains(t, mustRun(t, db, "account", "create", "alice@example.com", "--id", "alice"), "Created account alice")
	mustRun(t, db, "account", "create", "bob@example.com", "--id", "bob")

	var conn struct {
		AUserID string `json:"a_user_id"`
		BUserID string `json:"b_user_id"`
	}
	runJSON(t, db, &conn, "--as", "alice", "account", "connect", "bob")
	require.NotEmpty(t, conn.AUserID)
	require.NotEmpty(t, conn.BUserID)
	return db, conn.AUserID, conn.BUserID
}

func TestCLI_AddListRemove(t *testing.T) {
	db, aliceBob, _ := setupPair(t)

	var added struct {
		ID              string `json:"id"`
		ReverseAccepted bool   `json:"reverse_accepted"`
	}
	runJSON(t, db, &added, "--as", "alice", "debt", "add",
		"--user", aliceBob, "--amount", "-12.5", "--currency", "EUR",
		"--timestamp", "2024-05-01", "--note", "lunch")
	assert.True(t, added.ReverseAccepted)

	var bobs []struct {
		ID     string          `json:"id"`
		Amount decimal.Decimal `json:"amount"`
		Note   string          `json:"note"`
	}
	runJSON(t, db, &bobs, "--as", "bob", "debt", "list")
	require.Len(t, bobs, 1)
	assert.Equal(t, added.ID, bobs[0].ID)
	assert.True(t, decimal.RequireFromString("12.50").Equal(bobs[0].Amount))
	assert.Empty(t, bobs[0].Note, "notes are never mirrored")

	out := mustRun(t, db, "--as", "alice", "debt", "list")
	assert.Contains(t, out, added.ID)
	assert.Contains(t, out, "12.50")
	assert.Contains(t, out, `"lunch"`)

	assert.Contains(t, mustRun(t, db, "--as", "bob", "debt", "remove", added.ID), "on both sides")
	assert.Contains(t, mustRun(t, db, "--as", "alice", "debt", "list"), "No debts.")
}

func TestCLI_ManualAcceptFlow(t *testing.T) {
	db, aliceBob, _ := setupPair(t)

	assert.Contains(t, mustRun(t, db, "--as", "bob", "account", "settings", "--manual-accept=true"), "manual_accept_debts: true")

	out := mustRun(t, db, "--as", "alice", "debt", "add",
		"--user", aliceBob, "--amount", "30", "--currency", "USD", "--timestamp", "2024-06-01T10:00:00Z")
	assert.NotContains(t, out, "(synced)")

	out = mustRun(t, db, "--as", "bob", "intentions", "list")
	assert.Contains(t, out, "(new)")
	assert.Contains(t, out, "30.00")

	assert.Contains(t, mustRun(t, db, "--as", "bob", "intentions", "accept-all"), "Accepted 1 intention(s)")
	assert.Contains(t, mustRun(t, db, "--as", "bob", "intentions", "list"), "No intentions.")

	out, err := runCLI(t, db, "--as", "bob", "intentions", "accept-all")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [BAD_REQUEST]: Expected to have at least one debt to accept.")
}

func TestCLI_UpdateLocksAndSyncs(t *testing.T) {
	db, aliceBob, _ := setupPair(t)

	var added struct {
		ID string `json:"id"`
	}
	runJSON(t, db, &added, "--as", "alice", "debt", "add",
		"--user", aliceBob, "--amount", "5", "--currency", "USD", "--timestamp", "2024-05-01", "--unlocked")

	out := mustRun(t, db, "--as", "alice", "debt", "update", added.ID, "--note", "taxi")
	assert.Contains(t, out, "(draft)")
	assert.NotContains(t, out, "(synced)")

	out = mustRun(t, db, "--as", "alice", "debt", "update", added.ID, "--lock")
	assert.Contains(t, out, "locked ")
	assert.Contains(t, out, "(synced)")

	out, err := runCLI(t, db, "--as", "alice", "debt", "update", added.ID)
	require.Error(t, err)
	assert.Contains(t, out, "Error [BAD_REQUEST]")
}

func TestCLI_Errors(t *testing.T) {
	db, aliceBob, _ := setupPair(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name:     "missing caller",
			args:     []string{"debt", "list"},
			wantCode: ExitCommandError,
		},
		{
			name:     "unknown caller",
			args:     []string{"--as", "carol", "debt", "list"},
			wantCode: ExitFailure,
			wantOut:  "Error [NOT_FOUND]",
		},
		{
			name:     "unknown user",
			args:     []string{"--as", "alice", "debt", "add", "--user", "nobody", "--amount", "1", "--currency", "USD", "--timestamp", "2024-05-01"},
			wantCode: ExitFailure,
			wantOut:  "Error [NOT_FOUND]",
		},
		{
			name:     "bad currency",
			args:     []string{"--as", "alice", "debt", "add", "--user", aliceBob, "--amount", "1", "--currency", "usd", "--timestamp", "2024-05-01"},
			wantCode: ExitFailure,
			wantOut:  "Error [BAD_REQUEST]",
		},
		{
			name:     "remove missing",
			args:     []string{"--as", "alice", "debt", "remove", "missing"},
			wantCode: ExitFailure,
			wantOut:  "Error [NOT_FOUND]",
		},
		{
			name:     "connect to self",
			args:     []string{"--as", "alice", "account", "connect", "alice"},
			wantCode: ExitFailure,
			wantOut:  "Error [FORBIDDEN]",
		},
		{
			name:     "bad language",
			args:     []string{"--as", "alice", "--lang", "!!", "debt", "list"},
			wantCode: ExitCommandError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, db, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestCLI_UserCreateAndConnect(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	mustRun(t, db, "account", "create", "alice@example.com", "--id", "alice")
	mustRun(t, db, "account", "create", "bob@example.com", "--id", "bob")

	assert.Contains(t, mustRun(t, db, "--as", "alice", "user", "create", "Bob", "--id", "u-bob"), "Created user u-bob (Bob)")
	assert.Contains(t, mustRun(t, db, "--as", "alice", "user", "connect", "u-bob", "bob"), "now stands for account bob")

	out, err := runCLI(t, db, "--as", "alice", "user", "connect", "u-bob", "nobody")
	require.Error(t, err)
	assert.Contains(t, out, "Error [NOT_FOUND]")
}
