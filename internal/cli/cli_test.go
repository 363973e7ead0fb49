package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv points the command line at a temp SQLite database.
type testEnv struct {
	configPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`storage:
  driver: sqlite3
  dsn: %s
observability:
  logging:
    level: error
`, filepath.Join(dir, "recon.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return &testEnv{configPath: configPath}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := e.run(t, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return out
}

func (e *testEnv) importSnapshot(t *testing.T) {
	t.Helper()
	e.mustRun(t, "import", "--file", filepath.Join("testdata", "snapshot.yaml"))
}

func TestImport(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "import", "--file", filepath.Join("testdata", "snapshot.yaml"))

	var stats map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, map[string]int{
		"stripe_transactions":   3,
		"stripe_balance_events": 2,
		"ledger_transactions":   3,
		"ledger_accounts":       3,
	}, stats)
}

func TestImport_RequiresFile(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "import")

	assert.ErrorContains(t, err, "--file is required")
}

func TestReconcile_AllPrintsOneJSONLine(t *testing.T) {
	env := newTestEnv(t)
	env.importSnapshot(t)

	out := env.mustRun(t, "reconcile", "all")

	assert.Equal(t, 1, strings.Count(out, "\n"), "exactly one line")
	assert.True(t, strings.HasSuffix(out, "\n"))

	var summary struct {
		Transactions struct {
			Started   map[string]int `json:"started_matches"`
			Succeeded map[string]int `json:"succeeded_matches"`
		} `json:"transactions"`
		Balances struct {
			Status     string `json:"status"`
			Rows       int    `json:"rows"`
			Mismatched int    `json:"mismatched"`
		} `json:"balances"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, map[string]int{"match": 2, "stripe_only": 0, "ledger_only": 1}, summary.Transactions.Started)
	assert.Equal(t, map[string]int{"match": 1, "stripe_only": 1, "ledger_only": 0}, summary.Transactions.Succeeded)
	assert.Equal(t, "ok", summary.Balances.Status)
	assert.Equal(t, 2, summary.Balances.Rows)
	assert.Equal(t, 1, summary.Balances.Mismatched)
}

func TestReconcile_DefaultsToAll(t *testing.T) {
	env := newTestEnv(t)
	env.importSnapshot(t)

	out := env.mustRun(t, "reconcile")

	var summary map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Contains(t, summary, "transactions")
	assert.Contains(t, summary, "balances")
}

func TestReconcile_Transactions(t *testing.T) {
	env := newTestEnv(t)
	env.importSnapshot(t)

	out := env.mustRun(t, "reconcile", "transactions")

	var summary map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Contains(t, summary, "started_matches")
	assert.Contains(t, summary, "succeeded_matches")
}

func TestReconcile_InvalidKind(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "reconcile", "everything")

	assert.ErrorContains(t, err, "invalid job kind")
	assert.Empty(t, out, "nothing on stdout on failure")
}

func TestReconcile_BadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("storage:\n  driver: oracle\n  dsn: x\n"), 0o600))

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(&stdout, &stderr)
	root.SetArgs([]string{"--config", configPath, "reconcile", "all"})
	err := root.ExecuteContext(t.Context())

	assert.ErrorContains(t, err, "storage.driver")
	assert.Empty(t, stdout.String())
}

func TestMatches_FiltersAndFormats(t *testing.T) {
	env := newTestEnv(t)
	env.importSnapshot(t)
	env.mustRun(t, "reconcile", "transactions")

	out := env.mustRun(t, "matches", "--match-type", "started", "--classification", "ledger_only")

	var list struct {
		Matches []struct {
			LedgerID    string `json:"ledger_id"`
			MatchStatus string `json:"match_status"`
		} `json:"matches"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "L3", list.Matches[0].LedgerID)
	assert.Equal(t, "ledger_only", list.Matches[0].MatchStatus)

	out = env.mustRun(t, "matches", "--format", "csv")
	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 6, "header plus five records")
	assert.Equal(t, "pass", rows[0][0])
}

func TestMatches_JSONFilters(t *testing.T) {
	env := newTestEnv(t)
	env.importSnapshot(t)
	env.mustRun(t, "reconcile", "transactions")

	out := env.mustRun(t, "matches", "--filters", `{"match_type":"succeeded","classification":"match"}`)

	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 1, list.Count)

	// explicit flags win over the JSON object
	out = env.mustRun(t, "matches", "--filters", `{"match_type":"succeeded","classification":"match"}`, "--classification", "stripe_only")
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 1, list.Count)

	_, _, err := env.run(t, "matches", "--filters", `{not json`)
	assert.ErrorContains(t, err, "parse --filters")
}

func TestMatches_InvalidFilter(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "matches", "--date-from", "03/01/2024")
	assert.Error(t, err)

	_, _, err = env.run(t, "matches", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestBalances(t *testing.T) {
	env := newTestEnv(t)
	env.importSnapshot(t)
	env.mustRun(t, "reconcile", "balances")

	out := env.mustRun(t, "balances", "--status", "mismatch")

	var list struct {
		Balances []struct {
			AccountName string `json:"account_name"`
		} `json:"balances"`
		Count      int `json:"count"`
		Mismatched int `json:"mismatched"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Stripe Fees", list.Balances[0].AccountName)
	assert.Equal(t, 1, list.Mismatched)

	out = env.mustRun(t, "balances", "--format", "csv")
	assert.True(t, strings.HasPrefix(out, "ledger_id,account_name,currency"))

	_, _, err := env.run(t, "balances", "--status", "broken")
	assert.ErrorContains(t, err, "invalid status")
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t)
	env.importSnapshot(t)
	env.mustRun(t, "reconcile", "all")

	out := env.mustRun(t, "runs", "--limit", "5")

	var list struct {
		Runs []struct {
			Kind   string `json:"kind"`
			Status string `json:"status"`
		} `json:"runs"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Equal(t, 2, list.Count)
	kinds := []string{list.Runs[0].Kind, list.Runs[1].Kind}
	assert.ElementsMatch(t, []string{"transactions", "balances"}, kinds)
	for _, r := range list.Runs {
		assert.Equal(t, "completed", r.Status)
	}
}

func TestExplicitEnvFileMustExist(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "runs")

	assert.ErrorContains(t, err, "load env file")
}
