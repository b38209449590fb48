package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/merge"
)

// seedProfile creates a profile with one debt and one payment through the
// CLI and returns the profile id.
func seedProfile(t *testing.T, e *cliEnv, name string) string {
	t.Helper()
	var p ledger.Profile
	_, err := e.runJSON(&p, "profile", "add", name)
	require.NoError(t, err)

	var d ledger.Debt
	_, err = e.runJSON(&d, "debt", "add", "--profile", p.ID,
		"--counterparty", "Bob", "--principal", "1000", "--start", "2024-01-01", "--due", "2024-06-01")
	require.NoError(t, err)

	_, err = e.run("debt", "pay", d.ID, "--profile", p.ID, "--amount", "250", "--date", "2024-02-01")
	require.NoError(t, err)
	return p.ID
}

func TestExportValidateImport(t *testing.T) {
	e := newCLI(t)
	pid := seedProfile(t, e, "Alice")
	file := filepath.Join(t.TempDir(), "alice.yaml")

	var exp exportResult
	_, err := e.runJSON(&exp, "export", "--profile", pid, "-o", file)
	require.NoError(t, err)
	assert.Equal(t, "yaml", string(exp.Format), "format follows the extension")
	assert.Equal(t, 1, exp.Records["debts"])
	assert.Equal(t, 1, exp.Records["debtPayments"])

	out, err := e.run("validate", file)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Backup valid: source profile "+pid+" (Alice)")

	var clone merge.Report
	_, err = e.runJSON(&clone, "import", file, "--strategy", "clone")
	require.NoError(t, err)
	assert.Equal(t, merge.StrategyClone, clone.Strategy)
	assert.Equal(t, 1, clone.Added.Debts)
	assert.Equal(t, 1, clone.Added.DebtPayments)

	var again merge.Report
	_, err = e.runJSON(&again, "import", file, "--strategy", "merge", "--profile", clone.TargetProfileID)
	require.NoError(t, err)
	assert.Zero(t, again.Added.Total())
	assert.Equal(t, 1, again.Skipped.Debts)
	assert.Equal(t, 1, again.Skipped.DebtPayments)

	out, err = e.run("check", "--profile", clone.TargetProfileID)
	require.NoError(t, err)
	assert.Contains(t, out, "all references resolve")
}

func TestExportToStdout(t *testing.T) {
	e := newCLI(t)
	seedProfile(t, e, "Alice")

	out, err := e.run("export")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "all", doc["metadata"].(map[string]any)["scope"])
}

func TestImport_MergeNeedsProfile(t *testing.T) {
	e := newCLI(t)
	_, err := e.run("import", "whatever.json", "--strategy", "merge")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = e.run("import", "whatever.json", "--strategy", "upsert")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestImport_WarningsNeedConfirmation(t *testing.T) {
	e := newCLI(t)
	pid := seedProfile(t, e, "Alice")
	file := filepath.Join(t.TempDir(), "alice.json")
	_, err := e.run("export", "--profile", pid, "-o", file)
	require.NoError(t, err)

	// strip the schema version to trigger a warning
	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	delete(doc["metadata"].(map[string]any), "schemaVersion")
	raw, err = json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, raw, 0o600))

	resp, err := e.runJSON(nil, "import", file, "--strategy", "clone")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfirm, resp.Error.Code)

	var rep merge.Report
	_, err = e.runJSON(&rep, "import", file, "--strategy", "clone", "--yes")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Added.Debts)
	assert.Len(t, rep.Warnings, 1)
}

func TestValidate_InvalidDocument(t *testing.T) {
	e := newCLI(t)
	file := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"metadata": {}, "entities": {"profiles": []}}`), 0o600))

	out, err := e.run("validate", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
	assert.Contains(t, out, "entities.categories: must be an array")

	_, err = e.run("validate", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheck_UnknownProfile(t *testing.T) {
	e := newCLI(t)
	resp, err := e.runJSON(nil, "check", "--profile", "nobody")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}
