package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgersync/internal/backup"
	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/reconcile"
	"github.com/roach88/ledgersync/internal/remote"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(removedView{ID: "dp-1"})
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   removedView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "dp-1", resp.Data.ID)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := pushFailure{Op: "create", RecordID: "tx-1", Remaining: 2}
	err := formatter.Error(ErrCodeRemote, "push failed", details)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRemote, resp.Error.Code)
	assert.Equal(t, "push failed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextUsesRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(removedView{ID: "dp-1"}))
	assert.Equal(t, "Removed dp-1\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success("plain"))
	assert.Equal(t, "plain\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Error(ErrCodeRemote, "push failed", pushFailure{Op: "delete", RecordID: "tx-9", Remaining: 1})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E006]: push failed")
	assert.Contains(t, buf.String(), "delete of tx-9 failed; 1 change(s) still pending")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	err := formatter.Error(ErrCodeGeneric, "failed", map[string]string{"file": "a.json"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: diag,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Opened database %s", "ledger.db")

			assert.Empty(t, out.String(), "diagnostics never go to stdout")
			if tt.wantLog {
				assert.Contains(t, diag.String(), "Opened database ledger.db")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"not found", fmt.Errorf("get: %w", ledger.ErrNotFound), ErrCodeNotFound, ExitFailure},
		{"remote not found", remote.ErrNotFound, ErrCodeNotFound, ExitFailure},
		{"invalid record", &ledger.ValidationError{Entity: "debt"}, ErrCodeInvalidInput, ExitCommandError},
		{"immutable", ledger.ErrImmutable, ErrCodeInvalidInput, ExitCommandError},
		{"invalid backup", &backup.ValidationError{}, ErrCodeInvalidBackup, ExitFailure},
		{"push", &reconcile.PushError{Err: errors.New("boom")}, ErrCodeRemote, ExitFailure},
		{"http", &remote.StatusError{Status: 500}, ErrCodeRemote, ExitFailure},
		{"other", errors.New("boom"), ErrCodeGeneric, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classify(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExit, exit)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("x")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad flag"))))

	err := WrapExitError(ExitFailure, "import", ledger.ErrNotFound)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Equal(t, "import: not found", err.Error())
}
