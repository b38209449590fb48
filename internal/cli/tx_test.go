package cli

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/remote"
	"github.com/roach88/ledgersync/internal/testutil"
)

func TestTxAdd_ThenPush(t *testing.T) {
	e := newCLI(t)

	var res txResult
	_, err := e.runJSON(&res, "tx", "add", "--amount", "12.50", "--note", "coffee", "--at", "2024-03-10")
	require.NoError(t, err)
	assert.False(t, res.Confirmed)
	assert.Equal(t, ledger.SyncCreated, res.SyncStatus)
	assert.Zero(t, e.auth.Calls(testutil.OpCreate), "nothing is pushed without --wait")

	var push pushView
	_, err = e.runJSON(&push, "sync", "push")
	require.NoError(t, err)
	assert.Equal(t, 1, push.Created)

	got, ok := e.auth.Get(remoteProfile, res.ID)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.Amount))
	assert.Equal(t, "coffee", got.Note)

	out, err := e.run("sync", "push")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to push.")
}

func TestTxAdd_Wait(t *testing.T) {
	e := newCLI(t)

	var res txResult
	_, err := e.runJSON(&res, "tx", "add", "--amount", "40", "--direction", "income", "--wait")
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, ledger.SyncSynced, res.SyncStatus)
	assert.Equal(t, 1, e.auth.Calls(testutil.OpCreate))
}

func TestTxEditAndRemove(t *testing.T) {
	e := newCLI(t)
	var res txResult
	_, err := e.runJSON(&res, "tx", "add", "--amount", "10", "--wait")
	require.NoError(t, err)

	_, err = e.run("tx", "edit", res.ID)
	require.Error(t, err, "an edit needs at least one field")

	var edited txResult
	_, err = e.runJSON(&edited, "tx", "edit", res.ID, "--note", "lunch", "--wait")
	require.NoError(t, err)
	assert.True(t, edited.Confirmed)
	got, _ := e.auth.Get(remoteProfile, res.ID)
	assert.Equal(t, "lunch", got.Note)

	var removed txResult
	_, err = e.runJSON(&removed, "tx", "rm", res.ID, "--wait")
	require.NoError(t, err)
	assert.True(t, removed.Removed)
	assert.True(t, removed.Confirmed)
	_, ok := e.auth.Get(remoteProfile, res.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, e.auth.Calls(testutil.OpDelete))

	resp, err := e.runJSON(nil, "tx", "rm", res.ID)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestTxRemove_NeverPushed(t *testing.T) {
	e := newCLI(t)
	var res txResult
	_, err := e.runJSON(&res, "tx", "add", "--amount", "10")
	require.NoError(t, err)

	var removed txResult
	_, err = e.runJSON(&removed, "tx", "rm", res.ID)
	require.NoError(t, err)
	assert.True(t, removed.Confirmed, "nothing to tell the remote")
	assert.Zero(t, e.auth.Calls(testutil.OpDelete))
}

func TestTxAdd_InvalidInput(t *testing.T) {
	e := newCLI(t)

	_, err := e.run("tx", "add", "--amount", "ten")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, err := e.runJSON(nil, "tx", "add", "--amount", "10", "--direction", "sideways")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)
}

func TestSyncPull(t *testing.T) {
	e := newCLI(t)
	for i, note := range []string{"a", "b", "c"} {
		e.auth.Seed(remoteProfile, ledger.Transaction{
			ID:         "r" + note,
			ProfileID:  remoteProfile,
			Direction:  ledger.DirectionExpense,
			Amount:     decimal.NewFromInt(int64(i + 1)),
			Currency:   "UAH",
			Note:       note,
			OccurredAt: testutil.Epoch.Add(-time.Duration(i) * time.Hour),
		})
	}

	var page pullView
	_, err := e.runJSON(&page, "sync", "pull")
	require.NoError(t, err)
	assert.Equal(t, 2, page.Applied, "one page of sync.page_size")
	assert.NotEmpty(t, page.NextCursor)

	var all pullView
	_, err = e.runJSON(&all, "sync", "pull", "--all")
	require.NoError(t, err)
	assert.Equal(t, 3, all.Applied)
	assert.Equal(t, 2, all.Pages)

	var rows []ledger.ReplicaTransaction
	_, err = e.runJSON(&rows, "tx", "ls")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, ledger.SyncSynced, r.SyncStatus)
	}
}

func TestSyncPush_Failure(t *testing.T) {
	e := newCLI(t)
	_, err := e.run("tx", "add", "--amount", "1")
	require.NoError(t, err)
	_, err = e.run("tx", "add", "--amount", "2")
	require.NoError(t, err)
	e.auth.FailNext(testutil.OpCreate, &remote.StatusError{Status: 503, Message: "maintenance"})

	out, err := e.run("sync", "push")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E006]")
	assert.Contains(t, out, "2 change(s) still pending")

	var push pushView
	_, err = e.runJSON(&push, "sync", "push")
	require.NoError(t, err)
	assert.Equal(t, 2, push.Created)
}

func TestTx_NoRemoteConfigured(t *testing.T) {
	e := newCLI(t)
	e.opts.Authority = nil

	resp, err := e.runJSON(nil, "sync", "push")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "remote.url")
}
