package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgersync/internal/ledger"
)

func TestDebtLifecycle(t *testing.T) {
	e := newCLI(t)
	var p ledger.Profile
	_, err := e.runJSON(&p, "profile", "add", "Alice")
	require.NoError(t, err)

	var d ledger.Debt
	_, err = e.runJSON(&d, "debt", "add", "--profile", p.ID,
		"--counterparty", "Bob", "--principal", "1000", "--due", "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, ledger.DebtOpen, d.Status)
	assert.Equal(t, "2024-03-15", d.StartDate, "start defaults to today")

	var first debtPaymentView
	_, err = e.runJSON(&first, "debt", "pay", d.ID, "--profile", p.ID, "--amount", "400")
	require.NoError(t, err)
	assert.Equal(t, ledger.DebtOpen, first.DebtStatus)
	assert.Nil(t, first.TransactionID)

	var second debtPaymentView
	_, err = e.runJSON(&second, "debt", "pay", d.ID, "--profile", p.ID, "--amount", "600", "--with-transaction")
	require.NoError(t, err)
	assert.Equal(t, ledger.DebtClosed, second.DebtStatus)
	require.NotNil(t, second.TransactionID)

	var summaries []ledger.DebtSummary
	_, err = e.runJSON(&summaries, "debt", "ls", "--profile", p.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "1000", summaries[0].Paid.String())
	assert.True(t, summaries[0].Remaining.IsZero())

	_, err = e.run("debt", "unpay", second.ID, "--profile", p.ID, "--delete-transaction")
	require.NoError(t, err)

	out, err := e.run("debt", "ls", "--profile", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "open")

	out, err = e.run("check", "--profile", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "all references resolve")
}

func TestDebtPay_Errors(t *testing.T) {
	e := newCLI(t)
	var p ledger.Profile
	_, err := e.runJSON(&p, "profile", "add", "Alice")
	require.NoError(t, err)

	resp, err := e.runJSON(nil, "debt", "pay", "missing", "--profile", p.ID, "--amount", "5")
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)

	_, err = e.run("debt", "pay", "missing", "--profile", p.ID, "--amount", "5", "--date", "15/03/2024")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, err = e.runJSON(nil, "debt", "add", "--profile", p.ID, "--counterparty", "Bob", "--principal", "0")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)
}

func TestDebtPay_ForeignCategory(t *testing.T) {
	e := newCLI(t)
	var alice, bob ledger.Profile
	_, err := e.runJSON(&alice, "profile", "add", "Alice")
	require.NoError(t, err)
	_, err = e.runJSON(&bob, "profile", "add", "Bob")
	require.NoError(t, err)

	var food ledger.Category
	_, err = e.runJSON(&food, "category", "add", "Food", "--profile", alice.ID)
	require.NoError(t, err)
	var d ledger.Debt
	_, err = e.runJSON(&d, "debt", "add", "--profile", bob.ID, "--counterparty", "Carol", "--principal", "100")
	require.NoError(t, err)

	resp, err := e.runJSON(nil, "debt", "pay", d.ID, "--profile", bob.ID, "--amount", "10",
		"--with-transaction", "--category", food.ID)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)

	var summaries []ledger.DebtSummary
	_, err = e.runJSON(&summaries, "debt", "ls", "--profile", bob.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Paid.IsZero(), "nothing recorded")
}
