package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgersync/internal/ledger"
)

func TestBudgetStatus(t *testing.T) {
	e := newCLI(t)
	var p ledger.Profile
	_, err := e.runJSON(&p, "profile", "add", "Alice")
	require.NoError(t, err)

	var food ledger.Category
	_, err = e.runJSON(&food, "category", "add", "Food", "--profile", p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.CategoryExpense, food.Type)

	var set budgetSetView
	_, err = e.runJSON(&set, "budget", "set", "--profile", p.ID, "--category", food.ID, "--limit", "100")
	require.NoError(t, err)
	assert.True(t, set.Created)
	assert.Equal(t, "2024-03", set.Month, "month defaults to the current one")

	_, err = e.runJSON(&set, "budget", "set", "--profile", p.ID, "--category", food.ID, "--limit", "50")
	require.NoError(t, err)
	assert.False(t, set.Created)

	// An i_owe repayment with a linked transaction is spending.
	var d ledger.Debt
	_, err = e.runJSON(&d, "debt", "add", "--profile", p.ID, "--counterparty", "Bob", "--principal", "100")
	require.NoError(t, err)
	_, err = e.run("debt", "pay", d.ID, "--profile", p.ID, "--amount", "45", "--with-transaction", "--category", food.ID)
	require.NoError(t, err)

	var statuses []ledger.BudgetStatus
	_, err = e.runJSON(&statuses, "budget", "status", "--profile", p.ID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "Food", statuses[0].Category)
	assert.Equal(t, "45", statuses[0].Spent.String())
	assert.Equal(t, "90", statuses[0].Percent.String())
	assert.Equal(t, ledger.BudgetNear, statuses[0].State)

	out, err := e.run("budget", "status", "--profile", p.ID, "--month", "2024-04")
	require.NoError(t, err)
	assert.Contains(t, out, "No budgets")

	resp, err := e.runJSON(nil, "budget", "status", "--profile", p.ID, "--month", "April")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)
}

func TestBudgetSet_IncomeCategory(t *testing.T) {
	e := newCLI(t)
	var p ledger.Profile
	_, err := e.runJSON(&p, "profile", "add", "Alice")
	require.NoError(t, err)

	var salary ledger.Category
	_, err = e.runJSON(&salary, "category", "add", "Salary", "--type", "income", "--profile", p.ID)
	require.NoError(t, err)

	resp, err := e.runJSON(nil, "budget", "set", "--profile", p.ID, "--category", salary.ID, "--limit", "10")
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code)

	resp, err = e.runJSON(nil, "category", "add", " salary ", "--type", "income", "--profile", p.ID)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidInput, resp.Error.Code, "duplicate name")

	out, err := e.run("category", "ls", "--profile", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Salary")
}

func TestPaymentUpcoming(t *testing.T) {
	e := newCLI(t)
	var p ledger.Profile
	_, err := e.runJSON(&p, "profile", "add", "Alice")
	require.NoError(t, err)

	var rent, phone ledger.Payment
	_, err = e.runJSON(&rent, "payment", "add", "--profile", p.ID, "--title", "Rent", "--amount", "900", "--due", "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, ledger.PaymentPlanned, rent.Status)
	_, err = e.runJSON(&phone, "payment", "add", "--profile", p.ID, "--title", "Phone", "--amount", "15", "--due", "2024-03-20")
	require.NoError(t, err)

	var upcoming []ledger.UpcomingPayment
	_, err = e.runJSON(&upcoming, "payment", "upcoming", "--profile", p.ID)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, rent.ID, upcoming[0].ID)
	assert.True(t, upcoming[0].Overdue, "due before 2024-03-15")
	assert.False(t, upcoming[1].Overdue)

	out, err := e.run("payment", "upcoming", "--profile", p.ID, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "overdue")
	assert.NotContains(t, out, "Phone")

	_, err = e.run("payment", "done", rent.ID, "--profile", p.ID)
	require.NoError(t, err)
	_, err = e.runJSON(&upcoming, "payment", "upcoming", "--profile", p.ID)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, phone.ID, upcoming[0].ID)

	resp, err := e.runJSON(nil, "payment", "done", "missing", "--profile", p.ID)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}
