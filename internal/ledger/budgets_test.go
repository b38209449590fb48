package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/testutil"
)

func TestSetBudget_Upserts(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t, "id")
	s := testutil.SeedLedger(t, st.Scope(), "Alice")

	b, created, err := ledger.SetBudget(ctx, st, ledger.Budget{
		ProfileID: s.Profile.ID, Month: "2024-03", CategoryID: &s.Food.ID, Limit: decimal.NewFromInt(80),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s.Budget.ID, b.ID, "one budget per month and category")
	assert.Equal(t, "UAH", b.Currency)

	april, created, err := ledger.SetBudget(ctx, st, ledger.Budget{
		ProfileID: s.Profile.ID, Month: "2024-04", CategoryID: &s.Food.ID, Limit: decimal.NewFromInt(300),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, s.Budget.ID, april.ID)

	budgets, err := st.Scope().Budgets().ListByProfile(ctx, s.Profile.ID)
	require.NoError(t, err)
	assert.Len(t, budgets, 2)
}

func TestSetBudget_Errors(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t, "id")
	a := testutil.SeedLedger(t, st.Scope(), "Alice")
	b := testutil.SeedLedger(t, st.Scope(), "Bob")

	tests := []struct {
		name       string
		budget     ledger.Budget
		validation bool
	}{
		{"income category", ledger.Budget{ProfileID: a.Profile.ID, Month: "2024-03", CategoryID: &a.Salary.ID, Limit: decimal.NewFromInt(1)}, true},
		{"no category", ledger.Budget{ProfileID: a.Profile.ID, Month: "2024-03", Limit: decimal.NewFromInt(1)}, true},
		{"bad month", ledger.Budget{ProfileID: a.Profile.ID, Month: "March", CategoryID: &a.Food.ID, Limit: decimal.NewFromInt(1)}, true},
		{"other profile's category", ledger.Budget{ProfileID: b.Profile.ID, Month: "2024-03", CategoryID: &a.Food.ID, Limit: decimal.NewFromInt(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ledger.SetBudget(ctx, st, tt.budget)
			require.Error(t, err)
			if tt.validation {
				assert.True(t, ledger.IsValidationError(err))
			} else {
				assert.True(t, errors.Is(err, ledger.ErrNotFound))
			}
		})
	}
}

func TestBudgetStatuses(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t, "id")
	s := testutil.SeedLedger(t, st.Scope(), "Alice")

	// Food spending in March: 45.50 + 12 + 12 UAH.
	statuses, err := ledger.BudgetStatuses(ctx, st.Scope(), s.Profile.ID, "2024-03")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "Food", statuses[0].Category)
	assert.Equal(t, "69.5", statuses[0].Spent.String())
	assert.Equal(t, "13.9", statuses[0].Percent.String())
	assert.Equal(t, ledger.BudgetOK, statuses[0].State)

	// Spending in another currency or month does not count.
	for _, tx := range []ledger.Transaction{
		{Currency: "USD", OccurredAt: time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)},
		{Currency: "UAH", OccurredAt: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)},
	} {
		tx.ProfileID = s.Profile.ID
		tx.Direction = ledger.DirectionExpense
		tx.Amount = decimal.NewFromInt(1000)
		tx.CategoryID = &s.Food.ID
		tx.CreatedAt, tx.UpdatedAt = tx.OccurredAt, tx.OccurredAt
		_, err := st.Scope().Transactions().Insert(ctx, tx)
		require.NoError(t, err)
	}

	tests := []struct {
		limit   int64
		percent string
		state   ledger.BudgetState
	}{
		{80, "86.9", ledger.BudgetNear},
		{60, "100", ledger.BudgetExceeded},
		{1000, "7", ledger.BudgetOK},
	}
	for _, tt := range tests {
		_, _, err := ledger.SetBudget(ctx, st, ledger.Budget{
			ProfileID: s.Profile.ID, Month: "2024-03", CategoryID: &s.Food.ID, Limit: decimal.NewFromInt(tt.limit),
		})
		require.NoError(t, err)

		statuses, err := ledger.BudgetStatuses(ctx, st.Scope(), s.Profile.ID, "2024-03")
		require.NoError(t, err)
		require.Len(t, statuses, 1)
		assert.Equal(t, "69.5", statuses[0].Spent.String(), "limit %d", tt.limit)
		assert.Equal(t, tt.percent, statuses[0].Percent.String(), "limit %d", tt.limit)
		assert.Equal(t, tt.state, statuses[0].State, "limit %d", tt.limit)
	}
}

func TestBudgetAlerts_MostUsedFirst(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewStore(t, "id")
	s := testutil.SeedLedger(t, st.Scope(), "Alice")

	rent, err := ledger.AddCategory(ctx, st, ledger.Category{
		ProfileID: s.Profile.ID, Type: ledger.CategoryExpense, Name: "Rent",
	}, testutil.Epoch)
	require.NoError(t, err)
	_, _, err = ledger.SetBudget(ctx, st, ledger.Budget{
		ProfileID: s.Profile.ID, Month: "2024-03", CategoryID: &rent.ID, Limit: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	_, err = st.Scope().Transactions().Insert(ctx, ledger.Transaction{
		ProfileID:  s.Profile.ID,
		Direction:  ledger.DirectionExpense,
		Amount:     decimal.NewFromInt(90),
		Currency:   "UAH",
		CategoryID: &rent.ID,
		OccurredAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		CreatedAt:  testutil.Epoch,
		UpdatedAt:  testutil.Epoch,
	})
	require.NoError(t, err)

	alerts, err := ledger.BudgetAlerts(ctx, st.Scope(), s.Profile.ID, "2024-03", 1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Rent", alerts[0].Category)
	assert.Equal(t, ledger.BudgetNear, alerts[0].State)

	all, err := ledger.BudgetAlerts(ctx, st.Scope(), s.Profile.ID, "2024-03", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := ledger.BudgetStatuses(ctx, st.Scope(), s.Profile.ID, "2024-05")
	require.NoError(t, err)
	assert.Empty(t, none)
}
