package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/store"
)

// Epoch is the fixed wall time used by fixtures.
var Epoch = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// NewStore opens a SQLite store under t.TempDir() with sequential ids
// prefixed by idPrefix and a clock frozen at Epoch.
func NewStore(t testing.TB, idPrefix string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"),
		store.WithIDGenerator(ledger.NewSequentialGenerator(idPrefix)),
		store.WithClock(func() time.Time { return Epoch }),
	)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Seeded lists the ids created by SeedLedger.
type Seeded struct {
	Profile      ledger.Profile
	Food         ledger.Category
	Salary       ledger.Category
	Transactions []ledger.Transaction
	Budget       ledger.Budget
	Debt         ledger.Debt
	DebtPayments []ledger.DebtPayment
}

// SeedLedger creates a profile holding 2 categories, 5 transactions, 1
// budget, 1 debt of 1000 and 2 payments towards it.
func SeedLedger(t testing.TB, sc ledger.Scope, name string) Seeded {
	t.Helper()
	ctx := context.Background()
	var (
		s   Seeded
		err error
	)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}

	s.Profile, err = sc.Profiles().Insert(ctx, ledger.Profile{Name: name, CreatedAt: Epoch})
	must(err)
	pid := s.Profile.ID

	s.Food, err = sc.Categories().Insert(ctx, ledger.Category{ProfileID: pid, Type: ledger.CategoryExpense, Name: "Food", CreatedAt: Epoch})
	must(err)
	s.Salary, err = sc.Categories().Insert(ctx, ledger.Category{ProfileID: pid, Type: ledger.CategoryIncome, Name: "Salary", CreatedAt: Epoch})
	must(err)

	txs := []struct {
		day      int
		dir      ledger.Direction
		amount   string
		category *string
		note     string
	}{
		{1, ledger.DirectionIncome, "3000", &s.Salary.ID, "March salary"},
		{2, ledger.DirectionExpense, "45.50", &s.Food.ID, "groceries"},
		{3, ledger.DirectionExpense, "12", &s.Food.ID, "coffee"},
		{3, ledger.DirectionExpense, "12", &s.Food.ID, "lunch"},
		{5, ledger.DirectionExpense, "80", nil, "taxi"},
	}
	for _, in := range txs {
		at := time.Date(2024, 3, in.day, 10, 0, 0, 0, time.UTC)
		tx, err := sc.Transactions().Insert(ctx, ledger.Transaction{
			ProfileID:  pid,
			Direction:  in.dir,
			Amount:     decimal.RequireFromString(in.amount),
			Currency:   "UAH",
			CategoryID: in.category,
			Note:       in.note,
			OccurredAt: at,
			CreatedAt:  at,
			UpdatedAt:  at,
		})
		must(err)
		s.Transactions = append(s.Transactions, tx)
	}

	s.Budget, err = sc.Budgets().Insert(ctx, ledger.Budget{
		ProfileID:  pid,
		Month:      "2024-03",
		CategoryID: &s.Food.ID,
		Limit:      decimal.NewFromInt(500),
		Currency:   "UAH",
	})
	must(err)

	s.Debt, err = sc.Debts().Insert(ctx, ledger.Debt{
		ProfileID:    pid,
		Direction:    ledger.DebtIOwe,
		Counterparty: "Alice",
		Principal:    decimal.NewFromInt(1000),
		Currency:     "UAH",
		StartDate:    "2024-01-01",
		DueDate:      ledger.Ref("2024-06-01"),
		Status:       ledger.DebtOpen,
		CreatedAt:    Epoch,
	})
	must(err)

	for _, in := range []struct{ date, amount string }{{"2024-02-01", "300"}, {"2024-03-01", "200"}} {
		p, err := sc.DebtPayments().Insert(ctx, ledger.DebtPayment{
			ProfileID: pid,
			DebtID:    &s.Debt.ID,
			Date:      in.date,
			Amount:    decimal.RequireFromString(in.amount),
			CreatedAt: Epoch,
		})
		must(err)
		s.DebtPayments = append(s.DebtPayments, p)
	}
	return s
}
