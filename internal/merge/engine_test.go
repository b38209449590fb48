package merge

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgersync/internal/backup"
	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/store"
	"github.com/roach88/ledgersync/internal/testutil"
)

func newEngine(st ledger.Store) *Engine {
	return New(st,
		WithClock(func() time.Time { return testutil.Epoch }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

// exportValidated exports profileID through the JSON codec and validates it.
func exportValidated(t *testing.T, st *store.Store, profileID string) *backup.Validated {
	t.Helper()
	doc, err := backup.Export(context.Background(), st.Scope(), profileID, testutil.Epoch)
	require.NoError(t, err)
	return validated(t, doc)
}

func validated(t *testing.T, doc *backup.Document) *backup.Validated {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, backup.Write(&buf, doc, backup.FormatJSON))
	v, err := backup.Validate(buf.Bytes())
	require.NoError(t, err)
	return v
}

// sourceA seeds the standard ledger in its own store and exports it.
func sourceA(t *testing.T) (*backup.Validated, testutil.Seeded) {
	t.Helper()
	src := testutil.NewStore(t, "src")
	a := testutil.SeedLedger(t, src.Scope(), "Alice")
	return exportValidated(t, src, a.Profile.ID), a
}

// targetB creates a profile holding only an expense category named "food".
func targetB(t *testing.T, st *store.Store) (ledger.Profile, ledger.Category) {
	t.Helper()
	ctx := context.Background()
	b, err := st.Scope().Profiles().Insert(ctx, ledger.Profile{Name: "Bob", CreatedAt: testutil.Epoch})
	require.NoError(t, err)
	food, err := st.Scope().Categories().Insert(ctx, ledger.Category{
		ProfileID: b.ID, Type: ledger.CategoryExpense, Name: "  food ", CreatedAt: testutil.Epoch,
	})
	require.NoError(t, err)
	return b, food
}

func requireIntegrity(t *testing.T, st *store.Store, profileID string) {
	t.Helper()
	violations, err := ledger.CheckIntegrity(context.Background(), st.Scope(), profileID)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"clone", "Replace", " merge "} {
		_, err := ParseStrategy(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseStrategy("upsert")
	assert.Error(t, err)
}

func TestApply_MergeScenario(t *testing.T) {
	ctx := context.Background()
	v, _ := sourceA(t)
	dst := testutil.NewStore(t, "dst")
	b, food := targetB(t, dst)

	rep, err := newEngine(dst).Apply(ctx, v, StrategyMerge, b.ID)
	require.NoError(t, err)

	assert.Equal(t, StrategyMerge, rep.Strategy)
	assert.Equal(t, b.ID, rep.TargetProfileID)
	assert.Equal(t, "Alice", rep.SourceProfileName)
	assert.Equal(t, Counts{Categories: 1, Debts: 1, Transactions: 5, Budgets: 1, DebtPayments: 2}, rep.Added)
	assert.Equal(t, Counts{Categories: 1}, rep.Skipped)
	assert.Zero(t, rep.Updated.Budgets)
	assert.Empty(t, rep.IgnoredProfiles)

	txs, err := dst.Scope().Transactions().ListByProfile(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, txs, 5)
	for _, tx := range txs {
		if tx.Note == "groceries" || tx.Note == "coffee" || tx.Note == "lunch" {
			assert.Equal(t, food.ID, ledger.Deref(tx.CategoryID), tx.Note)
		}
		if tx.Note == "taxi" {
			assert.Nil(t, tx.CategoryID)
		}
	}

	budgets, err := dst.Scope().Budgets().ListByProfile(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, food.ID, ledger.Deref(budgets[0].CategoryID))

	requireIntegrity(t, dst, b.ID)
}

func TestApply_MergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	v, _ := sourceA(t)
	dst := testutil.NewStore(t, "dst")
	b, _ := targetB(t, dst)
	eng := newEngine(dst)

	_, err := eng.Apply(ctx, v, StrategyMerge, b.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rep, err := eng.Apply(ctx, v, StrategyMerge, b.ID)
		require.NoError(t, err)
		assert.Zero(t, rep.Added.Total(), "run %d", i)
		assert.Zero(t, rep.Updated.Budgets)
		assert.Equal(t, Counts{Categories: 2, Debts: 1, Transactions: 5, Budgets: 1, DebtPayments: 2}, rep.Skipped)
	}

	txs, err := dst.Scope().Transactions().ListByProfile(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 5)
	requireIntegrity(t, dst, b.ID)
}

func TestApply_MergeUpsertsBudgetLimit(t *testing.T) {
	ctx := context.Background()
	v, _ := sourceA(t)
	dst := testutil.NewStore(t, "dst")
	b, _ := targetB(t, dst)
	eng := newEngine(dst)

	_, err := eng.Apply(ctx, v, StrategyMerge, b.ID)
	require.NoError(t, err)

	v.Document.Entities.Budgets[0].Limit = decimal.NewFromInt(750)
	rep, err := eng.Apply(ctx, v, StrategyMerge, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated.Budgets)
	assert.Zero(t, rep.Skipped.Budgets)
	assert.Zero(t, rep.Added.Budgets)

	budgets, err := dst.Scope().Budgets().ListByProfile(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "750", budgets[0].Limit.String())
}

func TestApply_MergeBudgetCurrencyOnly(t *testing.T) {
	ctx := context.Background()
	v, _ := sourceA(t)
	dst := testutil.NewStore(t, "dst")
	b, _ := targetB(t, dst)
	eng := newEngine(dst)

	_, err := eng.Apply(ctx, v, StrategyMerge, b.ID)
	require.NoError(t, err)

	v.Document.Entities.Budgets[0].Currency = "USD"
	rep, err := eng.Apply(ctx, v, StrategyMerge, b.ID)
	require.NoError(t, err)
	assert.Zero(t, rep.Updated.Budgets)
	assert.Equal(t, 1, rep.Skipped.Budgets)

	budgets, err := dst.Scope().Budgets().ListByProfile(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "UAH", budgets[0].Currency, "same limit, nothing written")

	v.Document.Entities.Budgets[0].Limit = decimal.NewFromInt(900)
	rep, err = eng.Apply(ctx, v, StrategyMerge, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated.Budgets)

	budgets, err = dst.Scope().Budgets().ListByProfile(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "900", budgets[0].Limit.String())
	assert.Equal(t, "USD", budgets[0].Currency, "currency follows a limit change")
}

func TestApply_Clone(t *testing.T) {
	ctx := context.Background()
	v, _ := sourceA(t)
	dst := testutil.NewStore(t, "dst")
	b, _ := targetB(t, dst)

	rep, err := newEngine(dst).Apply(ctx, v, StrategyClone, b.ID)
	require.NoError(t, err)

	assert.NotEqual(t, b.ID, rep.TargetProfileID, "clone ignores the target")
	p, err := dst.Scope().Profiles().Get(ctx, rep.TargetProfileID)
	require.NoError(t, err)
	assert.Equal(t, "Alice (imported)", p.Name)

	assert.Equal(t, Counts{Categories: 2, Debts: 1, Transactions: 5, Budgets: 1, DebtPayments: 2}, rep.Added)
	assert.Zero(t, rep.Skipped.Total())
	requireIntegrity(t, dst, rep.TargetProfileID)

	// the original target is untouched
	cats, err := dst.Scope().Categories().ListByProfile(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestApply_Replace(t *testing.T) {
	ctx := context.Background()
	v, _ := sourceA(t)
	dst := testutil.NewStore(t, "dst")
	existing := testutil.SeedLedger(t, dst.Scope(), "Bob")

	rep, err := newEngine(dst).Apply(ctx, v, StrategyReplace, existing.Profile.ID)
	require.NoError(t, err)

	assert.Equal(t, Counts{Categories: 2, Debts: 1, Transactions: 5, Budgets: 1, DebtPayments: 2}, rep.Removed)
	assert.Equal(t, Counts{Categories: 2, Debts: 1, Transactions: 5, Budgets: 1, DebtPayments: 2}, rep.Added)

	_, err = dst.Scope().Categories().Get(ctx, existing.Food.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	txs, err := dst.Scope().Transactions().ListByProfile(ctx, existing.Profile.ID)
	require.NoError(t, err)
	assert.Len(t, txs, 5)
	requireIntegrity(t, dst, existing.Profile.ID)
}

func TestApply_TargetRequired(t *testing.T) {
	v, _ := sourceA(t)
	dst := testutil.NewStore(t, "dst")

	_, err := newEngine(dst).Apply(context.Background(), v, StrategyMerge, "")
	assert.ErrorIs(t, err, ErrTargetRequired)

	_, err = newEngine(dst).Apply(context.Background(), v, StrategyReplace, "nobody")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestApply_UnresolvableReferencesBecomeNull(t *testing.T) {
	ctx := context.Background()
	v, _ := sourceA(t)
	ents := &v.Document.Entities
	ents.Transactions[0].CategoryID = ledger.Ref("no-such-category")
	ents.DebtPayments[0].DebtID = ledger.Ref("no-such-debt")
	ents.DebtPayments[0].TransactionID = ledger.Ref("no-such-transaction")
	dst := testutil.NewStore(t, "dst")

	rep, err := newEngine(dst).Apply(ctx, v, StrategyClone, "")
	require.NoError(t, err)

	tx, err := dst.Scope().Transactions().ListByProfile(ctx, rep.TargetProfileID)
	require.NoError(t, err)
	nullCategories := 0
	for _, rec := range tx {
		if rec.CategoryID == nil {
			nullCategories++
		}
	}
	assert.Equal(t, 2, nullCategories, "taxi plus the broken reference")

	dps, err := dst.Scope().DebtPayments().ListByProfile(ctx, rep.TargetProfileID)
	require.NoError(t, err)
	require.Len(t, dps, 2)
	orphans := 0
	for _, p := range dps {
		if p.DebtID == nil {
			orphans++
			assert.Nil(t, p.TransactionID)
		}
	}
	assert.Equal(t, 1, orphans)
}

func TestApply_RecomputesDebtStatus(t *testing.T) {
	ctx := context.Background()
	v, _ := sourceA(t)
	v.Document.Entities.Debts[0].DueDate = ledger.Ref("2024-03-01")
	v.Document.Entities.Debts[0].Status = ledger.DebtOpen
	dst := testutil.NewStore(t, "dst")

	rep, err := newEngine(dst).Apply(ctx, v, StrategyClone, "")
	require.NoError(t, err)

	debts, err := dst.Scope().Debts().ListByProfile(ctx, rep.TargetProfileID)
	require.NoError(t, err)
	require.Len(t, debts, 1)
	assert.Equal(t, ledger.DebtOverdue, debts[0].Status, "500 of 1000 paid, due before 2024-03-15")

	v.Document.Entities.DebtPayments[1].Amount = decimal.NewFromInt(700)
	rep, err = newEngine(dst).Apply(ctx, v, StrategyClone, "")
	require.NoError(t, err)
	debts, err = dst.Scope().Debts().ListByProfile(ctx, rep.TargetProfileID)
	require.NoError(t, err)
	assert.Equal(t, ledger.DebtClosed, debts[0].Status)
}

func TestApply_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	v, _ := sourceA(t)
	// a second budget for the same month and category violates the
	// per-profile uniqueness once both are inserted
	dup := v.Document.Entities.Budgets[0]
	dup.ID = "dup-budget"
	v.Document.Entities.Budgets = append(v.Document.Entities.Budgets, dup)
	dst := testutil.NewStore(t, "dst")

	_, err := newEngine(dst).Apply(ctx, v, StrategyClone, "")
	require.Error(t, err)

	profiles, err := dst.Scope().Profiles().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)
	cats, err := dst.Scope().Categories().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestApply_ReportsIgnoredProfiles(t *testing.T) {
	ctx := context.Background()
	src := testutil.NewStore(t, "src")
	a := testutil.SeedLedger(t, src.Scope(), "Alice")
	other := testutil.SeedLedger(t, src.Scope(), "Zed")

	doc, err := backup.Export(ctx, src.Scope(), "", testutil.Epoch)
	require.NoError(t, err)
	v := validated(t, doc)
	require.Equal(t, a.Profile.ID, v.SourceProfileID)

	rep, err := newEngine(testutil.NewStore(t, "dst")).Apply(ctx, v, StrategyClone, "")
	require.NoError(t, err)
	assert.Equal(t, []string{other.Profile.ID}, rep.IgnoredProfiles)
	assert.Len(t, rep.Warnings, 1)
	assert.Equal(t, 5, rep.Added.Transactions, "only the source profile is imported")
}
