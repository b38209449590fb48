package merge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ledgersync/internal/backup"
	"github.com/roach88/ledgersync/internal/ledger"
)

// Remap maps source ids to target ids for one entity type.
type Remap map[string]string

// Ref rewrites a nullable foreign key. Unknown ids become nil.
func (m Remap) Ref(ref *string) *string {
	if ref == nil {
		return nil
	}
	if id, ok := m[*ref]; ok {
		return &id
	}
	return nil
}

// remaps holds the tables later stages read from.
type remaps struct {
	categories   Remap
	debts        Remap
	transactions Remap
}

func newRemaps() remaps {
	return remaps{
		categories:   Remap{},
		debts:        Remap{},
		transactions: Remap{},
	}
}

// run is the state of one Apply call.
type run struct {
	sc       ledger.Scope
	strategy Strategy
	target   string
	now      time.Time
	report   *Report
	logger   *slog.Logger
	remap    remaps
}

// stage describes how one entity type goes through the pipeline.
type stage[T any] struct {
	name  string
	coll  ledger.Collection[T]
	items []T
	id    func(T) string
	// prepare returns the record as it will be stored in the target: new
	// profile, cleared id, remapped keys.
	prepare func(T) T
	key     func(T) (string, error)
	// onHit handles a content-key hit on an existing record and reports
	// whether it changed it. Nil means the hit is skipped.
	onHit func(ctx context.Context, existingID string, rec T) (bool, error)
	// remap receives source id → target id; nil for types nothing refers to.
	remap   Remap
	added   *int
	updated *int
	skipped *int
}

func (r *run) pipeline(ctx context.Context, src backup.Entities) error {
	rep := r.report
	if err := runStage(ctx, r, stage[ledger.Category]{
		name:    "categories",
		coll:    r.sc.Categories(),
		items:   src.Categories,
		id:      func(c ledger.Category) string { return c.ID },
		prepare: r.prepareCategory,
		key:     ledger.CategoryKey,
		remap:   r.remap.categories,
		added:   &rep.Added.Categories,
		skipped: &rep.Skipped.Categories,
	}); err != nil {
		return err
	}
	if err := runStage(ctx, r, stage[ledger.Debt]{
		name:    "debts",
		coll:    r.sc.Debts(),
		items:   src.Debts,
		id:      func(d ledger.Debt) string { return d.ID },
		prepare: r.prepareDebt,
		key:     ledger.DebtKey,
		remap:   r.remap.debts,
		added:   &rep.Added.Debts,
		skipped: &rep.Skipped.Debts,
	}); err != nil {
		return err
	}
	if err := runStage(ctx, r, stage[ledger.Transaction]{
		name:    "transactions",
		coll:    r.sc.Transactions(),
		items:   src.Transactions,
		id:      func(t ledger.Transaction) string { return t.ID },
		prepare: r.prepareTransaction,
		key:     ledger.TransactionKey,
		remap:   r.remap.transactions,
		added:   &rep.Added.Transactions,
		skipped: &rep.Skipped.Transactions,
	}); err != nil {
		return err
	}
	if err := runStage(ctx, r, stage[ledger.Budget]{
		name:    "budgets",
		coll:    r.sc.Budgets(),
		items:   src.Budgets,
		id:      func(b ledger.Budget) string { return b.ID },
		prepare: r.prepareBudget,
		key:     ledger.BudgetKey,
		onHit:   r.upsertBudget,
		added:   &rep.Added.Budgets,
		updated: &rep.Updated.Budgets,
		skipped: &rep.Skipped.Budgets,
	}); err != nil {
		return err
	}
	if err := runStage(ctx, r, stage[ledger.Payment]{
		name:    "payments",
		coll:    r.sc.Payments(),
		items:   src.Payments,
		id:      func(p ledger.Payment) string { return p.ID },
		prepare: r.preparePayment,
		key:     ledger.PaymentKey,
		added:   &rep.Added.Payments,
		skipped: &rep.Skipped.Payments,
	}); err != nil {
		return err
	}
	return runStage(ctx, r, stage[ledger.DebtPayment]{
		name:    "debt payments",
		coll:    r.sc.DebtPayments(),
		items:   src.DebtPayments,
		id:      func(p ledger.DebtPayment) string { return p.ID },
		prepare: r.prepareDebtPayment,
		key:     ledger.DebtPaymentKey,
		added:   &rep.Added.DebtPayments,
		skipped: &rep.Skipped.DebtPayments,
	})
}

// runStage inserts or matches every item of one entity type.
func runStage[T any](ctx context.Context, r *run, s stage[T]) error {
	// content key → target id; only consulted when merging
	index := map[string]string{}
	if r.strategy == StrategyMerge {
		existing, err := s.coll.ListByProfile(ctx, r.target)
		if err != nil {
			return fmt.Errorf("%s: list target: %w", s.name, err)
		}
		for _, rec := range existing {
			k, err := s.key(rec)
			if err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			if _, dup := index[k]; !dup {
				index[k] = s.id(rec)
			}
		}
	}

	for _, item := range s.items {
		sourceID := s.id(item)
		rec := s.prepare(item)
		k, err := s.key(rec)
		if err != nil {
			return fmt.Errorf("%s %s: %w", s.name, sourceID, err)
		}

		if existingID, hit := index[k]; hit && r.strategy == StrategyMerge {
			changed := false
			if s.onHit != nil {
				if changed, err = s.onHit(ctx, existingID, rec); err != nil {
					return fmt.Errorf("%s %s: %w", s.name, sourceID, err)
				}
			}
			if changed {
				*s.updated++
			} else {
				*s.skipped++
			}
			if s.remap != nil {
				s.remap[sourceID] = existingID
			}
			r.logger.Debug("import record matched",
				"entity", s.name,
				"source_id", sourceID,
				"target_id", existingID,
				"updated", changed,
			)
			continue
		}

		stored, err := s.coll.Insert(ctx, rec)
		if err != nil {
			return fmt.Errorf("%s %s: %w", s.name, sourceID, err)
		}
		index[k] = s.id(stored)
		if s.remap != nil {
			s.remap[sourceID] = s.id(stored)
		}
		*s.added++
		r.logger.Debug("import record added",
			"entity", s.name,
			"source_id", sourceID,
			"target_id", s.id(stored),
		)
	}
	return nil
}

func (r *run) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return r.now
	}
	return t
}

func (r *run) prepareCategory(c ledger.Category) ledger.Category {
	c.ID = ""
	c.ProfileID = r.target
	c.CreatedAt = r.stamp(c.CreatedAt)
	return c
}

func (r *run) prepareDebt(d ledger.Debt) ledger.Debt {
	d.ID = ""
	d.ProfileID = r.target
	d.Currency = ledger.NormalizeCurrency(d.Currency)
	d.Status = ledger.NormalizeDebtStatus(d.Status)
	d.CreatedAt = r.stamp(d.CreatedAt)
	return d
}

func (r *run) prepareTransaction(t ledger.Transaction) ledger.Transaction {
	t.ID = ""
	t.ProfileID = r.target
	t.Currency = ledger.NormalizeCurrency(t.Currency)
	t.CategoryID = r.remap.categories.Ref(t.CategoryID)
	t.CreatedAt = r.stamp(t.CreatedAt)
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	return t
}

func (r *run) prepareBudget(b ledger.Budget) ledger.Budget {
	b.ID = ""
	b.ProfileID = r.target
	b.Currency = ledger.NormalizeCurrency(b.Currency)
	b.CategoryID = r.remap.categories.Ref(b.CategoryID)
	return b
}

func (r *run) preparePayment(p ledger.Payment) ledger.Payment {
	p.ID = ""
	p.ProfileID = r.target
	p.CategoryID = r.remap.categories.Ref(p.CategoryID)
	if p.Status == "" {
		p.Status = ledger.PaymentPlanned
	}
	p.CreatedAt = r.stamp(p.CreatedAt)
	return p
}

func (r *run) prepareDebtPayment(p ledger.DebtPayment) ledger.DebtPayment {
	p.ID = ""
	p.ProfileID = r.target
	p.DebtID = r.remap.debts.Ref(p.DebtID)
	p.TransactionID = r.remap.transactions.Ref(p.TransactionID)
	p.CreatedAt = r.stamp(p.CreatedAt)
	return p
}

// upsertBudget overwrites the limit of a matching budget when it differs,
// taking the incoming currency along with it. A budget whose limit already
// matches is left alone.
func (r *run) upsertBudget(ctx context.Context, existingID string, rec ledger.Budget) (bool, error) {
	existing, err := r.sc.Budgets().Get(ctx, existingID)
	if err != nil {
		return false, err
	}
	if existing.Limit.Equal(rec.Limit) {
		return false, nil
	}
	existing.Limit = rec.Limit
	existing.Currency = rec.Currency
	if err := r.sc.Budgets().Update(ctx, existing); err != nil {
		return false, err
	}
	return true, nil
}
