package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ledgersync/internal/backup"
	"github.com/roach88/ledgersync/internal/ledger"
)

// ErrTargetRequired is returned when replace or merge is given no target.
var ErrTargetRequired = errors.New("target profile required")

// Engine applies validated documents to a store.
type Engine struct {
	store  ledger.Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for import timestamps and debt status.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over st.
func New(st ledger.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply imports the source profile of v. Clone ignores target and creates a
// new profile; replace and merge require an existing target. Nothing is
// written unless the whole run succeeds.
func (e *Engine) Apply(ctx context.Context, v *backup.Validated, strategy Strategy, target string) (*Report, error) {
	switch strategy {
	case StrategyClone:
		target = ""
	case StrategyReplace, StrategyMerge:
		if target == "" {
			return nil, fmt.Errorf("%s: %w", strategy, ErrTargetRequired)
		}
	default:
		return nil, fmt.Errorf("unknown import strategy %q", strategy)
	}

	now := e.now().UTC()
	report := &Report{
		Strategy:          strategy,
		SourceProfileID:   v.SourceProfileID,
		SourceProfileName: v.SourceProfileName,
		IgnoredProfiles:   append([]string{}, v.IgnoredProfiles...),
		Warnings:          v.Warnings,
	}

	err := e.store.Atomic(ctx, func(sc ledger.Scope) error {
		r := &run{
			sc:       sc,
			strategy: strategy,
			now:      now,
			report:   report,
			logger:   e.logger,
			remap:    newRemaps(),
		}
		if err := r.prepareTarget(ctx, target); err != nil {
			return err
		}
		if err := r.pipeline(ctx, v.Source()); err != nil {
			return err
		}
		return ledger.RecomputeProfileDebts(ctx, sc, r.target, now.Format(time.DateOnly))
	})
	if err != nil {
		e.logger.Error("import failed",
			"strategy", strategy,
			"source", v.SourceProfileID,
			"target", target,
			"error", err,
		)
		return nil, fmt.Errorf("import %s: %w", strategy, err)
	}

	e.logger.Info("import applied",
		"strategy", strategy,
		"source", report.SourceProfileID,
		"target", report.TargetProfileID,
		"added", report.Added.Total(),
		"updated", report.Updated.Budgets,
		"skipped", report.Skipped.Total(),
		"removed", report.Removed.Total(),
	)
	return report, nil
}

// prepareTarget resolves the target profile for the strategy: a new profile
// for clone, an emptied one for replace, the existing one for merge.
func (r *run) prepareTarget(ctx context.Context, target string) error {
	if r.strategy == StrategyClone {
		p, err := r.sc.Profiles().Insert(ctx, ledger.Profile{
			Name:      r.report.SourceProfileName + " (imported)",
			CreatedAt: r.now,
		})
		if err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		r.target = p.ID
		r.report.TargetProfileID = p.ID
		return nil
	}

	if _, err := r.sc.Profiles().Get(ctx, target); err != nil {
		return fmt.Errorf("target profile: %w", err)
	}
	r.target = target
	r.report.TargetProfileID = target

	if r.strategy == StrategyReplace {
		return r.purge(ctx)
	}
	return nil
}

// purge deletes the target's records in reverse dependency order.
func (r *run) purge(ctx context.Context) error {
	steps := []struct {
		name  string
		del   func(context.Context, string) (int, error)
		count *int
	}{
		{"debt payments", r.sc.DebtPayments().DeleteByProfile, &r.report.Removed.DebtPayments},
		{"payments", r.sc.Payments().DeleteByProfile, &r.report.Removed.Payments},
		{"budgets", r.sc.Budgets().DeleteByProfile, &r.report.Removed.Budgets},
		{"transactions", r.sc.Transactions().DeleteByProfile, &r.report.Removed.Transactions},
		{"debts", r.sc.Debts().DeleteByProfile, &r.report.Removed.Debts},
		{"categories", r.sc.Categories().DeleteByProfile, &r.report.Removed.Categories},
	}
	for _, s := range steps {
		n, err := s.del(ctx, r.target)
		if err != nil {
			return fmt.Errorf("purge %s: %w", s.name, err)
		}
		*s.count = n
	}
	return nil
}
