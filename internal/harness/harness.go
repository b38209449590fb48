package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/ledgersync/internal/backup"
	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/merge"
	"github.com/roach88/ledgersync/internal/store"
	"github.com/roach88/ledgersync/internal/testutil"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Reports holds one import report per step.
	Reports []*merge.Report `json:"reports"`

	// Profiles is the final ledger, one entry per profile.
	Profiles []ProfileState `json:"profiles"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// ProfileState summarizes one profile of the final ledger.
type ProfileState struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Counts map[string]int `json:"counts"`
	Debts  []DebtState    `json:"debts,omitempty"`
}

// DebtState is a debt with its derived totals.
type DebtState struct {
	Counterparty string            `json:"counterparty"`
	Status       ledger.DebtStatus `json:"status"`
	Paid         string            `json:"paid"`
	Remaining    string            `json:"remaining"`
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run executes a scenario in a fresh in-memory database.
//
// Execution flow:
// 1. Open the database with sequential ids and a frozen clock
// 2. Load the target document, if any
// 3. Validate and import each step's document, checking its expectations
// 4. Evaluate assertions and capture the final ledger
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	clock := testutil.NewClock(testutil.Epoch)
	st, err := store.Open(":memory:",
		store.WithIDGenerator(ledger.NewSequentialGenerator("id")),
		store.WithClock(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if scenario.Target != "" {
		doc, err := loadDocument(scenario.Target)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
		if err := seed(ctx, st, doc.Entities); err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
	}

	engine := merge.New(st,
		merge.WithClock(clock.Now),
		merge.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result := &Result{Pass: true, Reports: []*merge.Report{}}
	for i, step := range scenario.Steps {
		v, err := validateFile(step.Import)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		report, err := engine.Apply(ctx, v, step.Strategy, step.Profile)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		result.Reports = append(result.Reports, report)
		for _, msg := range checkExpect(step.Expect, report) {
			result.AddError(fmt.Sprintf("steps[%d]: %s", i, msg))
		}
	}

	for _, msg := range EvaluateAssertions(ctx, st, clock.Now(), scenario.Assertions) {
		result.AddError(msg)
	}

	profiles, err := snapshot(ctx, st.Scope(), clock.Today())
	if err != nil {
		return nil, err
	}
	result.Profiles = profiles
	return result, nil
}

func validateFile(path string) (*backup.Validated, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := backup.Read(f, backup.FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	return backup.Validate(raw)
}

func loadDocument(path string) (*backup.Document, error) {
	v, err := validateFile(path)
	if err != nil {
		return nil, err
	}
	return v.Document, nil
}

// seed inserts every record with its own id, parents first.
func seed(ctx context.Context, st ledger.Store, e backup.Entities) error {
	return st.Atomic(ctx, func(sc ledger.Scope) error {
		if err := insertAll(ctx, sc.Profiles(), e.Profiles); err != nil {
			return err
		}
		if err := insertAll(ctx, sc.Categories(), e.Categories); err != nil {
			return err
		}
		if err := insertAll(ctx, sc.Debts(), e.Debts); err != nil {
			return err
		}
		if err := insertAll(ctx, sc.Transactions(), e.Transactions); err != nil {
			return err
		}
		if err := insertAll(ctx, sc.Budgets(), e.Budgets); err != nil {
			return err
		}
		if err := insertAll(ctx, sc.Payments(), e.Payments); err != nil {
			return err
		}
		return insertAll(ctx, sc.DebtPayments(), e.DebtPayments)
	})
}

func insertAll[T any](ctx context.Context, c ledger.Collection[T], items []T) error {
	for _, it := range items {
		if _, err := c.Insert(ctx, it); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}

// checkExpect compares the requested report sections.
func checkExpect(exp *StepExpect, r *merge.Report) []string {
	if exp == nil {
		return nil
	}
	var errs []string
	compare := func(section string, want, got any) {
		if want != got {
			errs = append(errs, fmt.Sprintf("%s: expected %+v, got %+v", section, want, got))
		}
	}
	if exp.Added != nil {
		compare("added", *exp.Added, r.Added)
	}
	if exp.Updated != nil {
		compare("updated", *exp.Updated, r.Updated)
	}
	if exp.Skipped != nil {
		compare("skipped", *exp.Skipped, r.Skipped)
	}
	if exp.Removed != nil {
		compare("removed", *exp.Removed, r.Removed)
	}
	return errs
}

// snapshot captures every profile's record counts and debt totals.
func snapshot(ctx context.Context, sc ledger.Scope, today string) ([]ProfileState, error) {
	profiles, err := sc.Profiles().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	out := make([]ProfileState, 0, len(profiles))
	for _, p := range profiles {
		entities, err := profileEntities(ctx, sc, p.ID)
		if err != nil {
			return nil, err
		}
		summaries, err := ledger.DebtSummaries(ctx, sc, p.ID, today)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		state := ProfileState{ID: p.ID, Name: p.Name, Counts: entities.Count()}
		for _, s := range summaries {
			state.Debts = append(state.Debts, DebtState{
				Counterparty: s.Counterparty,
				Status:       s.Status,
				Paid:         s.Paid.String(),
				Remaining:    s.Remaining.String(),
			})
		}
		out = append(out, state)
	}
	return out, nil
}

func profileEntities(ctx context.Context, sc ledger.Scope, profileID string) (backup.Entities, error) {
	doc, err := backup.Export(ctx, sc, profileID, testutil.Epoch)
	if err != nil {
		return backup.Entities{}, fmt.Errorf("read profile %s: %w", profileID, err)
	}
	return doc.Entities, nil
}
