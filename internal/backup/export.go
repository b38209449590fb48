package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/ledgersync/internal/ledger"
)

// Export snapshots one profile, or every profile when profileID is empty.
func Export(ctx context.Context, sc ledger.Scope, profileID string, now time.Time) (*Document, error) {
	schema := ledger.SchemaVersion
	doc := &Document{
		Metadata: Metadata{
			App:            ledger.AppName,
			SchemaVersion:  &schema,
			DatasetVersion: ledger.DatasetVersion,
			Scope:          ScopeAll,
			ExportedAt:     now.UTC(),
		},
	}

	if profileID == "" {
		ents, err := exportAll(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		doc.Entities = ents
		return doc, nil
	}

	profile, err := sc.Profiles().Get(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("export profile %s: %w", profileID, err)
	}
	ents, err := exportProfile(ctx, sc, profileID)
	if err != nil {
		return nil, fmt.Errorf("export profile %s: %w", profileID, err)
	}
	ents.Profiles = []ledger.Profile{profile}

	doc.Metadata.Scope = ScopeProfile
	doc.Metadata.SourceProfileID = profile.ID
	doc.Metadata.SourceProfileName = profile.Name
	doc.Entities = ents
	return doc, nil
}

func exportAll(ctx context.Context, sc ledger.Scope) (Entities, error) {
	var (
		e   Entities
		err error
	)
	if e.Profiles, err = sc.Profiles().List(ctx); err != nil {
		return e, err
	}
	if e.Categories, err = sc.Categories().List(ctx); err != nil {
		return e, err
	}
	if e.Transactions, err = sc.Transactions().List(ctx); err != nil {
		return e, err
	}
	if e.Budgets, err = sc.Budgets().List(ctx); err != nil {
		return e, err
	}
	if e.Payments, err = sc.Payments().List(ctx); err != nil {
		return e, err
	}
	if e.Debts, err = sc.Debts().List(ctx); err != nil {
		return e, err
	}
	e.DebtPayments, err = sc.DebtPayments().List(ctx)
	return e, err
}

func exportProfile(ctx context.Context, sc ledger.Scope, profileID string) (Entities, error) {
	var (
		e   Entities
		err error
	)
	if e.Categories, err = sc.Categories().ListByProfile(ctx, profileID); err != nil {
		return e, err
	}
	if e.Transactions, err = sc.Transactions().ListByProfile(ctx, profileID); err != nil {
		return e, err
	}
	if e.Budgets, err = sc.Budgets().ListByProfile(ctx, profileID); err != nil {
		return e, err
	}
	if e.Payments, err = sc.Payments().ListByProfile(ctx, profileID); err != nil {
		return e, err
	}
	if e.Debts, err = sc.Debts().ListByProfile(ctx, profileID); err != nil {
		return e, err
	}
	e.DebtPayments, err = sc.DebtPayments().ListByProfile(ctx, profileID)
	return e, err
}
