package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Violation is a foreign key that does not resolve inside its profile.
type Violation struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Field  string `json:"field"`
	Ref    string `json:"ref"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s: %s=%s does not resolve", v.Entity, v.ID, v.Field, v.Ref)
}

// CheckIntegrity returns every foreign key in the profile that is neither nil
// nor a record of the same profile.
func CheckIntegrity(ctx context.Context, sc Scope, profileID string) ([]Violation, error) {
	categories, err := sc.Categories().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	debts, err := sc.Debts().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	txs, err := sc.Transactions().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	budgets, err := sc.Budgets().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	payments, err := sc.Payments().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	debtPayments, err := sc.DebtPayments().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	catIDs := idSet(categories, func(c Category) string { return c.ID })
	debtIDs := idSet(debts, func(d Debt) string { return d.ID })
	txIDs := idSet(txs, func(t Transaction) string { return t.ID })

	var out []Violation
	check := func(entity, id, field string, ref *string, known map[string]bool) {
		if ref != nil && !known[*ref] {
			out = append(out, Violation{Entity: entity, ID: id, Field: field, Ref: *ref})
		}
	}
	for _, t := range txs {
		check("transaction", t.ID, "categoryId", t.CategoryID, catIDs)
	}
	for _, b := range budgets {
		check("budget", b.ID, "categoryId", b.CategoryID, catIDs)
	}
	for _, p := range payments {
		check("payment", p.ID, "categoryId", p.CategoryID, catIDs)
	}
	for _, p := range debtPayments {
		check("debtPayment", p.ID, "debtId", p.DebtID, debtIDs)
		check("debtPayment", p.ID, "transactionId", p.TransactionID, txIDs)
	}
	return out, nil
}

func idSet[T any](items []T, id func(T) string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[id(it)] = true
	}
	return set
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
