package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DebtPaymentInput describes a repayment to record.
type DebtPaymentInput struct {
	ProfileID string
	DebtID    string
	Date      string
	Amount    decimal.Decimal
	Note      string

	// CreateTransaction also records the money movement as a transaction,
	// atomically with the payment.
	CreateTransaction     bool
	TransactionCategoryID *string
}

// AddDebtPayment records a payment against a debt, optionally creating the
// linked transaction, and recomputes the debt's status. Everything happens in
// one atomic scope.
func AddDebtPayment(ctx context.Context, st Store, in DebtPaymentInput, now time.Time) (DebtPayment, error) {
	var out DebtPayment
	err := st.Atomic(ctx, func(sc Scope) error {
		debt, err := profileDebt(ctx, sc, in.ProfileID, in.DebtID)
		if err != nil {
			return err
		}

		p := DebtPayment{
			ProfileID: in.ProfileID,
			DebtID:    &debt.ID,
			Date:      in.Date,
			Amount:    in.Amount,
			Note:      in.Note,
			CreatedAt: now.UTC(),
		}
		if err := p.Validate(); err != nil {
			return err
		}

		if in.CreateTransaction {
			if in.TransactionCategoryID != nil {
				if _, err := profileCategory(ctx, sc, in.ProfileID, *in.TransactionCategoryID); err != nil {
					return err
				}
			}
			tx, err := sc.Transactions().Insert(ctx, linkedTransaction(debt, p, in.TransactionCategoryID, now))
			if err != nil {
				return fmt.Errorf("insert linked transaction: %w", err)
			}
			p.TransactionID = &tx.ID
		}

		out, err = sc.DebtPayments().Insert(ctx, p)
		if err != nil {
			return fmt.Errorf("insert debt payment: %w", err)
		}

		_, err = RecomputeDebtStatus(ctx, sc, debt.ID, now.Format(time.DateOnly))
		return err
	})
	if err != nil {
		return DebtPayment{}, fmt.Errorf("add debt payment: %w", err)
	}
	return out, nil
}

// UpdateDebtPayment changes amount, date or note of a payment and recomputes
// the status of its debt.
func UpdateDebtPayment(ctx context.Context, st Store, p DebtPayment, now time.Time) error {
	err := st.Atomic(ctx, func(sc Scope) error {
		old, err := sc.DebtPayments().Get(ctx, p.ID)
		if err != nil {
			return err
		}
		if old.ProfileID != p.ProfileID {
			return fmt.Errorf("debt payment %s: %w", p.ID, ErrNotFound)
		}
		// The debt link and linked transaction are not editable.
		p.DebtID = old.DebtID
		p.TransactionID = old.TransactionID
		p.CreatedAt = old.CreatedAt
		if err := p.Validate(); err != nil {
			return err
		}
		if err := sc.DebtPayments().Update(ctx, p); err != nil {
			return err
		}
		_, err = RecomputeDebtStatus(ctx, sc, Deref(p.DebtID), now.Format(time.DateOnly))
		return err
	})
	if err != nil {
		return fmt.Errorf("update debt payment: %w", err)
	}
	return nil
}

// DeleteDebtPayment removes a payment. The linked transaction is removed too
// only when deleteLinked is set.
func DeleteDebtPayment(ctx context.Context, st Store, profileID, paymentID string, deleteLinked bool, now time.Time) error {
	err := st.Atomic(ctx, func(sc Scope) error {
		p, err := sc.DebtPayments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.ProfileID != profileID {
			return fmt.Errorf("debt payment %s: %w", paymentID, ErrNotFound)
		}
		if err := sc.DebtPayments().Delete(ctx, paymentID); err != nil {
			return err
		}
		if deleteLinked && p.TransactionID != nil {
			if err := sc.Transactions().Delete(ctx, *p.TransactionID); err != nil && !isNotFound(err) {
				return fmt.Errorf("delete linked transaction: %w", err)
			}
		}
		if p.DebtID == nil {
			return nil
		}
		_, err = RecomputeDebtStatus(ctx, sc, *p.DebtID, now.Format(time.DateOnly))
		return err
	})
	if err != nil {
		return fmt.Errorf("delete debt payment: %w", err)
	}
	return nil
}

// DeleteDebt removes a debt and all of its payments.
func DeleteDebt(ctx context.Context, st Store, profileID, debtID string) error {
	return st.Atomic(ctx, func(sc Scope) error {
		if _, err := profileDebt(ctx, sc, profileID, debtID); err != nil {
			return err
		}
		payments, err := sc.DebtPayments().ListByProfile(ctx, profileID)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if Deref(p.DebtID) != debtID {
				continue
			}
			if err := sc.DebtPayments().Delete(ctx, p.ID); err != nil {
				return err
			}
		}
		return sc.Debts().Delete(ctx, debtID)
	})
}

// RecomputeDebtStatus derives the debt's status from its payments and writes
// it back when it changed. The stored status is never trusted.
func RecomputeDebtStatus(ctx context.Context, sc Scope, debtID, today string) (DebtStatus, error) {
	debt, err := sc.Debts().Get(ctx, debtID)
	if err != nil {
		return "", fmt.Errorf("recompute debt status: %w", err)
	}
	payments, err := sc.DebtPayments().ListByProfile(ctx, debt.ProfileID)
	if err != nil {
		return "", fmt.Errorf("recompute debt status: %w", err)
	}
	status := DebtStatusFor(debt.Principal, PaidTotal(payments, debt.ID), debt.DueDate, today)
	if status == debt.Status {
		return status, nil
	}
	debt.Status = status
	if err := sc.Debts().Update(ctx, debt); err != nil {
		return "", fmt.Errorf("recompute debt status: %w", err)
	}
	return status, nil
}

// RecomputeProfileDebts recomputes the status of every debt in a profile.
func RecomputeProfileDebts(ctx context.Context, sc Scope, profileID, today string) error {
	debts, err := sc.Debts().ListByProfile(ctx, profileID)
	if err != nil {
		return err
	}
	for _, d := range debts {
		if _, err := RecomputeDebtStatus(ctx, sc, d.ID, today); err != nil {
			return err
		}
	}
	return nil
}

// DebtSummary is a debt with its repayment totals.
type DebtSummary struct {
	Debt
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

var statusOrder = map[DebtStatus]int{DebtOverdue: 0, DebtOpen: 1, DebtClosed: 2}

// DebtSummaries lists a profile's debts with fresh totals, overdue first,
// then open, then closed, each group by due date.
func DebtSummaries(ctx context.Context, sc Scope, profileID, today string) ([]DebtSummary, error) {
	debts, err := sc.Debts().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	payments, err := sc.DebtPayments().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	out := make([]DebtSummary, 0, len(debts))
	for _, d := range debts {
		paid := PaidTotal(payments, d.ID)
		d.Status = DebtStatusFor(d.Principal, paid, d.DueDate, today)
		out = append(out, DebtSummary{
			Debt:      d,
			Paid:      paid,
			Remaining: decimal.Max(decimal.Zero, d.Principal.Sub(paid)),
		})
	}

	slices.SortStableFunc(out, func(a, b DebtSummary) int {
		if c := cmp.Compare(statusOrder[a.Status], statusOrder[b.Status]); c != 0 {
			return c
		}
		return cmp.Compare(dueOrMax(a.DueDate), dueOrMax(b.DueDate))
	})
	return out, nil
}

func dueOrMax(s *string) string {
	if s == nil {
		return "9999-12-31"
	}
	return *s
}

func profileDebt(ctx context.Context, sc Scope, profileID, debtID string) (Debt, error) {
	debt, err := sc.Debts().Get(ctx, debtID)
	if err != nil {
		return Debt{}, err
	}
	if debt.ProfileID != profileID {
		return Debt{}, fmt.Errorf("debt %s: %w", debtID, ErrNotFound)
	}
	return debt, nil
}

func profileCategory(ctx context.Context, sc Scope, profileID, categoryID string) (Category, error) {
	c, err := sc.Categories().Get(ctx, categoryID)
	if err != nil {
		return Category{}, err
	}
	if c.ProfileID != profileID {
		return Category{}, fmt.Errorf("category %s: %w", categoryID, ErrNotFound)
	}
	return c, nil
}

func linkedTransaction(debt Debt, p DebtPayment, categoryID *string, now time.Time) Transaction {
	direction := DirectionIncome
	if debt.Direction == DebtIOwe {
		direction = DirectionExpense
	}
	note := "[Debt] payment"
	if p.Note != "" {
		note = "[Debt] " + p.Note
	}
	occurred, err := time.Parse(time.DateOnly, p.Date)
	if err != nil {
		occurred = now
	}
	return Transaction{
		ProfileID:  p.ProfileID,
		Direction:  direction,
		Amount:     p.Amount,
		Currency:   NormalizeCurrency(debt.Currency),
		CategoryID: categoryID,
		Note:       note,
		OccurredAt: occurred.UTC(),
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
}
