package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// AddPayment creates a payment reminder. Status defaults to planned.
func AddPayment(ctx context.Context, st Store, p Payment, now time.Time) (Payment, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Status == "" {
		p.Status = PaymentPlanned
	}
	p.CreatedAt = now.UTC()
	if err := p.Validate(); err != nil {
		return Payment{}, err
	}

	var out Payment
	err := st.Atomic(ctx, func(sc Scope) error {
		if _, err := sc.Profiles().Get(ctx, p.ProfileID); err != nil {
			return err
		}
		if p.CategoryID != nil {
			if _, err := profileCategory(ctx, sc, p.ProfileID, *p.CategoryID); err != nil {
				return err
			}
		}
		var err error
		out, err = sc.Payments().Insert(ctx, p)
		return err
	})
	if err != nil {
		return Payment{}, fmt.Errorf("add payment: %w", err)
	}
	return out, nil
}

// CompletePayment marks a payment of the profile as done.
func CompletePayment(ctx context.Context, st Store, profileID, paymentID string) (Payment, error) {
	var out Payment
	err := st.Atomic(ctx, func(sc Scope) error {
		p, err := sc.Payments().Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.ProfileID != profileID {
			return fmt.Errorf("payment %s: %w", paymentID, ErrNotFound)
		}
		p.Status = PaymentDone
		out = p
		return sc.Payments().Update(ctx, p)
	})
	if err != nil {
		return Payment{}, fmt.Errorf("complete payment: %w", err)
	}
	return out, nil
}

// Overdue reports whether a planned payment's due date is before today.
func (p Payment) Overdue(today string) bool {
	return p.Status == PaymentPlanned && p.DueDate < today
}

// UpcomingPayment is a planned payment with its overdue flag.
type UpcomingPayment struct {
	Payment
	Overdue bool `json:"overdue"`
}

// UpcomingPayments returns the profile's planned payments by due date,
// overdue ones included. limit <= 0 returns all of them.
func UpcomingPayments(ctx context.Context, sc Scope, profileID, today string, limit int) ([]UpcomingPayment, error) {
	payments, err := sc.Payments().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out := []UpcomingPayment{}
	for _, p := range payments {
		if p.Status != PaymentPlanned {
			continue
		}
		out = append(out, UpcomingPayment{Payment: p, Overdue: p.Overdue(today)})
	}
	slices.SortStableFunc(out, func(a, b UpcomingPayment) int {
		if c := cmp.Compare(a.DueDate, b.DueDate); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
