package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// BudgetState tells how much of a budget is used.
type BudgetState string

const (
	BudgetOK       BudgetState = "ok"
	BudgetNear     BudgetState = "near"
	BudgetExceeded BudgetState = "exceeded"
)

// NearThreshold is the used percentage from which a budget is near its
// limit.
var NearThreshold = decimal.NewFromInt(80)

// SetBudget creates the profile's budget for (month, category) or replaces
// the limit and currency of the existing one. It reports whether a budget
// was created.
func SetBudget(ctx context.Context, st Store, b Budget) (Budget, bool, error) {
	b.Currency = NormalizeCurrency(b.Currency)
	if err := b.Validate(); err != nil {
		return Budget{}, false, err
	}
	if b.CategoryID == nil {
		return Budget{}, false, &ValidationError{Entity: "budget", Fields: []FieldError{{Field: "categoryId", Message: "required"}}}
	}

	var (
		out     Budget
		created bool
	)
	err := st.Atomic(ctx, func(sc Scope) error {
		cat, err := profileCategory(ctx, sc, b.ProfileID, *b.CategoryID)
		if err != nil {
			return err
		}
		if cat.Type != CategoryExpense {
			return &ValidationError{Entity: "budget", Fields: []FieldError{{Field: "categoryId", Message: "must be an expense category"}}}
		}

		budgets, err := sc.Budgets().ListByProfile(ctx, b.ProfileID)
		if err != nil {
			return err
		}
		for _, existing := range budgets {
			if existing.Month != b.Month || Deref(existing.CategoryID) != *b.CategoryID {
				continue
			}
			existing.Limit, existing.Currency = b.Limit, b.Currency
			out = existing
			return sc.Budgets().Update(ctx, existing)
		}
		out, err = sc.Budgets().Insert(ctx, b)
		created = err == nil
		return err
	})
	if err != nil {
		return Budget{}, false, fmt.Errorf("set budget: %w", err)
	}
	return out, created, nil
}

// SpentByCategory sums the profile's expenses in month per category and
// currency. Uncategorized expenses are not counted.
func SpentByCategory(ctx context.Context, sc Scope, profileID, month string) (map[SpendKey]decimal.Decimal, error) {
	txs, err := sc.Transactions().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	spent := map[SpendKey]decimal.Decimal{}
	prefix := month + "-"
	for _, t := range txs {
		if t.Direction != DirectionExpense || t.CategoryID == nil || !strings.HasPrefix(t.Date(), prefix) {
			continue
		}
		k := SpendKey{CategoryID: *t.CategoryID, Currency: NormalizeCurrency(t.Currency)}
		spent[k] = spent[k].Add(t.Amount)
	}
	return spent, nil
}

// SpendKey groups spending by category and currency.
type SpendKey struct {
	CategoryID string
	Currency   string
}

// BudgetStatus is a budget with what was spent against it.
type BudgetStatus struct {
	Budget
	Category string          `json:"category"`
	Spent    decimal.Decimal `json:"spent"`
	Percent  decimal.Decimal `json:"percent"`
	State    BudgetState     `json:"state"`
}

// BudgetStatuses returns the month's budgets with their spending, most used
// first. Only expenses in the budget's currency count against it. Percent
// is clamped to 0..100.
func BudgetStatuses(ctx context.Context, sc Scope, profileID, month string) ([]BudgetStatus, error) {
	budgets, err := sc.Budgets().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	cats, err := sc.Categories().ListByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	spent, err := SpentByCategory(ctx, sc, profileID, month)
	if err != nil {
		return nil, err
	}

	out := []BudgetStatus{}
	for _, b := range budgets {
		if b.Month != month {
			continue
		}
		s := BudgetStatus{Budget: b, Category: "-", Spent: decimal.Zero}
		if b.CategoryID != nil {
			s.Spent = spent[SpendKey{CategoryID: *b.CategoryID, Currency: NormalizeCurrency(b.Currency)}]
			if name, ok := names[*b.CategoryID]; ok {
				s.Category = name
			}
		}
		s.Percent, s.State = budgetUse(s.Spent, b.Limit)
		out = append(out, s)
	}

	slices.SortStableFunc(out, func(a, b BudgetStatus) int {
		if c := b.Percent.Cmp(a.Percent); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out, nil
}

// BudgetAlerts returns the top most used budgets of the month.
func BudgetAlerts(ctx context.Context, sc Scope, profileID, month string, top int) ([]BudgetStatus, error) {
	statuses, err := BudgetStatuses(ctx, sc, profileID, month)
	if err != nil {
		return nil, err
	}
	if top > 0 && len(statuses) > top {
		statuses = statuses[:top]
	}
	return statuses, nil
}

func budgetUse(spent, limit decimal.Decimal) (decimal.Decimal, BudgetState) {
	hundred := decimal.NewFromInt(100)
	divisor := limit
	if !divisor.IsPositive() {
		divisor = decimal.NewFromInt(1)
	}
	pct := spent.Div(divisor).Mul(hundred).Round(1)
	pct = decimal.Max(decimal.Zero, decimal.Min(hundred, pct))

	switch {
	case spent.GreaterThanOrEqual(limit):
		return pct, BudgetExceeded
	case pct.GreaterThanOrEqual(NearThreshold):
		return pct, BudgetNear
	default:
		return pct, BudgetOK
	}
}
