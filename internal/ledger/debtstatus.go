package ledger

import (
	"github.com/shopspring/decimal"
)

// DebtStatusFor derives a debt's status. A debt is closed once the paid
// amount reaches the principal, overdue when its due date is before today,
// and open otherwise. Dates are YYYY-MM-DD and compare lexically.
func DebtStatusFor(principal, paid decimal.Decimal, dueDate *string, today string) DebtStatus {
	if paid.GreaterThanOrEqual(principal) {
		return DebtClosed
	}
	if dueDate != nil && *dueDate != "" && *dueDate < today {
		return DebtOverdue
	}
	return DebtOpen
}

// NormalizeDebtStatus maps legacy values onto the current set.
func NormalizeDebtStatus(s DebtStatus) DebtStatus {
	switch s {
	case DebtOpen, DebtOverdue, DebtClosed:
		return s
	default:
		// "active" and unknown values
		return DebtOpen
	}
}

// PaidTotal sums the payments that belong to debtID.
func PaidTotal(payments []DebtPayment, debtID string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		if Deref(p.DebtID) == debtID {
			total = total.Add(p.Amount)
		}
	}
	return total
}
