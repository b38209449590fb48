package ledger

import (
	"strings"
	"time"
)

func validDate(s string) bool {
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func validMonth(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil
}

// Validate checks the fields of a transaction.
func (t Transaction) Validate() error {
	c := fieldChecker{entity: "transaction"}
	c.check(t.ProfileID != "", "profileId", "required")
	c.check(t.Direction == DirectionIncome || t.Direction == DirectionExpense, "direction", "must be income or expense")
	c.check(!t.Amount.IsNegative(), "amount", "must not be negative")
	c.check(ValidCurrency(t.Currency), "currency", "unknown currency "+t.Currency)
	c.check(!t.OccurredAt.IsZero(), "occurredAt", "required")
	return c.err()
}

// Validate checks the fields of a category.
func (cat Category) Validate() error {
	c := fieldChecker{entity: "category"}
	c.check(cat.ProfileID != "", "profileId", "required")
	c.check(cat.Type == CategoryExpense || cat.Type == CategoryIncome, "type", "must be expense or income")
	c.check(strings.TrimSpace(cat.Name) != "", "name", "required")
	return c.err()
}

// Validate checks the fields of a budget.
func (b Budget) Validate() error {
	c := fieldChecker{entity: "budget"}
	c.check(b.ProfileID != "", "profileId", "required")
	c.check(validMonth(b.Month), "month", "must be YYYY-MM")
	c.check(!b.Limit.IsNegative(), "limit", "must not be negative")
	return c.err()
}

// Validate checks the fields of a payment reminder.
func (p Payment) Validate() error {
	c := fieldChecker{entity: "payment"}
	c.check(p.ProfileID != "", "profileId", "required")
	c.check(validDate(p.DueDate), "dueDate", "must be YYYY-MM-DD")
	c.check(strings.TrimSpace(p.Title) != "", "title", "required")
	c.check(!p.Amount.IsNegative(), "amount", "must not be negative")
	c.check(p.Status == PaymentPlanned || p.Status == PaymentDone, "status", "must be planned or done")
	return c.err()
}

// Validate checks the fields of a debt.
func (d Debt) Validate() error {
	c := fieldChecker{entity: "debt"}
	c.check(d.ProfileID != "", "profileId", "required")
	c.check(d.Direction == DebtIOwe || d.Direction == DebtOwedToMe, "direction", "must be i_owe or owed_to_me")
	c.check(strings.TrimSpace(d.Counterparty) != "", "counterparty", "required")
	c.check(d.Principal.IsPositive(), "principal", "must be positive")
	c.check(validDate(d.StartDate), "startDate", "must be YYYY-MM-DD")
	c.check(d.DueDate == nil || validDate(*d.DueDate), "dueDate", "must be YYYY-MM-DD")
	return c.err()
}

// Validate checks the fields of a debt payment.
func (p DebtPayment) Validate() error {
	c := fieldChecker{entity: "debt payment"}
	c.check(p.ProfileID != "", "profileId", "required")
	c.check(p.DebtID != nil, "debtId", "required")
	c.check(p.Amount.IsPositive(), "amount", "must be positive")
	c.check(validDate(p.Date), "date", "must be YYYY-MM-DD")
	return c.err()
}
