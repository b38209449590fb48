package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryType classifies a category. Immutable once the category exists.
type CategoryType string

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

// Direction is the money flow of a transaction.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// PaymentStatus is the state of a payment reminder.
type PaymentStatus string

const (
	PaymentPlanned PaymentStatus = "planned"
	PaymentDone    PaymentStatus = "done"
)

// DebtDirection tells who owes whom.
type DebtDirection string

const (
	DebtIOwe     DebtDirection = "i_owe"
	DebtOwedToMe DebtDirection = "owed_to_me"
)

// DebtStatus is derived from the debt's payments and due date.
type DebtStatus string

const (
	DebtOpen    DebtStatus = "open"
	DebtOverdue DebtStatus = "overdue"
	DebtClosed  DebtStatus = "closed"
)

// Profile is an isolated per-user partition of the ledger.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Category groups transactions, budgets and payments.
type Category struct {
	ID        string       `json:"id"`
	ProfileID string       `json:"profileId"`
	Type      CategoryType `json:"type"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Transaction is a single money movement.
type Transaction struct {
	ID         string          `json:"id"`
	ProfileID  string          `json:"profileId"`
	Direction  Direction       `json:"direction"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	CategoryID *string         `json:"categoryId"`
	Note       string          `json:"note"`
	OccurredAt time.Time       `json:"occurredAt"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Date returns the calendar day of the transaction (UTC, YYYY-MM-DD).
func (t Transaction) Date() string {
	return t.OccurredAt.UTC().Format(time.DateOnly)
}

// Budget is a spending limit for one category in one month.
type Budget struct {
	ID         string          `json:"id"`
	ProfileID  string          `json:"profileId"`
	Month      string          `json:"month"`
	CategoryID *string         `json:"categoryId"`
	Limit      decimal.Decimal `json:"limit"`
	Currency   string          `json:"currency"`
}

// Payment is a reminder for a planned or recurring payment.
type Payment struct {
	ID         string          `json:"id"`
	ProfileID  string          `json:"profileId"`
	DueDate    string          `json:"dueDate"`
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	CategoryID *string         `json:"categoryId"`
	Status     PaymentStatus   `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Debt is money lent or borrowed. Status is derived; see DebtStatusFor.
type Debt struct {
	ID           string          `json:"id"`
	ProfileID    string          `json:"profileId"`
	Direction    DebtDirection   `json:"direction"`
	Counterparty string          `json:"counterparty"`
	Principal    decimal.Decimal `json:"principal"`
	Currency     string          `json:"currency"`
	StartDate    string          `json:"startDate"`
	DueDate      *string         `json:"dueDate"`
	Status       DebtStatus      `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// DebtPayment is a repayment towards a debt, optionally linked to the
// transaction that moved the money.
type DebtPayment struct {
	ID            string          `json:"id"`
	ProfileID     string          `json:"profileId"`
	DebtID        *string         `json:"debtId"`
	TransactionID *string         `json:"transactionId"`
	Date          string          `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ReplicaTransaction is a Transaction mirrored from the remote authority,
// carrying its local sync bookkeeping.
type ReplicaTransaction struct {
	Transaction
	DeletedAt   *time.Time `json:"deletedAt"`
	SyncStatus  SyncStatus `json:"syncStatus"`
	MutationSeq int64      `json:"mutationSeq"`

	// AttemptedSeq is the MutationSeq of the last create sent for the row,
	// or 0 when no create was ever sent.
	AttemptedSeq int64 `json:"-"`
}

// Ref returns a pointer to s, or nil when s is empty.
func Ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
