package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/ledgersync/internal/ledger"
)

var profilesTable = &table[ledger.Profile]{
	name:          "profiles",
	entity:        "profile",
	columns:       []string{"id", "name", "created_at"},
	profileColumn: "id",
	orderBy:       "created_at ASC, id COLLATE BINARY ASC",
	values: func(p ledger.Profile) []any {
		return []any{p.ID, p.Name, formatTime(p.CreatedAt)}
	},
	scan: func(r rowScanner) (ledger.Profile, error) {
		var p ledger.Profile
		var created string
		if err := r.Scan(&p.ID, &p.Name, &created); err != nil {
			return p, err
		}
		var err error
		p.CreatedAt, err = parseTime(created)
		return p, err
	},
	id:    func(p ledger.Profile) string { return p.ID },
	setID: func(p *ledger.Profile, id string) { p.ID = id },
}

var categoriesTable = &table[ledger.Category]{
	name:          "categories",
	entity:        "category",
	columns:       []string{"id", "profile_id", "type", "name", "created_at"},
	profileColumn: "profile_id",
	orderBy:       "created_at ASC, id COLLATE BINARY ASC",
	values: func(c ledger.Category) []any {
		return []any{c.ID, c.ProfileID, string(c.Type), c.Name, formatTime(c.CreatedAt)}
	},
	scan: func(r rowScanner) (ledger.Category, error) {
		var c ledger.Category
		var typ, created string
		if err := r.Scan(&c.ID, &c.ProfileID, &typ, &c.Name, &created); err != nil {
			return c, err
		}
		c.Type = ledger.CategoryType(typ)
		var err error
		c.CreatedAt, err = parseTime(created)
		return c, err
	},
	id:    func(c ledger.Category) string { return c.ID },
	setID: func(c *ledger.Category, id string) { c.ID = id },
	guard: func(old, next ledger.Category) error {
		if old.Type != next.Type {
			return fmt.Errorf("category type %s -> %s: %w", old.Type, next.Type, ledger.ErrImmutable)
		}
		if old.ProfileID != next.ProfileID {
			return fmt.Errorf("category profile: %w", ledger.ErrImmutable)
		}
		return nil
	},
}

var transactionsTable = &table[ledger.Transaction]{
	name:   "transactions",
	entity: "transaction",
	columns: []string{
		"id", "profile_id", "direction", "amount", "currency", "category_id",
		"note", "occurred_at", "created_at", "updated_at",
	},
	profileColumn: "profile_id",
	orderBy:       "occurred_at ASC, id COLLATE BINARY ASC",
	values: func(t ledger.Transaction) []any {
		return []any{
			t.ID, t.ProfileID, string(t.Direction), t.Amount, t.Currency, t.CategoryID,
			t.Note, formatTime(t.OccurredAt), formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		}
	},
	scan:  scanTransaction,
	id:    func(t ledger.Transaction) string { return t.ID },
	setID: func(t *ledger.Transaction, id string) { t.ID = id },
}

func scanTransaction(r rowScanner) (ledger.Transaction, error) {
	var (
		t                          ledger.Transaction
		direction                  string
		category                   sql.NullString
		occurred, created, updated string
	)
	err := r.Scan(&t.ID, &t.ProfileID, &direction, &t.Amount, &t.Currency, &category,
		&t.Note, &occurred, &created, &updated)
	if err != nil {
		return t, err
	}
	t.Direction = ledger.Direction(direction)
	t.CategoryID = stringPtr(category)
	if t.OccurredAt, err = parseTime(occurred); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	t.UpdatedAt, err = parseTime(updated)
	return t, err
}

var budgetsTable = &table[ledger.Budget]{
	name:          "budgets",
	entity:        "budget",
	columns:       []string{"id", "profile_id", "month", "category_id", "limit_amount", "currency"},
	profileColumn: "profile_id",
	orderBy:       "month ASC, id COLLATE BINARY ASC",
	values: func(b ledger.Budget) []any {
		return []any{b.ID, b.ProfileID, b.Month, b.CategoryID, b.Limit, b.Currency}
	},
	scan: func(r rowScanner) (ledger.Budget, error) {
		var b ledger.Budget
		var category sql.NullString
		if err := r.Scan(&b.ID, &b.ProfileID, &b.Month, &category, &b.Limit, &b.Currency); err != nil {
			return b, err
		}
		b.CategoryID = stringPtr(category)
		return b, nil
	},
	id:    func(b ledger.Budget) string { return b.ID },
	setID: func(b *ledger.Budget, id string) { b.ID = id },
}

var paymentsTable = &table[ledger.Payment]{
	name:          "payments",
	entity:        "payment",
	columns:       []string{"id", "profile_id", "due_date", "title", "amount", "category_id", "status", "created_at"},
	profileColumn: "profile_id",
	orderBy:       "due_date ASC, id COLLATE BINARY ASC",
	values: func(p ledger.Payment) []any {
		return []any{p.ID, p.ProfileID, p.DueDate, p.Title, p.Amount, p.CategoryID, string(p.Status), formatTime(p.CreatedAt)}
	},
	scan: func(r rowScanner) (ledger.Payment, error) {
		var p ledger.Payment
		var category sql.NullString
		var status, created string
		if err := r.Scan(&p.ID, &p.ProfileID, &p.DueDate, &p.Title, &p.Amount, &category, &status, &created); err != nil {
			return p, err
		}
		p.CategoryID = stringPtr(category)
		p.Status = ledger.PaymentStatus(status)
		var err error
		p.CreatedAt, err = parseTime(created)
		return p, err
	},
	id:    func(p ledger.Payment) string { return p.ID },
	setID: func(p *ledger.Payment, id string) { p.ID = id },
}

var debtsTable = &table[ledger.Debt]{
	name:   "debts",
	entity: "debt",
	columns: []string{
		"id", "profile_id", "direction", "counterparty", "principal", "currency",
		"start_date", "due_date", "status", "created_at",
	},
	profileColumn: "profile_id",
	orderBy:       "start_date ASC, id COLLATE BINARY ASC",
	values: func(d ledger.Debt) []any {
		return []any{
			d.ID, d.ProfileID, string(d.Direction), d.Counterparty, d.Principal, d.Currency,
			d.StartDate, d.DueDate, string(d.Status), formatTime(d.CreatedAt),
		}
	},
	scan: func(r rowScanner) (ledger.Debt, error) {
		var (
			d                          ledger.Debt
			direction, status, created string
			due                        sql.NullString
		)
		err := r.Scan(&d.ID, &d.ProfileID, &direction, &d.Counterparty, &d.Principal, &d.Currency,
			&d.StartDate, &due, &status, &created)
		if err != nil {
			return d, err
		}
		d.Direction = ledger.DebtDirection(direction)
		d.DueDate = stringPtr(due)
		d.Status = ledger.NormalizeDebtStatus(ledger.DebtStatus(status))
		d.CreatedAt, err = parseTime(created)
		return d, err
	},
	id:    func(d ledger.Debt) string { return d.ID },
	setID: func(d *ledger.Debt, id string) { d.ID = id },
}

var debtPaymentsTable = &table[ledger.DebtPayment]{
	name:          "debt_payments",
	entity:        "debt payment",
	columns:       []string{"id", "profile_id", "debt_id", "transaction_id", "date", "amount", "note", "created_at"},
	profileColumn: "profile_id",
	orderBy:       "date ASC, id COLLATE BINARY ASC",
	values: func(p ledger.DebtPayment) []any {
		return []any{p.ID, p.ProfileID, p.DebtID, p.TransactionID, p.Date, p.Amount, p.Note, formatTime(p.CreatedAt)}
	},
	scan: func(r rowScanner) (ledger.DebtPayment, error) {
		var (
			p        ledger.DebtPayment
			debt, tx sql.NullString
			created  string
		)
		if err := r.Scan(&p.ID, &p.ProfileID, &debt, &tx, &p.Date, &p.Amount, &p.Note, &created); err != nil {
			return p, err
		}
		p.DebtID = stringPtr(debt)
		p.TransactionID = stringPtr(tx)
		var err error
		p.CreatedAt, err = parseTime(created)
		return p, err
	},
	id:    func(p ledger.DebtPayment) string { return p.ID },
	setID: func(p *ledger.DebtPayment, id string) { p.ID = id },
}
