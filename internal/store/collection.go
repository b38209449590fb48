package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/ledgersync/internal/ledger"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// table maps one entity type onto one SQLite table. columns[0] must be the
// primary key; values returns arguments in column order.
type table[T any] struct {
	name          string
	entity        string
	columns       []string
	profileColumn string
	orderBy       string
	values        func(T) []any
	scan          func(rowScanner) (T, error)
	id            func(T) string
	setID         func(*T, string)

	// guard, if set, rejects an update given the stored record.
	guard func(old, next T) error
}

func (t *table[T]) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.columns, ", "), t.name)
}

// collection implements ledger.Collection over a table.
type collection[T any] struct {
	q   querier
	t   *table[T]
	ids ledger.IDGenerator
}

var _ ledger.Collection[ledger.Category] = (*collection[ledger.Category])(nil)

// List returns every record of the table.
func (c *collection[T]) List(ctx context.Context) ([]T, error) {
	return c.query(ctx, fmt.Sprintf("%s ORDER BY %s", c.t.selectSQL(), c.t.orderBy))
}

// ListByProfile returns the records of one profile.
func (c *collection[T]) ListByProfile(ctx context.Context, profileID string) ([]T, error) {
	return c.query(ctx,
		fmt.Sprintf("%s WHERE %s = ? ORDER BY %s", c.t.selectSQL(), c.t.profileColumn, c.t.orderBy),
		profileID,
	)
}

// Get returns one record by id.
func (c *collection[T]) Get(ctx context.Context, id string) (T, error) {
	row := c.q.QueryRowContext(ctx, c.t.selectSQL()+" WHERE id = ?", id)
	rec, err := c.t.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", c.t.entity, id, ledger.ErrNotFound)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get %s %s: %w", c.t.entity, id, err)
	}
	return rec, nil
}

// Insert stores rec, assigning an id when it has none.
func (c *collection[T]) Insert(ctx context.Context, rec T) (T, error) {
	if c.t.id(rec) == "" {
		c.t.setID(&rec, c.ids.Generate())
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(c.t.columns)), ", ")
	_, err := c.q.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", c.t.name, strings.Join(c.t.columns, ", "), placeholders),
		c.t.values(rec)...,
	)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("insert %s %s: %w", c.t.entity, c.t.id(rec), err)
	}
	return rec, nil
}

// Update overwrites every column of an existing record.
func (c *collection[T]) Update(ctx context.Context, rec T) error {
	id := c.t.id(rec)
	if c.t.guard != nil {
		old, err := c.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := c.t.guard(old, rec); err != nil {
			return fmt.Errorf("update %s %s: %w", c.t.entity, id, err)
		}
	}

	sets := make([]string, 0, len(c.t.columns)-1)
	for _, col := range c.t.columns[1:] {
		sets = append(sets, col+" = ?")
	}
	args := append(c.t.values(rec)[1:], id)

	res, err := c.q.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", c.t.name, strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", c.t.entity, id, err)
	}
	return expectAffected(res, c.t.entity, id)
}

// Delete removes one record by id.
func (c *collection[T]) Delete(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.t.name), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", c.t.entity, id, err)
	}
	return expectAffected(res, c.t.entity, id)
}

// DeleteByProfile removes every record of a profile and returns the count.
func (c *collection[T]) DeleteByProfile(ctx context.Context, profileID string) (int, error) {
	res, err := c.q.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", c.t.name, c.t.profileColumn),
		profileID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete %s of profile %s: %w", c.t.entity, profileID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s of profile %s: rows affected: %w", c.t.entity, profileID, err)
	}
	return int(n), nil
}

func (c *collection[T]) query(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.t.name, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		rec, err := c.t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.t.entity, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.t.name, err)
	}
	return out, nil
}

func expectAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", entity, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ledger.ErrNotFound)
	}
	return nil
}

// scope implements ledger.Scope over a querier.
type scope struct {
	q   querier
	ids ledger.IDGenerator
}

func (s *scope) Profiles() ledger.Collection[ledger.Profile] {
	return &collection[ledger.Profile]{q: s.q, t: profilesTable, ids: s.ids}
}

func (s *scope) Categories() ledger.Collection[ledger.Category] {
	return &collection[ledger.Category]{q: s.q, t: categoriesTable, ids: s.ids}
}

func (s *scope) Transactions() ledger.Collection[ledger.Transaction] {
	return &collection[ledger.Transaction]{q: s.q, t: transactionsTable, ids: s.ids}
}

func (s *scope) Budgets() ledger.Collection[ledger.Budget] {
	return &collection[ledger.Budget]{q: s.q, t: budgetsTable, ids: s.ids}
}

func (s *scope) Payments() ledger.Collection[ledger.Payment] {
	return &collection[ledger.Payment]{q: s.q, t: paymentsTable, ids: s.ids}
}

func (s *scope) Debts() ledger.Collection[ledger.Debt] {
	return &collection[ledger.Debt]{q: s.q, t: debtsTable, ids: s.ids}
}

func (s *scope) DebtPayments() ledger.Collection[ledger.DebtPayment] {
	return &collection[ledger.DebtPayment]{q: s.q, t: debtPaymentsTable, ids: s.ids}
}
