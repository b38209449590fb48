package ledger

import "context"

// Collection is the Local Store surface for one entity type.
//
// Get, Update and Delete return an error wrapping ErrNotFound when the id
// does not exist. Insert assigns a fresh id when the record has none and
// returns the stored record.
type Collection[T any] interface {
	List(ctx context.Context) ([]T, error)
	ListByProfile(ctx context.Context, profileID string) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, rec T) error
	Delete(ctx context.Context, id string) error
	DeleteByProfile(ctx context.Context, profileID string) (int, error)
}

// Scope gives access to every collection through one connection or one
// transaction.
type Scope interface {
	Profiles() Collection[Profile]
	Categories() Collection[Category]
	Transactions() Collection[Transaction]
	Budgets() Collection[Budget]
	Payments() Collection[Payment]
	Debts() Collection[Debt]
	DebtPayments() Collection[DebtPayment]
}

// Store is the Local Store collaborator.
//
// Atomic runs fn inside one all-collections write transaction. If fn returns
// an error (or panics) every write made through the scope is rolled back;
// otherwise the transaction commits when fn returns.
type Store interface {
	Scope() Scope
	Atomic(ctx context.Context, fn func(Scope) error) error
}
