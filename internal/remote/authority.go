package remote

import (
	"context"
	"errors"

	"github.com/roach88/ledgersync/internal/ledger"
)

var (
	// ErrConflict is returned by Create when the id already exists.
	ErrConflict = errors.New("remote: record already exists")

	// ErrNotFound is returned by Update and Delete when the id is unknown.
	ErrNotFound = errors.New("remote: record not found")
)

// Window selects one page of a profile's records. An empty Cursor starts at
// the newest record; Limit <= 0 lets the authority choose.
type Window struct {
	Cursor string
	Limit  int
}

// Page is one batch of authoritative records. NextCursor is empty when there
// are no more pages.
type Page struct {
	Records    []ledger.Transaction
	NextCursor string
}

// Authority is the remote source of truth for a profile's transactions.
type Authority interface {
	List(ctx context.Context, profileID string, w Window) (Page, error)
	Create(ctx context.Context, profileID string, t ledger.Transaction) (ledger.Transaction, error)
	Update(ctx context.Context, profileID string, t ledger.Transaction) (ledger.Transaction, error)
	Delete(ctx context.Context, profileID, id string) error
}
