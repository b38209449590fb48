package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/ledgersync/internal/ledger"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// createTestStore opens a store in a temp dir with sequential ids and a
// fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(ledger.NewSequentialGenerator("id")),
		WithClock(func() time.Time { return testNow }),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestProfile inserts a profile with the given id.
func createTestProfile(t *testing.T, s *Store, id string) ledger.Profile {
	t.Helper()
	p, err := s.Scope().Profiles().Insert(context.Background(), ledger.Profile{ID: id, Name: "Profile " + id, CreatedAt: testNow})
	if err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	return p
}

// createTestTransaction builds a transaction with minimal required fields.
func createTestTransaction(id, profileID, amount string) ledger.Transaction {
	return ledger.Transaction{
		ID:         id,
		ProfileID:  profileID,
		Direction:  ledger.DirectionExpense,
		Amount:     decimal.RequireFromString(amount),
		Currency:   "UAH",
		Note:       "coffee",
		OccurredAt: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}
