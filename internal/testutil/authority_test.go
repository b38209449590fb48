package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/remote"
)

func tx(id string, hour int) ledger.Transaction {
	return ledger.Transaction{
		ID:         id,
		Direction:  ledger.DirectionIncome,
		Amount:     decimal.NewFromInt(10),
		Currency:   "UAH",
		OccurredAt: time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC),
	}
}

func TestAuthority_CreateConflict(t *testing.T) {
	a := NewAuthority(nil)
	ctx := context.Background()

	_, err := a.Create(ctx, "p1", tx("t1", 1))
	require.NoError(t, err)
	_, err = a.Create(ctx, "p1", tx("t1", 1))
	assert.ErrorIs(t, err, remote.ErrConflict)
	assert.Equal(t, 2, a.Calls(OpCreate))
	assert.Len(t, a.Records("p1"), 1)
}

func TestAuthority_UpdateDeleteNotFound(t *testing.T) {
	a := NewAuthority(nil)
	ctx := context.Background()

	_, err := a.Update(ctx, "p1", tx("missing", 1))
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.ErrorIs(t, a.Delete(ctx, "p1", "missing"), remote.ErrNotFound)
}

func TestAuthority_FailNextDoesNotApply(t *testing.T) {
	a := NewAuthority(nil)
	boom := errors.New("boom")
	a.FailNext(OpCreate, boom)

	_, err := a.Create(context.Background(), "p1", tx("t1", 1))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, a.Records("p1"))

	_, err = a.Create(context.Background(), "p1", tx("t1", 1))
	assert.NoError(t, err, "fault is consumed by one call")
}

func TestAuthority_LoseNextResponseApplies(t *testing.T) {
	a := NewAuthority(nil)
	a.LoseNextResponse(OpCreate)

	_, err := a.Create(context.Background(), "p1", tx("t1", 1))
	assert.ErrorIs(t, err, ErrLostResponse)
	assert.Len(t, a.Records("p1"), 1, "operation applied despite the lost response")
}

func TestAuthority_ListPages(t *testing.T) {
	a := NewAuthority(nil)
	a.Seed("p1", tx("t1", 1), tx("t2", 2), tx("t3", 3))
	ctx := context.Background()

	page, err := a.List(ctx, "p1", remote.Window{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "t3", page.Records[0].ID, "newest first")
	assert.Equal(t, "2", page.NextCursor)

	page, err = a.List(ctx, "p1", remote.Window{Cursor: page.NextCursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "t1", page.Records[0].ID)
	assert.Empty(t, page.NextCursor)
}
