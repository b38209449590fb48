package testutil

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/remote"
)

// Remote operation names used by the fault and call-count helpers.
const (
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ErrLostResponse is returned when a response is dropped after the
// authority applied the operation.
var ErrLostResponse = &remote.StatusError{Status: 504, Message: "response lost"}

type fault struct {
	op   string
	err  error
	lost bool
}

// Authority is an in-memory remote.Authority with call counters and
// injectable faults.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Authority struct {
	mu     sync.Mutex
	rows   map[string]map[string]ledger.Transaction
	calls  map[string]int
	faults []fault
	now    func() time.Time

	// OnCall, when set, runs before each operation is applied, outside the
	// lock. Tests use it to interleave local edits with an in-flight push.
	OnCall func(op, id string)
}

var _ remote.Authority = (*Authority)(nil)

// NewAuthority creates an empty authority stamping records with now.
func NewAuthority(now func() time.Time) *Authority {
	if now == nil {
		now = time.Now
	}
	return &Authority{
		rows:  map[string]map[string]ledger.Transaction{},
		calls: map[string]int{},
		now:   now,
	}
}

// Seed stores records as if another device had pushed them.
func (a *Authority) Seed(profileID string, txs ...ledger.Transaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range txs {
		t.ProfileID = profileID
		a.profile(profileID)[t.ID] = t
	}
}

// FailNext makes the next call of op return err without applying it.
func (a *Authority) FailNext(op string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faults = append(a.faults, fault{op: op, err: err})
}

// LoseNextResponse makes the next call of op apply and then return
// ErrLostResponse, as if the connection dropped before the reply.
func (a *Authority) LoseNextResponse(op string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faults = append(a.faults, fault{op: op, err: ErrLostResponse, lost: true})
}

// Calls returns how many times op was invoked.
func (a *Authority) Calls(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[op]
}

// Records returns the profile's records ordered by id.
func (a *Authority) Records(profileID string) []ledger.Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ledger.Transaction, 0, len(a.rows[profileID]))
	for _, t := range a.rows[profileID] {
		out = append(out, t)
	}
	slices.SortFunc(out, func(x, y ledger.Transaction) int { return strings.Compare(x.ID, y.ID) })
	return out
}

// Get returns one record.
func (a *Authority) Get(profileID, id string) (ledger.Transaction, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.rows[profileID][id]
	return t, ok
}

func (a *Authority) profile(id string) map[string]ledger.Transaction {
	rows, ok := a.rows[id]
	if !ok {
		rows = map[string]ledger.Transaction{}
		a.rows[id] = rows
	}
	return rows
}

// begin counts the call and pops a matching fault.
func (a *Authority) begin(op, id string) (fault, bool) {
	if a.OnCall != nil {
		a.OnCall(op, id)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[op]++
	for i, f := range a.faults {
		if f.op == op {
			a.faults = append(a.faults[:i], a.faults[i+1:]...)
			return f, true
		}
	}
	return fault{}, false
}

// List returns records newest first. The cursor is the offset of the next
// page.
func (a *Authority) List(ctx context.Context, profileID string, w remote.Window) (remote.Page, error) {
	if f, ok := a.begin(OpList, ""); ok && !f.lost {
		return remote.Page{}, f.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	all := make([]ledger.Transaction, 0, len(a.rows[profileID]))
	for _, t := range a.rows[profileID] {
		all = append(all, t)
	}
	slices.SortFunc(all, func(x, y ledger.Transaction) int {
		if c := y.OccurredAt.Compare(x.OccurredAt); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})

	start := 0
	if w.Cursor != "" {
		n, err := strconv.Atoi(w.Cursor)
		if err != nil {
			return remote.Page{}, &remote.StatusError{Status: 400, Message: "bad cursor"}
		}
		start = min(n, len(all))
	}
	end := len(all)
	if w.Limit > 0 && start+w.Limit < end {
		end = start + w.Limit
	}

	page := remote.Page{Records: slices.Clone(all[start:end])}
	if end < len(all) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// Create stores t under its id or returns remote.ErrConflict.
func (a *Authority) Create(ctx context.Context, profileID string, t ledger.Transaction) (ledger.Transaction, error) {
	f, faulted := a.begin(OpCreate, t.ID)
	if faulted && !f.lost {
		return ledger.Transaction{}, f.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := a.profile(profileID)
	if _, ok := rows[t.ID]; ok {
		return ledger.Transaction{}, remote.ErrConflict
	}
	now := a.now().UTC()
	t.ProfileID = profileID
	t.Currency = ledger.NormalizeCurrency(t.Currency)
	t.CreatedAt, t.UpdatedAt = now, now
	rows[t.ID] = t
	if faulted {
		return ledger.Transaction{}, f.err
	}
	return t, nil
}

// Update replaces an existing record or returns remote.ErrNotFound.
func (a *Authority) Update(ctx context.Context, profileID string, t ledger.Transaction) (ledger.Transaction, error) {
	f, faulted := a.begin(OpUpdate, t.ID)
	if faulted && !f.lost {
		return ledger.Transaction{}, f.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := a.profile(profileID)
	old, ok := rows[t.ID]
	if !ok {
		return ledger.Transaction{}, remote.ErrNotFound
	}
	t.ProfileID = profileID
	t.Currency = ledger.NormalizeCurrency(t.Currency)
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = a.now().UTC()
	rows[t.ID] = t
	if faulted {
		return ledger.Transaction{}, f.err
	}
	return t, nil
}

// Delete removes a record or returns remote.ErrNotFound.
func (a *Authority) Delete(ctx context.Context, profileID, id string) error {
	f, faulted := a.begin(OpDelete, id)
	if faulted && !f.lost {
		return f.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := a.profile(profileID)
	if _, ok := rows[id]; !ok {
		return remote.ErrNotFound
	}
	delete(rows, id)
	if faulted {
		return f.err
	}
	return nil
}
