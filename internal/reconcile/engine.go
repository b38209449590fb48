package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/ledgersync/internal/ledger"
	"github.com/roach88/ledgersync/internal/remote"
)

// Replica is the local replica store. Implemented by *store.Store.
type Replica interface {
	ReplicaGet(ctx context.Context, profileID, id string) (ledger.ReplicaTransaction, error)
	ReplicaPending(ctx context.Context, profileID string) ([]ledger.ReplicaTransaction, error)
	ReplicaMaxSeq(ctx context.Context) (int64, error)
	ReplicaCreate(ctx context.Context, t ledger.Transaction, seq int64) (ledger.ReplicaTransaction, error)
	ReplicaEdit(ctx context.Context, profileID, id string, edit func(*ledger.Transaction) error, seq int64) (ledger.ReplicaTransaction, error)
	ReplicaRemove(ctx context.Context, profileID, id string, seq int64) (bool, error)
	ReplicaApplyPulled(ctx context.Context, profileID string, recs []ledger.Transaction) (int, int, error)
	ReplicaAcknowledge(ctx context.Context, profileID, id string, pushedSeq int64, canonical *ledger.Transaction) (bool, error)
	ReplicaMarkAttempted(ctx context.Context, profileID, id string, pushedSeq int64) (bool, error)
	ReplicaForget(ctx context.Context, profileID, id string) (bool, error)
}

// DefaultPageSize is the page size PullAll uses when none is given.
const DefaultPageSize = 200

// Engine reconciles a Replica with a remote Authority.
//
// Thread-safety model:
//   - Add, Update, Remove, Pull, Push: safe from any goroutine
//   - pushes for one profile never overlap (per-profile gate)
//   - remote calls within one push are strictly sequential
type Engine struct {
	replica  Replica
	remote   remote.Authority
	clock    *Clock
	logger   *slog.Logger
	autoPush bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	gates   map[string]*sync.Mutex
	workers map[string]*pushWorker
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithoutAutoPush disables background pushes after local mutations.
// Receipts from such an engine resolve only when Close is called; callers
// drive synchronization with Push.
func WithoutAutoPush() Option {
	return func(e *Engine) {
		e.autoPush = false
	}
}

// New creates an Engine. The mutation clock resumes after the highest
// sequence stored in the replica so pending rows keep their order across
// restarts.
func New(replica Replica, authority remote.Authority, opts ...Option) (*Engine, error) {
	start, err := replica.ReplicaMaxSeq(context.Background())
	if err != nil {
		return nil, fmt.Errorf("resume mutation clock: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		replica:  replica,
		remote:   authority,
		clock:    NewClockAt(start),
		logger:   slog.Default(),
		autoPush: true,
		ctx:      ctx,
		cancel:   cancel,
		gates:    make(map[string]*sync.Mutex),
		workers:  make(map[string]*pushWorker),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close stops background pushes and waits for them to return. Receipts
// still waiting resolve with ErrClosed. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	workers := e.workers
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	for _, w := range workers {
		w.stop(ErrClosed)
	}
	return nil
}

// Add validates t and stores it as a new pending row. An id is assigned
// when t has none; a client-chosen id is kept so retried creates stay
// idempotent.
func (e *Engine) Add(ctx context.Context, t ledger.Transaction) (*Receipt, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	t.Currency = ledger.NormalizeCurrency(t.Currency)
	if err := t.Validate(); err != nil {
		return nil, err
	}

	seq := e.clock.Next()
	rec, err := e.replica.ReplicaCreate(ctx, t, seq)
	if err != nil {
		return nil, fmt.Errorf("add transaction: %w", err)
	}
	e.logger.Debug("replica row created", "profile", rec.ProfileID, "id", rec.ID, "seq", seq)
	return e.schedule(rec.ProfileID, rec.ID, seq), nil
}

// Update applies edit to a live row. The edited record must still validate.
func (e *Engine) Update(ctx context.Context, profileID, id string, edit func(*ledger.Transaction) error) (*Receipt, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	seq := e.clock.Next()
	rec, err := e.replica.ReplicaEdit(ctx, profileID, id, func(t *ledger.Transaction) error {
		if err := edit(t); err != nil {
			return err
		}
		t.Currency = ledger.NormalizeCurrency(t.Currency)
		return t.Validate()
	}, seq)
	if err != nil {
		return nil, fmt.Errorf("update transaction %s: %w", id, err)
	}
	e.logger.Debug("replica row edited", "profile", profileID, "id", id, "seq", seq, "status", rec.SyncStatus)
	return e.schedule(profileID, id, seq), nil
}

// Remove deletes a live row. A row no create was ever sent for is dropped
// at once and its receipt is already confirmed; any other row, including a
// created row whose create is in flight, is tombstoned until a push deletes
// it remotely.
func (e *Engine) Remove(ctx context.Context, profileID, id string) (*Receipt, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	seq := e.clock.Next()
	hard, err := e.replica.ReplicaRemove(ctx, profileID, id, seq)
	if err != nil {
		return nil, fmt.Errorf("remove transaction %s: %w", id, err)
	}
	if hard {
		e.logger.Debug("unpushed replica row dropped", "profile", profileID, "id", id)
		return confirmedReceipt(id, seq), nil
	}
	e.logger.Debug("replica row tombstoned", "profile", profileID, "id", id, "seq", seq)
	return e.schedule(profileID, id, seq), nil
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// schedule returns a receipt for the mutation and, with auto-push on,
// requests a background push for the profile.
func (e *Engine) schedule(profileID, id string, seq int64) *Receipt {
	r := newReceipt(id, seq)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		r.resolve(ErrClosed)
		return r
	}

	w, ok := e.workers[profileID]
	if !ok {
		w = newPushWorker(profileID)
		e.workers[profileID] = w
		if e.autoPush {
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				w.run(e.ctx, e.backgroundPush)
			}()
		}
	}
	if !w.request(r) {
		r.resolve(ErrClosed)
	}
	return r
}

func (e *Engine) backgroundPush(ctx context.Context, profileID string) error {
	_, err := e.Push(ctx, profileID)
	if err != nil {
		// The rows stay pending; the next mutation or an explicit Push retries.
		e.logger.Warn("background push failed", "profile", profileID, "error", err)
	}
	return err
}

// gate returns the mutex serializing pushes for a profile.
func (e *Engine) gate(profileID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.gates[profileID]
	if !ok {
		g = &sync.Mutex{}
		e.gates[profileID] = g
	}
	return g
}

// PushResult counts the outcome of one push pass.
type PushResult struct {
	Created   int
	Updated   int
	Deleted   int
	Conflicts int // creates the authority already had
	Gone      int // deletes the authority had already applied
	Stale     int // rows edited locally while their push was in flight
}

// Confirmed returns the number of rows the authority acknowledged.
func (r PushResult) Confirmed() int {
	return r.Created + r.Updated + r.Deleted + r.Conflicts + r.Gone
}

// Push sends every pending row of the profile to the authority in mutation
// order. It stops at the first failure and returns *PushError; rows from the
// failing one on stay pending.
func (e *Engine) Push(ctx context.Context, profileID string) (PushResult, error) {
	g := e.gate(profileID)
	g.Lock()
	defer g.Unlock()

	var res PushResult
	pending, err := e.replica.ReplicaPending(ctx, profileID)
	if err != nil {
		return res, &PushError{Code: ErrCodeLocal, ProfileID: profileID, Err: err}
	}
	if len(pending) == 0 {
		return res, nil
	}
	for _, rec := range pending {
		e.clock.Observe(rec.MutationSeq)
	}

	for i, rec := range pending {
		if err := ctx.Err(); err != nil {
			return res, &PushError{Code: ErrCodeCanceled, ProfileID: profileID, Remaining: len(pending) - i, Err: err}
		}
		if err := e.pushOne(ctx, rec, &res); err != nil {
			err.ProfileID = profileID
			err.Remaining = len(pending) - i
			e.logger.Error("push aborted",
				"profile", profileID,
				"id", rec.ID,
				"op", err.Op,
				"remaining", err.Remaining,
				"error", err.Err,
			)
			return res, err
		}
	}

	e.logger.Info("push complete",
		"profile", profileID,
		"created", res.Created,
		"updated", res.Updated,
		"deleted", res.Deleted,
		"conflicts", res.Conflicts,
		"gone", res.Gone,
		"stale", res.Stale,
	)
	return res, nil
}

// pushOne issues the remote call for one pending row and records its result
// locally.
func (e *Engine) pushOne(ctx context.Context, rec ledger.ReplicaTransaction, res *PushResult) *PushError {
	profileID := rec.ProfileID

	switch rec.SyncStatus {
	case ledger.SyncDeleted:
		err := e.remote.Delete(ctx, profileID, rec.ID)
		switch {
		case err == nil:
			res.Deleted++
		case errors.Is(err, remote.ErrNotFound):
			e.logger.Warn("remote delete: already gone", "profile", profileID, "id", rec.ID)
			res.Gone++
		default:
			return &PushError{Code: ErrCodeRemote, RecordID: rec.ID, Op: "delete", Err: err}
		}
		if _, err := e.replica.ReplicaForget(ctx, profileID, rec.ID); err != nil {
			return &PushError{Code: ErrCodeLocal, RecordID: rec.ID, Op: "delete", Err: err}
		}
		e.logger.Debug("pushed delete", "profile", profileID, "id", rec.ID, "seq", rec.MutationSeq)
		return nil

	case ledger.SyncCreated:
		// Marking first makes a concurrent Remove keep a tombstone.
		ok, err := e.replica.ReplicaMarkAttempted(ctx, profileID, rec.ID, rec.MutationSeq)
		if err != nil {
			return &PushError{Code: ErrCodeLocal, RecordID: rec.ID, Op: "create", Err: err}
		}
		if !ok {
			res.Stale++
			e.logger.Debug("row removed before its create was sent", "profile", profileID, "id", rec.ID)
			return nil
		}

		canonical, err := e.remote.Create(ctx, profileID, rec.Transaction)
		var ack *ledger.Transaction
		switch {
		case err == nil:
			ack = &canonical
			res.Created++
		case errors.Is(err, remote.ErrConflict):
			// An earlier push landed but its response was lost.
			res.Conflicts++
			if rec.AttemptedSeq == 0 || rec.AttemptedSeq == rec.MutationSeq {
				e.logger.Warn("remote create: id already exists, treating as synced", "profile", profileID, "id", rec.ID)
				break
			}
			// The row was edited after the lost attempt; send the edit.
			e.logger.Warn("remote create: id already exists, sending local edits", "profile", profileID, "id", rec.ID)
			canonical, err = e.remote.Update(ctx, profileID, rec.Transaction)
			if err != nil {
				return &PushError{Code: ErrCodeRemote, RecordID: rec.ID, Op: "update", Err: err}
			}
			ack = &canonical
		default:
			return &PushError{Code: ErrCodeRemote, RecordID: rec.ID, Op: "create", Err: err}
		}
		return e.acknowledge(ctx, rec, ack, "create", res)

	case ledger.SyncUpdated:
		canonical, err := e.remote.Update(ctx, profileID, rec.Transaction)
		if err != nil {
			return &PushError{Code: ErrCodeRemote, RecordID: rec.ID, Op: "update", Err: err}
		}
		res.Updated++
		return e.acknowledge(ctx, rec, &canonical, "update", res)

	default:
		return &PushError{
			Code:     ErrCodeLocal,
			RecordID: rec.ID,
			Op:       "push",
			Err:      fmt.Errorf("unexpected sync status %q", rec.SyncStatus),
		}
	}
}

func (e *Engine) acknowledge(ctx context.Context, rec ledger.ReplicaTransaction, canonical *ledger.Transaction, op string, res *PushResult) *PushError {
	synced, err := e.replica.ReplicaAcknowledge(ctx, rec.ProfileID, rec.ID, rec.MutationSeq, canonical)
	if err != nil {
		return &PushError{Code: ErrCodeLocal, RecordID: rec.ID, Op: op, Err: err}
	}
	if !synced {
		res.Stale++
		e.logger.Debug("row changed during push, left pending", "profile", rec.ProfileID, "id", rec.ID, "seq", rec.MutationSeq)
		return nil
	}
	e.logger.Debug("pushed "+op, "profile", rec.ProfileID, "id", rec.ID, "seq", rec.MutationSeq)
	return nil
}

// PullResult counts the outcome of a pull.
type PullResult struct {
	Applied    int
	Skipped    int
	Pages      int
	NextCursor string
}

// Pull fetches one page of authoritative records and overwrites the
// matching replica rows. Rows absent from the page are never touched.
func (e *Engine) Pull(ctx context.Context, profileID string, w remote.Window) (PullResult, error) {
	page, err := e.remote.List(ctx, profileID, w)
	if err != nil {
		return PullResult{}, fmt.Errorf("pull %s: %w", profileID, err)
	}
	applied, skipped, err := e.replica.ReplicaApplyPulled(ctx, profileID, page.Records)
	if err != nil {
		return PullResult{}, fmt.Errorf("pull %s: %w", profileID, err)
	}
	if skipped > 0 {
		e.logger.Debug("pull skipped rows with pending deletes", "profile", profileID, "skipped", skipped)
	}
	return PullResult{Applied: applied, Skipped: skipped, Pages: 1, NextCursor: page.NextCursor}, nil
}

// PullAll follows cursors until the authority reports no more pages.
func (e *Engine) PullAll(ctx context.Context, profileID string, pageSize int) (PullResult, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var total PullResult
	seen := map[string]bool{}
	cursor := ""
	for {
		res, err := e.Pull(ctx, profileID, remote.Window{Cursor: cursor, Limit: pageSize})
		if err != nil {
			return total, err
		}
		total.Applied += res.Applied
		total.Skipped += res.Skipped
		total.Pages++

		if res.NextCursor == "" {
			break
		}
		if seen[res.NextCursor] {
			return total, fmt.Errorf("pull %s: authority repeated cursor %q", profileID, res.NextCursor)
		}
		seen[res.NextCursor] = true
		cursor = res.NextCursor
	}

	e.logger.Info("pull complete",
		"profile", profileID,
		"applied", total.Applied,
		"skipped", total.Skipped,
		"pages", total.Pages,
	)
	return total, nil
}

// Get returns a live replica row.
func (e *Engine) Get(ctx context.Context, profileID, id string) (ledger.ReplicaTransaction, error) {
	return e.replica.ReplicaGet(ctx, profileID, id)
}
