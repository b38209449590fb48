package reconcile

import (
	"context"
	"sync"
)

// Receipt is returned by a local mutation. Holding a receipt means the
// mutation is committed to the replica; Wait reports when it reached the
// authority.
type Receipt struct {
	// ID is the record the mutation touched.
	ID string

	// Seq is the mutation's sequence number.
	Seq int64

	// Local is true when no remote call is needed, e.g. deleting a row the
	// authority never saw. Such receipts are already confirmed.
	Local bool

	done chan struct{}
	err  error
}

func newReceipt(id string, seq int64) *Receipt {
	return &Receipt{ID: id, Seq: seq, done: make(chan struct{})}
}

func confirmedReceipt(id string, seq int64) *Receipt {
	r := newReceipt(id, seq)
	r.Local = true
	close(r.done)
	return r
}

// Done is closed once a push covering the mutation has finished.
func (r *Receipt) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until a push covering the mutation has finished and returns
// that push's error. A nil error means the authority confirmed the
// mutation. Canceling ctx stops waiting but not the push.
func (r *Receipt) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Receipt) resolve(err error) {
	r.err = err
	close(r.done)
}

// pushWorker runs background pushes for one profile.
//
// Requests signal through a channel with a buffer of 1, so any number of
// requests arriving while a push runs coalesce into one follow-up push.
// Receipts registered before a push reads the pending rows are resolved by
// that push; later ones wait for the next.
type pushWorker struct {
	profileID string
	signal    chan struct{}

	mu       sync.Mutex
	receipts []*Receipt
	closed   bool
}

func newPushWorker(profileID string) *pushWorker {
	return &pushWorker{
		profileID: profileID,
		signal:    make(chan struct{}, 1),
	}
}

// request registers r and asks for a push. Returns false once the worker
// has stopped.
func (w *pushWorker) request(r *Receipt) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	w.receipts = append(w.receipts, r)

	// Non-blocking: a full buffer already guarantees another push.
	select {
	case w.signal <- struct{}{}:
	default:
	}
	return true
}

// take removes and returns the receipts the next push will cover.
func (w *pushWorker) take() []*Receipt {
	w.mu.Lock()
	defer w.mu.Unlock()

	batch := w.receipts
	w.receipts = nil
	return batch
}

// stop rejects further requests and fails the receipts still waiting.
func (w *pushWorker) stop(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	for _, r := range w.receipts {
		r.resolve(err)
	}
	w.receipts = nil
}

// run pushes once per signal until ctx is canceled.
func (w *pushWorker) run(ctx context.Context, push func(context.Context, string) error) {
	for {
		select {
		case <-ctx.Done():
			w.stop(ErrClosed)
			return
		case <-w.signal:
		}

		batch := w.take()
		if len(batch) == 0 {
			continue
		}
		err := push(ctx, w.profileID)
		for _, r := range batch {
			r.resolve(err)
		}
	}
}
