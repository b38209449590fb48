package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushWorker_CoalescesRequests(t *testing.T) {
	w := newPushWorker("p1")

	for i := 0; i < 5; i++ {
		require.True(t, w.request(newReceipt("r", int64(i))))
	}
	assert.Len(t, w.signal, 1, "signals coalesce into one pending push")
	assert.Len(t, w.take(), 5)
	assert.Empty(t, w.take())
}

func TestPushWorker_RunResolvesBatch(t *testing.T) {
	w := newPushWorker("p1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("boom")
	calls := make(chan string, 4)
	go w.run(ctx, func(_ context.Context, profileID string) error {
		calls <- profileID
		return boom
	})

	r := newReceipt("a", 1)
	require.True(t, w.request(r))

	wctx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()
	assert.ErrorIs(t, r.Wait(wctx), boom)
	assert.Equal(t, "p1", <-calls)
}

func TestPushWorker_StopFailsWaiting(t *testing.T) {
	w := newPushWorker("p1")
	r := newReceipt("a", 1)
	require.True(t, w.request(r))

	w.stop(ErrClosed)
	assert.ErrorIs(t, r.Wait(context.Background()), ErrClosed)
	assert.False(t, w.request(newReceipt("b", 2)), "stopped worker rejects requests")
}

func TestReceipt_WaitHonorsContext(t *testing.T) {
	r := newReceipt("a", 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
}
