package signal_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signals/core/signal"
	"github.com/dmitrymomot/signals/pkg/async"
)

func asyncEcho(name string) *signal.Receiver {
	return signal.NewAsyncReceiver(func(ctx context.Context, sender any, data signal.Data) *async.Future[any] {
		return async.Resolved[any](name)
	}).Named(name)
}

func TestSendAsyncDeliversToAsyncReceivers(t *testing.T) {
	t.Parallel()

	sig := signal.New()
	_, err := sig.Connect(asyncEcho("a"), signal.Strong())
	require.NoError(t, err)
	_, err = sig.Connect(asyncEcho("b"), signal.Strong())
	require.NoError(t, err)

	results, err := sig.SendAsync(context.Background(), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"a", "b"}, resultValues(results))
}

func TestSendAsyncAwaitsOneAtATime(t *testing.T) {
	t.Parallel()

	sig := signal.New()
	var inFlight atomic.Int32
	var overlapped atomic.Bool

	slow := func(name string) *signal.Receiver {
		return signal.NewAsyncReceiver(func(ctx context.Context, sender any, data signal.Data) *async.Future[any] {
			return async.Async(ctx, data, func(ctx context.Context, d signal.Data) (any, error) {
				if inFlight.Add(1) > 1 {
					overlapped.Store(true)
				}
				time.Sleep(20 * time.Millisecond)
				inFlight.Add(-1)
				return name, nil
			})
		}).Named(name)
	}

	_, err := sig.Connect(slow("first"), signal.Strong())
	require.NoError(t, err)
	_, err = sig.Connect(slow("second"), signal.Strong())
	require.NoError(t, err)

	results, err := sig.SendAsync(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.False(t, overlapped.Load(), "receivers are awaited in sequence, never fanned out")
}

func TestSendAsyncRequiresSyncAdapter(t *testing.T) {
	t.Parallel()

	sig := signal.New()
	_, err := sig.Connect(echoReceiver("plain"), signal.Strong())
	require.NoError(t, err)

	_, err = sig.SendAsync(context.Background(), nil)
	require.ErrorIs(t, err, signal.ErrNoSyncAdapter)
}

func TestSendAsyncWithSyncAdapter(t *testing.T) {
	t.Parallel()

	sig := signal.New(signal.WithSyncAdapter(signal.Deferred))
	_, err := sig.Connect(echoReceiver("plain"), signal.Strong())
	require.NoError(t, err)
	_, err = sig.Connect(asyncEcho("deferred"), signal.Strong())
	require.NoError(t, err)

	results, err := sig.SendAsync(context.Background(), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"plain", "deferred"}, resultValues(results))
}

func TestSendRequiresAsyncAdapter(t *testing.T) {
	t.Parallel()

	sig := signal.New()
	_, err := sig.Connect(asyncEcho("suspended"), signal.Strong())
	require.NoError(t, err)

	_, err = sig.Send(context.Background(), nil)
	require.ErrorIs(t, err, signal.ErrNoAsyncAdapter)
}

func TestSendWithAwaitAdapter(t *testing.T) {
	t.Parallel()

	sig := signal.New(signal.WithAsyncAdapter(signal.Await))
	_, err := sig.Connect(echoReceiver("plain"), signal.Strong())
	require.NoError(t, err)
	_, err = sig.Connect(asyncEcho("awaited"), signal.Strong())
	require.NoError(t, err)

	results, err := sig.Send(context.Background(), nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"plain", "awaited"}, resultValues(results))
}

func TestReceiverErrorAbortsDelivery(t *testing.T) {
	t.Parallel()

	sig := signal.New()
	wantErr := errors.New("handler failed")

	var mu sync.Mutex
	var invoked int
	record := func(fail bool) *signal.Receiver {
		return signal.NewReceiver(func(ctx context.Context, sender any, data signal.Data) (any, error) {
			mu.Lock()
			invoked++
			mu.Unlock()
			if fail {
				return nil, wantErr
			}
			return "ok", nil
		})
	}

	_, err := sig.Connect(record(false), signal.Strong())
	require.NoError(t, err)
	_, err = sig.Connect(record(true).Named("failing"), signal.Strong())
	require.NoError(t, err)
	_, err = sig.Connect(record(false), signal.Strong())
	require.NoError(t, err)

	results, err := sig.Send(context.Background(), nil)
	require.ErrorIs(t, err, wantErr)
	assert.ErrorContains(t, err, "failing")

	mu.Lock()
	defer mu.Unlock()
	// Delivery order is unspecified, but the failing receiver always stops it:
	// everything invoked before the failure is in results, nothing after runs.
	assert.Equal(t, len(results)+1, invoked)
	assert.Less(t, len(results), 3)
	for _, res := range results {
		assert.Equal(t, "ok", res.Value)
	}
}

func TestSendAsyncReceiverErrorAborts(t *testing.T) {
	t.Parallel()

	sig := signal.New()
	wantErr := errors.New("future failed")

	failing := signal.NewAsyncReceiver(func(ctx context.Context, sender any, data signal.Data) *async.Future[any] {
		return async.Failed[any](wantErr)
	}).Named("doomed")
	_, err := sig.Connect(failing, signal.Strong())
	require.NoError(t, err)

	_, err = sig.SendAsync(context.Background(), nil)
	require.ErrorIs(t, err, wantErr)
	assert.ErrorContains(t, err, "doomed")
}

func TestReceiverCallAwaitsAsync(t *testing.T) {
	t.Parallel()

	r := asyncEcho("direct")
	require.True(t, r.IsAsync())

	v, err := r.Call(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "direct", v)
}

func TestSendPassesContext(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}
	sig := signal.New()

	var got any
	r := signal.NewReceiver(func(ctx context.Context, sender any, data signal.Data) (any, error) {
		got = ctx.Value(ctxKey{})
		return nil, nil
	})
	_, err := sig.Connect(r, signal.Strong())
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "threaded")
	_, err = sig.Send(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "threaded", got)
}
