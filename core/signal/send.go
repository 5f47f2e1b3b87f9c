package signal

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/signals/pkg/async"
)

// AsyncAdapter converts a suspension-capable receiver into a blocking call so
// that Send can deliver to it.
type AsyncAdapter func(AsyncFunc) SyncFunc

// SyncAdapter lifts a plain receiver into a suspension-capable call so that
// SendAsync can deliver to it.
type SyncAdapter func(SyncFunc) AsyncFunc

// Await is the canonical AsyncAdapter: it blocks on the receiver's future.
func Await(fn AsyncFunc) SyncFunc {
	return func(ctx context.Context, sender any, data Data) (any, error) {
		return fn(ctx, sender, data).Await()
	}
}

// Deferred is the canonical SyncAdapter: it runs the receiver on a goroutine
// and hands back its future.
func Deferred(fn SyncFunc) AsyncFunc {
	return func(ctx context.Context, sender any, data Data) *async.Future[any] {
		return async.Async(ctx, data, func(ctx context.Context, d Data) (any, error) {
			return fn(ctx, sender, d)
		})
	}
}

// Send emits the signal on behalf of the sender (at most one; omitted means
// nil), passing data to every live receiver and collecting their return
// values. Delivery order across receivers is unspecified.
//
// A receiver error aborts delivery to the remaining receivers and propagates
// with the results collected so far; side effects of already-invoked
// receivers are not rolled back. Suspension-capable receivers require an
// async adapter (see WithAsyncAdapter), otherwise Send fails rather than
// silently skipping them.
func (s *Signal) Send(ctx context.Context, data Data, sender ...any) ([]Result, error) {
	if s.IsMuted() {
		return nil, nil
	}
	snd, err := extractSender(sender)
	if err != nil {
		return nil, err
	}

	var results []Result
	for r := range s.ReceiversFor(snd) {
		fn := r.fn
		if fn == nil {
			if s.asyncAdapter == nil {
				return results, fmt.Errorf("%w: receiver %s", ErrNoAsyncAdapter, r.name)
			}
			fn = s.asyncAdapter(r.async)
		}
		value, err := fn(ctx, snd, data)
		if err != nil {
			return results, fmt.Errorf("receiver %s: %w", r.name, err)
		}
		results = append(results, Result{Receiver: r, Value: value})
	}
	return results, nil
}

// SendAsync is the suspension-capable counterpart of Send. Receivers are
// invoked and awaited one at a time, in sequence; there is no concurrent
// fan-out, and the only suspension points are the awaits on each receiver's
// own future. Plain receivers require a sync adapter (see WithSyncAdapter).
func (s *Signal) SendAsync(ctx context.Context, data Data, sender ...any) ([]Result, error) {
	if s.IsMuted() {
		return nil, nil
	}
	snd, err := extractSender(sender)
	if err != nil {
		return nil, err
	}

	var results []Result
	for r := range s.ReceiversFor(snd) {
		afn := r.async
		if afn == nil {
			if s.syncAdapter == nil {
				return results, fmt.Errorf("%w: receiver %s", ErrNoSyncAdapter, r.name)
			}
			afn = s.syncAdapter(r.fn)
		}
		value, err := afn(ctx, snd, data).Await()
		if err != nil {
			return results, fmt.Errorf("receiver %s: %w", r.name, err)
		}
		results = append(results, Result{Receiver: r, Value: value})
	}
	return results, nil
}

func extractSender(sender []any) (any, error) {
	switch len(sender) {
	case 0:
		return nil, nil
	case 1:
		return sender[0], nil
	default:
		return nil, fmt.Errorf("%w: %d given", ErrTooManySenders, len(sender))
	}
}
