package async

import (
	"context"
	"time"
)

// Future represents the result of an asynchronous computation of type T.
type Future[T any] struct {
	value T
	err   error
	done  chan struct{}
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Await waits for the asynchronous computation to complete and returns its result.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.value, f.err
}

// AwaitWithTimeout waits for the computation to complete with a timeout.
// If the timeout occurs before completion, returns ErrTimeout.
func (f *Future[T]) AwaitWithTimeout(timeout time.Duration) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-time.After(timeout):
		var zero T
		return zero, ErrTimeout
	}
}

// IsComplete checks if the computation is complete without blocking.
func (f *Future[T]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Async executes fn on a new goroutine with the given parameter and returns a
// Future for its result.
func Async[P, T any](ctx context.Context, param P, fn func(context.Context, P) (T, error)) *Future[T] {
	f := newFuture[T]()

	go func() {
		defer close(f.done)

		// Early exit prevents goroutine leak when context is pre-canceled
		select {
		case <-ctx.Done():
			f.err = ctx.Err()
			return
		default:
		}

		f.value, f.err = fn(ctx, param)
	}()

	return f
}

// Resolved returns an already-completed future holding value.
func Resolved[T any](value T) *Future[T] {
	f := newFuture[T]()
	f.value = value
	close(f.done)
	return f
}

// Failed returns an already-completed future holding err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.err = err
	close(f.done)
	return f
}

// AwaitAll waits for every future in order and collects their values.
// Stops at the first error and returns the values gathered so far.
func AwaitAll[T any](futures ...*Future[T]) ([]T, error) {
	values := make([]T, 0, len(futures))
	for _, future := range futures {
		v, err := future.Await()
		if err != nil {
			return values, err
		}
		values = append(values, v)
	}
	return values, nil
}

// AwaitAny waits for any of the futures to complete and returns the index of
// the completed future along with its result.
// Note: This function spawns one goroutine per future. All goroutines will complete
// naturally when their respective futures finish.
func AwaitAny[T any](futures ...*Future[T]) (int, T, error) {
	var zero T
	if len(futures) == 0 {
		return -1, zero, ErrNoFutures
	}

	type completion struct {
		index int
		value T
		err   error
	}

	done := make(chan completion)

	for i, future := range futures {
		go func(index int, f *Future[T]) {
			v, err := f.Await()
			select {
			case done <- completion{index, v, err}:
			default:
				// Prevents race condition where multiple futures complete simultaneously
			}
		}(i, future)
	}

	res := <-done
	return res.index, res.value, res.err
}
