package signal

import "errors"

var (
	// ErrTooManySenders is returned when more than one sender is passed to
	// Send or SendAsync.
	ErrTooManySenders = errors.New("send accepts at most one sender")

	// ErrNoAsyncAdapter is returned when Send encounters a suspension-capable
	// receiver and the signal has no async adapter configured.
	ErrNoAsyncAdapter = errors.New("cannot deliver to a suspension-capable receiver without an async adapter")

	// ErrNoSyncAdapter is returned when SendAsync encounters a plain receiver
	// and the signal has no sync adapter configured.
	ErrNoSyncAdapter = errors.New("cannot deliver to a plain receiver without a sync adapter")
)
