package signal

import (
	"context"
	"reflect"
	"runtime"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"

	"github.com/dmitrymomot/signals/pkg/async"
)

// Data carries the named payload of an emission.
type Data map[string]any

// SyncFunc is the signature of a plain receiver.
type SyncFunc func(ctx context.Context, sender any, data Data) (any, error)

// AsyncFunc is the signature of a suspension-capable receiver: it returns a
// future instead of a value, and SendAsync awaits it.
type AsyncFunc func(ctx context.Context, sender any, data Data) *async.Future[any]

// Result pairs a receiver with the value it returned during dispatch.
type Result struct {
	Receiver *Receiver
	Value    any
}

// Receiver wraps a callable registered on a Signal. The wrapper gives the
// callable a stable identity: reconnecting the same wrapper, or a wrapper
// bound to the same owner and method, reuses the existing registration slot.
//
// Hold on to the wrapper returned by NewReceiver: a weak connection lasts
// only as long as the wrapper is reachable. Wrappers returned by Bind are
// transient; there the owning instance governs the registration's lifetime.
type Receiver struct {
	name    string
	key     refKey
	fn      SyncFunc
	async   AsyncFunc
	makeRef func(*RefRegistry, func(*SafeRef)) *SafeRef
}

var handles atomic.Uint64

func freshKey() refKey {
	return refKey{handle: handles.Add(1)}
}

// NewReceiver wraps fn as a receiver.
func NewReceiver(fn SyncFunc) *Receiver {
	return newFree(&Receiver{name: uuid.NewString(), key: freshKey(), fn: fn})
}

// NewAsyncReceiver wraps a suspension-capable fn as a receiver.
func NewAsyncReceiver(fn AsyncFunc) *Receiver {
	return newFree(&Receiver{name: uuid.NewString(), key: freshKey(), async: fn})
}

// newFree wires the weak-reference factory for a wrapper whose own lifetime
// governs the registration.
func newFree(r *Receiver) *Receiver {
	wp := weak.Make(r)
	key := r.key
	r.makeRef = func(table *RefRegistry, onDelete func(*SafeRef)) *SafeRef {
		ref := table.getOrCreate(key, func(ref *SafeRef) {
			ref.resolve = func() (*Receiver, bool) {
				if target := wp.Value(); target != nil {
					return target, true
				}
				return nil, false
			}
			runtime.AddCleanup(r, collected, ref)
		})
		ref.OnDelete(onDelete)
		return ref
	}
	return r
}

// Bind creates a receiver bound to an owning instance. The wrapper itself is
// transient: a weak connection tracks the owner, not the wrapper, so the
// registration lives exactly as long as the owner does. Two Bind calls with
// the same owner and method produce wrappers with the same identity that
// resolve to one shared SafeRef.
func Bind[T any](owner *T, method func(*T, context.Context, any, Data) (any, error)) *Receiver {
	return newBound(owner, reflect.ValueOf(method).Pointer(), func(o *T) (SyncFunc, AsyncFunc) {
		return func(ctx context.Context, sender any, data Data) (any, error) {
			return method(o, ctx, sender, data)
		}, nil
	})
}

// BindAsync is Bind for suspension-capable methods.
func BindAsync[T any](owner *T, method func(*T, context.Context, any, Data) *async.Future[any]) *Receiver {
	return newBound(owner, reflect.ValueOf(method).Pointer(), func(o *T) (SyncFunc, AsyncFunc) {
		return nil, func(ctx context.Context, sender any, data Data) *async.Future[any] {
			return method(o, ctx, sender, data)
		}
	})
}

func newBound[T any](owner *T, pc uintptr, bind func(*T) (SyncFunc, AsyncFunc)) *Receiver {
	wp := weak.Make(owner)
	key := boundKey(wp, pc)
	fn, afn := bind(owner)
	r := &Receiver{name: uuid.NewString(), key: key, fn: fn, async: afn}
	r.makeRef = func(table *RefRegistry, onDelete func(*SafeRef)) *SafeRef {
		name := r.name
		ref := table.getOrCreate(key, func(ref *SafeRef) {
			// resolve must capture only the weak pointer; a strong capture of
			// the owner would keep it alive forever.
			ref.resolve = func() (*Receiver, bool) {
				o := wp.Value()
				if o == nil {
					return nil, false
				}
				// Rebind on every access. The snapshot holds the owner
				// strongly only for its own lifetime.
				sf, af := bind(o)
				return &Receiver{name: name, key: key, fn: sf, async: af}, true
			}
			runtime.AddCleanup(owner, collected, ref)
		})
		ref.OnDelete(onDelete)
		return ref
	}
	return r
}

// collected is registered with the runtime as the post-collection hook.
func collected(ref *SafeRef) { ref.die() }

// SafeRef returns the weak reference tracking r in table, creating it if
// needed. onDelete, if non-nil, is appended to the shared deletion chain.
func (r *Receiver) SafeRef(table *RefRegistry, onDelete func(*SafeRef)) *SafeRef {
	return r.makeRef(table, onDelete)
}

// Named sets a diagnostic name used in log output and error messages.
// Defaults to a generated UUID.
func (r *Receiver) Named(name string) *Receiver {
	r.name = name
	return r
}

// Name returns the receiver's diagnostic name.
func (r *Receiver) Name() string { return r.name }

// IsAsync reports whether the receiver is suspension-capable.
func (r *Receiver) IsAsync() bool { return r.async != nil }

// Call invokes the receiver directly. Suspension-capable receivers are
// awaited before returning.
func (r *Receiver) Call(ctx context.Context, sender any, data Data) (any, error) {
	if r.fn != nil {
		return r.fn(ctx, sender, data)
	}
	return r.async(ctx, sender, data).Await()
}
