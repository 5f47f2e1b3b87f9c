package signal

import (
	"io"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/signals/pkg/logger"
)

// SafeRef is a weak reference to a registered receiver that survives the
// transience of bound wrappers: it resolves to a live callable for as long as
// the underlying target (the wrapper for free receivers, the owning instance
// for bound ones) is reachable, and fires its deletion chain exactly once
// when the target is collected.
type SafeRef struct {
	key     refKey
	table   *RefRegistry
	resolve func() (*Receiver, bool)

	mu       sync.Mutex
	fired    bool
	onDelete []func(*SafeRef)
}

// Get returns the live receiver, or false if the target has been collected.
// Calling Get any number of times does not invalidate the reference.
func (ref *SafeRef) Get() (*Receiver, bool) {
	return ref.resolve()
}

// OnDelete appends fn to the deletion chain. Callbacks run in order, at most
// once per SafeRef, with the SafeRef itself as argument. Attaching to an
// already-fired reference is a no-op.
func (ref *SafeRef) OnDelete(fn func(*SafeRef)) {
	if fn == nil {
		return
	}
	ref.mu.Lock()
	if !ref.fired {
		ref.onDelete = append(ref.onDelete, fn)
	}
	ref.mu.Unlock()
}

// die runs the deletion chain. The runtime may report collection through
// multiple cleanup hooks; the fired flag guarantees a single run.
func (ref *SafeRef) die() {
	ref.mu.Lock()
	if ref.fired {
		ref.mu.Unlock()
		return
	}
	ref.fired = true
	callbacks := ref.onDelete
	ref.onDelete = nil
	ref.mu.Unlock()

	ref.table.remove(ref)

	for _, fn := range callbacks {
		ref.invoke(fn)
	}
}

// invoke runs one deletion callback. A panicking callback is reported and
// must not prevent the rest of the chain from running.
func (ref *SafeRef) invoke(fn func(*SafeRef)) {
	defer func() {
		if r := recover(); r != nil {
			ref.table.logger.Error("deletion callback panicked",
				logger.Component("signal"),
				logger.Key("panic", r),
			)
		}
	}()
	fn(ref)
}

// RefRegistry deduplicates SafeRefs by identity key: requests to reference
// the same logical binding return the same SafeRef and share one deletion
// chain. Each Signal owns a registry by default; pass one explicitly with
// WithRefRegistry to share deduplication across signals.
type RefRegistry struct {
	logger *slog.Logger

	mu   sync.Mutex
	refs map[refKey]*SafeRef
}

// RegistryOption configures a RefRegistry.
type RegistryOption func(*RefRegistry)

// WithRegistryLogger sets the logger used to report deletion-callback
// failures. Defaults to a discarding logger.
func WithRegistryLogger(log *slog.Logger) RegistryOption {
	return func(t *RefRegistry) {
		if log != nil {
			t.logger = log
		}
	}
}

// NewRefRegistry creates an empty registry.
func NewRefRegistry(opts ...RegistryOption) *RefRegistry {
	t := &RefRegistry{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		refs:   make(map[refKey]*SafeRef),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Len reports the number of live references in the registry.
func (t *RefRegistry) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.refs)
}

// getOrCreate returns the reference registered under key, constructing and
// registering a new one via init when absent.
func (t *RefRegistry) getOrCreate(key refKey, init func(*SafeRef)) *SafeRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ref, ok := t.refs[key]; ok {
		return ref
	}
	ref := &SafeRef{key: key, table: t}
	init(ref)
	t.refs[key] = ref
	return ref
}

// remove drops ref from the registry the moment it fires, so a later request
// for the same key builds a fresh reference.
func (t *RefRegistry) remove(ref *SafeRef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.refs[ref.key]; ok && cur == ref {
		delete(t.refs, ref.key)
	}
}
