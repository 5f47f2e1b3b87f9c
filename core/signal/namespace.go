package signal

import (
	"runtime"
	"sync"
	"weak"
)

// Namespace is a mapping of signal names to signals with get-or-create
// semantics: repeated calls for the same name return the same signal.
// Signals held by a Namespace live for the life of the namespace.
type Namespace struct {
	opts []Option

	mu      sync.Mutex
	signals map[string]*Signal
}

// NewNamespace creates a namespace. The given options are applied to every
// signal it creates, before per-call options.
func NewNamespace(opts ...Option) *Namespace {
	return &Namespace{
		opts:    opts,
		signals: make(map[string]*Signal),
	}
}

// Signal returns the signal registered under name, creating it if required.
func (ns *Namespace) Signal(name string, opts ...Option) *Signal {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if sig, ok := ns.signals[name]; ok {
		return sig
	}
	sig := ns.build(name, opts)
	ns.signals[name] = sig
	return sig
}

func (ns *Namespace) build(name string, opts []Option) *Signal {
	all := make([]Option, 0, len(ns.opts)+len(opts)+1)
	all = append(all, ns.opts...)
	all = append(all, opts...)
	all = append(all, WithName(name))
	return New(all...)
}

// WeakNamespace is a Namespace variant that holds its signals weakly: an
// entry disappears once no external holder references the signal, and a
// subsequent Signal call for that name creates a new, distinct signal.
// Callers must not assume signal identity persists across drops.
type WeakNamespace struct {
	opts []Option

	mu      sync.Mutex
	signals map[string]weak.Pointer[Signal]
}

// NewWeakNamespace creates a weak-holding namespace.
func NewWeakNamespace(opts ...Option) *WeakNamespace {
	return &WeakNamespace{
		opts:    opts,
		signals: make(map[string]weak.Pointer[Signal]),
	}
}

// Signal returns the live signal registered under name, creating a fresh one
// if the name is unknown or its previous signal has been collected.
func (ns *WeakNamespace) Signal(name string, opts ...Option) *Signal {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if wp, ok := ns.signals[name]; ok {
		if sig := wp.Value(); sig != nil {
			return sig
		}
	}

	all := make([]Option, 0, len(ns.opts)+len(opts)+1)
	all = append(all, ns.opts...)
	all = append(all, opts...)
	all = append(all, WithName(name))
	sig := New(all...)

	ns.signals[name] = weak.Make(sig)
	runtime.AddCleanup(sig, ns.drop, name)
	return sig
}

// drop prunes the slot for name once its signal has been collected. A newer
// signal stored under the same name is left untouched.
func (ns *WeakNamespace) drop(name string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if wp, ok := ns.signals[name]; ok && wp.Value() == nil {
		delete(ns.signals, name)
	}
}

var defaultNamespace = NewNamespace()

// Named returns the named signal from the package-level default namespace,
// creating it on first use.
func Named(name string, opts ...Option) *Signal {
	return defaultNamespace.Signal(name, opts...)
}
