package signal_test

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/signals/core/signal"
)

func TestNamespaceGetOrCreate(t *testing.T) {
	t.Parallel()

	ns := signal.NewNamespace()

	a := ns.Signal("order.placed")
	b := ns.Signal("order.placed")
	assert.Same(t, a, b, "repeated lookups return the same signal")
	assert.Equal(t, "order.placed", a.Name())

	c := ns.Signal("order.shipped")
	assert.NotSame(t, a, c)
}

func TestNamespaceAppliesDefaultOptions(t *testing.T) {
	t.Parallel()

	ns := signal.NewNamespace(signal.WithSyncAdapter(signal.Deferred))
	sig := ns.Signal("mixed")

	_, err := sig.Connect(echoReceiver("plain"), signal.Strong())
	require.NoError(t, err)

	results, err := sig.SendAsync(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, results, 1, "namespace-level adapter reaches every created signal")
}

func TestNamedUsesDefaultNamespace(t *testing.T) {
	t.Parallel()

	a := signal.Named("namespace-test.default")
	b := signal.Named("namespace-test.default")
	assert.Same(t, a, b)
	assert.Equal(t, "namespace-test.default", a.Name())
}

func TestWeakNamespaceGetOrCreate(t *testing.T) {
	t.Parallel()

	ns := signal.NewWeakNamespace()

	a := ns.Signal("held")
	b := ns.Signal("held")
	assert.Same(t, a, b, "a live signal is reused")
	runtime.KeepAlive(a)
}

func TestWeakNamespaceRecreatesAfterCollection(t *testing.T) {
	t.Parallel()

	ns := signal.NewWeakNamespace()

	// Seed a signal with a connected receiver, then drop every external
	// reference to it.
	func() {
		sig := ns.Signal("ephemeral")
		_, err := sig.Connect(echoReceiver("probe"), signal.Strong())
		require.NoError(t, err)
		require.True(t, sig.HasReceiversFor(signal.Any))
		runtime.KeepAlive(sig)
	}()

	// Once collected, the next lookup builds a fresh signal: the probe
	// receiver from the previous incarnation is gone.
	eventuallyCollected(t, func() bool {
		return !ns.Signal("ephemeral").HasReceiversFor(signal.Any)
	})
}
