// Package signal provides a decoupled publish/subscribe notification
// dispatcher: independent components exchange notifications without holding
// hard references to each other, and a receiver or sender that is destroyed
// is removed from the registry automatically and safely.
//
// # Core Components
//
// Signal is the registry: it holds receivers, per-sender and per-receiver
// indices, and implements Connect, Disconnect, Send and SendAsync. Receivers
// may filter by sender or accept any (the Any sentinel).
//
// Receiver wraps a callable with a stable identity. Free receivers are built
// with NewReceiver/NewAsyncReceiver; receivers bound to an owning instance
// with Bind/BindAsync, whose registration lives exactly as long as the owner.
//
// SafeRef is the weak-reference layer underneath: it resolves to a live
// callable only while the target is reachable and fires a deletion-callback
// chain exactly once when the runtime collects it. A RefRegistry deduplicates
// references to the same logical binding.
//
// Namespace and WeakNamespace provide get-or-create singleton semantics for
// named signals; the weak variant discards signals nobody else holds.
//
// # Basic Usage
//
//	var orderPlaced = signal.Named("order.placed")
//
//	func main() {
//		// Keep the wrapper alive: weak registrations last only as long as it.
//		onPlaced := signal.NewReceiver(func(ctx context.Context, sender any, data signal.Data) (any, error) {
//			log.Printf("order %v placed by %v", data["order_id"], sender)
//			return nil, nil
//		})
//		if _, err := orderPlaced.Connect(onPlaced); err != nil {
//			log.Fatal(err)
//		}
//
//		results, err := orderPlaced.Send(ctx, signal.Data{"order_id": 42}, store)
//		if err != nil {
//			log.Fatal(err)
//		}
//		_ = results // [(receiver, value)] pairs, order unspecified
//	}
//
// # Sender Filtering
//
// Connect with From to receive only emissions on behalf of one sender:
//
//	sig.Connect(onStoreEvent, signal.From(store))
//	sig.Connect(auditEverything) // Any sender
//
// ReceiversFor(sender) always yields the union of both groups.
//
// # Lifetimes
//
// Weak registrations (the default) never keep their target alive. Dropping
// the last reference to a receiver wrapper, a Bind owner, or a sender object
// eventually removes the corresponding entries without an explicit
// Disconnect. Strong registrations (signal.Strong()) hold the wrapper and
// must be disconnected explicitly.
//
// Sender tracking is best effort: senders whose type cannot carry a
// destruction watch (non-pointer values such as strings, or objects with a
// pre-existing finalizer) are registered anyway and simply require a manual
// Disconnect.
//
// # Asynchronous Delivery
//
// SendAsync awaits suspension-capable receivers one at a time, in sequence;
// it never fans out concurrently. Mixing receiver kinds requires adapters:
//
//	sig := signal.New(
//		signal.WithSyncAdapter(signal.Deferred), // SendAsync → plain receivers
//		signal.WithAsyncAdapter(signal.Await),   // Send → suspension-capable receivers
//	)
//
// Without an adapter, delivery to the mismatched receiver kind fails rather
// than silently skipping it.
//
// # Concurrency
//
// Index bookkeeping is guarded internally because collection-triggered
// cleanups run on a runtime goroutine. No ordering or linearizability of
// concurrent Connect/Disconnect/Send calls is promised beyond that; callers
// needing such guarantees must serialize externally. A receiver error aborts
// delivery to the remaining receivers of that call.
package signal
