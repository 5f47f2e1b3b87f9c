package signal

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"runtime"
	"sync"

	"github.com/dmitrymomot/signals/pkg/logger"
)

// Signal is a notification emitter: a registry of receivers indexed by the
// senders they are interested in. Receivers connected weakly are dropped
// automatically once their target is collected.
type Signal struct {
	name   string
	logger *slog.Logger
	refs   *RefRegistry

	syncAdapter  SyncAdapter
	asyncAdapter AsyncAdapter

	mu          sync.Mutex
	muted       bool
	receivers   map[refKey]entry
	bySender    map[any]map[refKey]struct{}
	byReceiver  map[refKey]map[any]struct{}
	weakSenders map[any]struct{}

	metaMu               sync.Mutex
	receiverConnected    *Signal
	receiverDisconnected *Signal
}

// entry is one receiver slot: either a strong hold on the wrapper or a weak
// reference resolved at dispatch time.
type entry struct {
	strong *Receiver
	ref    *SafeRef
}

// Option configures a Signal.
type Option func(*Signal)

// WithName sets the signal's diagnostic name, surfaced in log attributes.
func WithName(name string) Option {
	return func(s *Signal) { s.name = name }
}

// WithLogger configures structured logging for the signal.
// Defaults to a discarding logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Signal) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithRefRegistry shares a SafeRef deduplication table with other signals.
// By default each signal owns its own.
func WithRefRegistry(table *RefRegistry) Option {
	return func(s *Signal) {
		if table != nil {
			s.refs = table
		}
	}
}

// WithAsyncAdapter lets Send deliver to suspension-capable receivers by
// converting them into blocking calls. Without it, Send fails on such
// receivers.
func WithAsyncAdapter(adapter AsyncAdapter) Option {
	return func(s *Signal) { s.asyncAdapter = adapter }
}

// WithSyncAdapter lets SendAsync deliver to plain receivers by lifting them
// into suspension-capable calls. Without it, SendAsync fails on such
// receivers.
func WithSyncAdapter(adapter SyncAdapter) Option {
	return func(s *Signal) { s.syncAdapter = adapter }
}

// New creates a signal.
//
// Example:
//
//	var orderPlaced = signal.New(signal.WithName("order.placed"))
//
//	r, _ := orderPlaced.Connect(signal.NewReceiver(onOrderPlaced))
//	orderPlaced.Send(ctx, signal.Data{"order_id": id}, store)
func New(opts ...Option) *Signal {
	s := &Signal{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		receivers:   make(map[refKey]entry),
		bySender:    make(map[any]map[refKey]struct{}),
		byReceiver:  make(map[refKey]map[any]struct{}),
		weakSenders: make(map[any]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.refs == nil {
		s.refs = NewRefRegistry(WithRegistryLogger(s.logger))
	}
	return s
}

// Name returns the signal's diagnostic name, if any.
func (s *Signal) Name() string { return s.name }

// ConnectOption configures a single Connect or Disconnect call.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	sender any
	strong bool
}

// From restricts the registration to emissions sent by sender.
// Defaults to Any.
func From(sender any) ConnectOption {
	return func(c *connectConfig) { c.sender = sender }
}

// Strong makes the signal hold the receiver wrapper itself instead of a weak
// reference. The caller becomes responsible for an eventual explicit
// Disconnect.
func Strong() ConnectOption {
	return func(c *connectConfig) { c.strong = true }
}

// Weak restores the default weak registration, undoing an earlier Strong in
// the option list.
func Weak() ConnectOption {
	return func(c *connectConfig) { c.strong = false }
}

func newConnectConfig(opts []ConnectOption) connectConfig {
	cfg := connectConfig{sender: Any}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Connect registers receiver for emissions by the configured sender
// (Any unless narrowed with From). Registrations are weak by default: the
// signal does not keep the receiver's target alive, and the registration
// disappears once the target is collected.
//
// Returns the receiver unchanged, so a Connect call can wrap construction:
//
//	r, err := sig.Connect(signal.NewReceiver(fn), signal.From(store))
func (s *Signal) Connect(r *Receiver, opts ...ConnectOption) (*Receiver, error) {
	cfg := newConnectConfig(opts)

	key := r.key
	ent := entry{strong: r}
	if !cfg.strong {
		ent = entry{ref: r.SafeRef(s.refs, func(*SafeRef) { s.cleanupReceiver(key) })}
	}

	senderID := senderBucketID(cfg.sender)

	s.mu.Lock()
	if _, ok := s.receivers[key]; !ok {
		s.receivers[key] = ent
	}
	bucket := s.bySender[senderID]
	if bucket == nil {
		bucket = make(map[refKey]struct{})
		s.bySender[senderID] = bucket
	}
	bucket[key] = struct{}{}
	senders := s.byReceiver[key]
	if senders == nil {
		senders = make(map[any]struct{})
		s.byReceiver[key] = senders
	}
	senders[senderID] = struct{}{}
	_, watched := s.weakSenders[senderID]
	s.mu.Unlock()

	if !isAny(cfg.sender) && !watched {
		if s.watchSender(cfg.sender, senderID) {
			s.mu.Lock()
			s.weakSenders[senderID] = struct{}{}
			s.mu.Unlock()
		}
	}

	s.logger.Debug("receiver connected",
		logger.Component("signal"),
		logger.ID("signal", s.name),
		logger.ID("receiver", r.name),
		logger.Key("weak", !cfg.strong),
	)

	if err := s.notifyConnected(r, cfg); err != nil {
		// A failing meta-receiver vetoes the connection: undo it before the
		// error reaches the caller.
		derr := s.Disconnect(r, From(cfg.sender))
		return nil, errors.Join(err, derr)
	}
	return r, nil
}

// ConnectVia returns registration sugar for attaching several receivers to
// the same sender. Unlike Connect, registrations are strong by default.
//
//	register := sig.ConnectVia(store)
//	register(signal.NewReceiver(onCreated))
//	register(signal.NewReceiver(onDeleted))
func (s *Signal) ConnectVia(sender any, opts ...ConnectOption) func(*Receiver) (*Receiver, error) {
	base := append([]ConnectOption{Strong(), From(sender)}, opts...)
	return func(r *Receiver) (*Receiver, error) {
		return s.Connect(r, base...)
	}
}

// ConnectedTo runs fn with receiver temporarily connected (strongly) and
// guarantees a full disconnect on every exit path, including panics.
// Useful in tests.
func (s *Signal) ConnectedTo(r *Receiver, fn func() error, opts ...ConnectOption) (err error) {
	if _, cerr := s.Connect(r, append(opts, Strong())...); cerr != nil {
		return cerr
	}
	defer func() {
		if derr := s.Disconnect(r); derr != nil {
			err = errors.Join(err, derr)
		}
	}()
	return fn()
}

// Disconnect removes receiver's registration. With the default Any sender the
// teardown is total: the receiver is dropped from every sender bucket it was
// registered under. With From(sender), only that pairing is removed; the last
// removed pairing releases the receiver's slot entirely.
//
// The disconnected meta-notification fires for explicit calls only, never for
// collection-triggered cleanup: the original target is gone by then and
// cannot be reported.
func (s *Signal) Disconnect(r *Receiver, opts ...ConnectOption) error {
	cfg := newConnectConfig(opts)

	s.mu.Lock()
	if isAny(cfg.sender) {
		s.dropReceiverLocked(r.key)
	} else {
		s.dropPairLocked(r.key, senderKey(cfg.sender))
	}
	s.mu.Unlock()

	s.logger.Debug("receiver disconnected",
		logger.Component("signal"),
		logger.ID("signal", s.name),
		logger.ID("receiver", r.name),
	)

	return s.notifyDisconnected(r, cfg)
}

// Muted runs fn with the signal muted, restoring the prior state on every
// exit path. While muted, Send and SendAsync return empty results without
// touching any receiver.
func (s *Signal) Muted(fn func() error) error {
	s.mu.Lock()
	prev := s.muted
	s.muted = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.muted = prev
		s.mu.Unlock()
	}()

	return fn()
}

// IsMuted reports whether the signal is currently muted.
func (s *Signal) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// ReceiversFor lazily yields every live receiver listening for sender: the
// union of the Any registrations and those scoped to sender. Weak entries
// whose target has been collected but whose cleanup has not yet run are
// disconnected eagerly and skipped, so a dead receiver is never yielded.
func (s *Signal) ReceiversFor(sender any) iter.Seq[*Receiver] {
	return func(yield func(*Receiver) bool) {
		type candidate struct {
			key refKey
			ent entry
		}

		s.mu.Lock()
		if len(s.receivers) == 0 {
			s.mu.Unlock()
			return
		}
		ids := make(map[refKey]struct{}, len(s.bySender[anyID]))
		for key := range s.bySender[anyID] {
			ids[key] = struct{}{}
		}
		if !isAny(sender) {
			// Absent sender keys read as empty; the bucket is never created
			// by a lookup.
			for key := range s.bySender[senderKey(sender)] {
				ids[key] = struct{}{}
			}
		}
		candidates := make([]candidate, 0, len(ids))
		for key := range ids {
			if ent, ok := s.receivers[key]; ok {
				candidates = append(candidates, candidate{key: key, ent: ent})
			}
		}
		s.mu.Unlock()

		for _, c := range candidates {
			r := c.ent.strong
			if r == nil {
				live, ok := c.ent.ref.Get()
				if !ok {
					s.cleanupReceiver(c.key)
					continue
				}
				r = live
			}
			if !yield(r) {
				return
			}
		}
	}
}

// HasReceiversFor is an optimistic existence check: it does not dereference
// weak entries, so it may report true for a receiver that is already dead,
// but it returns false whenever there are provably no receivers for sender.
func (s *Signal) HasReceiversFor(sender any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.receivers) == 0 {
		return false
	}
	if len(s.bySender[anyID]) > 0 {
		return true
	}
	if isAny(sender) {
		return false
	}
	_, ok := s.bySender[senderKey(sender)]
	return ok
}

// ReceiverConnected returns the meta-signal emitted after each successful
// Connect on this signal, created lazily on first access. The meta-emission
// carries the signal as sender and receiver/sender/weak entries in Data.
func (s *Signal) ReceiverConnected() *Signal {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	if s.receiverConnected == nil {
		s.receiverConnected = New(WithName(s.name+".receiver_connected"), WithLogger(s.logger))
	}
	return s.receiverConnected
}

// ReceiverDisconnected returns the meta-signal emitted after each explicit
// Disconnect on this signal, created lazily on first access.
func (s *Signal) ReceiverDisconnected() *Signal {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	if s.receiverDisconnected == nil {
		s.receiverDisconnected = New(WithName(s.name+".receiver_disconnected"), WithLogger(s.logger))
	}
	return s.receiverDisconnected
}

// AnyReceiverConnected is emitted by every signal after a successful Connect,
// with the connecting signal as sender. It is the process-wide counterpart of
// the per-signal ReceiverConnected meta-signal.
var AnyReceiverConnected = New(WithName("receiver_connected"))

// Stats reports bookkeeping sizes, for observability and test assertions.
type Stats struct {
	Receivers     int
	SenderBuckets int
	WeakSenders   int
}

// Stats returns current index sizes.
func (s *Signal) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Receivers:     len(s.receivers),
		SenderBuckets: len(s.bySender),
		WeakSenders:   len(s.weakSenders),
	}
}

// Reset throws away all signal state. Intended for test isolation; not part
// of the normal operational path.
func (s *Signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.receivers)
	clear(s.bySender)
	clear(s.byReceiver)
	clear(s.weakSenders)
}

func (s *Signal) hasReceivers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receivers) > 0
}

func (s *Signal) notifyConnected(r *Receiver, cfg connectConfig) error {
	data := Data{"receiver": r, "sender": cfg.sender, "weak": !cfg.strong}

	s.metaMu.Lock()
	meta := s.receiverConnected
	s.metaMu.Unlock()
	if meta != nil && meta.hasReceivers() {
		if _, err := meta.Send(context.Background(), data, s); err != nil {
			return err
		}
	}
	if s != AnyReceiverConnected && AnyReceiverConnected.hasReceivers() {
		if _, err := AnyReceiverConnected.Send(context.Background(), data, s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Signal) notifyDisconnected(r *Receiver, cfg connectConfig) error {
	s.metaMu.Lock()
	meta := s.receiverDisconnected
	s.metaMu.Unlock()
	if meta == nil || !meta.hasReceivers() {
		return nil
	}
	_, err := meta.Send(context.Background(), Data{"receiver": r, "sender": cfg.sender}, s)
	return err
}

// dropReceiverLocked performs the total teardown of one receiver slot:
// removal from every sender bucket plus the slot itself. Empty buckets are
// pruned under the lock.
func (s *Signal) dropReceiverLocked(key refKey) {
	if _, ok := s.byReceiver[key]; ok {
		delete(s.byReceiver, key)
		for senderID, bucket := range s.bySender {
			delete(bucket, key)
			if len(bucket) == 0 {
				delete(s.bySender, senderID)
			}
		}
	}
	delete(s.receivers, key)
}

// dropPairLocked removes a single receiver/sender pairing. When the
// receiver's last pairing goes, its slot is released entirely.
func (s *Signal) dropPairLocked(key refKey, senderID any) {
	if bucket, ok := s.bySender[senderID]; ok {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(s.bySender, senderID)
		}
	}
	if senders, ok := s.byReceiver[key]; ok {
		delete(senders, senderID)
		if len(senders) == 0 {
			delete(s.byReceiver, key)
			delete(s.receivers, key)
		}
	}
}

// cleanupReceiver is the deletion hook for weakly held receivers. It runs on
// the runtime's cleanup goroutine, so all index mutation happens under the
// lock, and no meta-notification is emitted.
func (s *Signal) cleanupReceiver(key refKey) {
	s.mu.Lock()
	s.dropReceiverLocked(key)
	s.mu.Unlock()

	s.logger.Debug("weak receiver collected",
		logger.Component("signal"),
		logger.ID("signal", s.name),
	)
}

// cleanupSender drops every registration scoped to a destroyed sender.
func (s *Signal) cleanupSender(senderID any) {
	s.mu.Lock()
	delete(s.weakSenders, senderID)
	bucket := s.bySender[senderID]
	delete(s.bySender, senderID)
	for key := range bucket {
		senders := s.byReceiver[key]
		delete(senders, senderID)
		if len(senders) == 0 {
			delete(s.byReceiver, key)
			delete(s.receivers, key)
		}
	}
	s.mu.Unlock()

	s.logger.Debug("weak sender collected",
		logger.Component("signal"),
		logger.ID("signal", s.name),
	)
}

// watchSender installs a destruction watch on sender, best effort. Types that
// cannot carry a finalizer (non-pointer values, interior pointers, objects
// that already have one) are skipped silently: such senders are never cleaned
// up automatically and must be disconnected manually.
func (s *Signal) watchSender(sender any, senderID any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	runtime.SetFinalizer(sender, func(any) { s.cleanupSender(senderID) })
	return true
}
