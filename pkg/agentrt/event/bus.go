package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	agerrors "github.com/agentrt/agentrt/pkg/agentrt/errors"
)

// Handler processes a dispatched event. Returning an error sends the event
// to the dead letter store; it is never surfaced to the emitter.
type Handler func(ctx context.Context, evt *Event) error

// Filter optionally narrows a subscription beyond its pattern.
type Filter func(*Event) bool

// Journal receives every fully dispatched event. Implementations live in
// the journal package; appends are best effort and never block dispatch.
type Journal interface {
	Append(evt *Event) error
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// HistorySize bounds the in-memory event history. When the history
	// grows past the cap, the oldest half is dropped.
	// Default: 1000
	HistorySize int

	// RequestTimeout is the default Request timeout.
	// Default: 30 seconds
	RequestTimeout time.Duration

	// DeadLetter configures the dead letter store.
	DeadLetter DeadLetterConfig

	// Journal optionally records every dispatched event.
	Journal Journal

	// Logger for dispatch diagnostics. Nil disables logging.
	Logger *slog.Logger

	// OnDispatch is called after each event is fully dispatched.
	OnDispatch func(evt *Event, handlers int, duration time.Duration)

	// OnHandlerError is called when a handler fails (after dead-lettering).
	OnHandlerError func(evt *Event, subscriptionID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	HistorySize:    1000,
	RequestTimeout: 30 * time.Second,
}

// Stats is a point-in-time snapshot of bus activity.
type Stats struct {
	Emitted       int64 // events accepted by Emit
	Dispatched    int64 // events fully dispatched
	Delivered     int64 // successful handler invocations
	Failed        int64 // failed handler invocations
	QueueDepth    int   // events waiting for dispatch
	Subscriptions int   // active subscriptions
	HistorySize   int   // events retained in history
	DeadLetters   int   // entries in the dead letter store
}

// HistoryFilter narrows History results. Zero values match everything.
type HistoryFilter struct {
	// Pattern matches event types with the usual pattern rules.
	Pattern string
	// Source matches the emitting agent.
	Source string
	// Since keeps only events at or after the given time.
	Since time.Time
	// Limit keeps only the most recent N matches when > 0.
	Limit int
}

// Subscription is a registered handler with a compiled pattern.
type Subscription struct {
	id      string
	pattern Pattern
	handler Handler
	filter  Filter
	once    bool

	removed atomic.Bool
	bus     *Bus
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Pattern returns the compiled subscription pattern.
func (s *Subscription) Pattern() Pattern { return s.pattern }

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s.removed.CompareAndSwap(false, true) {
		s.bus.remove(s.id)
	}
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*Subscription)

// Once removes the subscription after its first successful invocation.
func Once() SubscribeOption {
	return func(s *Subscription) {
		s.once = true
	}
}

// WithFilter narrows delivery beyond the pattern. Events rejected by the
// filter do not count as an invocation (a once-subscription stays armed).
func WithFilter(f Filter) SubscribeOption {
	return func(s *Subscription) {
		s.filter = f
	}
}

// Bus is the in-process publish/subscribe event bus.
//
// A single dispatch loop drains the priority queue: one handler completes
// before the next begins, which bounds reentrancy hazards on shared agent
// state. Emit is non-blocking; delivery is asynchronous.
type Bus struct {
	cfg BusConfig

	mu          sync.Mutex
	queue       *queue
	subs        []*Subscription // registration order
	history     []*Event
	dispatching bool
	drained     chan struct{} // closed when the dispatch loop parks

	dead   *DeadLetterStore
	closed atomic.Bool

	emitted    atomic.Int64
	dispatched atomic.Int64
	delivered  atomic.Int64
	failed     atomic.Int64
}

// NewBus creates a bus.
func NewBus(cfg BusConfig) *Bus {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultBusConfig.HistorySize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultBusConfig.RequestTimeout
	}

	drained := make(chan struct{})
	close(drained)

	return &Bus{
		cfg:     cfg,
		queue:   newQueue(),
		dead:    NewDeadLetterStore(cfg.DeadLetter),
		drained: drained,
	}
}

// Emit constructs an event, enqueues it, and returns its ID. Queuing
// always succeeds synchronously unless the bus is closed; delivery happens
// on the dispatch loop.
func (b *Bus) Emit(eventType string, payload any, opts ...Option) (string, error) {
	if b.closed.Load() {
		return "", ErrBusClosed
	}

	evt := New(eventType, payload, opts...)

	b.mu.Lock()
	b.queue.Enqueue(evt)
	b.recordHistoryLocked(evt)
	b.kickLocked()
	b.mu.Unlock()

	b.emitted.Add(1)
	return evt.ID, nil
}

// Subscribe registers a handler for a pattern and returns the
// subscription for later removal.
func (b *Bus) Subscribe(pattern string, handler Handler, opts ...SubscribeOption) *Subscription {
	if handler == nil {
		panic(ErrNilHandler)
	}

	sub := &Subscription{
		id:      uuid.New().String(),
		pattern: CompilePattern(pattern),
		handler: handler,
		bus:     b,
	}
	for _, opt := range opts {
		opt(sub)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub
}

// Once registers a handler that self-removes after its first successful
// invocation.
func (b *Bus) Once(pattern string, handler Handler, opts ...SubscribeOption) *Subscription {
	return b.Subscribe(pattern, handler, append(opts, Once())...)
}

// Unsubscribe removes the subscription with the given ID, or, when the
// argument is not a known ID, every subscription registered under that
// exact pattern string. Returns the number of subscriptions removed.
func (b *Bus) Unsubscribe(idOrPattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	kept := b.subs[:0]
	for _, sub := range b.subs {
		if sub.id == idOrPattern {
			sub.removed.Store(true)
			removed++
			continue
		}
		kept = append(kept, sub)
	}
	if removed > 0 {
		b.subs = kept
		return removed
	}

	kept = b.subs[:0]
	for _, sub := range b.subs {
		if sub.pattern.String() == idOrPattern {
			sub.removed.Store(true)
			removed++
			continue
		}
		kept = append(kept, sub)
	}
	b.subs = kept
	return removed
}

// Request emits an event with a generated reply topic and waits for the
// correlated reply. Responders answer with an ordinary Emit to the
// event's ReplyTo topic; there is no separate reply primitive.
//
// A timeout <= 0 uses the bus default. On timeout or context cancellation
// the pending reply subscription is removed and the request fails; the
// emitted event is not retracted.
func (b *Bus) Request(ctx context.Context, eventType string, payload any, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = b.cfg.RequestTimeout
	}

	correlationID := uuid.New().String()
	replyTopic := "reply:" + correlationID

	replyCh := make(chan *Event, 1)
	sub := b.Once(replyTopic, func(_ context.Context, evt *Event) error {
		select {
		case replyCh <- evt:
		default:
		}
		return nil
	})

	if _, err := b.Emit(eventType, payload,
		WithCorrelationID(correlationID),
		WithReplyTo(replyTopic),
	); err != nil {
		sub.Unsubscribe()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.Payload, nil
	case <-ctx.Done():
		sub.Unsubscribe()
		return nil, ctx.Err()
	case <-timer.C:
		sub.Unsubscribe()
		return nil, &agerrors.TimeoutError{
			Operation: "request " + eventType,
			Duration:  timeout,
		}
	}
}

// History returns retained events matching the filter, oldest first.
// A nil filter returns everything still retained.
func (b *Bus) History(filter *HistoryFilter) []*Event {
	b.mu.Lock()
	snapshot := make([]*Event, len(b.history))
	copy(snapshot, b.history)
	b.mu.Unlock()

	if filter == nil {
		return snapshot
	}

	pattern := Pattern{kind: patternAll}
	if filter.Pattern != "" {
		pattern = CompilePattern(filter.Pattern)
	}

	matched := snapshot[:0]
	for _, evt := range snapshot {
		if !pattern.Match(evt.Type) {
			continue
		}
		if filter.Source != "" && evt.Source != filter.Source {
			continue
		}
		if !filter.Since.IsZero() && evt.Timestamp.Before(filter.Since) {
			continue
		}
		matched = append(matched, evt)
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}
	return matched
}

// DeadLetters returns all dead-letter entries, oldest failure first.
func (b *Bus) DeadLetters() []*DeadLetter {
	return b.dead.All()
}

// DeadLetterStore exposes the underlying store for replay tooling.
func (b *Bus) DeadLetterStore() *DeadLetterStore {
	return b.dead
}

// RetryDeadLetter re-queues a dead-lettered event. It returns false when
// the ID is unknown or the retry budget (MaxRetries) is exhausted. The
// dead-letter entry stays in place so a repeated failure increments it;
// a clean redispatch acknowledges and removes it.
func (b *Bus) RetryDeadLetter(eventID string) bool {
	if b.closed.Load() {
		return false
	}
	return b.dead.Retry(eventID, func(evt *Event) {
		b.mu.Lock()
		b.queue.Enqueue(evt)
		b.kickLocked()
		b.mu.Unlock()
	})
}

// Stats returns a snapshot of bus counters and sizes.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	queueDepth := b.queue.Len()
	subscriptions := len(b.subs)
	historySize := len(b.history)
	b.mu.Unlock()

	return Stats{
		Emitted:       b.emitted.Load(),
		Dispatched:    b.dispatched.Load(),
		Delivered:     b.delivered.Load(),
		Failed:        b.failed.Load(),
		QueueDepth:    queueDepth,
		Subscriptions: subscriptions,
		HistorySize:   historySize,
		DeadLetters:   b.dead.Len(),
	}
}

// Drain blocks until the dispatch loop has parked with an empty queue, or
// the context is cancelled. Events emitted after Drain returns are not
// covered.
func (b *Bus) Drain(ctx context.Context) error {
	b.mu.Lock()
	done := b.drained
	b.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting emits and waits for in-flight dispatch to drain.
func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.Drain(context.Background())
}

// remove drops a subscription by ID without the pattern fallback.
func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// recordHistoryLocked appends to bounded history, dropping the oldest
// half once the cap is exceeded. Must hold b.mu.
func (b *Bus) recordHistoryLocked(evt *Event) {
	b.history = append(b.history, evt)
	if len(b.history) > b.cfg.HistorySize {
		half := len(b.history) / 2
		b.history = append([]*Event(nil), b.history[half:]...)
	}
}

// kickLocked starts the dispatch loop if it is not already in flight.
// Must hold b.mu.
func (b *Bus) kickLocked() {
	if b.dispatching {
		return
	}
	b.dispatching = true
	b.drained = make(chan struct{})
	go b.dispatch()
}

// dispatch drains the priority queue one event at a time. The loop
// re-checks queue emptiness rather than a fixed initial size, so events
// emitted while dispatch is in flight are picked up; it parks only when
// the queue is observed empty.
func (b *Bus) dispatch() {
	for {
		b.mu.Lock()
		evt := b.queue.Dequeue()
		if evt == nil {
			b.dispatching = false
			close(b.drained)
			b.mu.Unlock()
			return
		}
		// Snapshot matching subscriptions in registration order. The
		// match set is fixed per event: handlers subscribed mid-dispatch
		// see only later events.
		matched := make([]*Subscription, 0, 4)
		for _, sub := range b.subs {
			if sub.pattern.Match(evt.Type) {
				matched = append(matched, sub)
			}
		}
		b.mu.Unlock()

		start := time.Now()
		failures := 0
		for _, sub := range matched {
			if sub.removed.Load() {
				continue
			}
			if sub.filter != nil && !sub.filter(evt) {
				continue
			}

			if err := b.invoke(sub, evt); err != nil {
				b.failed.Add(1)
				failures++
				b.dead.Add(evt, &EventError{
					EventID:   evt.ID,
					EventType: evt.Type,
					Handler:   sub.id,
					Message:   "handler failed",
					Err:       err,
				})
				if b.cfg.Logger != nil {
					b.cfg.Logger.Warn("handler failed",
						slog.String("event_id", evt.ID),
						slog.String("event_type", evt.Type),
						slog.String("subscription", sub.id),
						slog.String("error", err.Error()),
					)
				}
				if b.cfg.OnHandlerError != nil {
					b.cfg.OnHandlerError(evt, sub.id, err)
				}
				continue
			}

			b.delivered.Add(1)
			if sub.once {
				sub.Unsubscribe()
			}
		}

		// A clean pass over a previously dead-lettered event means the
		// retry worked: acknowledge the entry so it is not replayed again.
		if failures == 0 && b.dead.Acknowledge(evt.ID) && b.cfg.Logger != nil {
			b.cfg.Logger.Info("dead letter recovered",
				slog.String("event_id", evt.ID),
				slog.String("event_type", evt.Type),
			)
		}

		b.dispatched.Add(1)
		if b.cfg.Journal != nil {
			if err := b.cfg.Journal.Append(evt); err != nil && b.cfg.Logger != nil {
				b.cfg.Logger.Warn("journal append failed",
					slog.String("event_id", evt.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		if b.cfg.OnDispatch != nil {
			b.cfg.OnDispatch(evt, len(matched), time.Since(start))
		}
	}
}

// invoke runs a single handler, converting panics into errors so a bad
// handler never takes down the dispatch loop.
func (b *Bus) invoke(sub *Subscription, evt *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &agerrors.PanicError{
				Origin: fmt.Sprintf("subscription %s (%s)", sub.id, sub.pattern),
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()
	return sub.handler(context.Background(), evt)
}
