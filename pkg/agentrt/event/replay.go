package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	agerrors "github.com/agentrt/agentrt/pkg/agentrt/errors"
)

// ReplayerConfig configures the dead-letter replayer.
type ReplayerConfig struct {
	// PollInterval is how often the store is scanned for entries.
	// Default: 10 seconds
	PollInterval time.Duration

	// Retry shapes the backoff between attempts of the same event.
	Retry agerrors.RetryConfig

	// Logger for replay diagnostics. Nil disables logging.
	Logger *slog.Logger

	// OnRetry is called before an event is re-queued.
	OnRetry func(*DeadLetter)
}

// DefaultReplayerConfig provides reasonable defaults.
var DefaultReplayerConfig = ReplayerConfig{
	PollInterval: 10 * time.Second,
	Retry:        agerrors.DefaultRetry,
}

// Replayer periodically re-queues dead-lettered events through the bus,
// honoring the store's retry cap and an exponential backoff between
// attempts of the same event. It is optional: dead letters remain
// manually replayable via Bus.RetryDeadLetter without it.
type Replayer struct {
	bus *Bus
	cfg ReplayerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	// nextAttempt tracks per-event earliest retry times.
	nextAttempt map[string]time.Time
}

// NewReplayer creates a replayer bound to a bus.
func NewReplayer(bus *Bus, cfg ReplayerConfig) *Replayer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultReplayerConfig.PollInterval
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultReplayerConfig.Retry
	}
	return &Replayer{
		bus:         bus,
		cfg:         cfg,
		nextAttempt: make(map[string]time.Time),
	}
}

// Start begins the replay loop. Calling Start on a running replayer is a
// no-op.
func (r *Replayer) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	go r.run(ctx, stopCh)
}

// Stop halts the replay loop.
func (r *Replayer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	close(r.stopCh)
	r.running = false
}

func (r *Replayer) run(ctx context.Context, stopCh chan struct{}) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep re-queues every due dead letter that still has retry budget.
func (r *Replayer) sweep() {
	now := time.Now()
	store := r.bus.DeadLetterStore()

	for _, entry := range store.All() {
		if entry.RetryCount >= store.MaxRetries() {
			continue
		}

		r.mu.Lock()
		due, tracked := r.nextAttempt[entry.Event.ID]
		r.mu.Unlock()
		if tracked && now.Before(due) {
			continue
		}

		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(entry)
		}
		if !r.bus.RetryDeadLetter(entry.Event.ID) {
			continue
		}
		if r.cfg.Logger != nil {
			r.cfg.Logger.Debug("dead letter requeued",
				"event_id", entry.Event.ID,
				"event_type", entry.Event.Type,
				"retry_count", entry.RetryCount,
			)
		}

		r.mu.Lock()
		r.nextAttempt[entry.Event.ID] = now.Add(r.cfg.Retry.Backoff(entry.RetryCount + 1))
		r.mu.Unlock()
	}

	// Drop tracking for entries that have left the store.
	r.mu.Lock()
	for id := range r.nextAttempt {
		if _, ok := store.Get(id); !ok {
			delete(r.nextAttempt, id)
		}
	}
	r.mu.Unlock()
}
