// Package agentrt assembles the event bus, agent registry, journal, and
// dead-letter replayer into one runtime with a single lifecycle.
//
// Basic usage:
//
//	rt, err := agentrt.New(agentrt.WithLogger(logger))
//	if err != nil { ... }
//	rt.Registry().Register(myAgent(rt.Bus()))
//	rt.Start(ctx)
//	defer rt.Close(ctx)
package agentrt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentrt/agentrt/pkg/agentrt/agent"
	"github.com/agentrt/agentrt/pkg/agentrt/config"
	"github.com/agentrt/agentrt/pkg/agentrt/event"
	"github.com/agentrt/agentrt/pkg/agentrt/journal"
	"github.com/agentrt/agentrt/pkg/agentrt/observability"
	"github.com/agentrt/agentrt/pkg/agentrt/registry"
)

// Runtime owns the bus, registry, and optional journal and replayer.
type Runtime struct {
	bus      *event.Bus
	registry *registry.Registry
	replayer *event.Replayer
	store    journal.Store
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
}

// options collects construction settings before the bus exists.
type options struct {
	logger         *slog.Logger
	historySize    int
	requestTimeout time.Duration
	deadLetter     event.DeadLetterConfig
	store          journal.Store
	replay         bool
	replayInterval time.Duration
	metrics        observability.MetricsRecorder
}

// Option configures the runtime.
type Option func(*options)

// WithLogger sets the runtime logger, shared by the bus, registry, and
// replayer. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHistorySize bounds the bus event history.
func WithHistorySize(n int) Option {
	return func(o *options) { o.historySize = n }
}

// WithRequestTimeout sets the default request/reply timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithDeadLetterConfig configures the dead letter store.
func WithDeadLetterConfig(cfg event.DeadLetterConfig) Option {
	return func(o *options) { o.deadLetter = cfg }
}

// WithJournal records every dispatched event to the store. The runtime
// takes ownership and closes the store on Close.
func WithJournal(store journal.Store) Option {
	return func(o *options) { o.store = store }
}

// WithReplayer enables background dead letter redelivery on the given
// poll interval. Zero means the default interval.
func WithReplayer(pollInterval time.Duration) Option {
	return func(o *options) {
		o.replay = true
		o.replayInterval = pollInterval
	}
}

// WithMetrics wires a metrics recorder into bus dispatch, handler
// failures, dead letters, and agent ticks.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// New creates a runtime.
func New(opts ...Option) (*Runtime, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	rt := &Runtime{
		logger:  o.logger,
		metrics: o.metrics,
		store:   o.store,
	}

	busCfg := event.BusConfig{
		HistorySize:    o.historySize,
		RequestTimeout: o.requestTimeout,
		DeadLetter:     o.deadLetter,
		Logger:         o.logger,
	}
	if o.store != nil {
		busCfg.Journal = journal.NewRecorder(o.store)
	}
	if o.metrics != nil {
		busCfg.OnDispatch = func(evt *event.Event, handlers int, duration time.Duration) {
			o.metrics.RecordDispatch(context.Background(), evt.Type, evt.Priority.String(), duration)
		}
		busCfg.OnHandlerError = func(evt *event.Event, _ string, _ error) {
			o.metrics.RecordHandlerError(context.Background(), evt.Type)
		}
		userOnAdd := busCfg.DeadLetter.OnAdd
		busCfg.DeadLetter.OnAdd = func(dl *event.DeadLetter) {
			o.metrics.RecordDeadLetter(context.Background(), dl.Event.Type)
			if userOnAdd != nil {
				userOnAdd(dl)
			}
		}
	}

	rt.bus = event.NewBus(busCfg)
	rt.registry = registry.New(rt.bus, registry.WithLogger(o.logger))

	if o.replay {
		rt.replayer = event.NewReplayer(rt.bus, event.ReplayerConfig{
			PollInterval: o.replayInterval,
			Logger:       o.logger,
		})
	}
	return rt, nil
}

// NewFromConfig creates a runtime from a loaded configuration file. The
// journal backend and replayer come from the file; explicit options
// apply on top.
func NewFromConfig(cfg config.File, opts ...Option) (*Runtime, error) {
	base := []Option{
		WithHistorySize(cfg.Bus.HistorySize),
		WithRequestTimeout(cfg.Bus.RequestTimeout.Std()),
		WithDeadLetterConfig(event.DeadLetterConfig{
			MaxSize:    cfg.Bus.DeadLetterMaxSize,
			MaxRetries: cfg.Bus.MaxRetries,
		}),
	}

	switch cfg.Journal.Driver {
	case "":
	case "memory":
		base = append(base, WithJournal(journal.NewMemoryStore()))
	case "sqlite":
		store, err := journal.NewSQLiteStore(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		base = append(base, WithJournal(store))
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Journal.Driver)
	}

	if cfg.Replayer.Enabled {
		base = append(base, WithReplayer(cfg.Replayer.PollInterval.Std()))
	}

	return New(append(base, opts...)...)
}

// AgentBuilder constructs a concrete agent from its configuration entry.
type AgentBuilder func(entry config.AgentEntry, bus *event.Bus) (agent.Agent, error)

// LoadAgents registers an agent per configuration entry, in declared
// order, so dependencies resolve. The builder receives each entry and
// the runtime bus.
func (r *Runtime) LoadAgents(entries []config.AgentEntry, build AgentBuilder) error {
	for _, entry := range entries {
		a, err := build(entry, r.bus)
		if err != nil {
			return fmt.Errorf("build agent %s: %w", entry.ID, err)
		}
		if err := r.registry.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// AgentOptions returns the options concrete agents should be built with
// so they share the runtime's logger and metrics.
func (r *Runtime) AgentOptions() []agent.Option {
	opts := []agent.Option{agent.WithLogger(r.logger)}
	if r.metrics != nil {
		opts = append(opts, agent.WithTickObserver(func(agentID string, duration time.Duration, err error) {
			r.metrics.RecordTick(context.Background(), agentID, duration, err)
		}))
	}
	return opts
}

// Bus returns the runtime event bus.
func (r *Runtime) Bus() *event.Bus { return r.bus }

// Registry returns the agent registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Journal returns the configured journal store, or nil.
func (r *Runtime) Journal() journal.Store { return r.store }

// Start starts every enabled agent in dependency order and launches the
// replayer when configured.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.registry.StartAll(ctx); err != nil {
		return err
	}
	if r.replayer != nil {
		r.replayer.Start(ctx)
	}
	if r.logger != nil {
		r.logger.Info("runtime started", slog.Int("agents", r.registry.Len()))
	}
	return nil
}

// Drain blocks until the dispatch queue is empty or ctx is done.
func (r *Runtime) Drain(ctx context.Context) error {
	return r.bus.Drain(ctx)
}

// Close stops agents in reverse dependency order, drains in-flight
// events, and closes the bus and journal. Errors are joined; Close
// always releases every component.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	if r.replayer != nil {
		r.replayer.Stop()
	}
	if err := r.registry.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := r.bus.Drain(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := r.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.logger != nil {
		r.logger.Info("runtime closed")
	}
	return errors.Join(errs...)
}
