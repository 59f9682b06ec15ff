package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	agerrors "github.com/agentrt/agentrt/pkg/agentrt/errors"
	"github.com/agentrt/agentrt/pkg/agentrt/event"
)

// Status is an agent's lifecycle state. Exactly one status holds at a
// time; transitions are driven only by lifecycle calls, never by the bus.
type Status string

// Agent statuses.
const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusError   Status = "error"
	StatusStopped Status = "stopped"
)

// Config describes an agent to the registry.
type Config struct {
	// ID uniquely identifies the agent across the registry.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable label.
	Name string `json:"name" yaml:"name"`

	// Tier is a coarse category (foundation, sensing, decision, ...)
	// used for indexing and queries, not for scheduling order.
	Tier string `json:"tier" yaml:"tier"`

	// Description documents what the agent does.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Version is the agent implementation version.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Dependencies lists agent IDs that must be registered first and
	// started before this agent.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// Enabled gates StartAll. Nil means enabled.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// TickRate is the periodic tick interval. Zero means event-driven
	// only, no periodic tick.
	TickRate time.Duration `json:"tick_rate,omitempty" yaml:"tick_rate,omitempty"`

	// CronSpec optionally schedules ticks on a cron expression instead
	// of a fixed interval. Ignored when TickRate > 0.
	CronSpec string `json:"cron_spec,omitempty" yaml:"cron_spec,omitempty"`
}

// IsEnabled reports whether the agent participates in StartAll.
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Agent is the contract the registry manages.
type Agent interface {
	// Config returns the agent's registration config.
	Config() Config

	// Status returns the current lifecycle status.
	Status() Status

	// Start brings the agent to StatusRunning. Calling Start on a
	// running agent is a no-op, not an error.
	Start(ctx context.Context) error

	// Stop brings the agent to StatusStopped, cancels its tick timer
	// and removes its tracked subscriptions. Idempotent.
	Stop(ctx context.Context) error

	// Pause skips tick invocations while keeping event subscriptions
	// live. Resume returns to StatusRunning.
	Pause()
	Resume()
}

// Hooks are the concrete agent's lifecycle callbacks. Any hook may be
// nil.
type Hooks struct {
	// OnStart runs during Start, before the agent is marked running.
	OnStart func(ctx context.Context) error

	// OnStop runs during Stop, before subscriptions are removed.
	OnStop func(ctx context.Context) error

	// OnTick runs on every tick while the agent is running.
	OnTick func(ctx context.Context) error
}

// TickObserver is called after every executed tick.
type TickObserver func(agentID string, duration time.Duration, err error)

// Option configures a Base agent.
type Option func(*Base)

// WithLogger sets the agent's logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		b.logger = logger
	}
}

// WithTickObserver registers a callback observing tick executions,
// typically wired to metrics.
func WithTickObserver(obs TickObserver) Option {
	return func(b *Base) {
		b.tickObserver = obs
	}
}

// Base is the standard Agent implementation. Concrete agents embed or
// construct a Base with their Hooks; the Base owns status transitions,
// the tick timer, and subscription cleanup.
type Base struct {
	cfg    Config
	hooks  Hooks
	bus    *event.Bus
	logger *slog.Logger

	tickObserver TickObserver

	mu       sync.Mutex
	status   Status
	subs     []*event.Subscription
	stopTick func()

	tickBusy sync.Mutex // guards against overlapping ticks; TryLock == skip-if-busy
}

// New creates an agent from a config, bus, and hooks.
func New(cfg Config, bus *event.Bus, hooks Hooks, opts ...Option) *Base {
	b := &Base{
		cfg:    cfg,
		hooks:  hooks,
		bus:    bus,
		status: StatusIdle,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config implements Agent.
func (b *Base) Config() Config {
	return b.cfg
}

// Status implements Agent.
func (b *Base) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Start implements Agent. It runs OnStart, marks the agent running, and
// launches the tick timer. From StatusError an explicit Start returns the
// agent to running. Start on a running or paused agent is a no-op.
func (b *Base) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.status == StatusRunning || b.status == StatusPaused {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if b.hooks.OnStart != nil {
		if err := b.runHook(ctx, "start", b.hooks.OnStart); err != nil {
			b.setStatus(StatusError)
			b.emitDiagnostic("start", err)
			return &agerrors.LifecycleError{AgentID: b.cfg.ID, Op: "start", Err: err}
		}
	}

	b.mu.Lock()
	b.status = StatusRunning
	startTicker := b.stopTick == nil && (b.cfg.TickRate > 0 || b.cfg.CronSpec != "")
	b.mu.Unlock()

	if startTicker {
		if err := b.startTicker(); err != nil {
			b.setStatus(StatusError)
			b.emitDiagnostic("start", err)
			return &agerrors.LifecycleError{AgentID: b.cfg.ID, Op: "start", Err: err}
		}
	}

	if b.logger != nil {
		b.logger.Info("agent started",
			slog.String("agent_id", b.cfg.ID),
			slog.String("tier", b.cfg.Tier),
		)
	}
	return nil
}

// Stop implements Agent. It cancels the tick timer, runs OnStop, and
// removes every subscription made through Subscribe so the agent does not
// leak handlers across restarts. Events already matched to its handlers
// by an in-flight dispatch are not cancelled.
func (b *Base) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.status == StatusStopped || b.status == StatusIdle {
		b.mu.Unlock()
		return nil
	}
	stopTick := b.stopTick
	b.stopTick = nil
	subs := b.subs
	b.subs = nil
	b.status = StatusStopped
	b.mu.Unlock()

	if stopTick != nil {
		stopTick()
	}

	var hookErr error
	if b.hooks.OnStop != nil {
		hookErr = b.runHook(ctx, "stop", b.hooks.OnStop)
	}

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	if b.logger != nil {
		b.logger.Info("agent stopped", slog.String("agent_id", b.cfg.ID))
	}
	if hookErr != nil {
		return &agerrors.LifecycleError{AgentID: b.cfg.ID, Op: "stop", Err: hookErr}
	}
	return nil
}

// Pause implements Agent. Paused agents skip tick invocations but still
// receive bus events through their subscriptions.
func (b *Base) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == StatusRunning {
		b.status = StatusPaused
	}
}

// Resume implements Agent.
func (b *Base) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == StatusPaused {
		b.status = StatusRunning
	}
}

// Emit publishes an event stamped with this agent's ID as source.
func (b *Base) Emit(eventType string, payload any, opts ...event.Option) (string, error) {
	return b.bus.Emit(eventType, payload,
		append([]event.Option{event.WithSource(b.cfg.ID)}, opts...)...)
}

// Subscribe registers a bus handler tracked for removal on Stop.
func (b *Base) Subscribe(pattern string, handler event.Handler, opts ...event.SubscribeOption) *event.Subscription {
	sub := b.bus.Subscribe(pattern, handler, opts...)

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub
}

// Request issues a request/reply exchange stamped with this agent's ID.
func (b *Base) Request(ctx context.Context, eventType string, payload any, timeout time.Duration) (any, error) {
	return b.bus.Request(ctx, eventType, payload, timeout)
}

// startTicker launches either a fixed-interval or cron-driven tick source.
func (b *Base) startTicker() error {
	if b.cfg.TickRate > 0 {
		stopCh := make(chan struct{})
		go func() {
			ticker := time.NewTicker(b.cfg.TickRate)
			defer ticker.Stop()
			for {
				select {
				case <-stopCh:
					return
				case <-ticker.C:
					b.tick()
				}
			}
		}()

		b.mu.Lock()
		b.stopTick = func() { close(stopCh) }
		b.mu.Unlock()
		return nil
	}

	schedule := cron.New()
	if _, err := schedule.AddFunc(b.cfg.CronSpec, b.tick); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", b.cfg.CronSpec, err)
	}
	schedule.Start()

	b.mu.Lock()
	b.stopTick = func() { schedule.Stop() }
	b.mu.Unlock()
	return nil
}

// tick runs one OnTick invocation. A tick still executing when the next
// fires causes the new one to be skipped, so a single agent's ticks never
// overlap. An OnTick failure transitions the agent to StatusError and
// pauses ticking until an explicit Start.
func (b *Base) tick() {
	if b.Status() != StatusRunning || b.hooks.OnTick == nil {
		return
	}
	if !b.tickBusy.TryLock() {
		return
	}
	defer b.tickBusy.Unlock()

	start := time.Now()
	err := b.runHook(context.Background(), "tick", b.hooks.OnTick)
	if b.tickObserver != nil {
		b.tickObserver(b.cfg.ID, time.Since(start), err)
	}
	if err == nil {
		return
	}

	b.setStatus(StatusError)
	b.emitDiagnostic("tick", err)
	if b.logger != nil {
		b.logger.Error("agent tick failed",
			slog.String("agent_id", b.cfg.ID),
			slog.String("error", err.Error()),
		)
	}
}

// runHook executes a lifecycle hook, converting panics into errors.
func (b *Base) runHook(ctx context.Context, op string, hook func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &agerrors.PanicError{
				Origin: fmt.Sprintf("agent %s %s", b.cfg.ID, op),
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()
	return hook(ctx)
}

func (b *Base) setStatus(status Status) {
	b.mu.Lock()
	b.status = status
	b.mu.Unlock()
}

// emitDiagnostic publishes an agent:error event. Best effort: a closed
// bus is ignored.
func (b *Base) emitDiagnostic(op string, err error) {
	_, _ = b.bus.Emit("agent:error", map[string]string{
		"agent": b.cfg.ID,
		"op":    op,
		"error": err.Error(),
	}, event.WithSource(b.cfg.ID), event.WithPriority(event.PriorityHigh))
}

var _ Agent = (*Base)(nil)
