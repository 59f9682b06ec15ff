// Package registry owns the set of registered agents and the dependency
// graph between them. It computes a deterministic start order via
// depth-first topological traversal and drives sequential startup and
// shutdown so dependency ordering is honored at runtime.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentrt/agentrt/pkg/agentrt/agent"
	agerrors "github.com/agentrt/agentrt/pkg/agentrt/errors"
	"github.com/agentrt/agentrt/pkg/agentrt/event"
)

// Sentinel errors for registration.
var (
	// ErrNilAgent indicates Register was called with a nil agent.
	ErrNilAgent = errors.New("agent cannot be nil")

	// ErrEmptyID indicates an agent config without an ID.
	ErrEmptyID = errors.New("agent ID cannot be empty")

	// ErrDuplicateAgent indicates the ID is already registered.
	ErrDuplicateAgent = errors.New("agent already registered")

	// ErrUnknownAgent indicates the ID is not registered.
	ErrUnknownAgent = errors.New("agent not registered")

	// ErrMissingDependency indicates a declared dependency is not yet
	// registered. Dependencies must be registered before dependents.
	ErrMissingDependency = errors.New("dependency not registered")

	// ErrHasDependents indicates other agents depend on the one being
	// unregistered.
	ErrHasDependents = errors.New("agent has registered dependents")

	// ErrDependencyCycle indicates the dependency graph contains a
	// cycle and no valid start order exists.
	ErrDependencyCycle = errors.New("dependency cycle detected")
)

// Record is a registered agent with its bookkeeping.
type Record struct {
	Agent        agent.Agent
	RegisteredAt time.Time
}

// Criteria filters Find results. Zero values match everything.
type Criteria struct {
	Tier   string
	Status agent.Status
	Name   string
}

// Stats summarizes the registry.
type Stats struct {
	Total    int
	ByTier   map[string]int
	ByStatus map[agent.Status]int
}

// Registry manages agent registration, the dependency graph, and
// lifecycle orchestration. All methods are safe for concurrent use.
type Registry struct {
	bus    *event.Bus
	logger *slog.Logger

	records *index[string, *Record]

	mu    sync.Mutex
	order []string            // registration order, drives stable topo sort
	graph map[string][]string // agent ID -> dependency IDs
}

// Option configures the registry.
type Option func(*Registry)

// WithLogger sets the registry logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a registry bound to a bus for bookkeeping events.
func New(bus *event.Bus, opts ...Option) *Registry {
	r := &Registry{
		bus:     bus,
		records: newIndex[string, *Record](),
		graph:   make(map[string][]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an agent. It fails when the ID is already registered or
// when any declared dependency is not registered yet — ordering is
// enforced at registration time, not resolved lazily.
func (r *Registry) Register(a agent.Agent) error {
	if a == nil {
		return ErrNilAgent
	}
	cfg := a.Config()
	if cfg.ID == "" {
		return ErrEmptyID
	}

	r.mu.Lock()
	if r.records.Has(cfg.ID) {
		r.mu.Unlock()
		return &agerrors.RegistrationError{AgentID: cfg.ID, Message: "register", Err: ErrDuplicateAgent}
	}
	for _, dep := range cfg.Dependencies {
		if !r.records.Has(dep) {
			r.mu.Unlock()
			return &agerrors.RegistrationError{
				AgentID: cfg.ID,
				Message: fmt.Sprintf("requires %s", dep),
				Err:     ErrMissingDependency,
			}
		}
	}

	r.graph[cfg.ID] = append([]string(nil), cfg.Dependencies...)
	r.order = append(r.order, cfg.ID)

	// Register-before-depend makes back edges impossible, but the
	// graph is validated anyway so a future mutation path cannot
	// silently produce a partial order.
	if _, err := r.startOrderLocked(); err != nil {
		r.order = r.order[:len(r.order)-1]
		delete(r.graph, cfg.ID)
		r.mu.Unlock()
		return err
	}

	r.records.Set(cfg.ID, &Record{Agent: a, RegisteredAt: time.Now()})
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info("agent registered",
			slog.String("agent_id", cfg.ID),
			slog.String("tier", cfg.Tier),
			slog.Int("dependencies", len(cfg.Dependencies)),
		)
	}
	_, _ = r.bus.Emit("registry:agent_registered", map[string]string{
		"agent": cfg.ID,
		"tier":  cfg.Tier,
	})
	return nil
}

// Unregister stops and removes an agent. It fails while any other
// registered agent lists the ID as a dependency. The agent is stopped
// before its indices are dropped, so it stays visible to registry
// queries from its own OnStop hook.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	record, ok := r.records.Get(id)
	if !ok {
		r.mu.Unlock()
		return &agerrors.RegistrationError{AgentID: id, Message: "unregister", Err: ErrUnknownAgent}
	}
	if dependents := r.dependentsLocked(id); len(dependents) > 0 {
		r.mu.Unlock()
		return &agerrors.RegistrationError{
			AgentID: id,
			Message: fmt.Sprintf("required by %v", dependents),
			Err:     ErrHasDependents,
		}
	}
	r.mu.Unlock()

	err := record.Agent.Stop(ctx)

	r.mu.Lock()
	r.records.Delete(id)
	delete(r.graph, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Info("agent unregistered", slog.String("agent_id", id))
	}
	_, _ = r.bus.Emit("registry:agent_unregistered", map[string]string{"agent": id})

	if err != nil {
		return fmt.Errorf("stop %s: %w", id, err)
	}
	return nil
}

// Get returns a registered agent.
func (r *Registry) Get(id string) (agent.Agent, bool) {
	record, ok := r.records.Get(id)
	if !ok {
		return nil, false
	}
	return record.Agent, true
}

// GetAll returns every registered agent in registration order.
func (r *Registry) GetAll() []agent.Agent {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	agents := make([]agent.Agent, 0, len(order))
	for _, id := range order {
		if record, ok := r.records.Get(id); ok {
			agents = append(agents, record.Agent)
		}
	}
	return agents
}

// GetByTier returns agents registered under a tier, in registration
// order.
func (r *Registry) GetByTier(tier string) []agent.Agent {
	matched := make([]agent.Agent, 0)
	for _, a := range r.GetAll() {
		if a.Config().Tier == tier {
			matched = append(matched, a)
		}
	}
	return matched
}

// Find returns agents matching the criteria, in registration order.
func (r *Registry) Find(criteria Criteria) []agent.Agent {
	matched := make([]agent.Agent, 0)
	for _, a := range r.GetAll() {
		cfg := a.Config()
		if criteria.Tier != "" && cfg.Tier != criteria.Tier {
			continue
		}
		if criteria.Name != "" && cfg.Name != criteria.Name {
			continue
		}
		if criteria.Status != "" && a.Status() != criteria.Status {
			continue
		}
		matched = append(matched, a)
	}
	return matched
}

// GetDependencies returns the declared dependencies of an agent.
func (r *Registry) GetDependencies(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.graph[id]...)
}

// GetDependents returns the agents that list the ID as a dependency.
func (r *Registry) GetDependents(id string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dependentsLocked(id)
}

// StartOrder returns the deterministic start order: a depth-first
// topological sort visiting dependencies before dependents, stable given
// registration order.
func (r *Registry) StartOrder() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startOrderLocked()
}

// StartAll starts every enabled agent in dependency order, awaiting each
// before proceeding to the next. One agent's failure does not abort the
// rest; failures are joined into the returned error.
func (r *Registry) StartAll(ctx context.Context) error {
	order, err := r.StartOrder()
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range order {
		record, ok := r.records.Get(id)
		if !ok {
			continue
		}
		if !record.Agent.Config().IsEnabled() {
			if r.logger != nil {
				r.logger.Debug("agent disabled, skipping", slog.String("agent_id", id))
			}
			continue
		}
		if err := record.Agent.Start(ctx); err != nil {
			if r.logger != nil {
				r.logger.Error("agent failed to start",
					slog.String("agent_id", id),
					slog.String("error", err.Error()),
				)
			}
			errs = append(errs, err)
		}
	}

	_, _ = r.bus.Emit("registry:started", map[string]int{"agents": len(order)})
	return errors.Join(errs...)
}

// StopAll stops every agent in reverse start order. A failing stop does
// not abort the rest.
func (r *Registry) StopAll(ctx context.Context) error {
	order, err := r.StartOrder()
	if err != nil {
		return err
	}

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		record, ok := r.records.Get(order[i])
		if !ok {
			continue
		}
		if err := record.Agent.Stop(ctx); err != nil {
			if r.logger != nil {
				r.logger.Error("agent failed to stop",
					slog.String("agent_id", order[i]),
					slog.String("error", err.Error()),
				)
			}
			errs = append(errs, err)
		}
	}

	_, _ = r.bus.Emit("registry:stopped", map[string]int{"agents": len(order)})
	return errors.Join(errs...)
}

// Stats returns registry-wide counts by tier and status.
func (r *Registry) Stats() Stats {
	stats := Stats{
		ByTier:   make(map[string]int),
		ByStatus: make(map[agent.Status]int),
	}
	for _, a := range r.GetAll() {
		stats.Total++
		stats.ByTier[a.Config().Tier]++
		stats.ByStatus[a.Status()]++
	}
	return stats
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return r.records.Len()
}

// dependentsLocked returns agents that depend on id. Must hold r.mu.
func (r *Registry) dependentsLocked(id string) []string {
	var dependents []string
	for _, candidate := range r.order {
		for _, dep := range r.graph[candidate] {
			if dep == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}

// startOrderLocked computes the topological order with explicit cycle
// detection (visiting vs visited marking) so a cyclic graph fails fast
// with a descriptive error instead of silently producing a partial
// order. Must hold r.mu.
func (r *Registry) startOrderLocked() ([]string, error) {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(r.order))
	order := make([]string, 0, len(r.order))

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("%w: %v -> %s", ErrDependencyCycle, path, id)
		}
		state[id] = visiting
		for _, dep := range r.graph[id] {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		state[id] = visited
		order = append(order, id)
		return nil
	}

	for _, id := range r.order {
		if err := visit(id, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
