package event

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders events in the dispatch queue. Higher priorities drain
// before lower ones; within a priority events keep emit order.
type Priority int

// Priority levels, highest first.
const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParsePriority converts a priority name to a Priority.
// Unknown names map to PriorityNormal.
func ParsePriority(s string) Priority {
	switch s {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Event is an immutable message flowing through the bus.
// Events are created by Bus.Emit and must not be modified after enqueue.
//
// Type is a colon-delimited topic string ("<domain>:<verb>", e.g.
// "clock:second", "registry:agent_registered"). This naming convention is
// the de facto wire format for all in-process communication.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Type is the topic string subscriptions match against.
	Type string `json:"type"`

	// Payload carries event-specific data.
	Payload any `json:"payload,omitempty"`

	// Source identifies the emitting agent, or "system".
	Source string `json:"source"`

	// Target optionally names an intended recipient.
	Target string `json:"target,omitempty"`

	// Priority controls dequeue order.
	Priority Priority `json:"priority"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID groups related events (request/reply).
	CorrelationID string `json:"correlation_id,omitempty"`

	// ReplyTo is the topic a responder should emit its answer to.
	ReplyTo string `json:"reply_to,omitempty"`

	// Metadata holds optional free-form annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Option configures event creation.
type Option func(*Event)

// WithSource sets the emitting agent id (default: "system").
func WithSource(source string) Option {
	return func(e *Event) {
		e.Source = source
	}
}

// WithTarget names an intended recipient.
func WithTarget(target string) Option {
	return func(e *Event) {
		e.Target = target
	}
}

// WithPriority sets the dispatch priority (default: PriorityNormal).
func WithPriority(p Priority) Option {
	return func(e *Event) {
		e.Priority = p
	}
}

// WithCorrelationID groups the event with related events.
func WithCorrelationID(id string) Option {
	return func(e *Event) {
		e.CorrelationID = id
	}
}

// WithReplyTo sets the topic a responder should answer on.
func WithReplyTo(topic string) Option {
	return func(e *Event) {
		e.ReplyTo = topic
	}
}

// WithMetadata attaches a metadata map to the event.
func WithMetadata(md map[string]string) Option {
	return func(e *Event) {
		e.Metadata = md
	}
}

// WithID sets a specific event ID (default: auto-generated UUID).
// Used by dead-letter replay so a requeued event keeps its identity.
func WithID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// New creates an event with the given type and payload.
func New(eventType string, payload any, opts ...Option) *Event {
	evt := &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Source:    "system",
		Priority:  PriorityNormal,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(evt)
	}
	return evt
}
