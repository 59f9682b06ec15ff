// Package journal provides optional persistent recording of dispatched
// events for post-hoc inspection. Attaching a journal to the bus does not
// change its delivery guarantees: appends are best effort and append
// failures are logged, never fatal.
package journal

import (
	"errors"
	"time"
)

// Store persists dispatched events.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append records a dispatched event.
	Append(entry Entry) error

	// List returns journal entries matching the query, oldest first.
	// Returns an empty slice (not an error) when nothing matches.
	List(q Query) ([]Entry, error)

	// Count returns the number of recorded entries.
	Count() (int, error)

	// Prune removes entries older than the cutoff, returning how many
	// were removed.
	Prune(cutoff time.Time) (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Entry is one journaled event.
type Entry struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source"`
	Priority  string    `json:"priority"`
	Payload   []byte    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Query narrows List results. Zero values match everything.
type Query struct {
	// EventType matches the exact event type.
	EventType string
	// Source matches the emitting agent.
	Source string
	// Since keeps entries at or after the given time.
	Since time.Time
	// Limit caps the number of returned entries when > 0.
	Limit int
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
