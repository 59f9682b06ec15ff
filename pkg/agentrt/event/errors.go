package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for bus operations.
var (
	// ErrBusClosed indicates the bus no longer accepts emits.
	ErrBusClosed = errors.New("event bus closed")

	// ErrNilHandler indicates Subscribe was called without a handler.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// EventError wraps an error that occurred while processing an event.
type EventError struct {
	// EventID identifies the event that failed.
	EventID string
	// EventType is the event's topic string.
	EventType string
	// Handler identifies the failing subscription, if known.
	Handler string
	// Message describes the failure.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *EventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("event %s: %s: %v", e.EventID, e.Message, e.Err)
	}
	return fmt.Sprintf("event %s: %s", e.EventID, e.Message)
}

// Unwrap returns the underlying error.
func (e *EventError) Unwrap() error {
	return e.Err
}
