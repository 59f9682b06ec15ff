// Package errors provides typed errors and retry helpers shared across
// agentrt packages.
package errors

import (
	"fmt"
	"time"
)

// TimeoutError indicates an operation timed out.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

// RegistrationError indicates an agent could not be registered or
// unregistered.
type RegistrationError struct {
	AgentID string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent %s: %s: %v", e.AgentID, e.Message, e.Err)
	}
	return fmt.Sprintf("agent %s: %s", e.AgentID, e.Message)
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// LifecycleError wraps a failure from an agent lifecycle hook.
type LifecycleError struct {
	AgentID string
	Op      string // "start", "stop", "tick"
	Err     error
}

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	return fmt.Sprintf("agent %s: %s: %v", e.AgentID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from a handler or hook.
type PanicError struct {
	// Origin names the handler or agent that panicked.
	Origin string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Origin, e.Value)
}
