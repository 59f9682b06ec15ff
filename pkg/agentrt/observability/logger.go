// Package observability provides structured logging, metrics, and
// distributed tracing for the agent runtime.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds event context to a logger. Returns a new logger
// carrying event_id, event_type, and source fields.
func EnrichLogger(logger *slog.Logger, eventID, eventType, source string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("event_type", eventType),
		slog.String("source", source),
	)
}

// LogDispatch logs a completed event dispatch.
func LogDispatch(logger *slog.Logger, eventType string, handlers int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatched",
		slog.String("event_type", eventType),
		slog.Int("handlers", handlers),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogHandlerError logs a handler failure routed to the dead letter store.
func LogHandlerError(logger *slog.Logger, eventType, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("handler failed",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogDeadLetterRetry logs a dead letter redelivery attempt.
func LogDeadLetterRetry(logger *slog.Logger, eventID string, attempt int) {
	if logger == nil {
		return
	}
	logger.Info("dead letter requeued",
		slog.String("event_id", eventID),
		slog.Int("attempt", attempt),
	)
}

// LogAgentTransition logs an agent lifecycle transition.
func LogAgentTransition(logger *slog.Logger, agentID, from, to string) {
	if logger == nil {
		return
	}
	logger.Info("agent transition",
		slog.String("agent_id", agentID),
		slog.String("from", from),
		slog.String("to", to),
	)
}

// TimedOperation measures the duration of an operation. The returned
// function reports elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
