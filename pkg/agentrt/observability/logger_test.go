package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, &buf
}

func TestEnrichLogger(t *testing.T) {
	logger, buf := captureLogger()

	enriched := EnrichLogger(logger, "evt-1", "price:update", "pricer")
	enriched.Info("handling")

	out := buf.String()
	assert.Contains(t, out, "event_id=evt-1")
	assert.Contains(t, out, "event_type=price:update")
	assert.Contains(t, out, "source=pricer")
}

func TestEnrichLoggerNil(t *testing.T) {
	assert.Nil(t, EnrichLogger(nil, "a", "b", "c"))
}

func TestLogHelpers(t *testing.T) {
	logger, buf := captureLogger()

	LogDispatch(logger, "price:update", 2, 1.5)
	LogHandlerError(logger, "order:place", "evt-2", errors.New("db down"))
	LogDeadLetterRetry(logger, "evt-2", 1)
	LogAgentTransition(logger, "pricer", "idle", "running")

	out := buf.String()
	assert.Contains(t, out, "event dispatched")
	assert.Contains(t, out, "handler failed")
	assert.Contains(t, out, "dead letter requeued")
	assert.Contains(t, out, "agent transition")
}

func TestLogHelpersNilLogger(t *testing.T) {
	// Nil loggers disable logging without panicking.
	LogDispatch(nil, "x", 0, 0)
	LogHandlerError(nil, "x", "id", errors.New("e"))
	LogDeadLetterRetry(nil, "id", 0)
	LogAgentTransition(nil, "a", "idle", "running")
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	assert.GreaterOrEqual(t, done(), float64(0))
}
