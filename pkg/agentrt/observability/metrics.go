package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records runtime metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records one event dispatch with its duration.
	RecordDispatch(ctx context.Context, eventType, priority string, duration time.Duration)

	// RecordHandlerError records a handler failure for an event type.
	RecordHandlerError(ctx context.Context, eventType string)

	// RecordDeadLetter records an event entering the dead letter store.
	RecordDeadLetter(ctx context.Context, eventType string)

	// RecordTick records an agent tick with its duration and error status.
	RecordTick(ctx context.Context, agentID string, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	handlerErrors   metric.Int64Counter
	deadLetters     metric.Int64Counter
	ticks           metric.Int64Counter
	tickLatency     metric.Float64Histogram
	tickErrors      metric.Int64Counter
}

// newOtelMetrics creates instruments on the global meter provider.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("agentrt")

	dispatches, err := meter.Int64Counter("agentrt.events.dispatched",
		metric.WithDescription("Number of events dispatched"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("agentrt.dispatch.latency_ms",
		metric.WithDescription("Event dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerErrors, err := meter.Int64Counter("agentrt.handler.errors",
		metric.WithDescription("Number of handler failures"),
	)
	if err != nil {
		return nil, err
	}

	deadLetters, err := meter.Int64Counter("agentrt.deadletter.added",
		metric.WithDescription("Number of events routed to the dead letter store"),
	)
	if err != nil {
		return nil, err
	}

	ticks, err := meter.Int64Counter("agentrt.agent.ticks",
		metric.WithDescription("Number of agent tick executions"),
	)
	if err != nil {
		return nil, err
	}

	tickLatency, err := meter.Float64Histogram("agentrt.agent.tick_latency_ms",
		metric.WithDescription("Agent tick latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	tickErrors, err := meter.Int64Counter("agentrt.agent.tick_errors",
		metric.WithDescription("Number of agent tick failures"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		handlerErrors:   handlerErrors,
		deadLetters:     deadLetters,
		ticks:           ticks,
		tickLatency:     tickLatency,
		tickErrors:      tickErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If instrument creation fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := newOtelMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDispatch records one event dispatch.
func (m *otelMetrics) RecordDispatch(ctx context.Context, eventType, priority string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("event_type", eventType),
		attribute.String("priority", priority),
	}
	m.dispatches.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dispatchLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordHandlerError records a handler failure.
func (m *otelMetrics) RecordHandlerError(ctx context.Context, eventType string) {
	m.handlerErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

// RecordDeadLetter records an event entering the dead letter store.
func (m *otelMetrics) RecordDeadLetter(ctx context.Context, eventType string) {
	m.deadLetters.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}

// RecordTick records an agent tick.
func (m *otelMetrics) RecordTick(ctx context.Context, agentID string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("agent_id", agentID),
	}
	m.ticks.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.tickLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.tickErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
