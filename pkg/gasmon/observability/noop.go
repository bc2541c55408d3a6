package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordEventProcessed does nothing.
func (NoopMetrics) RecordEventProcessed(_ context.Context) {}

// RecordInvalidLocation does nothing.
func (NoopMetrics) RecordInvalidLocation(_ context.Context) {}

// RecordDuplicate does nothing.
func (NoopMetrics) RecordDuplicate(_ context.Context) {}

// RecordLateEvent does nothing.
func (NoopMetrics) RecordLateEvent(_ context.Context) {}

// RecordAverage does nothing.
func (NoopMetrics) RecordAverage(_ context.Context, _ float64) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
// We use the OTel noop package for a proper no-op span implementation.
var noopSpan = noop.Span{}

// StartRunSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartRunSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartSinkSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartSinkSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
