package observability

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEventProcessed records an event admitted by the bounded source.
	RecordEventProcessed(ctx context.Context)

	// RecordInvalidLocation records an event dropped for an unknown location.
	RecordInvalidLocation(ctx context.Context)

	// RecordDuplicate records an event dropped as a duplicate.
	RecordDuplicate(ctx context.Context)

	// RecordLateEvent records an event older than the retained window.
	RecordLateEvent(ctx context.Context)

	// RecordAverage records a finalized bin average.
	RecordAverage(ctx context.Context, value float64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventsProcessed  metric.Int64Counter
	invalidLocations metric.Int64Counter
	duplicates       metric.Int64Counter
	lateEvents       metric.Int64Counter
	averages         metric.Int64Counter
	averageValue     metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("gasmon")

	eventsProcessed, err := meter.Int64Counter("gasmon.events.processed",
		metric.WithDescription("Number of events admitted by the bounded source"),
	)
	if err != nil {
		return nil, err
	}

	invalidLocations, err := meter.Int64Counter("gasmon.events.invalid_location",
		metric.WithDescription("Number of events dropped for an unknown location"),
	)
	if err != nil {
		return nil, err
	}

	duplicates, err := meter.Int64Counter("gasmon.events.duplicates",
		metric.WithDescription("Number of events dropped as duplicates"),
	)
	if err != nil {
		return nil, err
	}

	lateEvents, err := meter.Int64Counter("gasmon.events.late",
		metric.WithDescription("Number of events older than the retained averaging window"),
	)
	if err != nil {
		return nil, err
	}

	averages, err := meter.Int64Counter("gasmon.averages.finalized",
		metric.WithDescription("Number of finalized bin averages"),
	)
	if err != nil {
		return nil, err
	}

	averageValue, err := meter.Float64Histogram("gasmon.averages.value",
		metric.WithDescription("Finalized bin average values"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventsProcessed:  eventsProcessed,
		invalidLocations: invalidLocations,
		duplicates:       duplicates,
		lateEvents:       lateEvents,
		averages:         averages,
		averageValue:     averageValue,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEventProcessed records an admitted event.
func (m *otelMetrics) RecordEventProcessed(ctx context.Context) {
	m.eventsProcessed.Add(ctx, 1)
}

// RecordInvalidLocation records an unknown-location drop.
func (m *otelMetrics) RecordInvalidLocation(ctx context.Context) {
	m.invalidLocations.Add(ctx, 1)
}

// RecordDuplicate records a duplicate drop.
func (m *otelMetrics) RecordDuplicate(ctx context.Context) {
	m.duplicates.Add(ctx, 1)
}

// RecordLateEvent records a too-old drop.
func (m *otelMetrics) RecordLateEvent(ctx context.Context) {
	m.lateEvents.Add(ctx, 1)
}

// RecordAverage records a finalized bin average.
func (m *otelMetrics) RecordAverage(ctx context.Context, value float64) {
	m.averages.Add(ctx, 1)
	m.averageValue.Record(ctx, value)
}
