// Package observability provides structured logging, metrics, and tracing
// for the GasMon pipeline.
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

// EnrichLogger adds pipeline context to a logger.
// Returns a new logger with run_id and component fields.
func EnrichLogger(logger *slog.Logger, runID, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("component", component),
	)
}

// LogRunStart logs the start of a bounded pipeline run.
func LogRunStart(logger *slog.Logger, runID string, runTime time.Duration) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run starting",
		slog.String("run_id", runID),
		slog.Duration("run_time", runTime),
	)
}

// LogRunSummary logs the end-of-run statistics.
func LogRunSummary(logger *slog.Logger, runID string, processed, invalid, duplicates int64, eventsPerSec float64) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run completed",
		slog.String("run_id", runID),
		slog.Int64("events_processed", processed),
		slog.Int64("invalid_locations", invalid),
		slog.Int64("duplicates_ignored", duplicates),
		slog.Float64("events_per_sec", eventsPerSec),
	)
}

// LogRunError logs a pipeline run failure.
func LogRunError(logger *slog.Logger, runID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("pipeline run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
	)
}

// LogAverage logs a finalized bin average.
func LogAverage(logger *slog.Logger, start, end time.Time, value float64) {
	if logger == nil {
		return
	}
	logger.Info("bin average finalized",
		slog.Time("bin_start", start),
		slog.Time("bin_end", end),
		slog.Float64("average", value),
	)
}

// LogWriteError logs an aggregate output failure (non-fatal for the sink).
func LogWriteError(logger *slog.Logger, output string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("aggregate write failed",
		slog.String("output", output),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
