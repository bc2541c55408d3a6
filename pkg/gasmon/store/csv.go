// Package store provides the aggregate output writers consumed by the
// pipeline sinks: CSV files, a SQLite table, and InfluxDB. All writers
// are best-effort collaborators; a failed write is reported to the caller
// and never affects in-memory aggregation state.
package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
	"github.com/randalmurphal/gasmon/pkg/gasmon/sink"
)

// CSVWriter appends finalized averages to one CSV file and writes the
// spatial result to another.
type CSVWriter struct {
	mu          sync.Mutex
	spatialPath string
	file        *os.File
	writer      *csv.Writer
	closed      bool
}

// Compile-time interface checks.
var (
	_ sink.AverageWriter = (*CSVWriter)(nil)
	_ sink.SpatialWriter = (*CSVWriter)(nil)
)

// NewCSVWriter creates the averages file at averagesPath, writes its
// header row, and remembers spatialPath for the end-of-run spatial row.
func NewCSVWriter(averagesPath, spatialPath string) (*CSVWriter, error) {
	file, err := os.Create(averagesPath)
	if err != nil {
		return nil, fmt.Errorf("create averages file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Bin Start", "Bin End", "Average Value"}); err != nil {
		file.Close()
		return nil, fmt.Errorf("write averages header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return nil, fmt.Errorf("write averages header: %w", err)
	}

	return &CSVWriter{
		spatialPath: spatialPath,
		file:        file,
		writer:      writer,
	}, nil
}

// WriteAverage appends one finalized bin average as a row.
func (w *CSVWriter) WriteAverage(_ context.Context, avg event.Average) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrStoreClosed
	}

	record := []string{
		strconv.FormatInt(avg.Start, 10),
		strconv.FormatInt(avg.End, 10),
		strconv.FormatFloat(avg.Value, 'f', -1, 64),
	}
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("write average row: %w", err)
	}
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("flush average row: %w", err)
	}
	return nil
}

// WriteSpatial writes the spatial centroid as a single-row CSV file.
func (w *CSVWriter) WriteSpatial(_ context.Context, result event.SpatialResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrStoreClosed
	}

	file, err := os.Create(w.spatialPath)
	if err != nil {
		return fmt.Errorf("create spatial file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	rows := [][]string{
		{"x", "y"},
		{
			strconv.FormatFloat(result.X, 'f', -1, 64),
			strconv.FormatFloat(result.Y, 'f', -1, 64),
		},
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write spatial rows: %w", err)
	}
	return nil
}

// Close flushes and closes the averages file.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.writer.Flush()
	flushErr := w.writer.Error()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close averages file: %w", err)
	}
	if flushErr != nil {
		return fmt.Errorf("flush averages file: %w", flushErr)
	}
	return nil
}
