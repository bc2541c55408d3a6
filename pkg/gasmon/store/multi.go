package store

import (
	"context"
	"errors"
	"io"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
	"github.com/randalmurphal/gasmon/pkg/gasmon/sink"
)

// Writer is an aggregate output that accepts both kinds of result.
type Writer interface {
	sink.AverageWriter
	sink.SpatialWriter
}

// Multi fans each write out to several writers. Failures are joined so
// one broken output does not silence the others.
type Multi struct {
	writers []Writer
}

// Compile-time interface check.
var _ Writer = (*Multi)(nil)

// NewMulti combines the given writers.
func NewMulti(writers ...Writer) *Multi {
	return &Multi{writers: writers}
}

// WriteAverage writes the average to every writer.
func (m *Multi) WriteAverage(ctx context.Context, avg event.Average) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.WriteAverage(ctx, avg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteSpatial writes the centroid to every writer.
func (m *Multi) WriteSpatial(ctx context.Context, result event.SpatialResult) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.WriteSpatial(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every writer that supports closing.
func (m *Multi) Close() error {
	var errs []error
	for _, w := range m.writers {
		if closer, ok := w.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
