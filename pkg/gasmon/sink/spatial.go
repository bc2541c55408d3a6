package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// ErrEmptyAggregate is returned when a spatial average is requested over a
// stream whose total event value is zero: there is no meaningful centroid
// and the division is undefined. Unlike bin averages, which are 0 when
// empty by convention, this is surfaced as an error.
var ErrEmptyAggregate = errors.New("spatial average of empty aggregate: total event value is zero")

// SpatialAverager computes a single value-weighted centroid over all
// events seen in one pass of the stream:
//
//	x = sum(locationX * value) / sum(value)
//	y = sum(locationY * value) / sum(value)
//
// The result is computed once the pass completes and written to the
// configured writer.
type SpatialAverager struct {
	opts   options
	coords map[string]event.Location
	writer SpatialWriter
}

// NewSpatialAverager creates a spatial sink using the given location list
// for coordinate lookup.
func NewSpatialAverager(locations []event.Location, writer SpatialWriter, opts ...Option) *SpatialAverager {
	coords := make(map[string]event.Location, len(locations))
	for _, loc := range locations {
		coords[loc.ID] = loc
	}
	return &SpatialAverager{
		opts:   newOptions(opts),
		coords: coords,
		writer: writer,
	}
}

// Handle accumulates the weighted sums over the full stream, then writes
// the centroid. Returns ErrEmptyAggregate when the total value is zero.
func (s *SpatialAverager) Handle(ctx context.Context, in <-chan event.Event) error {
	var sumX, sumY, sumValue float64
	for evt := range in {
		loc, ok := s.coords[evt.LocationID]
		if !ok {
			// Upstream filtering admits only known locations.
			if s.opts.logger != nil {
				s.opts.logger.Debug("no coordinates for location",
					slog.String("location_id", evt.LocationID))
			}
			continue
		}
		sumX += loc.X * evt.Value
		sumY += loc.Y * evt.Value
		sumValue += evt.Value
	}

	if sumValue == 0 {
		return ErrEmptyAggregate
	}

	result := event.SpatialResult{X: sumX / sumValue, Y: sumY / sumValue}
	if s.opts.logger != nil {
		s.opts.logger.Info("spatial average computed",
			slog.Float64("x", result.X),
			slog.Float64("y", result.Y))
	}
	if err := s.writer.WriteSpatial(ctx, result); err != nil {
		return fmt.Errorf("write spatial result: %w", err)
	}
	return nil
}
