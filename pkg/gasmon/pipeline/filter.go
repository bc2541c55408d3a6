package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// LocationFilterStage drops events that occur at unknown locations.
// The valid-location set is built once at construction and never mutated.
type LocationFilterStage struct {
	opts     options
	validIDs map[string]struct{}
	invalid  atomic.Int64
}

// NewLocationFilterStage creates a filter from the given location list.
func NewLocationFilterStage(locations []event.Location, opts ...Option) *LocationFilterStage {
	validIDs := make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		validIDs[loc.ID] = struct{}{}
	}
	return &LocationFilterStage{
		opts:     newOptions(opts),
		validIDs: validIDs,
	}
}

// InvalidEventsFiltered returns the number of events dropped for an
// unknown location. Safe to read after the stream ends.
func (s *LocationFilterStage) InvalidEventsFiltered() int64 {
	return s.invalid.Load()
}

// Handle passes on events that occur at a valid, known location.
func (s *LocationFilterStage) Handle(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, streamBuffer)

	go func() {
		defer close(out)

		for evt := range in {
			if _, ok := s.validIDs[evt.LocationID]; !ok {
				s.invalid.Add(1)
				s.opts.metrics.RecordInvalidLocation(ctx)
				if s.opts.logger != nil {
					s.opts.logger.Debug("ignoring event with unknown location",
						slog.String("location_id", evt.LocationID))
				}
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
