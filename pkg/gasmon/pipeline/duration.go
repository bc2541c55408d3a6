package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// FixedDurationStage passes events through for a fixed wall-clock duration,
// then ends the stream. The deadline is captured when the stream starts;
// the stream ends when the deadline passes or the upstream closes,
// whichever comes first. It also ends at the deadline when the upstream is
// idle, so a quiet source cannot hold the run open.
type FixedDurationStage struct {
	opts      options
	runTime   time.Duration
	processed atomic.Int64
}

// NewFixedDurationStage creates a stage that runs for the given duration.
func NewFixedDurationStage(runTime time.Duration, opts ...Option) *FixedDurationStage {
	return &FixedDurationStage{
		opts:    newOptions(opts),
		runTime: runTime,
	}
}

// EventsProcessed returns the number of events passed through so far.
// Safe to read after the stream ends.
func (s *FixedDurationStage) EventsProcessed() int64 {
	return s.processed.Load()
}

// Handle forwards upstream events until the deadline passes.
func (s *FixedDurationStage) Handle(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, streamBuffer)

	go func() {
		defer close(out)

		deadline := s.opts.now().Add(s.runTime)
		timer := time.NewTimer(s.runTime)
		defer timer.Stop()

		if s.opts.logger != nil {
			s.opts.logger.Info("processing events",
				slog.Duration("run_time", s.runTime))
		}

		for {
			select {
			case evt, ok := <-in:
				if !ok {
					return
				}
				if !s.opts.now().Before(deadline) {
					if s.opts.logger != nil {
						s.opts.logger.Info("finished processing events")
					}
					return
				}
				s.processed.Add(1)
				s.opts.metrics.RecordEventProcessed(ctx)
				// An admitted (counted) event is always delivered.
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			case <-timer.C:
				if s.opts.logger != nil {
					s.opts.logger.Info("finished processing events")
				}
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
