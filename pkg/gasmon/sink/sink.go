// Package sink provides the terminal consumers of the event pipeline:
// the time-windowed moving averager and the spatial centroid averager,
// plus the fan-out combinator that feeds several sinks from one pass of
// the stream.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
	"github.com/randalmurphal/gasmon/pkg/gasmon/observability"
)

// Sink is a terminal consumer of a pipeline's output stream. Handle
// returns once the stream ends or the context is cancelled; any error it
// reports must leave the sink's internal state usable.
type Sink interface {
	Handle(ctx context.Context, in <-chan event.Event) error
}

// AverageWriter receives each finalized bin average. Implementations are
// best-effort outputs; a write failure must not affect the caller's state.
type AverageWriter interface {
	WriteAverage(ctx context.Context, avg event.Average) error
}

// SpatialWriter receives the spatial centroid computed over one pass.
type SpatialWriter interface {
	WriteSpatial(ctx context.Context, result event.SpatialResult) error
}

// defaultFanoutBuffer is the per-sink channel buffer used by Parallel.
const defaultFanoutBuffer = 256

// ParallelSink fans one stream out to several member sinks.
//
// Broadcast discipline: a single pump copies each incoming event into a
// buffered per-sink channel. Sends block when a buffer fills, so every
// sink receives every event and a slow sink exerts backpressure on the
// stream instead of losing data. The upstream is pulled exactly once,
// which keeps the stage counters honest regardless of how many sinks are
// attached.
type ParallelSink struct {
	sinks  []Sink
	buffer int
}

// Parallel combines the given sinks into one that hands the same logical
// event sequence to every member.
func Parallel(sinks ...Sink) *ParallelSink {
	return &ParallelSink{sinks: sinks, buffer: defaultFanoutBuffer}
}

// WithBuffer sets the per-sink channel buffer size.
func (p *ParallelSink) WithBuffer(n int) *ParallelSink {
	if n > 0 {
		p.buffer = n
	}
	return p
}

// Handle broadcasts the stream to all member sinks and waits for each of
// them to finish. Errors from member sinks are joined.
func (p *ParallelSink) Handle(ctx context.Context, in <-chan event.Event) error {
	if len(p.sinks) == 0 {
		for range in {
		}
		return nil
	}

	feeds := make([]chan event.Event, len(p.sinks))
	for i := range feeds {
		feeds[i] = make(chan event.Event, p.buffer)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(p.sinks))
	for i, s := range p.sinks {
		wg.Add(1)
		go func(i int, s Sink) {
			defer wg.Done()
			errs[i] = s.Handle(ctx, feeds[i])
		}(i, s)
	}

pump:
	for {
		var evt event.Event
		var ok bool
		select {
		case evt, ok = <-in:
			if !ok {
				break pump
			}
		case <-ctx.Done():
			break pump
		}
		for _, feed := range feeds {
			select {
			case feed <- evt:
			case <-ctx.Done():
				break pump
			}
		}
	}

	for _, feed := range feeds {
		close(feed)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Traced wraps a member sink so its consumption of the stream runs under
// its own span, a child of whatever span is in the context.
func Traced(name string, spans observability.SpanManager, inner Sink) Sink {
	return &tracedSink{name: name, spans: spans, inner: inner}
}

type tracedSink struct {
	name  string
	spans observability.SpanManager
	inner Sink
}

func (s *tracedSink) Handle(ctx context.Context, in <-chan event.Event) error {
	ctx, span := s.spans.StartSinkSpan(ctx, s.name)
	err := s.inner.Handle(ctx, in)
	s.spans.EndSpanWithError(span, err)
	return err
}

// Option configures a sink.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	now     func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		metrics: observability.NoopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the sink logger. A nil logger disables sink logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}
