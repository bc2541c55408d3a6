// Package pipeline implements the composable event-processing chain:
// a bounded-duration source, a location-validity filter, and a TTL-based
// deduplicator, each realized as an order-preserving stream stage.
//
// Streams are channels of event.Event. Each stage runs as a single
// goroutine with one input and one output channel, so elements are
// processed strictly in arrival order and an unbounded stream is never
// materialized. Stages are single-use per run: the filtered stream is
// broadcast to sinks after the chain (see the sink package), so the
// per-stage counters count each event exactly once.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
	"github.com/randalmurphal/gasmon/pkg/gasmon/observability"
	"github.com/randalmurphal/gasmon/pkg/gasmon/sink"
)

// streamBuffer is the channel buffer size between stages.
const streamBuffer = 256

// Stage transforms a stream of events into a processed stream of events.
// Implementations must preserve element order and must close the returned
// channel when the input channel closes, the context is cancelled, or the
// stage decides to end the stream.
type Stage interface {
	Handle(ctx context.Context, in <-chan event.Event) <-chan event.Event
}

// combinedStage applies two stages in sequence.
type combinedStage struct {
	first  Stage
	second Stage
}

// Combine composes two stages into one, second applied to the first's
// output. Composition is associative and preserves element order.
func Combine(first, second Stage) Stage {
	return &combinedStage{first: first, second: second}
}

func (c *combinedStage) Handle(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	return c.second.Handle(ctx, c.first.Handle(ctx, in))
}

// Pipeline is an ordered chain of stages.
type Pipeline struct {
	stages []Stage
}

// New creates a pipeline from the given stages, applied in order.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Combine returns a new pipeline with the given stage appended.
func (p *Pipeline) Combine(s Stage) *Pipeline {
	stages := make([]Stage, 0, len(p.stages)+1)
	stages = append(stages, p.stages...)
	stages = append(stages, s)
	return &Pipeline{stages: stages}
}

// Handle runs the stage chain over the input stream.
func (p *Pipeline) Handle(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	out := in
	for _, s := range p.stages {
		out = s.Handle(ctx, out)
	}
	return out
}

// Sink attaches a terminal consumer to the pipeline.
func (p *Pipeline) Sink(s sink.Sink) *PipelineWithSink {
	return &PipelineWithSink{pipeline: p, sink: s}
}

// PipelineWithSink is a pipeline with a final processing step.
type PipelineWithSink struct {
	pipeline *Pipeline
	sink     sink.Sink
}

// Handle pulls the full stage chain once and pushes every surviving
// element into the sink. It returns when the stream ends or the context
// is cancelled.
func (ps *PipelineWithSink) Handle(ctx context.Context, in <-chan event.Event) error {
	return ps.sink.Handle(ctx, ps.pipeline.Handle(ctx, in))
}

// Stats are the end-of-run stage counters.
type Stats struct {
	EventsProcessed        int64
	InvalidEventsFiltered  int64
	DuplicateEventsIgnored int64
}

// CollectStats reads the counters of the standard stage chain. Call after
// the stream has ended.
func CollectStats(duration *FixedDurationStage, filter *LocationFilterStage, dedupe *DeduplicationStage) Stats {
	return Stats{
		EventsProcessed:        duration.EventsProcessed(),
		InvalidEventsFiltered:  filter.InvalidEventsFiltered(),
		DuplicateEventsIgnored: dedupe.DuplicateEventsIgnored(),
	}
}

// Option configures a pipeline stage.
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

// WithLogger sets the stage logger. A nil logger disables stage logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder for stage counters.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = m
	}
}
