package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// fakeClock is a manually advanced clock for stages that read opts.now.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stream returns a closed channel pre-loaded with the given events.
func stream(events ...event.Event) <-chan event.Event {
	ch := make(chan event.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

// collect drains a stage output until it closes.
func collect(t *testing.T, out <-chan event.Event) []event.Event {
	t.Helper()
	var got []event.Event
	for {
		select {
		case e, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, e)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stream to end")
		}
	}
}

func evt(id, location string, ts int64, value float64) event.Event {
	return event.Event{
		EventID:    id,
		LocationID: location,
		Timestamp:  ts,
		Value:      value,
	}
}

func TestCombine_AppliesStagesInOrder(t *testing.T) {
	locations := []event.Location{{ID: "loc-1", X: 1, Y: 2}}
	filter := NewLocationFilterStage(locations)
	dedupe := NewDeduplicationStage(time.Minute)

	combined := Combine(filter, dedupe)
	out := combined.Handle(context.Background(), stream(
		evt("a", "loc-1", 100, 1.5),
		evt("a", "loc-1", 100, 1.5),
		evt("b", "unknown", 200, 2.5),
		evt("c", "loc-1", 300, 3.5),
	))

	got := collect(t, out)
	require.Len(t, got, 2, "duplicate and unknown-location events should be dropped")
	assert.Equal(t, "a", got[0].EventID)
	assert.Equal(t, "c", got[1].EventID)
}

func TestPipeline_PreservesOrder(t *testing.T) {
	locations := []event.Location{{ID: "loc-1"}, {ID: "loc-2"}}
	p := New(
		NewFixedDurationStage(time.Minute),
		NewLocationFilterStage(locations),
		NewDeduplicationStage(time.Minute),
	)

	in := []event.Event{
		evt("e1", "loc-1", 10, 1),
		evt("e2", "loc-2", 20, 2),
		evt("e3", "loc-1", 30, 3),
		evt("e4", "loc-2", 40, 4),
	}
	got := collect(t, p.Handle(context.Background(), stream(in...)))

	require.Len(t, got, len(in))
	for i, want := range in {
		assert.Equal(t, want.EventID, got[i].EventID, "element order must survive the chain")
	}
}

func TestPipeline_CombineAppends(t *testing.T) {
	locations := []event.Location{{ID: "loc-1"}}
	p := New(NewLocationFilterStage(locations)).
		Combine(NewDeduplicationStage(time.Minute))

	got := collect(t, p.Handle(context.Background(), stream(
		evt("a", "loc-1", 1, 1),
		evt("a", "loc-1", 1, 1),
	)))

	assert.Len(t, got, 1, "appended deduplication stage should drop the duplicate")
}

func TestPipeline_Sink(t *testing.T) {
	locations := []event.Location{{ID: "loc-1"}}
	p := New(NewLocationFilterStage(locations))

	var seen []event.Event
	s := sinkFunc(func(ctx context.Context, in <-chan event.Event) error {
		for e := range in {
			seen = append(seen, e)
		}
		return nil
	})

	err := p.Sink(s).Handle(context.Background(), stream(
		evt("a", "loc-1", 1, 1),
		evt("b", "nope", 2, 2),
	))
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "a", seen[0].EventID)
}

func TestCollectStats(t *testing.T) {
	duration := NewFixedDurationStage(time.Minute)
	filter := NewLocationFilterStage([]event.Location{{ID: "loc-1"}})
	dedupe := NewDeduplicationStage(time.Minute)
	p := New(duration, filter, dedupe)

	got := collect(t, p.Handle(context.Background(), stream(
		evt("a", "loc-1", 10, 1),
		evt("a", "loc-1", 10, 1),
		evt("b", "unknown", 20, 2),
		evt("c", "loc-1", 30, 3),
	)))
	require.Len(t, got, 2)

	stats := CollectStats(duration, filter, dedupe)
	assert.Equal(t, int64(4), stats.EventsProcessed)
	assert.Equal(t, int64(1), stats.InvalidEventsFiltered)
	assert.Equal(t, int64(1), stats.DuplicateEventsIgnored)
}

type sinkFunc func(ctx context.Context, in <-chan event.Event) error

func (f sinkFunc) Handle(ctx context.Context, in <-chan event.Event) error {
	return f(ctx, in)
}
