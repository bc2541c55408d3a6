package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

func TestFixedDurationStage_ForwardsAndCounts(t *testing.T) {
	clock := newFakeClock()
	stage := NewFixedDurationStage(time.Minute)
	stage.opts.now = clock.Now

	got := collect(t, stage.Handle(context.Background(), stream(
		evt("a", "loc-1", 10, 1),
		evt("b", "loc-1", 20, 2),
		evt("c", "loc-1", 30, 3),
	)))

	assert.Len(t, got, 3, "all events inside the run window should pass")
	assert.Equal(t, int64(3), stage.EventsProcessed())
}

func TestFixedDurationStage_EndsStreamAtDeadline(t *testing.T) {
	clock := newFakeClock()
	stage := NewFixedDurationStage(time.Minute)
	stage.opts.now = clock.Now

	in := make(chan event.Event)
	out := stage.Handle(context.Background(), in)

	in <- evt("a", "loc-1", 10, 1)
	first, ok := <-out
	require.True(t, ok)
	assert.Equal(t, "a", first.EventID)

	clock.Advance(2 * time.Minute)
	in <- evt("b", "loc-1", 20, 2)

	_, ok = <-out
	assert.False(t, ok, "stream should end once the deadline has passed")
	assert.Equal(t, int64(1), stage.EventsProcessed(), "the late event must not be counted")
	close(in)
}

func TestFixedDurationStage_EndsIdleStream(t *testing.T) {
	stage := NewFixedDurationStage(20 * time.Millisecond)

	in := make(chan event.Event)
	defer close(in)
	out := stage.Handle(context.Background(), in)

	select {
	case _, ok := <-out:
		assert.False(t, ok, "an idle stream should end at the deadline without events")
	case <-time.After(2 * time.Second):
		t.Fatal("stage did not end an idle stream at the deadline")
	}
	assert.Equal(t, int64(0), stage.EventsProcessed())
}

func TestFixedDurationStage_ContextCancellation(t *testing.T) {
	stage := NewFixedDurationStage(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan event.Event)
	defer close(in)
	out := stage.Handle(ctx, in)

	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok, "cancellation should close the output stream")
	case <-time.After(2 * time.Second):
		t.Fatal("stage did not react to context cancellation")
	}
}

func TestFixedDurationStage_ClosesWhenUpstreamCloses(t *testing.T) {
	stage := NewFixedDurationStage(time.Minute)

	got := collect(t, stage.Handle(context.Background(), stream(
		evt("a", "loc-1", 10, 1),
	)))

	assert.Len(t, got, 1, "upstream close should end the stream early")
}
