package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
	"github.com/randalmurphal/gasmon/pkg/gasmon/observability"
)

// bin collects readings for the half-open interval [start, end) in epoch
// milliseconds.
type bin struct {
	start  int64
	end    int64
	values []float64
}

// average finalizes the bin. An empty bin averages to 0 by convention.
func (b bin) average() event.Average {
	avg := event.Average{Start: b.start, End: b.end}
	if len(b.values) > 0 {
		var sum float64
		for _, v := range b.values {
			sum += v
		}
		avg.Value = sum / float64(len(b.values))
	}
	return avg
}

// WindowedAverager partitions events into fixed-width, contiguous time
// bins and emits a finalized average once a bin's retention period has
// elapsed.
//
// The bin deque is seeded with a single zero-width sentinel ending at
// now - expiry, so the first real event always triggers correct bin
// creation. Bins stay contiguous (bins[i].end == bins[i+1].start) and at
// least one bin is held at all times. At most one bin is retired per
// event processed, which self-limits recovery after a long idle gap.
type WindowedAverager struct {
	opts     options
	periodMs int64
	expiryMs int64
	writer   AverageWriter
	bins     []bin
}

// NewWindowedAverager creates a moving-average sink. The expiry period
// should be at least the averaging period so a bin is never force-retired
// before it can accumulate a full period of data. Finalized averages are
// appended to the given writer.
func NewWindowedAverager(period, expiry time.Duration, writer AverageWriter, opts ...Option) *WindowedAverager {
	return &WindowedAverager{
		opts:     newOptions(opts),
		periodMs: period.Milliseconds(),
		expiryMs: expiry.Milliseconds(),
		writer:   writer,
	}
}

// Handle consumes the stream, binning each event and retiring at most one
// expired bin per event. Writer failures are collected and returned after
// the stream ends; they never disturb the bin deque, so aggregation
// continues across a failed emission.
func (w *WindowedAverager) Handle(ctx context.Context, in <-chan event.Event) error {
	// Zero-width sentinel so the first event creates its own bins.
	seed := w.opts.now().UnixMilli() - w.expiryMs
	w.bins = []bin{{start: seed, end: seed}}

	var errs []error
	for evt := range in {
		w.addToBin(ctx, evt)

		avg, ok := w.maybeExpireFirstBin()
		if !ok {
			continue
		}
		observability.LogAverage(w.opts.logger, avg.StartTime(), avg.EndTime(), avg.Value)
		w.opts.metrics.RecordAverage(ctx, avg.Value)
		if err := w.writer.WriteAverage(ctx, avg); err != nil {
			observability.LogWriteError(w.opts.logger, "average", err)
			errs = append(errs, fmt.Errorf("write average [%d, %d): %w", avg.Start, avg.End, err))
		}
	}
	return errors.Join(errs...)
}

// addToBin places an event's value into its bin, growing the deque with
// contiguous bins as needed. Events older than the retained window are
// dropped.
func (w *WindowedAverager) addToBin(ctx context.Context, evt event.Event) {
	if evt.Timestamp < w.bins[0].start {
		w.opts.metrics.RecordLateEvent(ctx)
		if w.opts.logger != nil {
			w.opts.logger.Debug("not averaging old event",
				slog.Int64("timestamp", evt.Timestamp))
		}
		return
	}

	for evt.Timestamp >= w.bins[len(w.bins)-1].end {
		last := w.bins[len(w.bins)-1]
		w.bins = append(w.bins, bin{start: last.end, end: last.end + w.periodMs})
	}

	idx := w.binIndex(evt.Timestamp)
	w.bins[idx].values = append(w.bins[idx].values, evt.Value)
}

// binIndex locates the bin covering ts. All bins have the configured
// width except a zero-width sentinel, which can only sit at the front, so
// indexing off the first bin's end stays correct while the sentinel is
// still in place.
func (w *WindowedAverager) binIndex(ts int64) int {
	if ts < w.bins[0].end {
		return 0
	}
	return 1 + int((ts-w.bins[0].end)/w.periodMs)
}

// maybeExpireFirstBin retires the front bin once its end lags now by more
// than the expiry period. The retired sentinel is discarded silently; a
// real bin is finalized into an Average even when empty. The last
// remaining bin is never popped.
func (w *WindowedAverager) maybeExpireFirstBin() (event.Average, bool) {
	if len(w.bins) < 2 {
		return event.Average{}, false
	}
	if w.opts.now().UnixMilli()-w.expiryMs <= w.bins[0].end {
		return event.Average{}, false
	}
	expired := w.bins[0]
	w.bins = w.bins[1:]
	if expired.start == expired.end {
		return event.Average{}, false
	}
	return expired.average(), true
}
