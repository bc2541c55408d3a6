package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// dedupeRecord tracks when an event ID should leave the deduplication cache.
type dedupeRecord struct {
	expiry time.Time
	id     string
}

// DeduplicationStage drops events whose ID was seen within a trailing TTL
// window. Because the TTL is constant, record expiries are monotonically
// non-decreasing in arrival order: the expiry queue never needs re-sorting
// and eviction from the front is O(1) amortized per event.
//
// A TTL of zero makes every record evictable on the next call. Eviction
// runs before the duplicate test, so duplicates arriving within the same
// clock instant are still caught.
type DeduplicationStage struct {
	opts       options
	ttl        time.Duration
	queue      []dedupeRecord
	idCache    map[string]struct{}
	duplicates atomic.Int64
}

// NewDeduplicationStage creates a deduplicator with the given record TTL.
func NewDeduplicationStage(ttl time.Duration, opts ...Option) *DeduplicationStage {
	return &DeduplicationStage{
		opts:    newOptions(opts),
		ttl:     ttl,
		idCache: make(map[string]struct{}),
	}
}

// DuplicateEventsIgnored returns the number of events dropped as
// duplicates. Safe to read after the stream ends.
func (s *DeduplicationStage) DuplicateEventsIgnored() int64 {
	return s.duplicates.Load()
}

// Handle passes on events whose ID has not been seen within the TTL.
func (s *DeduplicationStage) Handle(ctx context.Context, in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, streamBuffer)

	go func() {
		defer close(out)

		for evt := range in {
			now := s.opts.now()
			s.evictExpired(now)

			if _, seen := s.idCache[evt.EventID]; seen {
				s.duplicates.Add(1)
				s.opts.metrics.RecordDuplicate(ctx)
				if s.opts.logger != nil {
					s.opts.logger.Debug("ignoring duplicated event",
						slog.String("event_id", evt.EventID))
				}
				continue
			}

			s.idCache[evt.EventID] = struct{}{}
			s.queue = append(s.queue, dedupeRecord{expiry: now.Add(s.ttl), id: evt.EventID})

			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// evictExpired removes records whose expiry has passed, front first.
func (s *DeduplicationStage) evictExpired(now time.Time) {
	evicted := 0
	for len(s.queue) > evicted && now.After(s.queue[evicted].expiry) {
		delete(s.idCache, s.queue[evicted].id)
		evicted++
	}
	if evicted > 0 {
		// Shift in place so the backing array is reused.
		s.queue = s.queue[:copy(s.queue, s.queue[evicted:])]
	}
}
