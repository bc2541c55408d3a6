// Package receiver turns external message sources into the bounded event
// stream consumed by the pipeline. Two sources are supported: an SQS
// queue subscribed to the producer's SNS topic (with full subscription
// lifecycle management), and a Kafka consumer group.
//
// The receiver never terminates the underlying connection on its own; it
// keeps delivering into a bounded channel until the context is cancelled,
// and the pipeline simply stops pulling when the bounded-duration stage
// ends the run.
package receiver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

// eventBuffer is the bounded channel size between a source and the
// pipeline. A full buffer applies backpressure to the source rather than
// dropping readings.
const eventBuffer = 1024

// Source is a pull-based, effectively infinite sequence of events. The
// returned channel closes when the context is cancelled or the source
// shuts down.
type Source interface {
	Events(ctx context.Context) <-chan event.Event
}

// rawEvent uses pointer fields so missing keys are distinguishable from
// zero values.
type rawEvent struct {
	LocationID *string  `json:"locationId"`
	EventID    *string  `json:"eventId"`
	Timestamp  *int64   `json:"timestamp"`
	Value      *float64 `json:"value"`
}

// decodeEvent parses one reading from its JSON wire format, rejecting
// records with missing fields.
func decodeEvent(data []byte) (event.Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return event.Event{}, fmt.Errorf("parse event: %w", err)
	}
	if raw.LocationID == nil || raw.EventID == nil || raw.Timestamp == nil || raw.Value == nil {
		return event.Event{}, fmt.Errorf("parse event: missing locationId, eventId, timestamp, or value")
	}
	return event.Event{
		LocationID: *raw.LocationID,
		EventID:    *raw.EventID,
		Timestamp:  *raw.Timestamp,
		Value:      *raw.Value,
	}, nil
}
