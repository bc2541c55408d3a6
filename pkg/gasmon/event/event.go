// Package event defines the immutable value types that flow through the
// GasMon pipeline: sensor readings, sensor locations, and the derived
// aggregates the sinks produce.
package event

import "time"

// Event is a single sensor reading. Events are immutable once produced;
// pipeline stages observe and may drop them, never mutate them.
type Event struct {
	// LocationID identifies the sensor that produced the reading.
	LocationID string `json:"locationId"`

	// EventID uniquely identifies the reading. Used for deduplication.
	EventID string `json:"eventId"`

	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	// Value is the measured gas concentration.
	Value float64 `json:"value"`
}

// Time returns the event timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Location is a known sensor site with its coordinates.
type Location struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Average is the finalized record of a retired averaging bin, covering the
// half-open interval [Start, End) in epoch milliseconds. Value is the
// arithmetic mean of the readings collected in the bin, or 0 when the bin
// was retired without any readings.
type Average struct {
	Start int64   `json:"start"`
	End   int64   `json:"end"`
	Value float64 `json:"value"`
}

// StartTime returns the bin start as a time.Time.
func (a Average) StartTime() time.Time {
	return time.UnixMilli(a.Start)
}

// EndTime returns the bin end as a time.Time.
func (a Average) EndTime() time.Time {
	return time.UnixMilli(a.End)
}

// SpatialResult is the value-weighted centroid of all readings seen in one
// pass of the stream.
type SpatialResult struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
