package event_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

func TestEvent_WireFormat(t *testing.T) {
	data := `{"locationId": "loc-1", "eventId": "evt-1", "timestamp": 1700000000000, "value": 5.25}`

	var e event.Event
	require.NoError(t, json.Unmarshal([]byte(data), &e))

	assert.Equal(t, "loc-1", e.LocationID)
	assert.Equal(t, "evt-1", e.EventID)
	assert.Equal(t, int64(1_700_000_000_000), e.Timestamp)
	assert.Equal(t, 5.25, e.Value)
}

func TestEvent_Time(t *testing.T) {
	e := event.Event{Timestamp: 1_700_000_000_000}
	assert.Equal(t, time.UnixMilli(1_700_000_000_000), e.Time())
}

func TestAverage_Times(t *testing.T) {
	a := event.Average{Start: 1000, End: 11_000, Value: 2.5}
	assert.Equal(t, time.UnixMilli(1000), a.StartTime())
	assert.Equal(t, time.UnixMilli(11_000), a.EndTime())
	assert.Equal(t, 10*time.Second, a.EndTime().Sub(a.StartTime()))
}
