package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    event.Event
		wantErr bool
	}{
		{
			name: "valid event",
			data: `{"locationId": "loc-1", "eventId": "evt-1", "timestamp": 1700000000000, "value": 5.25}`,
			want: event.Event{
				LocationID: "loc-1",
				EventID:    "evt-1",
				Timestamp:  1_700_000_000_000,
				Value:      5.25,
			},
		},
		{
			name: "zero value is valid",
			data: `{"locationId": "loc-1", "eventId": "evt-1", "timestamp": 0, "value": 0}`,
			want: event.Event{LocationID: "loc-1", EventID: "evt-1"},
		},
		{
			name:    "not json",
			data:    `garbage`,
			wantErr: true,
		},
		{
			name:    "missing value",
			data:    `{"locationId": "loc-1", "eventId": "evt-1", "timestamp": 1700000000000}`,
			wantErr: true,
		},
		{
			name:    "missing event id",
			data:    `{"locationId": "loc-1", "timestamp": 1700000000000, "value": 5.25}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeEvent([]byte(tt.data))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
