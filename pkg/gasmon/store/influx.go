package store

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
	"github.com/randalmurphal/gasmon/pkg/gasmon/sink"
)

// InfluxWriter writes finalized aggregates to InfluxDB v2. It uses the
// blocking write API so write failures surface immediately to the sink.
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// Compile-time interface checks.
var (
	_ sink.AverageWriter = (*InfluxWriter)(nil)
	_ sink.SpatialWriter = (*InfluxWriter)(nil)
)

// NewInfluxWriter initializes the InfluxDB client and verifies connectivity.
func NewInfluxWriter(ctx context.Context, url, token, org, bucket string) (*InfluxWriter, error) {
	client := influxdb2.NewClient(url, token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to InfluxDB: %w", err)
	}

	return &InfluxWriter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}, nil
}

// WriteAverage writes one finalized bin average, timestamped at the bin end.
func (w *InfluxWriter) WriteAverage(ctx context.Context, avg event.Average) error {
	point := write.NewPoint(
		"gas_average",
		map[string]string{},
		map[string]interface{}{
			"average":   avg.Value,
			"bin_start": avg.Start,
			"bin_end":   avg.End,
		},
		avg.EndTime(),
	)

	if err := w.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write average point: %w", err)
	}
	return nil
}

// WriteSpatial writes the spatial centroid for this run.
func (w *InfluxWriter) WriteSpatial(ctx context.Context, result event.SpatialResult) error {
	point := write.NewPoint(
		"gas_spatial_average",
		map[string]string{},
		map[string]interface{}{
			"x": result.X,
			"y": result.Y,
		},
		time.Now(),
	)

	if err := w.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("write spatial point: %w", err)
	}
	return nil
}

// Close closes the InfluxDB client.
func (w *InfluxWriter) Close() error {
	w.client.Close()
	return nil
}
