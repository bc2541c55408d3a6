package store

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVWriter_WritesHeaderUpFront(t *testing.T) {
	dir := t.TempDir()
	averages := filepath.Join(dir, "averages.csv")

	w, err := NewCSVWriter(averages, filepath.Join(dir, "spatial.csv"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rows := readCSV(t, averages)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Bin Start", "Bin End", "Average Value"}, rows[0])
}

func TestCSVWriter_AppendsAverageRows(t *testing.T) {
	dir := t.TempDir()
	averages := filepath.Join(dir, "averages.csv")

	w, err := NewCSVWriter(averages, filepath.Join(dir, "spatial.csv"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.WriteAverage(ctx, event.Average{Start: 1000, End: 2000, Value: 5.25}))
	require.NoError(t, w.WriteAverage(ctx, event.Average{Start: 2000, End: 3000, Value: 0}))
	require.NoError(t, w.Close())

	rows := readCSV(t, averages)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1000", "2000", "5.25"}, rows[1])
	assert.Equal(t, []string{"2000", "3000", "0"}, rows[2])
}

func TestCSVWriter_WritesSpatialFile(t *testing.T) {
	dir := t.TempDir()
	spatial := filepath.Join(dir, "spatial.csv")

	w, err := NewCSVWriter(filepath.Join(dir, "averages.csv"), spatial)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteSpatial(context.Background(), event.SpatialResult{X: 7.5, Y: 15}))

	rows := readCSV(t, spatial)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"x", "y"}, rows[0])
	assert.Equal(t, []string{"7.5", "15"}, rows[1])
}

func TestCSVWriter_RejectsWritesAfterClose(t *testing.T) {
	dir := t.TempDir()

	w, err := NewCSVWriter(filepath.Join(dir, "averages.csv"), filepath.Join(dir, "spatial.csv"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "closing twice is a no-op")

	ctx := context.Background()
	assert.ErrorIs(t, w.WriteAverage(ctx, event.Average{}), ErrStoreClosed)
	assert.ErrorIs(t, w.WriteSpatial(ctx, event.SpatialResult{}), ErrStoreClosed)
}

func TestNewCSVWriter_BadPath(t *testing.T) {
	_, err := NewCSVWriter(filepath.Join(t.TempDir(), "missing", "averages.csv"), "spatial.csv")
	assert.Error(t, err)
}
