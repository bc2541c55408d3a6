package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/gasmon/pkg/gasmon/event"
	"github.com/randalmurphal/gasmon/pkg/gasmon/sink"
)

// ErrStoreClosed is returned by writes against a closed store.
var ErrStoreClosed = errors.New("store is closed")

// SQLiteStore persists finalized aggregates to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Compile-time interface checks.
var (
	_ sink.AverageWriter = (*SQLiteStore)(nil)
	_ sink.SpatialWriter = (*SQLiteStore)(nil)
)

// NewSQLiteStore creates a new SQLite aggregate store.
// The path should be a file path (e.g., "./gasmon.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS averages (
			bin_start INTEGER NOT NULL,
			bin_end INTEGER NOT NULL,
			average REAL NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (bin_start, bin_end)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create averages table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS spatial_results (
			x REAL NOT NULL,
			y REAL NOT NULL,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create spatial_results table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// WriteAverage inserts one finalized bin average. Re-finalizing the same
// bin replaces the previous row.
func (s *SQLiteStore) WriteAverage(ctx context.Context, avg event.Average) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO averages (bin_start, bin_end, average, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(bin_start, bin_end) DO UPDATE SET
			average = excluded.average,
			created_at = excluded.created_at
	`, avg.Start, avg.End, avg.Value, time.Now().UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("insert average: %w", err)
	}
	return nil
}

// WriteSpatial inserts the spatial centroid for this run.
func (s *SQLiteStore) WriteSpatial(ctx context.Context, result event.SpatialResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spatial_results (x, y, created_at)
		VALUES (?, ?, ?)
	`, result.X, result.Y, time.Now().UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("insert spatial result: %w", err)
	}
	return nil
}

// Averages returns all stored bin averages in time order.
func (s *SQLiteStore) Averages(ctx context.Context) ([]event.Average, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bin_start, bin_end, average
		FROM averages
		ORDER BY bin_start
	`)
	if err != nil {
		return nil, fmt.Errorf("query averages: %w", err)
	}
	defer rows.Close()

	var averages []event.Average
	for rows.Next() {
		var avg event.Average
		if err := rows.Scan(&avg.Start, &avg.End, &avg.Value); err != nil {
			return nil, fmt.Errorf("scan average: %w", err)
		}
		averages = append(averages, avg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate averages: %w", err)
	}
	return averages, nil
}

// SpatialResults returns all stored centroids in insertion order.
func (s *SQLiteStore) SpatialResults(ctx context.Context) ([]event.SpatialResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT x, y FROM spatial_results ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query spatial results: %w", err)
	}
	defer rows.Close()

	var results []event.SpatialResult
	for rows.Next() {
		var r event.SpatialResult
		if err := rows.Scan(&r.X, &r.Y); err != nil {
			return nil, fmt.Errorf("scan spatial result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spatial results: %w", err)
	}
	return results, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
