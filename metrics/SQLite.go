package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite implements a Sink that stores statistics in a SQLite
// database, one row per statistic per iteration, keyed by run.
type SQLite struct {
	ctx   context.Context
	db    *sql.DB
	runID string
}

// NewSQLite opens the SQLite database at path, creating the statistics
// table if needed, and returns a Sink recording statistics under runID
func NewSQLite(ctx context.Context, path, runID string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("newSQLite: sqlite path is required")
	}
	if runID == "" {
		return nil, errors.New("newSQLite: run id is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("newSQLite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("newSQLite: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("newSQLite: %w", err)
	}

	return &SQLite{ctx: ctx, db: db, runID: runID}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS stats (
			run_id TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run_id, iteration, name)
		)
	`)
	return err
}

// Record stores the statistics of an iteration in a single transaction
func (s *SQLite) Record(iteration int, stats map[string]float64) error {
	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	for _, name := range sortedNames(stats) {
		_, err := tx.ExecContext(s.ctx, `
			INSERT INTO stats (run_id, iteration, name, value)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(run_id, iteration, name) DO UPDATE SET
				value = excluded.value
		`, s.runID, iteration, name, stats[name])
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return nil
}

// Series returns the value of the named statistic on each recorded
// iteration of the run, ordered by iteration
func (s *SQLite) Series(name string) ([]float64, error) {
	rows, err := s.db.QueryContext(s.ctx, `
		SELECT value FROM stats
		WHERE run_id = ? AND name = ?
		ORDER BY iteration
	`, s.runID, name)
	if err != nil {
		return nil, fmt.Errorf("series: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("series: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("series: %w", err)
	}
	return values, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}
