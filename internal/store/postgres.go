package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS timetables (
    year INTEGER NOT NULL,
    name TEXT NOT NULL,
    payload JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (year, name)
);
CREATE TABLE IF NOT EXISTS schedule_entries (
    year INTEGER NOT NULL,
    position INTEGER NOT NULL,
    date_key TEXT NOT NULL,
    timetable TEXT NOT NULL,
    PRIMARY KEY (year, position)
);
CREATE UNIQUE INDEX IF NOT EXISTS schedule_entries_day ON schedule_entries (year, lower(date_key));
`

// PostgresSource keeps timetables in Postgres.
type PostgresSource struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects to databaseURL and creates the tables if needed.
func OpenPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresSource{pool: pool, logger: logger.With(slog.String("component", "postgres_store"))}, nil
}

func (s *PostgresSource) Close() {
	s.pool.Close()
}

func (s *PostgresSource) Timetable(ctx context.Context, date time.Time, debug bool) ([]byte, error) {
	if debug {
		return s.Named(ctx, 0, DebugTimetable)
	}
	var name string
	err := s.pool.QueryRow(ctx,
		`SELECT timetable FROM schedule_entries WHERE year = $1 AND lower(date_key) = lower($2)`,
		date.Year(), DateKey(date)).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w %s", ErrNotFound, date.Format(time.DateOnly))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	return s.Named(ctx, date.Year(), name)
}

// Named returns the archived payload for year and name.
func (s *PostgresSource) Named(ctx context.Context, year int, name string) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload::text FROM timetables WHERE year = $1 AND name = $2`, year, name).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, availableName(year, name))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query timetable: %w", err)
	}
	return payload, nil
}

func (s *PostgresSource) Schedule(ctx context.Context, year int) ([]ScheduleEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date_key, timetable FROM schedule_entries WHERE year = $1 ORDER BY position`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	var entries []ScheduleEntry
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.Date, &e.Timetable); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresSource) Available(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT year, name FROM timetables WHERE year > 0 ORDER BY year, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query timetables: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var year int
		var name string
		if err := rows.Scan(&year, &name); err != nil {
			return nil, err
		}
		names = append(names, availableName(year, name))
	}
	return names, rows.Err()
}

func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresSource) PutTimetable(ctx context.Context, year int, name string, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("invalid JSON for timetable %s", availableName(year, name))
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO timetables (year, name, payload) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (year, name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		year, name, string(payload))
	return err
}

func (s *PostgresSource) PutSchedule(ctx context.Context, year int, entries []ScheduleEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Error("failed to roll back transaction", slog.String("error", err.Error()))
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_entries WHERE year = $1`, year); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i, e := range entries {
		batch.Queue(`INSERT INTO schedule_entries (year, position, date_key, timetable) VALUES ($1, $2, $3, $4)`,
			year, i, e.Date, e.Timetable)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert schedule entries: %w", err)
	}
	return tx.Commit(ctx)
}
