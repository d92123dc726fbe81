package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver

	"svrlive.org/internal/logging"
)

//go:embed schema.sql
var ddl string

// SQLiteSource keeps timetables in a SQLite archive.
type SQLiteSource struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenSQLite opens (and migrates) the archive at path. ":memory:" is
// accepted for tests.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "sqlite_store"))

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(ctx, db, logger); err != nil {
		logging.SafeCloseWithLogging(db, logger, "sqlite_db")
		return nil, fmt.Errorf("error configuring SQLite: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		logging.SafeCloseWithLogging(db, logger, "sqlite_db")
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}
	configureConnectionPool(db, path)

	return &SQLiteSource{db: db, path: path, logger: logger}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", stmt, err)
		}
	}
	return nil
}

func configureSQLite(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []string{
		"PRAGMA cache_size=-16000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logging.LogError(logger, "failed to apply pragma", err, slog.String("pragma", pragma))
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	logging.LogOperation(logger, "sqlite_settings_applied", slog.Int("pragma_count", len(pragmas)))
	return nil
}

// configureConnectionPool limits :memory: databases to one connection, since
// each connection would otherwise see its own empty database.
func configureConnectionPool(db *sql.DB, path string) {
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}

// DB exposes the handle for pool statistics.
func (s *SQLiteSource) DB() *sql.DB {
	return s.db
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func (s *SQLiteSource) Timetable(ctx context.Context, date time.Time, debug bool) ([]byte, error) {
	if debug {
		return s.Named(ctx, 0, DebugTimetable)
	}
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT timetable FROM schedule_entries WHERE year = ? AND date_key = ?`,
		date.Year(), DateKey(date)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w %s", ErrNotFound, date.Format(time.DateOnly))
	}
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}
	return s.Named(ctx, date.Year(), name)
}

// Named returns the archived payload for year and name.
func (s *SQLiteSource) Named(ctx context.Context, year int, name string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM timetables WHERE year = ? AND name = ?`, year, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, availableName(year, name))
	}
	if err != nil {
		return nil, fmt.Errorf("query timetable: %w", err)
	}
	return []byte(payload), nil
}

func (s *SQLiteSource) Schedule(ctx context.Context, year int) ([]ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date_key, timetable FROM schedule_entries WHERE year = ? ORDER BY rowid`, year)
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, s.logger, "schedule_rows")

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

func (s *SQLiteSource) Available(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, name FROM timetables WHERE year > 0 ORDER BY year, name`)
	if err != nil {
		return nil, fmt.Errorf("query timetables: %w", err)
	}
	defer logging.SafeCloseWithLogging(rows, s.logger, "timetable_rows")

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

func (s *SQLiteSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteSource) PutTimetable(ctx context.Context, year int, name string, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("invalid JSON for timetable %s", availableName(year, name))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timetables (year, name, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (year, name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		year, name, string(payload), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SQLiteSource) PutSchedule(ctx context.Context, year int, entries []ScheduleEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, s.logger, "put_schedule")

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_entries WHERE year = ?`, year); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO schedule_entries (year, date_key, timetable) VALUES (?, ?, ?)
		 ON CONFLICT (year, date_key) DO UPDATE SET timetable = excluded.timetable`)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(stmt, s.logger, "schedule_stmt")

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, year, e.Date, e.Timetable); err != nil {
			return fmt.Errorf("insert schedule entry %s: %w", e.Date, err)
		}
	}
	return tx.Commit()
}
