// Command importer loads timetables into a backend. It either converts one
// service day of a GTFS feed, or copies a timetables directory into an
// archive database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"svrlive.org/internal/appconf"
	"svrlive.org/internal/gtfsimport"
	"svrlive.org/internal/logging"
	"svrlive.org/internal/store"
)

func main() {
	logger := logging.NewStructuredLogger(os.Stderr, slog.LevelInfo, false)
	if err := run(context.Background(), os.Args[1:], logger); err != nil {
		logging.LogError(logger, "import failed", err)
		os.Exit(1)
	}
}

type options struct {
	gtfsPath string
	date     string
	name     string
	routeID  string
	north    string
	archive  bool

	backend     string
	dir         string
	archivePath string
	databaseURL string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	fs.StringVar(&o.gtfsPath, "gtfs", "", "GTFS zip to convert")
	fs.StringVar(&o.date, "date", "", "service day to convert (YYYY-MM-DD)")
	fs.StringVar(&o.name, "name", "", "timetable name (default gtfs-<date>)")
	fs.StringVar(&o.routeID, "route", "", "only convert trips of this route")
	fs.StringVar(&o.north, "north-terminus", "", "stop name northbound trips end at")
	fs.BoolVar(&o.archive, "archive", false, "copy the timetables directory into the target backend")
	fs.StringVar(&o.backend, "backend", string(appconf.BackendSQLite), "target backend (files|sqlite|postgres)")
	fs.StringVar(&o.dir, "timetables", "Timetables", "timetables directory")
	fs.StringVar(&o.archivePath, "archive-path", "svrlive.db", "SQLite archive path")
	fs.StringVar(&o.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	switch {
	case o.archive && o.gtfsPath != "":
		return o, errors.New("-archive and -gtfs are mutually exclusive")
	case !o.archive && o.gtfsPath == "":
		return o, errors.New("one of -archive or -gtfs is required")
	case o.gtfsPath != "" && o.date == "":
		return o, errors.New("-date is required with -gtfs")
	case o.archive && appconf.Backend(o.backend) == appconf.BackendFiles:
		return o, errors.New("-archive needs a database backend")
	}
	return o, nil
}

func run(ctx context.Context, args []string, logger *slog.Logger) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	target, closeTarget, err := openTarget(ctx, o, logger)
	if err != nil {
		return err
	}
	defer closeTarget()

	if o.archive {
		n, err := store.Copy(ctx, store.NewFileSource(o.dir, logger), target)
		if err != nil {
			return err
		}
		logging.LogOperation(logger, "archive_copied",
			slog.Int("timetables", n), slog.String("backend", o.backend))
		return nil
	}
	return importGTFS(ctx, o, target, logger)
}

func importGTFS(ctx context.Context, o options, target store.Store, logger *slog.Logger) error {
	date, err := time.Parse(time.DateOnly, o.date)
	if err != nil {
		return fmt.Errorf("invalid -date %q: %w", o.date, err)
	}
	feed, err := os.ReadFile(o.gtfsPath)
	if err != nil {
		return fmt.Errorf("read GTFS feed: %w", err)
	}
	static, err := gtfsimport.Parse(feed)
	if err != nil {
		return err
	}

	name := o.name
	if name == "" {
		name = "gtfs-" + o.date
	}
	tt, err := gtfsimport.Convert(static, date, gtfsimport.Options{
		Name:          name,
		RouteID:       o.routeID,
		NorthTerminus: o.north,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(tt, "", "  ")
	if err != nil {
		return fmt.Errorf("encode timetable: %w", err)
	}
	if err := store.Register(ctx, target, date, name, payload); err != nil {
		return err
	}
	logging.LogOperation(logger, "gtfs_imported",
		slog.String("date", o.date),
		slog.String("timetable", name),
		slog.Int("trains", len(tt.Trains)))
	return nil
}

func openTarget(ctx context.Context, o options, logger *slog.Logger) (store.Store, func(), error) {
	switch appconf.Backend(o.backend) {
	case appconf.BackendFiles:
		return store.NewFileSource(o.dir, logger), func() {}, nil
	case appconf.BackendSQLite:
		db, err := store.OpenSQLite(ctx, o.archivePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { logging.SafeCloseWithLogging(db, logger, "timetable_archive") }, nil
	case appconf.BackendPostgres:
		if o.databaseURL == "" {
			return nil, nil, errors.New("-database-url is required for the postgres backend")
		}
		db, err := store.OpenPostgres(ctx, o.databaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", o.backend)
}
