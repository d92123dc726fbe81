package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"svrlive.org/internal/app"
	"svrlive.org/internal/appconf"
	"svrlive.org/internal/clock"
	"svrlive.org/internal/logging"
	"svrlive.org/internal/metrics"
	"svrlive.org/internal/publisher"
	"svrlive.org/internal/restapi"
	"svrlive.org/internal/session"
	"svrlive.org/internal/store"
	"svrlive.org/internal/webui"
)

// BuildApplication opens the configured backend and assembles the session
// around it. Call Close on the result to release connections.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewStructuredLogger(os.Stdout, level, cfg.Env == appconf.Production)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	coreApp := &app.Application{
		Config:  cfg,
		Logger:  logger,
		Clock:   clock.NewSource(clock.RealClock{}, loc),
		Metrics: metrics.NewWithLogger(logger),
	}
	coreApp.Closers = append(coreApp.Closers, coreApp.Metrics.Shutdown)

	src, err := openStore(context.Background(), coreApp, cfg, logger)
	if err != nil {
		coreApp.Close()
		return nil, err
	}
	coreApp.Store = src

	var pub session.Publisher
	if cfg.NATSURL != "" {
		p, err := publisher.Connect(cfg.NATSURL, cfg.NATSPrefix, coreApp.Metrics, logger)
		if err != nil {
			coreApp.Close()
			return nil, fmt.Errorf("failed to initialize NATS publisher: %w", err)
		}
		coreApp.Publisher = p
		coreApp.Closers = append(coreApp.Closers, p.Close)
		pub = p
	}

	coreApp.Session = session.New(session.Options{
		Clock:           coreApp.Clock,
		Store:           src,
		Debug:           cfg.Debug,
		RefreshInterval: cfg.RefreshInterval,
		Metrics:         coreApp.Metrics,
		Publisher:       pub,
		Logger:          logger,
	})
	return coreApp, nil
}

func openStore(ctx context.Context, coreApp *app.Application, cfg appconf.Config, logger *slog.Logger) (store.Source, error) {
	var src store.Source
	switch cfg.Backend {
	case appconf.BackendSQLite:
		db, err := store.OpenSQLite(ctx, cfg.ArchivePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open timetable archive: %w", err)
		}
		coreApp.Closers = append(coreApp.Closers, func() {
			logging.SafeCloseWithLogging(db, logger, "timetable_archive")
		})
		coreApp.Metrics.StartDBStatsCollector(db.DB(), 15*time.Second)
		src = db
	case appconf.BackendPostgres:
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open timetable database: %w", err)
		}
		coreApp.Closers = append(coreApp.Closers, db.Close)
		src = db
	default:
		src = store.NewFileSource(cfg.TimetablesDir, logger)
	}

	if cfg.RedisURL == "" {
		return src, nil
	}
	client, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	coreApp.Closers = append(coreApp.Closers, func() {
		logging.SafeCloseWithLogging(client, logger, "redis_client")
	})
	return store.NewRedisCache(src, client, cfg.CacheTTL, logger), nil
}

// CreateServer mounts the API, the board page and the metrics endpoint.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	webui.New(coreApp).SetWebUIRoutes(mux)
	if coreApp.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(coreApp.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.WithMiddleware(mux),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}
	return srv, api
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, coreApp *app.Application, api *restapi.RestAPI) error {
	logger := coreApp.Logger
	coreApp.Session.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", srv.Addr), slog.String("env", coreApp.Config.Env.String()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	defer coreApp.Close()
	defer api.Shutdown()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
