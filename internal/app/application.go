package app

import (
	"log/slog"

	"svrlive.org/internal/appconf"
	"svrlive.org/internal/clock"
	"svrlive.org/internal/metrics"
	"svrlive.org/internal/publisher"
	"svrlive.org/internal/session"
	"svrlive.org/internal/store"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config    appconf.Config
	Logger    *slog.Logger
	Clock     *clock.Source
	Store     store.Source
	Session   *session.Session
	Metrics   *metrics.Metrics
	Publisher *publisher.NATSPublisher

	// Closers release backend connections, last opened first.
	Closers []func()
}

// Close stops the session and releases everything in Closers.
func (a *Application) Close() {
	if a.Session != nil {
		a.Session.Close()
	}
	for i := len(a.Closers) - 1; i >= 0; i-- {
		a.Closers[i]()
	}
	a.Closers = nil
}
