// Package metrics provides Prometheus metrics for the svrlive service.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Board metrics
	TicksTotal     prometheus.Counter
	TickDuration   prometheus.Histogram
	ActiveTrains   prometheus.Gauge
	TimetableLoads *prometheus.CounterVec // result: ok|not_found|empty|invalid|error

	// NATS metrics
	NATSPublished      prometheus.Counter
	NATSPublishErrs    prometheus.Counter
	NATSPublishLatency prometheus.Histogram
	NATSConnected      prometheus.Gauge

	// Archive database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// New creates and registers all application metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "svrlive_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "svrlive_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "svrlive_board_ticks_total",
			Help: "Total number of board recomputations",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "svrlive_board_tick_duration_seconds",
			Help:    "Time spent recomputing the board",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		ActiveTrains: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "svrlive_active_trains",
			Help: "Train numbers shown on the board at the last tick",
		}),
		TimetableLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "svrlive_timetable_loads_total",
			Help: "Timetable loads by result",
		}, []string{"result"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "svrlive_nats_published_total",
			Help: "Total NATS messages published",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "svrlive_nats_publish_errors_total",
			Help: "Total NATS publish errors",
		}),
		NATSPublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "svrlive_nats_publish_duration_seconds",
			Help:    "Duration of NATS publish calls",
			Buckets: prometheus.DefBuckets,
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "svrlive_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise",
		}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "svrlive_db_connections_open",
			Help: "Number of open archive database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "svrlive_db_connections_in_use",
			Help: "Number of archive database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "svrlive_db_connections_idle",
			Help: "Number of idle archive database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "svrlive_db_wait_seconds_total",
			Help: "Total time blocked waiting for an archive database connection",
		}),
		logger: logger,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TicksTotal,
		m.TickDuration,
		m.ActiveTrains,
		m.TimetableLoads,
		m.NATSPublished,
		m.NATSPublishErrs,
		m.NATSPublishLatency,
		m.NATSConnected,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
	)
	return m
}

// ObserveTick records one board recomputation.
func (m *Metrics) ObserveTick(d time.Duration, activeTrains int) {
	m.TicksTotal.Inc()
	m.TickDuration.Observe(d.Seconds())
	m.ActiveTrains.Set(float64(activeTrains))
}

// TimetableLoaded counts a load attempt by result.
func (m *Metrics) TimetableLoaded(result string) {
	m.TimetableLoads.WithLabelValues(result).Inc()
}

func (m *Metrics) NATSPublishedInc() { m.NATSPublished.Inc() }

func (m *Metrics) NATSPublishErrInc() { m.NATSPublishErrs.Inc() }

func (m *Metrics) PublishObserve(d time.Duration) { m.NATSPublishLatency.Observe(d.Seconds()) }

func (m *Metrics) NATSSetConnected(connected bool) {
	if connected {
		m.NATSConnected.Set(1)
		return
	}
	m.NATSConnected.Set(0)
}

// StartDBStatsCollector starts a goroutine that periodically collects database
// connection pool statistics and updates the corresponding metrics.
// This method is idempotent - calling it multiple times has no effect after the first call.
// Call Shutdown() to stop the collector.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil {
		return
	}
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var lastWaitDuration time.Duration

	// Add to WaitGroup BEFORE exposing cancel to avoid race with Shutdown
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil && m.logger != nil {
				m.logger.Error("panic in DB stats collector", "error", r)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
				m.DBConnectionsInUse.Set(float64(stats.InUse))
				m.DBConnectionsIdle.Set(float64(stats.Idle))

				if waitDelta := stats.WaitDuration - lastWaitDuration; waitDelta > 0 {
					m.DBWaitSecondsTotal.Add(waitDelta.Seconds())
				}
				lastWaitDuration = stats.WaitDuration

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector goroutine and waits for it to exit.
// This method is safe to call multiple times.
func (m *Metrics) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
