// Package publisher pushes board snapshots to NATS so other consumers
// (signage, bots) follow the same board without polling the API.
package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"svrlive.org/internal/tracker"
)

// PublisherMetrics receives publish outcomes.
type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes the whole board to <prefix>.board and one status
// message per train to <prefix>.trains.<train>.
type NATSPublisher struct {
	conn    Conn
	nc      *nats.Conn
	prefix  string
	metrics PublisherMetrics
	logger  *slog.Logger
}

// TrainMessage is the per-train payload.
type TrainMessage struct {
	Timetable string         `json:"timetable,omitempty"`
	Clock     string         `json:"clock"`
	Timestamp time.Time      `json:"timestamp"`
	Status    tracker.Status `json:"status"`
}

// BoardMessage wraps a snapshot with its publish time.
type BoardMessage struct {
	Timestamp time.Time        `json:"timestamp"`
	Snapshot  tracker.Snapshot `json:"snapshot"`
}

// Connect dials url and returns a publisher on prefix.
func Connect(url, prefix string, m PublisherMetrics, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "nats_publisher"))

	nc, err := nats.Connect(url,
		nats.Name("svrlive"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected", slog.String("error", fmt.Sprint(err)))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	p := New(nc, prefix, m, logger)
	p.nc = nc
	return p, nil
}

// New wraps an existing connection.
func New(conn Conn, prefix string, m PublisherMetrics, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix = strings.Trim(strings.TrimSpace(prefix), "."); prefix == "" {
		prefix = "svrlive"
	}
	return &NATSPublisher{conn: conn, prefix: prefix, metrics: m, logger: logger}
}

// Close drains and closes a connection opened by Connect.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.logger.Warn("nats drain failed", slog.String("error", err.Error()))
		}
		p.nc.Close()
	}
}

// BoardSubject is where whole snapshots go.
func (p *NATSPublisher) BoardSubject() string {
	return p.prefix + ".board"
}

// TrainSubject is where one train's status goes.
func (p *NATSPublisher) TrainSubject(trainNumber string) string {
	return p.prefix + ".trains." + subjectToken(trainNumber)
}

// PublishSnapshot sends the board and then every status. It returns the
// first error but still attempts every message.
func (p *NATSPublisher) PublishSnapshot(snap tracker.Snapshot, now time.Time) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(p.publishJSON(p.BoardSubject(), BoardMessage{Timestamp: now, Snapshot: snap}))
	for _, st := range snap.Statuses {
		keep(p.publishJSON(p.TrainSubject(st.TrainNumber), TrainMessage{
			Timetable: snap.Timetable,
			Clock:     snap.Clock,
			Timestamp: now,
			Status:    st,
		}))
	}
	return firstErr
}

func (p *NATSPublisher) publishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.conn.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
