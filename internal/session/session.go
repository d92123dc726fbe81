// Package session owns the live board: it keeps the engine for the clock's
// current date loaded, recomputes snapshots on demand and on a timer, and
// fans them out to the publisher.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"svrlive.org/internal/clock"
	"svrlive.org/internal/logging"
	"svrlive.org/internal/metrics"
	"svrlive.org/internal/store"
	"svrlive.org/internal/timetable"
	"svrlive.org/internal/tracker"
)

// Publisher receives every computed tick.
type Publisher interface {
	PublishSnapshot(snap tracker.Snapshot, now time.Time) error
}

type Options struct {
	Clock           *clock.Source
	Store           store.Source
	Debug           bool
	RefreshInterval time.Duration
	Metrics         *metrics.Metrics
	Publisher       Publisher
	Logger          *slog.Logger
}

// Status describes what the session currently serves.
type Status struct {
	Date       string      `json:"date"`
	Timetable  string      `json:"timetable,omitempty"`
	Loaded     bool        `json:"loaded"`
	Error      string      `json:"error,omitempty"`
	Clock      clock.State `json:"clock"`
	Refreshing bool        `json:"refreshing"`
}

type loaded struct {
	date   string
	engine *tracker.Engine
	err    error
}

type Session struct {
	clock     *clock.Source
	src       store.Source
	debug     bool
	metrics   *metrics.Metrics
	publisher Publisher
	logger    *slog.Logger

	// loadMu serializes loads and guards base.
	loadMu  sync.Mutex
	current atomic.Pointer[loaded]

	base      context.Context
	refresher *Refresher
}

func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	src := opts.Clock
	if src == nil {
		src = clock.NewSource(nil, nil)
	}
	s := &Session{
		clock:     src,
		src:       opts.Store,
		debug:     opts.Debug,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		logger:    logger.With(slog.String("component", "session")),
		base:      context.Background(),
	}
	s.refresher = NewRefresher(opts.RefreshInterval, s.refresh)
	return s
}

// Clock returns the evaluation clock the session reads.
func (s *Session) Clock() *clock.Source {
	return s.clock
}

// Start loads the current day and, in live mode, begins periodic ticks
// bound to ctx.
func (s *Session) Start(ctx context.Context) {
	s.loadMu.Lock()
	s.base = ctx
	s.loadMu.Unlock()
	if s.clock.Mode() == clock.Live {
		s.refresher.Start(ctx)
		return
	}
	s.refresh(ctx)
}

// Close stops the refresh loop.
func (s *Session) Close() {
	s.refresher.Stop()
}

// Engine returns the engine for the clock's current date, loading it on
// first use and whenever the date changes.
func (s *Session) Engine(ctx context.Context) (*tracker.Engine, error) {
	return s.engineFor(ctx, s.clock.Date())
}

// engineFor returns the engine for date, which the caller read from the
// clock together with the instant it will evaluate.
func (s *Session) engineFor(ctx context.Context, date time.Time) (*tracker.Engine, error) {
	key := date.Format(time.DateOnly)
	if cur := s.current.Load(); cur != nil && cur.date == key {
		return cur.engine, cur.err
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if cur := s.current.Load(); cur != nil && cur.date == key {
		return cur.engine, cur.err
	}
	next := s.load(ctx, date, nil)
	s.current.Store(next)
	return next.engine, next.err
}

// Reload re-reads the timetable for the current date. A failure other than
// a missing timetable keeps serving the previously loaded engine.
func (s *Session) Reload(ctx context.Context) error {
	date := s.clock.Date()
	key := date.Format(time.DateOnly)

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	var prev *tracker.Engine
	if cur := s.current.Load(); cur != nil && cur.date == key {
		prev = cur.engine
	}
	next := s.load(ctx, date, prev)
	s.current.Store(next)
	return next.err
}

func (s *Session) load(ctx context.Context, date time.Time, prev *tracker.Engine) *loaded {
	key := date.Format(time.DateOnly)
	tt, err := store.Load(ctx, s.src, date, s.debug)
	if err == nil {
		var eng *tracker.Engine
		eng, err = tracker.NewEngine(tt)
		if err == nil {
			s.loadResult("ok")
			logging.LogOperation(s.logger, "timetable_loaded",
				slog.String("date", key),
				slog.String("timetable", tt.Name),
				slog.Int("services", len(tt.Trains)))
			return &loaded{date: key, engine: eng}
		}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		s.loadResult("not_found")
		s.logger.Warn("no timetable for date", slog.String("date", key))
		return &loaded{date: key, err: err}
	case errors.Is(err, timetable.ErrEmptyTimetable):
		s.loadResult("empty")
		logging.LogError(s.logger, "timetable has no services", err, slog.String("date", key))
		return &loaded{date: key, err: err}
	case errors.Is(err, timetable.ErrInvalidTimetable):
		s.loadResult("invalid")
	default:
		s.loadResult("error")
	}
	logging.LogError(s.logger, "failed to load timetable", err, slog.String("date", key))
	if prev != nil {
		return &loaded{date: key, engine: prev}
	}
	return &loaded{date: key, err: err}
}

func (s *Session) loadResult(result string) {
	if s.metrics != nil {
		s.metrics.TimetableLoaded(result)
	}
}

// Snapshot computes the board at the clock's current instant. The clock is
// read exactly once; the instant and its date come from that read.
func (s *Session) Snapshot(ctx context.Context) (tracker.Snapshot, error) {
	state := s.clock.State()
	eng, err := s.engineFor(ctx, state.Date)
	if err != nil {
		return tracker.Snapshot{}, err
	}
	snap := eng.Snapshot(state.Minutes, state.Label)
	snap.Mode = string(state.Mode)
	return snap, nil
}

// At computes the board at minutes on the clock's current date without
// changing clock state.
func (s *Session) At(ctx context.Context, minutes float64) (tracker.Snapshot, error) {
	eng, err := s.Engine(ctx)
	if err != nil {
		return tracker.Snapshot{}, err
	}
	snap := eng.Snapshot(minutes, clock.Label(minutes))
	snap.Mode = string(clock.Manual)
	return snap, nil
}

// Tick computes one snapshot, records it, and publishes it.
func (s *Session) Tick(ctx context.Context) (tracker.Snapshot, error) {
	start := time.Now()
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return snap, err
	}
	if s.metrics != nil {
		s.metrics.ObserveTick(time.Since(start), len(snap.Statuses))
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(snap, time.Now()); err != nil {
			logging.LogError(s.logger, "failed to publish snapshot", err)
		}
	}
	return snap, nil
}

func (s *Session) refresh(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Debug("tick failed", slog.String("error", err.Error()))
	}
}

// Step moves the clock by delta minutes and switches it to manual.
func (s *Session) Step(delta int) clock.State {
	st := s.clock.Step(delta)
	s.clockChanged()
	return st
}

// Set pins the clock to a minute of the day.
func (s *Session) Set(minutes int) clock.State {
	st := s.clock.Set(minutes)
	s.clockChanged()
	return st
}

// GoLive returns the clock to wall time and restarts periodic ticks.
func (s *Session) GoLive() clock.State {
	st := s.clock.GoLive()
	s.clockChanged()
	return st
}

func (s *Session) clockChanged() {
	if s.clock.Mode() == clock.Live {
		s.refresher.Restart()
		return
	}
	s.refresher.Stop()
	s.loadMu.Lock()
	ctx := s.base
	s.loadMu.Unlock()
	s.refresh(ctx)
}

// Status reports the loaded day and clock without triggering a load.
func (s *Session) Status() Status {
	st := Status{
		Date:       s.clock.Date().Format(time.DateOnly),
		Clock:      s.clock.State(),
		Refreshing: s.refresher.Running(),
	}
	cur := s.current.Load()
	if cur == nil || cur.date != st.Date {
		return st
	}
	if cur.engine != nil {
		st.Loaded = true
		st.Timetable = cur.engine.Timetable().Name
	}
	if cur.err != nil {
		st.Error = cur.err.Error()
	}
	return st
}
