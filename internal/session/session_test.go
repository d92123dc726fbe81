package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svrlive.org/internal/clock"
	"svrlive.org/internal/metrics"
	"svrlive.org/internal/store"
	"svrlive.org/internal/timetable"
	"svrlive.org/internal/tracker"
)

const greenTimetable = `{"name":"Green","trains":[{"trainNumber":"DMU","direction":"southbound","stops":[
{"station":"Bridgnorth","departure":"10:00","stopsAt":true},
{"station":"Kidderminster","arrival":"11:00","stopsAt":true}]}]}`

// stubSource serves one payload per date and counts reads.
type stubSource struct {
	mu       sync.Mutex
	payloads map[string]string
	err      error
	reads    int
}

func (s *stubSource) Timetable(_ context.Context, date time.Time, _ bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.payloads[date.Format(time.DateOnly)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return []byte(p), nil
}

func (s *stubSource) Schedule(context.Context, int) ([]store.ScheduleEntry, error) { return nil, nil }
func (s *stubSource) Available(context.Context) ([]string, error) { return nil, nil }
func (s *stubSource) Ping(context.Context) error { return nil }

func (s *stubSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []tracker.Snapshot
}

func (p *recordingPublisher) PublishSnapshot(snap tracker.Snapshot, _ time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

func (p *recordingPublisher) last() tracker.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snaps[len(p.snaps)-1]
}

type fixture struct {
	session *Session
	wall    *clock.MockClock
	src     *stubSource
	pub     *recordingPublisher
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	t.Helper()
	wall := clock.NewMockClock(time.Date(2025, time.October, 18, 10, 30, 0, 0, time.UTC))
	src := &stubSource{payloads: map[string]string{"2025-10-18": greenTimetable}}
	pub := &recordingPublisher{}
	m := metrics.New()
	t.Cleanup(m.Shutdown)

	s := New(Options{
		Clock:           clock.NewSource(wall, time.UTC),
		Store:           src,
		RefreshInterval: interval,
		Metrics:         m,
		Publisher:       pub,
	})
	t.Cleanup(s.Close)
	return &fixture{session: s, wall: wall, src: src, pub: pub, metrics: m}
}

func TestSnapshotAtLiveInstant(t *testing.T) {
	f := newFixture(t, 0)

	snap, err := f.session.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Green", snap.Timetable)
	assert.Equal(t, "10:30", snap.Clock)
	assert.Equal(t, "live", snap.Mode)
	require.Len(t, snap.Statuses, 1)
	assert.Equal(t, tracker.Between, snap.Statuses[0].Position.Kind)
	assert.InDelta(t, 0.5, snap.Statuses[0].Position.Progress, 1e-9)
}

func TestEngineIsLoadedOncePerDate(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	for range 3 {
		_, err := f.session.Snapshot(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.src.readCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TimetableLoads.WithLabelValues("ok")))

	f.wall.Advance(24 * time.Hour)
	_, err := f.session.Snapshot(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 2, f.src.readCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TimetableLoads.WithLabelValues("not_found")))

	status := f.session.Status()
	assert.Equal(t, "2025-10-19", status.Date)
	assert.False(t, status.Loaded)
	assert.NotEmpty(t, status.Error)
}

func TestReloadKeepsPreviousEngineOnFailure(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.session.Engine(ctx)
	require.NoError(t, err)

	f.src.setErr(errors.New("disk on fire"))
	assert.NoError(t, f.session.Reload(ctx))

	eng, err := f.session.Engine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Green", eng.Timetable().Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TimetableLoads.WithLabelValues("error")))
}

func TestReloadWithoutPreviousEngineReportsError(t *testing.T) {
	f := newFixture(t, 0)
	f.src.setErr(errors.New("disk on fire"))

	err := f.session.Reload(context.Background())
	assert.EqualError(t, err, "disk on fire")
}

func TestEmptyTimetableRefusesEngine(t *testing.T) {
	f := newFixture(t, 0)
	f.src.payloads["2025-10-18"] = `{"name":"Empty","trains":[]}`

	_, err := f.session.Snapshot(context.Background())
	assert.ErrorIs(t, err, timetable.ErrEmptyTimetable)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TimetableLoads.WithLabelValues("empty")))
}

func TestInvalidTimetableCounted(t *testing.T) {
	f := newFixture(t, 0)
	f.src.payloads["2025-10-18"] = `{"trains":[{"trainNumber":"","direction":"northbound","stops":[]}]}`

	_, err := f.session.Snapshot(context.Background())
	assert.ErrorIs(t, err, timetable.ErrInvalidTimetable)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TimetableLoads.WithLabelValues("invalid")))
}

func TestAtDoesNotTouchClock(t *testing.T) {
	f := newFixture(t, 0)

	snap, err := f.session.At(context.Background(), 595)
	require.NoError(t, err)
	assert.Equal(t, "09:55", snap.Clock)
	assert.Equal(t, clock.Live, f.session.Clock().Mode())

	require.Len(t, snap.Statuses, 1)
	assert.Equal(t, tracker.AtStation, snap.Statuses[0].Position.Kind)
	assert.True(t, snap.Statuses[0].Position.WaitingForDeparture)
}

func TestTickRecordsAndPublishes(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.session.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, f.pub.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TicksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveTrains))
}

func TestStepSwitchesToManualAndStopsRefresh(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.session.Start(context.Background())
	require.Eventually(t, func() bool { return f.pub.count() >= 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, f.session.Status().Refreshing)

	st := f.session.Step(5)
	assert.Equal(t, clock.Manual, st.Mode)
	assert.Equal(t, "10:35", st.Label)
	assert.False(t, f.session.Status().Refreshing)
	assert.Equal(t, "10:35", f.pub.last().Clock)
	assert.Equal(t, "manual", f.pub.last().Mode)

	st = f.session.Step(-10)
	assert.Equal(t, "10:25", st.Label)

	st = f.session.Set(23*60 + 59)
	assert.Equal(t, "23:59", st.Label)
	st = f.session.Step(5)
	assert.Equal(t, "00:04", st.Label)
}

func TestGoLiveRestartsRefresh(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.session.Start(context.Background())
	f.session.Step(5)
	require.False(t, f.session.Status().Refreshing)

	st := f.session.GoLive()
	assert.Equal(t, clock.Live, st.Mode)
	assert.Equal(t, "10:30", st.Label)
	assert.True(t, f.session.Status().Refreshing)
	require.Eventually(t, func() bool { return f.pub.last().Mode == "live" }, time.Second, 5*time.Millisecond)
}

func TestStartInManualModeTicksOnce(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.session.Clock().Set(600)

	f.session.Start(context.Background())
	assert.Equal(t, 1, f.pub.count())
	assert.False(t, f.session.Status().Refreshing)
}

// advancingClock moves forward by step on every read.
type advancingClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func (c *advancingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

func TestSnapshotUsesDateOfItsInstant(t *testing.T) {
	late := `{"name":"Late","trains":[{"trainNumber":"DMU","direction":"southbound","stops":[
{"station":"Bridgnorth","departure":"23:30","stopsAt":true},
{"station":"Kidderminster","arrival":"23:59","stopsAt":true}]}]}`
	src := &stubSource{payloads: map[string]string{"2025-10-18": late}}
	wall := &advancingClock{next: time.Date(2025, time.October, 18, 23, 59, 54, 0, time.UTC), step: 12 * time.Second}

	s := New(Options{Clock: clock.NewSource(wall, time.UTC), Store: src})
	t.Cleanup(s.Close)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err, "an instant just before midnight evaluates against its own day")
	assert.Equal(t, "Late", snap.Timetable)
	assert.Equal(t, "23:59", snap.Clock)
	assert.Equal(t, 1, src.readCount())
}

func TestStartAndClockControlRunConcurrently(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.session.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			f.session.Step(5)
		}
	}()
	wg.Wait()

	assert.Equal(t, clock.Manual, f.session.Clock().Mode())
	assert.Positive(t, f.pub.count())
}
