package clock

import (
	"fmt"
	"sync"
	"time"
)

// MinutesPerDay is the length of the evaluation axis.
const MinutesPerDay = 24 * 60

// Mode selects where Source reads its instant from.
type Mode string

const (
	Live   Mode = "live"
	Manual Mode = "manual"
)

// State is a point-in-time view of a Source, safe to serialize.
type State struct {
	Mode    Mode    `json:"mode"`
	Minutes float64 `json:"minutes"`
	Label   string  `json:"label"`
	// Date is the service day Minutes belongs to, taken from the same
	// wall-clock read.
	Date time.Time `json:"date"`
}

// Source is the process-wide evaluation clock. In Live mode it follows wall
// time in its location; in Manual mode it holds a fixed minute of the day
// until stepped, set, or switched back to live.
type Source struct {
	mu     sync.Mutex
	clock  Clock
	loc    *time.Location
	mode   Mode
	manual int
}

// NewSource starts a Source in Live mode. A nil location means UTC.
func NewSource(c Clock, loc *time.Location) *Source {
	if c == nil {
		c = RealClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Source{clock: c, loc: loc, mode: Live}
}

// Now returns the evaluation instant in fractional minutes since midnight.
// Callers read it once per tick and reuse the value.
func (s *Source) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowLocked()
}

func (s *Source) nowLocked() float64 {
	return s.readLocked(s.clock.Now().In(s.loc))
}

func (s *Source) readLocked(wall time.Time) float64 {
	if s.mode == Manual {
		return float64(s.manual)
	}
	return WallMinutes(wall)
}

// Date is the wall-clock calendar day in the source's location. Manual mode
// only moves the time of day, never the date.
func (s *Source) Date() time.Time {
	return s.day(s.clock.Now().In(s.loc))
}

func (s *Source) day(wall time.Time) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(), 0, 0, 0, 0, s.loc)
}

// Location returns the zone wall time is read in.
func (s *Source) Location() *time.Location {
	return s.loc
}

// Step moves the manual time by delta minutes, wrapping around midnight.
// A live source is first pinned to the current wall minute.
func (s *Source) Step(delta int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == Live {
		s.manual = int(WallMinutes(s.clock.Now().In(s.loc)))
		s.mode = Manual
	}
	s.manual = wrap(s.manual + delta)
	return s.stateLocked()
}

// Set pins the source to a minute of the day.
func (s *Source) Set(minutes int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = Manual
	s.manual = wrap(minutes)
	return s.stateLocked()
}

// GoLive resynchronizes to wall time.
func (s *Source) GoLive() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = Live
	return s.stateLocked()
}

// Mode reports the current mode.
func (s *Source) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// State returns mode, instant, label and date from one wall-clock read.
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Source) stateLocked() State {
	wall := s.clock.Now().In(s.loc)
	now := s.readLocked(wall)
	return State{Mode: s.mode, Minutes: now, Label: Label(now), Date: s.day(wall)}
}

// WallMinutes converts t to fractional minutes since its local midnight.
func WallMinutes(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60 + float64(t.Nanosecond())/float64(time.Minute)
}

// Label formats an instant as "HH:MM", dropping seconds.
func Label(minutes float64) string {
	m := wrap(int(minutes))
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func wrap(m int) int {
	m %= MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return m
}
