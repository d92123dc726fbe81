// Package clock supplies the instant every board is evaluated at. Clock
// abstracts wall time so tests can pin it; Source layers the operator's
// live/manual mode on top.
package clock

import (
	"sync"
	"time"
)

// Clock is the wall-time reader behind a Source.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a settable wall clock for tests. It is safe for concurrent
// use, so handlers under test can read it while the test moves it.
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set jumps to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// SetTimeOfDay keeps the current date and location and moves to hh:mm:00.
func (m *MockClock) SetTimeOfDay(hh, mm int) {
	m.mu.Lock()
	y, mo, d := m.now.Date()
	m.now = time.Date(y, mo, d, hh, mm, 0, 0, m.now.Location())
	m.mu.Unlock()
}

// Advance moves the clock by d, which may be negative.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
