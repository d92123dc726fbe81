package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	result := c.Now()
	after := time.Now()

	assert.False(t, result.Before(before), "RealClock.Now() should not be before the call")
	assert.False(t, result.After(after), "RealClock.Now() should not be after the call")
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2025, 10, 18, 8, 30, 0, 0, time.UTC)
	c := NewMockClock(fixedTime)

	assert.Equal(t, fixedTime, c.Now())
	assert.Equal(t, fixedTime, c.Now())
}

func TestMockClock_Set(t *testing.T) {
	initialTime := time.Date(2025, 10, 18, 8, 0, 0, 0, time.UTC)
	newTime := time.Date(2025, 12, 26, 12, 0, 0, 0, time.UTC)

	c := NewMockClock(initialTime)
	c.Set(newTime)
	assert.Equal(t, newTime, c.Now())
}

func TestMockClock_Advance(t *testing.T) {
	c := NewMockClock(time.Date(2025, 10, 18, 8, 0, 0, 0, time.UTC))

	c.Advance(1 * time.Hour)
	assert.Equal(t, time.Date(2025, 10, 18, 9, 0, 0, 0, time.UTC), c.Now())

	c.Advance(-30 * time.Minute)
	assert.Equal(t, time.Date(2025, 10, 18, 8, 30, 0, 0, time.UTC), c.Now())
}

func TestMockClock_ConcurrentAccess(t *testing.T) {
	c := NewMockClock(time.Date(2025, 10, 18, 8, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Now()
		}()
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Date(2025, 10, 18, 8, 1, 40, 0, time.UTC), c.Now())
}

func TestMockClock_SetTimeOfDay(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("tzdata not available")
	}
	c := NewMockClock(time.Date(2025, 12, 26, 8, 15, 42, 0, london))

	c.SetTimeOfDay(13, 5)
	assert.Equal(t, time.Date(2025, 12, 26, 13, 5, 0, 0, london), c.Now())

	src := NewSource(c, london)
	assert.Equal(t, "13:05", Label(src.Now()))
}
