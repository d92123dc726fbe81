package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresherRunsImmediatelyAndPeriodically(t *testing.T) {
	var calls atomic.Int32
	r := NewRefresher(5*time.Millisecond, func(context.Context) { calls.Add(1) })
	r.Start(context.Background())
	defer r.Stop()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, r.Running())
}

func TestRefresherRestartKeepsSingleLoop(t *testing.T) {
	var live, maxLive atomic.Int32
	r := NewRefresher(time.Millisecond, func(ctx context.Context) {
		n := live.Add(1)
		for {
			m := maxLive.Load()
			if n <= m || maxLive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(100 * time.Microsecond)
		live.Add(-1)
	})
	r.Start(context.Background())
	for range 20 {
		r.Restart()
	}
	r.Stop()

	assert.Equal(t, int32(1), maxLive.Load())
	assert.False(t, r.Running())
}

func TestRefresherStopIsIdempotent(t *testing.T) {
	r := NewRefresher(time.Millisecond, func(context.Context) {})
	r.Stop()
	r.Start(context.Background())
	r.Stop()
	r.Stop()
	assert.False(t, r.Running())
}

func TestRefresherDisabledWithoutInterval(t *testing.T) {
	var calls atomic.Int32
	r := NewRefresher(0, func(context.Context) { calls.Add(1) })
	r.Start(context.Background())
	assert.False(t, r.Running())
	assert.Equal(t, int32(0), calls.Load())
}

func TestRefresherStopsWithParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	r := NewRefresher(time.Millisecond, func(context.Context) { calls.Add(1) })
	r.Start(ctx)
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)

	cancel()
	r.Stop()
	n := calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, calls.Load())

	r.Restart()
	assert.False(t, r.Running())
}
