package session

import (
	"context"
	"sync"
	"time"
)

// Refresher runs fn immediately and then on every interval until stopped.
// Restart cancels the running loop and waits for it before starting a new
// one, so at most one loop is ever live.
type Refresher struct {
	interval time.Duration
	fn       func(context.Context)

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRefresher(interval time.Duration, fn func(context.Context)) *Refresher {
	return &Refresher{interval: interval, fn: fn}
}

// Start records parent as the lifetime of every loop and starts the first.
func (r *Refresher) Start(parent context.Context) {
	r.mu.Lock()
	r.parent = parent
	r.mu.Unlock()
	r.Restart()
}

// Restart stops any running loop and starts a fresh one.
func (r *Refresher) Restart() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	if r.interval <= 0 || r.fn == nil {
		return
	}
	parent := r.parent
	if parent == nil {
		parent = context.Background()
	}
	if parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.fn(ctx)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.fn(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// Running reports whether a loop is active.
func (r *Refresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Refresher) stopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.wg.Wait()
}
