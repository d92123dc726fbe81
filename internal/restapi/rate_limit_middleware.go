package restapi

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"svrlive.org/internal/clock"
)

// idleClientTTL is how long a client may go unseen before its limiter is
// dropped.
const idleClientTTL = 10 * time.Minute

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimitMiddleware limits requests per client address. Requests carrying
// an exempt API key bypass the limiter.
type RateLimitMiddleware struct {
	limiters    map[string]*rateLimitClient
	mu          sync.RWMutex
	rateLimit   rate.Limit
	burstSize   int
	cleanupTick *time.Ticker
	exemptKeys  map[string]bool
	stopChan    chan struct{}
	stopOnce    sync.Once
	clock       clock.Clock
}

// NewRateLimitMiddleware allows ratePerSecond requests per interval per
// client, bursting up to ratePerSecond. Zero blocks everything and a
// negative rate disables limiting.
func NewRateLimitMiddleware(ratePerSecond int, interval time.Duration, exemptKeys []string, c clock.Clock) *RateLimitMiddleware {
	var limit rate.Limit
	switch {
	case ratePerSecond < 0:
		limit = rate.Inf
	case ratePerSecond == 0:
		limit = 0
	default:
		limit = rate.Every(interval / time.Duration(ratePerSecond))
	}
	if c == nil {
		c = clock.RealClock{}
	}

	exempt := make(map[string]bool)
	for _, key := range exemptKeys {
		if k := strings.TrimSpace(key); k != "" {
			exempt[k] = true
		}
	}

	rl := &RateLimitMiddleware{
		limiters:    make(map[string]*rateLimitClient),
		rateLimit:   limit,
		burstSize:   ratePerSecond,
		cleanupTick: time.NewTicker(5 * time.Minute),
		exemptKeys:  exempt,
		stopChan:    make(chan struct{}),
		clock:       c,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimitMiddleware) Handler() func(http.Handler) http.Handler {
	return rl.rateLimitHandler
}

func (rl *RateLimitMiddleware) getLimiter(client string) *rate.Limiter {
	now := rl.clock.Now().UnixNano()

	rl.mu.RLock()
	if c, ok := rl.limiters[client]; ok {
		c.lastSeen.Store(now)
		rl.mu.RUnlock()
		return c.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.limiters[client]; ok {
		c.lastSeen.Store(now)
		return c.limiter
	}
	c := &rateLimitClient{limiter: rate.NewLimiter(rl.rateLimit, rl.burstSize)}
	c.lastSeen.Store(now)
	rl.limiters[client] = c
	return c.limiter
}

func (rl *RateLimitMiddleware) rateLimitHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := requestAPIKey(r); key != "" && rl.exemptKeys[key] {
			next.ServeHTTP(w, r)
			return
		}
		if !rl.getLimiter(clientAddress(r)).Allow() {
			rl.sendRateLimitExceeded(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) sendRateLimitExceeded(w http.ResponseWriter) {
	retryAfter := time.Second
	switch rl.rateLimit {
	case 0:
		retryAfter = time.Hour
	case rate.Inf:
	default:
		if d := time.Duration(float64(time.Second) / float64(rl.rateLimit)); d > retryAfter {
			retryAfter = d
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burstSize))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: "Rate limit exceeded. Please try again later."}); err != nil {
		slog.Error("failed to encode rate limit response", "error", err)
	}
}

// cleanupOnce evicts limiters idle for longer than idleClientTTL.
func (rl *RateLimitMiddleware) cleanupOnce() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for client, c := range rl.limiters {
		if now.Sub(time.Unix(0, c.lastSeen.Load())) > idleClientTTL {
			delete(rl.limiters, client)
		}
	}
}

func (rl *RateLimitMiddleware) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanupOnce()
		case <-rl.stopChan:
			return
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call multiple times.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
		rl.cleanupTick.Stop()
	})
}

func requestAPIKey(r *http.Request) string {
	if key := r.URL.Query().Get("key"); key != "" {
		return key
	}
	return r.Header.Get("X-API-Key")
}

// clientAddress is the first X-Forwarded-For hop when present, else the
// remote host.
func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
