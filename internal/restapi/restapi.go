package restapi

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"svrlive.org/internal/app"
	"svrlive.org/internal/clock"
)

// Cache tiers in seconds.
const (
	cacheNone      = 0
	cacheShort     = 30
	cacheTimetable = 300
)

// RestAPI serves the JSON endpoints.
type RestAPI struct {
	*app.Application
	wall        clock.Clock
	rateLimiter *RateLimitMiddleware
}

func NewRestAPI(app *app.Application) *RestAPI {
	wall := clock.Clock(clock.RealClock{})
	rateLimit := 100
	var exempt []string
	if app != nil {
		rateLimit = app.Config.RateLimit
		exempt = app.Config.ApiKeys
	}
	return &RestAPI{
		Application: app,
		wall:        wall,
		rateLimiter: NewRateLimitMiddleware(rateLimit, time.Second, exempt, wall),
	}
}

// SetRoutes registers every API route on mux.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/timetable", CacheControlMiddleware(cacheTimetable, http.HandlerFunc(api.timetableHandler)))
	mux.Handle("GET /api/health", CacheControlMiddleware(cacheNone, http.HandlerFunc(api.healthHandler)))
	mux.Handle("GET /api/board", CacheControlMiddleware(cacheNone, http.HandlerFunc(api.boardHandler)))
	mux.Handle("GET /api/clock", CacheControlMiddleware(cacheNone, http.HandlerFunc(api.clockHandler)))
	mux.Handle("POST /api/clock/step", CacheControlMiddleware(cacheNone, api.requireKey(api.clockStepHandler)))
	mux.Handle("POST /api/clock/live", CacheControlMiddleware(cacheNone, api.requireKey(api.clockLiveHandler)))
	mux.Handle("POST /api/clock/set", CacheControlMiddleware(cacheNone, api.requireKey(api.clockSetHandler)))
	mux.Handle("GET /api/dates", CacheControlMiddleware(cacheTimetable, http.HandlerFunc(api.datesHandler)))
	mux.Handle("GET /api/trains", CacheControlMiddleware(cacheShort, http.HandlerFunc(api.trainsHandler)))
}

// WithMiddleware wraps the whole mux. Metrics sit inside every middleware
// that replaces the request so r.Pattern is visible once the mux has run.
func (api *RestAPI) WithMiddleware(next http.Handler) http.Handler {
	m := api.metricsOrNil()
	var h http.Handler = gzhttp.GzipHandler(next)
	h = api.rateLimiter.Handler()(h)
	h = CORSMiddleware(h)
	h = MetricsHandler(m)(h)
	h = NewRequestLoggingMiddleware(api.logger())(h)
	return RequestIDMiddleware(h)
}

// Shutdown stops background work owned by the API.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}

func (api *RestAPI) requireKey(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.Application == nil || api.RequestHasInvalidAPIKey(r) {
			api.sendUnauthorized(w, r)
			return
		}
		h(w, r)
	})
}
