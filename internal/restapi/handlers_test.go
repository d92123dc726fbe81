package restapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svrlive.org/internal/appconf"
	"svrlive.org/internal/clock"
)

func TestTimetableHandler(t *testing.T) {
	env := createTestApi(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
		wantCache  string
	}{
		{
			name:       "current date",
			target:     "/api/timetable",
			wantStatus: http.StatusOK,
			wantBody:   "Green Timetable",
			wantCache:  "public, max-age=300",
		},
		{
			name:       "explicit date",
			target:     "/api/timetable?date=2025-10-18",
			wantStatus: http.StatusOK,
			wantBody:   "Steam 75069",
			wantCache:  "public, max-age=300",
		},
		{
			name:       "debug timetable",
			target:     "/api/timetable?debug=true",
			wantStatus: http.StatusOK,
			wantBody:   `"name":"Debug"`,
			wantCache:  "public, max-age=300",
		},
		{
			name:       "unscheduled date",
			target:     "/api/timetable?date=2025-10-19",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"No timetable found for the current date"}`,
			wantCache:  "no-cache, no-store, must-revalidate",
		},
		{
			name:       "broken timetable file",
			target:     "/api/timetable?date=2025-10-20",
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"An error occurred while retrieving the timetable"}`,
			wantCache:  "no-cache, no-store, must-revalidate",
		},
		{
			name:       "malformed date",
			target:     "/api/timetable?date=18/10/2025",
			wantStatus: http.StatusBadRequest,
			wantBody:   "YYYY-MM-DD",
			wantCache:  "no-cache, no-store, must-revalidate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantCache, rec.Header().Get("Cache-Control"))
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestHealthHandlerReturnsHealthy(t *testing.T) {
	env := createTestApi(t)

	rec := env.do(t, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "SevernValleyTimetable", resp.Service)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.Equal(t, 2, resp.TimetablesAvailable)
	assert.Equal(t, HealthChecks{TimetableService: "ok", FileSystem: "ok"}, resp.Checks)
	assert.True(t, resp.Timestamp.Equal(time.Date(2025, time.October, 18, 10, 30, 0, 0, time.UTC)))
	require.NotNil(t, resp.Session)
	assert.Equal(t, "2025-10-18", resp.Session.Date)
	assert.Empty(t, resp.Error)
}

func TestHealthHandlerReportsMissingDirectory(t *testing.T) {
	env := createTestApi(t)
	require.NoError(t, os.RemoveAll(env.base))

	rec := env.do(t, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, HealthChecks{TimetableService: "error", FileSystem: "error"}, resp.Checks)
	assert.Contains(t, resp.Error, "timetables directory")
}

func TestHealthHandlerWithNilApplication(t *testing.T) {
	api := &RestAPI{wall: clock.RealClock{}}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	api.healthHandler(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "timetable store not initialized", resp.Error)
}

func TestBoardHandlerLive(t *testing.T) {
	env := createTestApi(t)

	rec := env.do(t, http.MethodGet, "/api/board")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	snap := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "10:30", snap["clock"])
	assert.Equal(t, "live", snap["mode"])
	assert.Equal(t, []any{"Bridgnorth", "Bewdley", "Kidderminster"}, snap["stations"])

	statuses := snap["statuses"].([]any)
	require.Len(t, statuses, 1)
	steam := statuses[0].(map[string]any)
	assert.Equal(t, "Steam 75069", steam["trainNumber"])
	assert.Equal(t, "between", steam["position"].(map[string]any)["type"])
}

func TestBoardHandlerTimeOverrideLeavesClockAlone(t *testing.T) {
	env := createTestApi(t)

	rec := env.do(t, http.MethodGet, "/api/board?time=11:20")
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "11:20", snap["clock"])
	assert.Len(t, snap["statuses"], 2)

	assert.Equal(t, clock.Live, env.api.Clock.Mode())
}

func TestBoardHandlerErrors(t *testing.T) {
	env := createTestApi(t)

	rec := env.do(t, http.MethodGet, "/api/board?time=25:00")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.wall.Advance(24 * time.Hour)
	rec = env.do(t, http.MethodGet, "/api/board")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No timetable found for the current date"}`, rec.Body.String())

	env.wall.Advance(24 * time.Hour)
	rec = env.do(t, http.MethodGet, "/api/board")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClockHandlers(t *testing.T) {
	env := createTestApi(t)

	state := decodeBody[clock.State](t, env.do(t, http.MethodGet, "/api/clock"))
	assert.Equal(t, clock.Live, state.Mode)
	assert.Equal(t, "10:30", state.Label)

	steps := []struct {
		method string
		target string
		status int
		label  string
		mode   clock.Mode
	}{
		{http.MethodPost, "/api/clock/step", http.StatusOK, "10:35", clock.Manual},
		{http.MethodPost, "/api/clock/step?minutes=-10", http.StatusOK, "10:25", clock.Manual},
		{http.MethodPost, "/api/clock/set?time=23:59", http.StatusOK, "23:59", clock.Manual},
		{http.MethodPost, "/api/clock/step?minutes=5", http.StatusOK, "00:04", clock.Manual},
		{http.MethodPost, "/api/clock/live", http.StatusOK, "10:30", clock.Live},
	}
	for _, s := range steps {
		rec := env.do(t, s.method, s.target)
		require.Equal(t, s.status, rec.Code, s.target)
		state := decodeBody[clock.State](t, rec)
		assert.Equal(t, s.label, state.Label, s.target)
		assert.Equal(t, s.mode, state.Mode, s.target)
	}
}

func TestClockHandlersRejectBadInput(t *testing.T) {
	env := createTestApi(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/clock/step?minutes=five").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/clock/step?minutes=5000").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/clock/set?time=noon").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodGet, "/api/clock/step").Code)
	assert.Equal(t, clock.Live, env.api.Clock.Mode())
}

func TestClockControlRequiresKeyWhenConfigured(t *testing.T) {
	env := createTestApi(t, func(c *appconf.Config) { c.ApiKeys = []string{"signal-box"} })

	rec := env.do(t, http.MethodPost, "/api/clock/step")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"permission denied"}`, rec.Body.String())
	assert.Equal(t, clock.Live, env.api.Clock.Mode())

	rec = env.do(t, http.MethodPost, "/api/clock/step?key=signal-box")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/clock").Code)
}

func TestDatesHandler(t *testing.T) {
	env := createTestApi(t)

	rec := env.do(t, http.MethodGet, "/api/dates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available_dates":{"2025":["2025-10-18","2025-10-20"]},"total_dates":2}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/dates?year=2030")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available_dates":{},"total_dates":0}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/dates?year=next").Code)
}

func TestTrainsHandler(t *testing.T) {
	env := createTestApi(t)

	tests := []struct {
		name   string
		query  string
		want   []string
		status int
	}{
		{name: "no filters", query: "", want: []string{"Steam 75069", "DMU"}, status: http.StatusOK},
		{name: "number substring", query: "&train_number=steam", want: []string{"Steam 75069"}, status: http.StatusOK},
		{name: "direction any case", query: "&direction=SOUTHBOUND", want: []string{"DMU"}, status: http.StatusOK},
		{name: "station", query: "&station=bewdley", want: []string{"Steam 75069"}, status: http.StatusOK},
		{name: "no match", query: "&station=Highley", want: []string{}, status: http.StatusOK},
		{name: "bad direction", query: "&direction=eastbound", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/trains?date=2025-10-18"+tt.query)
			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				return
			}
			resp := decodeBody[TrainsResponse](t, rec)
			assert.Equal(t, "2025-10-18", resp.Date)
			assert.Equal(t, len(tt.want), resp.TotalResults)
			got := make([]string, 0, len(resp.Trains))
			for _, svc := range resp.Trains {
				got = append(got, svc.TrainNumber)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	rec := env.do(t, http.MethodGet, "/api/trains?date=2025-10-19")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No timetable found for 2025-10-19"}`, rec.Body.String())
}
