package restapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"svrlive.org/internal/app"
	"svrlive.org/internal/appconf"
	"svrlive.org/internal/clock"
	"svrlive.org/internal/metrics"
	"svrlive.org/internal/session"
	"svrlive.org/internal/store"
)

const greenTimetable = `{
  "name": "Green Timetable",
  "date": "Saturday 18 October",
  "trains": [
    {"trainNumber": "Steam 75069", "direction": "northbound", "stops": [
      {"station": "Kidderminster", "departure": "10:00", "stopsAt": true},
      {"station": "Bewdley", "arrival": "10:15", "departure": "10:20", "stopsAt": true},
      {"station": "Bridgnorth", "arrival": "11:05", "stopsAt": true}
    ]},
    {"trainNumber": "DMU", "direction": "southbound", "stops": [
      {"station": "Bridgnorth", "departure": "11:30", "stopsAt": true},
      {"station": "Kidderminster", "arrival": "12:30", "stopsAt": true}
    ]}
  ]
}`

const debugTimetable = `{"name":"Debug","trains":[{"trainNumber":"Test","direction":"southbound","stops":[{"station":"A","departure":"09:00","stopsAt":true},{"station":"B","arrival":"09:30","stopsAt":true}]}]}`

type testEnv struct {
	api     *RestAPI
	wall    *clock.MockClock
	base    string
	metrics *metrics.Metrics
	handler http.Handler
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// createTestApi wires a full API over a temp timetable tree. The wall clock
// starts at 10:30 UTC on 18 Oct 2025, a scheduled day.
func createTestApi(t *testing.T, configure ...func(*appconf.Config)) *testEnv {
	t.Helper()

	base := t.TempDir()
	writeTestFile(t, filepath.Join(base, "debug.json"), debugTimetable)
	writeTestFile(t, filepath.Join(base, "2025", "schedule.json"),
		`[{"date":"18-Oct","timetable":"green"},{"date":"20-oct","timetable":"broken"}]`)
	writeTestFile(t, filepath.Join(base, "2025", "green.json"), greenTimetable)
	writeTestFile(t, filepath.Join(base, "2025", "broken.json"), `{"trains": [`)

	cfg := appconf.Default()
	cfg.Env = appconf.Test
	cfg.TimetablesDir = base
	cfg.Timezone = "UTC"
	for _, fn := range configure {
		fn(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wall := clock.NewMockClock(time.Date(2025, time.October, 18, 10, 30, 0, 0, time.UTC))
	src := clock.NewSource(wall, time.UTC)
	st := store.NewFileSource(base, logger)
	m := metrics.New()
	t.Cleanup(m.Shutdown)

	sess := session.New(session.Options{
		Clock:   src,
		Store:   st,
		Metrics: m,
		Logger:  logger,
	})
	t.Cleanup(sess.Close)

	api := NewRestAPI(&app.Application{
		Config:  cfg,
		Logger:  logger,
		Clock:   src,
		Store:   st,
		Session: sess,
		Metrics: m,
	})
	api.wall = wall
	t.Cleanup(api.Shutdown)

	mux := http.NewServeMux()
	api.SetRoutes(mux)
	return &testEnv{api: api, wall: wall, base: base, metrics: m, handler: api.WithMiddleware(mux)}
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
