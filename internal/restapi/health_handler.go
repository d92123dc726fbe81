package restapi

import (
	"errors"
	"net/http"
	"time"

	"svrlive.org/internal/logging"
	"svrlive.org/internal/session"
)

const (
	serviceName    = "SevernValleyTimetable"
	serviceVersion = "1.0.0"
)

type HealthChecks struct {
	TimetableService string `json:"timetableService"`
	FileSystem       string `json:"fileSystem"`
}

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status              string          `json:"status"`
	Timestamp           time.Time       `json:"timestamp"`
	Service             string          `json:"service"`
	Version             string          `json:"version"`
	TimetablesAvailable int             `json:"timetablesAvailable"`
	Checks              HealthChecks    `json:"checks"`
	Error               string          `json:"error,omitempty"`
	Session             *session.Status `json:"session,omitempty"`
}

// healthHandler checks the timetable store is reachable and can list
// timetables. It returns 503 when either fails.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Timestamp: api.wall.Now().UTC(),
		Service:   serviceName,
		Version:   serviceVersion,
	}

	err := api.checkStore(r)
	if err != nil {
		logging.LogError(api.requestLogger(r), "health check failed", err)
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		resp.Checks = HealthChecks{TimetableService: "error", FileSystem: "error"}
		api.sendJSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}

	available, err := api.Store.Available(r.Context())
	if err != nil {
		logging.LogError(api.requestLogger(r), "health check failed", err)
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		resp.Checks = HealthChecks{TimetableService: "error", FileSystem: "error"}
		api.sendJSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Status = "healthy"
	resp.TimetablesAvailable = len(available)
	resp.Checks = HealthChecks{TimetableService: "ok", FileSystem: "ok"}
	if api.Session != nil {
		st := api.Session.Status()
		resp.Session = &st
	}
	api.sendJSON(w, r, http.StatusOK, resp)
}

func (api *RestAPI) checkStore(r *http.Request) error {
	if api.Application == nil || api.Store == nil {
		return errors.New("timetable store not initialized")
	}
	return api.Store.Ping(r.Context())
}
