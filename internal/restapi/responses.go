package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"svrlive.org/internal/logging"
	"svrlive.org/internal/metrics"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func setJSONResponseType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
}

func (api *RestAPI) sendJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendRaw(w, r, code, body)
}

// sendRaw writes an already encoded JSON payload.
func (api *RestAPI) sendRaw(w http.ResponseWriter, r *http.Request, code int, body []byte) {
	setJSONResponseType(w)
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		api.requestLogger(r).Debug("failed to write response", slog.String("error", err.Error()))
	}
}

func (api *RestAPI) sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	api.sendJSON(w, r, code, ErrorResponse{Error: message})
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request, message string) {
	api.sendError(w, r, http.StatusNotFound, message)
}

func (api *RestAPI) sendUnauthorized(w http.ResponseWriter, r *http.Request) {
	api.sendError(w, r, http.StatusUnauthorized, "permission denied")
}

func (api *RestAPI) badRequestResponse(w http.ResponseWriter, r *http.Request, message string) {
	api.sendError(w, r, http.StatusBadRequest, message)
}

func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(api.requestLogger(r), "request failed", err,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	setJSONResponseType(w)
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "internal server error"})
}

func (api *RestAPI) logger() *slog.Logger {
	if api.Application != nil && api.Logger != nil {
		return api.Logger
	}
	return slog.Default()
}

func (api *RestAPI) requestLogger(r *http.Request) *slog.Logger {
	if r != nil {
		if l := logging.FromContext(r.Context()); l != slog.Default() {
			return l
		}
	}
	return api.logger()
}

func (api *RestAPI) metricsOrNil() *metrics.Metrics {
	if api.Application == nil {
		return nil
	}
	return api.Metrics
}
