package restapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"svrlive.org/internal/store"
)

const (
	msgNoTimetable    = "No timetable found for the current date"
	msgTimetableError = "An error occurred while retrieving the timetable"
	msgBadDate        = "Invalid date format. Use YYYY-MM-DD format."
)

// timetableHandler serves the raw timetable payload for ?date= (default:
// the evaluation clock's date).
func (api *RestAPI) timetableHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := api.requestDate(w, r)
	if !ok {
		return
	}
	debug := api.Config.Debug
	if v := r.URL.Query().Get("debug"); v != "" {
		debug, _ = strconv.ParseBool(v)
	}

	payload, err := api.Store.Timetable(r.Context(), date, debug)
	if errors.Is(err, store.ErrNotFound) {
		api.requestLogger(r).Warn("timetable not found", "date", date.Format(time.DateOnly))
		api.sendNotFound(w, r, msgNoTimetable)
		return
	}
	if err != nil {
		api.requestLogger(r).Error("error retrieving timetable", "date", date.Format(time.DateOnly), "error", err)
		api.sendError(w, r, http.StatusInternalServerError, msgTimetableError)
		return
	}
	api.sendRaw(w, r, http.StatusOK, payload)
}

// requestDate reads ?date=YYYY-MM-DD, writing a 400 when it is malformed.
func (api *RestAPI) requestDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return api.Clock.Date(), true
	}
	date, err := time.ParseInLocation(time.DateOnly, v, api.Clock.Location())
	if err != nil {
		api.badRequestResponse(w, r, msgBadDate)
		return time.Time{}, false
	}
	return date, true
}
