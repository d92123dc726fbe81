package restapi

import (
	"errors"
	"net/http"

	"svrlive.org/internal/store"
	"svrlive.org/internal/timetable"
	"svrlive.org/internal/tracker"
)

// boardHandler returns the snapshot at the evaluation clock, or at ?time=HH:MM
// without moving the clock.
func (api *RestAPI) boardHandler(w http.ResponseWriter, r *http.Request) {
	var (
		snap tracker.Snapshot
		err  error
	)
	if v := r.URL.Query().Get("time"); v != "" {
		t, perr := timetable.ParseTimeOfDay(v)
		if perr != nil {
			api.badRequestResponse(w, r, "Invalid time format. Use HH:MM.")
			return
		}
		snap, err = api.Session.At(r.Context(), t.Minutes())
	} else {
		snap, err = api.Session.Snapshot(r.Context())
	}

	switch {
	case err == nil:
		api.sendJSON(w, r, http.StatusOK, snap)
	case errors.Is(err, store.ErrNotFound):
		api.sendNotFound(w, r, msgNoTimetable)
	case errors.Is(err, timetable.ErrEmptyTimetable):
		api.sendError(w, r, http.StatusUnprocessableEntity, "Timetable has no train services")
	default:
		api.requestLogger(r).Error("error building board", "error", err)
		api.sendError(w, r, http.StatusInternalServerError, msgTimetableError)
	}
}
