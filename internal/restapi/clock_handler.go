package restapi

import (
	"net/http"
	"strconv"

	"svrlive.org/internal/clock"
	"svrlive.org/internal/timetable"
)

// defaultStep is the size of one clock nudge.
const defaultStep = 5

func (api *RestAPI) clockHandler(w http.ResponseWriter, r *http.Request) {
	api.sendJSON(w, r, http.StatusOK, api.Clock.State())
}

// clockStepHandler nudges the clock by ?minutes= (default 5, may be
// negative), switching it to manual.
func (api *RestAPI) clockStepHandler(w http.ResponseWriter, r *http.Request) {
	delta := defaultStep
	if v := r.URL.Query().Get("minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < -clock.MinutesPerDay || n > clock.MinutesPerDay {
			api.badRequestResponse(w, r, "minutes must be an integer between -1440 and 1440")
			return
		}
		delta = n
	}
	api.sendJSON(w, r, http.StatusOK, api.Session.Step(delta))
}

func (api *RestAPI) clockLiveHandler(w http.ResponseWriter, r *http.Request) {
	api.sendJSON(w, r, http.StatusOK, api.Session.GoLive())
}

// clockSetHandler pins the clock to ?time=HH:MM.
func (api *RestAPI) clockSetHandler(w http.ResponseWriter, r *http.Request) {
	t, err := timetable.ParseTimeOfDay(r.URL.Query().Get("time"))
	if err != nil {
		api.badRequestResponse(w, r, "Invalid time format. Use HH:MM.")
		return
	}
	api.sendJSON(w, r, http.StatusOK, api.Session.Set(int(t)))
}
