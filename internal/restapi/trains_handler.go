package restapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"svrlive.org/internal/store"
	"svrlive.org/internal/timetable"
)

type SearchCriteria struct {
	TrainNumber string `json:"train_number,omitempty"`
	Direction   string `json:"direction,omitempty"`
	Station     string `json:"station,omitempty"`
}

type TrainsResponse struct {
	Date           string                   `json:"date"`
	SearchCriteria SearchCriteria           `json:"search_criteria"`
	TotalResults   int                      `json:"total_results"`
	Trains         []timetable.TrainService `json:"trains"`
}

// trainsHandler searches one day's services. train_number matches as a
// case-insensitive substring; direction and station match whole values
// case-insensitively.
func (api *RestAPI) trainsHandler(w http.ResponseWriter, r *http.Request) {
	date, ok := api.requestDate(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	criteria := SearchCriteria{
		TrainNumber: strings.TrimSpace(q.Get("train_number")),
		Direction:   strings.TrimSpace(q.Get("direction")),
		Station:     strings.TrimSpace(q.Get("station")),
	}
	if criteria.Direction != "" && !timetable.Direction(strings.ToLower(criteria.Direction)).Valid() {
		api.badRequestResponse(w, r, "direction must be northbound or southbound")
		return
	}

	tt, err := store.Load(r.Context(), api.Store, date, false)
	if errors.Is(err, store.ErrNotFound) {
		api.sendNotFound(w, r, fmt.Sprintf("No timetable found for %s", date.Format(time.DateOnly)))
		return
	}
	if err != nil {
		api.requestLogger(r).Error("error searching trains", "date", date.Format(time.DateOnly), "error", err)
		api.sendError(w, r, http.StatusInternalServerError, msgTimetableError)
		return
	}

	trains := filterTrains(tt.Trains, criteria)
	api.sendJSON(w, r, http.StatusOK, TrainsResponse{
		Date:           date.Format(time.DateOnly),
		SearchCriteria: criteria,
		TotalResults:   len(trains),
		Trains:         trains,
	})
}

func filterTrains(all []timetable.TrainService, c SearchCriteria) []timetable.TrainService {
	needle := strings.ToLower(c.TrainNumber)
	out := make([]timetable.TrainService, 0, len(all))
	for _, svc := range all {
		if needle != "" && !strings.Contains(strings.ToLower(svc.TrainNumber), needle) {
			continue
		}
		if c.Direction != "" && !strings.EqualFold(string(svc.Direction), c.Direction) {
			continue
		}
		if c.Station != "" && !callsAt(svc, c.Station) {
			continue
		}
		out = append(out, svc)
	}
	return out
}

func callsAt(svc timetable.TrainService, station string) bool {
	for _, stop := range svc.Stops {
		if strings.EqualFold(stop.Station, station) {
			return true
		}
	}
	return false
}
