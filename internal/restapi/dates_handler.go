package restapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"svrlive.org/internal/store"
)

type DatesResponse struct {
	AvailableDates map[string][]string `json:"available_dates"`
	TotalDates     int                 `json:"total_dates"`
}

// datesHandler lists scheduled days grouped by year. ?year= restricts the
// listing to one year.
func (api *RestAPI) datesHandler(w http.ResponseWriter, r *http.Request) {
	var years []int
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			api.badRequestResponse(w, r, "year must be a positive integer")
			return
		}
		years = []int{y}
	} else {
		var err error
		if years, err = api.knownYears(r); err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
	}

	resp := DatesResponse{AvailableDates: make(map[string][]string)}
	for _, y := range years {
		dates, err := store.AvailableDates(r.Context(), api.Store, y)
		if err != nil {
			api.serverErrorResponse(w, r, err)
			return
		}
		if len(dates) == 0 {
			continue
		}
		resp.AvailableDates[strconv.Itoa(y)] = dates
		resp.TotalDates += len(dates)
	}
	api.sendJSON(w, r, http.StatusOK, resp)
}

// knownYears derives the years that hold timetables from the store listing.
func (api *RestAPI) knownYears(r *http.Request) ([]int, error) {
	available, err := api.Store.Available(r.Context())
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var years []int
	for _, rel := range available {
		prefix, _, ok := strings.Cut(rel, "/")
		if !ok {
			continue
		}
		y, err := strconv.Atoi(prefix)
		if err != nil || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}
