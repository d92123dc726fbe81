// Package gtfsimport turns one service day of a GTFS feed into a timetable.
package gtfsimport

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/OneBusAway/go-gtfs"

	"svrlive.org/internal/timetable"
)

// GTFS pickup_type / drop_off_type value for "no service at this stop".
const noPickupDropOff = 1

// ErrNoTrips means no trip of the feed runs on the requested day.
var ErrNoTrips = errors.New("no trips run on this date")

// Options controls the conversion.
type Options struct {
	// Name of the produced timetable. Defaults to "GTFS <date>".
	Name string
	// RouteID limits the conversion to one route.
	RouteID string
	// NorthTerminus is the stop name northbound trips end at. When empty,
	// trips ending where the first converted trip ends are southbound.
	NorthTerminus string
	Logger        *slog.Logger
}

// Parse reads a zipped feed.
func Parse(feed []byte) (*gtfs.Static, error) {
	static, err := gtfs.ParseStatic(feed, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse GTFS feed: %w", err)
	}
	return static, nil
}

// Convert builds the timetable of every trip running on date, ordered by
// first departure. Trips crossing midnight are skipped.
func Convert(static *gtfs.Static, date time.Time, opts Options) (*timetable.Timetable, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "gtfs_import"))

	name := opts.Name
	if name == "" {
		name = "GTFS " + date.Format(time.DateOnly)
	}
	tt := &timetable.Timetable{
		Name:   name,
		Date:   date.Format("Monday 2 January"),
		Trains: []timetable.TrainService{},
	}

	southEnd := ""
	skipped := 0
	for i := range static.Trips {
		trip := &static.Trips[i]
		if opts.RouteID != "" && (trip.Route == nil || trip.Route.Id != opts.RouteID) {
			continue
		}
		if trip.Service == nil || !runsOn(trip.Service, date) || len(trip.StopTimes) < 2 {
			continue
		}

		stopTimes := append([]gtfs.ScheduledStopTime(nil), trip.StopTimes...)
		sort.SliceStable(stopTimes, func(a, b int) bool {
			return stopTimes[a].StopSequence < stopTimes[b].StopSequence
		})

		stops, ok := convertStops(stopTimes)
		if !ok {
			skipped++
			continue
		}

		last := stops[len(stops)-1].Station
		dir := timetable.Southbound
		switch {
		case opts.NorthTerminus != "":
			if last == opts.NorthTerminus {
				dir = timetable.Northbound
			}
		case southEnd == "":
			southEnd = last
		case last != southEnd:
			dir = timetable.Northbound
		}

		tt.Trains = append(tt.Trains, timetable.TrainService{
			TrainNumber: trainNumber(trip),
			Direction:   dir,
			Stops:       stops,
		})
	}

	if skipped > 0 {
		logger.Warn("skipped trips crossing midnight", slog.Int("count", skipped))
	}
	if len(tt.Trains) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoTrips, date.Format(time.DateOnly))
	}

	sort.SliceStable(tt.Trains, func(a, b int) bool {
		sa, _ := tt.Trains[a].StartTime()
		sb, _ := tt.Trains[b].StartTime()
		return sa < sb
	})
	logger.Info("converted GTFS day",
		slog.String("date", date.Format(time.DateOnly)),
		slog.Int("trains", len(tt.Trains)))
	return tt, nil
}

func convertStops(stopTimes []gtfs.ScheduledStopTime) ([]timetable.Stop, bool) {
	stops := make([]timetable.Stop, 0, len(stopTimes))
	for i, st := range stopTimes {
		arr, okA := toTimeOfDay(st.ArrivalTime)
		dep, okD := toTimeOfDay(st.DepartureTime)
		if !okA || !okD {
			return nil, false
		}

		stop := timetable.Stop{
			Station: stationName(st.Stop),
			StopsAt: int(st.PickupType) != noPickupDropOff || int(st.DropOffType) != noPickupDropOff,
		}
		switch {
		case i == 0:
			stop.Departure = &dep
		case i == len(stopTimes)-1:
			stop.Arrival = &arr
		case !stop.StopsAt:
			stop.Time = &dep
		case arr != dep:
			stop.Arrival, stop.Departure = &arr, &dep
		default:
			stop.Departure = &dep
		}
		stops = append(stops, stop)
	}
	return stops, true
}

func toTimeOfDay(d time.Duration) (timetable.TimeOfDay, bool) {
	m := int(d / time.Minute)
	if m < 0 || m >= timetable.MinutesPerDay {
		return 0, false
	}
	return timetable.TimeOfDay(m), true
}

func stationName(s *gtfs.Stop) string {
	if s == nil {
		return ""
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Id
}

// trainNumber prefers the block, which identifies the unit across its
// workings of the day.
func trainNumber(trip *gtfs.ScheduledTrip) string {
	switch {
	case trip.BlockID != "":
		return trip.BlockID
	case trip.ShortName != "":
		return trip.ShortName
	case trip.Route != nil && trip.Route.ShortName != "":
		return trip.Route.ShortName
	}
	return trip.ID
}

func runsOn(svc *gtfs.Service, date time.Time) bool {
	for _, d := range svc.RemovedDates {
		if sameDay(d, date) {
			return false
		}
	}
	for _, d := range svc.AddedDates {
		if sameDay(d, date) {
			return true
		}
	}
	day := civil(date)
	if day.Before(civil(svc.StartDate)) || day.After(civil(svc.EndDate)) {
		return false
	}
	switch date.Weekday() {
	case time.Monday:
		return svc.Monday
	case time.Tuesday:
		return svc.Tuesday
	case time.Wednesday:
		return svc.Wednesday
	case time.Thursday:
		return svc.Thursday
	case time.Friday:
		return svc.Friday
	case time.Saturday:
		return svc.Saturday
	default:
		return svc.Sunday
	}
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return civil(a).Equal(civil(b))
}
