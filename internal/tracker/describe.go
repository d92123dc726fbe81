package tracker

import (
	"fmt"
	"math"
	"strings"

	"svrlive.org/internal/timetable"
)

// Describe renders a one-line status for svc at pos. It is not ok for an
// Absent position.
func (e *Engine) Describe(svc *timetable.TrainService, pos Position, instant float64) (string, bool) {
	if svc == nil {
		return "", false
	}
	switch pos.Kind {
	case AtStation:
		return e.describeAtStation(svc, pos, instant), true
	case Between:
		return e.describeBetween(svc, pos, instant), true
	}
	return "", false
}

func (e *Engine) describeAtStation(svc *timetable.TrainService, pos Position, instant float64) string {
	if pos.WaitingForDeparture {
		start, _ := svc.StartTime()
		return fmt.Sprintf("Waiting at %s, departing at %s (departing in %s)",
			pos.Station, start, minutesUntil(start, instant))
	}

	if e.topo.IsTerminus(pos.Station) {
		if next := e.NextService(svc.TrainNumber, pos.Station, instant); next != nil {
			start, _ := next.StartTime()
			return fmt.Sprintf("Waiting at %s, next departure at %s (departing in %s)",
				pos.Station, start, minutesUntil(start, instant))
		}
		return fmt.Sprintf("Terminated at %s", pos.Station)
	}

	i := svc.StopIndex(pos.Station)
	if i >= 0 && i < len(svc.Stops)-1 && svc.Stops[i].Departure != nil {
		dep := *svc.Stops[i].Departure
		return fmt.Sprintf("At %s, departing at %s (in %s) → %s",
			pos.Station, dep, minutesUntil(dep, instant), svc.Stops[i+1].Station)
	}
	return fmt.Sprintf("At %s", pos.Station)
}

func (e *Engine) describeBetween(svc *timetable.TrainService, pos Position, instant float64) string {
	arrival := "arriving now"
	if n := wholeMinutes(pos.ArriveTime.Minutes() - instant); n != 0 {
		arrival = fmt.Sprintf("arriving %s in %s", pos.ArriveTime, pluralMinutes(n))
	}
	parts := []string{fmt.Sprintf("Traveling from %s (departed %s) → %s (%s)",
		pos.FromStation, pos.DepartTime, pos.ToStation, arrival)}

	for _, station := range e.topo.Between(pos.FromStation, pos.ToStation) {
		i := svc.StopIndex(station)
		if i < 0 || svc.Stops[i].StopsAt {
			continue
		}
		pass, ok := svc.Stops[i].EffectiveTime()
		if !ok {
			continue
		}
		if n := wholeMinutes(pass.Minutes() - instant); n > 0 {
			parts = append(parts, fmt.Sprintf("Passing %s in %s", station, pluralMinutes(n)))
		}
	}
	return strings.Join(parts, " • ")
}

func wholeMinutes(d float64) int {
	return int(math.Floor(d))
}

func minutesUntil(t timetable.TimeOfDay, instant float64) string {
	return pluralMinutes(wholeMinutes(t.Minutes() - instant))
}

func pluralMinutes(n int) string {
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}
