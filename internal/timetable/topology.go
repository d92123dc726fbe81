package timetable

import (
	"errors"
	"slices"
)

// ErrEmptyTimetable means there is no service to derive a station axis from.
var ErrEmptyTimetable = errors.New("timetable has no train services")

// Topology is the ordered station axis for one timetable. Index 0 is the
// terminus southbound services start from.
type Topology []string

// ExtractTopology derives the axis from the service with the most stops,
// assuming it calls at or passes every station on the line. The first such
// service wins ties. A northbound sample is reversed so the orientation does
// not depend on which service was picked.
func ExtractTopology(tt *Timetable) (Topology, error) {
	if tt == nil || len(tt.Trains) == 0 {
		return nil, ErrEmptyTimetable
	}

	longest := &tt.Trains[0]
	for i := 1; i < len(tt.Trains); i++ {
		if len(tt.Trains[i].Stops) > len(longest.Stops) {
			longest = &tt.Trains[i]
		}
	}

	stations := make(Topology, len(longest.Stops))
	for i, stop := range longest.Stops {
		stations[i] = stop.Station
	}
	if longest.Direction == Northbound {
		slices.Reverse(stations)
	}
	return stations, nil
}

// Index returns the position of station on the axis, or -1.
func (t Topology) Index(station string) int {
	for i, s := range t {
		if s == station {
			return i
		}
	}
	return -1
}

// IsTerminus reports whether station is at either end of the axis.
func (t Topology) IsTerminus(station string) bool {
	if len(t) == 0 {
		return false
	}
	return station == t[0] || station == t[len(t)-1]
}

// Between lists the stations strictly between from and to, ordered from
// from towards to. Unknown stations yield nil.
func (t Topology) Between(from, to string) []string {
	fi, ti := t.Index(from), t.Index(to)
	if fi < 0 || ti < 0 {
		return nil
	}
	var out []string
	if fi < ti {
		for i := fi + 1; i < ti; i++ {
			out = append(out, t[i])
		}
		return out
	}
	for i := fi - 1; i > ti; i-- {
		out = append(out, t[i])
	}
	return out
}
