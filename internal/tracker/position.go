// Package tracker infers where every train is at an instant from the
// schedule alone, picks one representative run per train number, and
// projects the result onto the station axis.
package tracker

import (
	"encoding/json"

	"svrlive.org/internal/timetable"
)

// Kind tags a Position.
type Kind int

const (
	Absent Kind = iota
	AtStation
	Between
)

func (k Kind) String() string {
	switch k {
	case AtStation:
		return "at_station"
	case Between:
		return "between"
	default:
		return "absent"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Position is where a service is at one instant. Only the fields of its
// Kind are meaningful.
type Position struct {
	Kind Kind

	// AtStation
	Station             string
	WaitingForDeparture bool

	// Between
	FromStation string
	ToStation   string
	Progress    float64
	DepartTime  timetable.TimeOfDay
	ArriveTime  timetable.TimeOfDay
}

func absent() Position {
	return Position{Kind: Absent}
}

func atStation(station string, waiting bool) Position {
	return Position{Kind: AtStation, Station: station, WaitingForDeparture: waiting}
}

func between(from, to string, progress float64, depart, arrive timetable.TimeOfDay) Position {
	return Position{
		Kind:        Between,
		FromStation: from,
		ToStation:   to,
		Progress:    progress,
		DepartTime:  depart,
		ArriveTime:  arrive,
	}
}

type atStationJSON struct {
	Type                Kind   `json:"type"`
	Station             string `json:"station"`
	WaitingForDeparture bool   `json:"waitingForDeparture"`
}

type betweenJSON struct {
	Type        Kind                `json:"type"`
	FromStation string              `json:"fromStation"`
	ToStation   string              `json:"toStation"`
	Progress    float64             `json:"progress"`
	DepartTime  timetable.TimeOfDay `json:"departTime"`
	ArriveTime  timetable.TimeOfDay `json:"arriveTime"`
}

func (p Position) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case AtStation:
		return json.Marshal(atStationJSON{p.Kind, p.Station, p.WaitingForDeparture})
	case Between:
		return json.Marshal(betweenJSON{p.Kind, p.FromStation, p.ToStation, p.Progress, p.DepartTime, p.ArriveTime})
	default:
		return json.Marshal(struct {
			Type Kind `json:"type"`
		}{p.Kind})
	}
}
