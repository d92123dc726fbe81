// Package timetable holds the typed form of a day's timetable and derives
// the station axis every board is drawn against.
package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay bounds every TimeOfDay.
const MinutesPerDay = 24 * 60

// Direction of travel as scheduled.
type Direction string

const (
	Northbound Direction = "northbound"
	Southbound Direction = "southbound"
)

// Valid reports whether d is one of the two scheduled directions.
func (d Direction) Valid() bool {
	return d == Northbound || d == Southbound
}

// TimeOfDay is minutes since midnight, in [0, MinutesPerDay).
type TimeOfDay int

// ParseTimeOfDay parses a 24-hour "HH:MM" clock string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("time %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("time %q: hour out of range", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("time %q: minute out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// String formats t as zero-padded "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Minutes returns t as a fractional instant.
func (t TimeOfDay) Minutes() float64 {
	return float64(t)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.String())), nil
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Stop is one station call (or pass) of a service.
type Stop struct {
	Station   string     `json:"station"`
	Arrival   *TimeOfDay `json:"arrival,omitempty"`
	Departure *TimeOfDay `json:"departure,omitempty"`
	Time      *TimeOfDay `json:"time,omitempty"`
	StopsAt   bool       `json:"stopsAt"`
}

// EffectiveTime is departure, else arrival, else time. The outbound side
// governs a stop that has both.
func (s Stop) EffectiveTime() (TimeOfDay, bool) {
	switch {
	case s.Departure != nil:
		return *s.Departure, true
	case s.Arrival != nil:
		return *s.Arrival, true
	case s.Time != nil:
		return *s.Time, true
	}
	return 0, false
}

// DepartTime is the time a train leaves this stop.
func (s Stop) DepartTime() (TimeOfDay, bool) {
	if s.Departure != nil {
		return *s.Departure, true
	}
	return s.EffectiveTime()
}

// ArriveTime is the time a train reaches this stop.
func (s Stop) ArriveTime() (TimeOfDay, bool) {
	if s.Arrival != nil {
		return *s.Arrival, true
	}
	return s.EffectiveTime()
}

// Dwell reports the scheduled wait window when the stop has both an
// arrival and a departure.
func (s Stop) Dwell() (arrive, depart TimeOfDay, ok bool) {
	if s.Arrival == nil || s.Departure == nil {
		return 0, 0, false
	}
	return *s.Arrival, *s.Departure, true
}

// TrainService is one scheduled run. TrainNumber identifies the unit and is
// shared by every run that unit makes in a day.
type TrainService struct {
	TrainNumber string    `json:"trainNumber"`
	Direction   Direction `json:"direction"`
	Stops       []Stop    `json:"stops"`
}

// First returns the origin stop.
func (s *TrainService) First() Stop {
	return s.Stops[0]
}

// Last returns the destination stop.
func (s *TrainService) Last() Stop {
	return s.Stops[len(s.Stops)-1]
}

// StartTime is the effective time of the origin stop.
func (s *TrainService) StartTime() (TimeOfDay, bool) {
	if len(s.Stops) == 0 {
		return 0, false
	}
	return s.First().EffectiveTime()
}

// EndTime is the effective time of the destination stop.
func (s *TrainService) EndTime() (TimeOfDay, bool) {
	if len(s.Stops) == 0 {
		return 0, false
	}
	return s.Last().EffectiveTime()
}

// StopIndex returns the index of the first stop at station, or -1.
func (s *TrainService) StopIndex(station string) int {
	for i := range s.Stops {
		if s.Stops[i].Station == station {
			return i
		}
	}
	return -1
}

// Timetable is the whole day. It is never mutated after decoding.
type Timetable struct {
	Name   string         `json:"name,omitempty"`
	Date   string         `json:"date,omitempty"`
	Trains []TrainService `json:"trains"`
}

// TrainNumbers returns the distinct train numbers in first-seen order.
func (t *Timetable) TrainNumbers() []string {
	seen := make(map[string]bool, len(t.Trains))
	var numbers []string
	for i := range t.Trains {
		n := t.Trains[i].TrainNumber
		if !seen[n] {
			seen[n] = true
			numbers = append(numbers, n)
		}
	}
	return numbers
}
