package tracker

import (
	"svrlive.org/internal/timetable"
)

// Status is the per-train line shown beside the board.
type Status struct {
	TrainNumber string              `json:"trainNumber"`
	Direction   timetable.Direction `json:"direction"`
	Color       string              `json:"color"`
	Icon        string              `json:"icon"`
	Text        string              `json:"text"`
	Position    Position            `json:"position"`
}

// Snapshot is everything a client needs to draw one tick.
type Snapshot struct {
	Timetable string   `json:"timetable,omitempty"`
	Date      string   `json:"date,omitempty"`
	Instant   float64  `json:"instant"`
	Clock     string   `json:"clock"`
	Mode      string   `json:"mode,omitempty"`
	Stations  []string `json:"stations"`
	Board     Board    `json:"board"`
	Statuses  []Status `json:"statuses"`
}

// Snapshot resolves, lays out, and describes every train at one instant.
func (e *Engine) Snapshot(instant float64, clockLabel string) Snapshot {
	actives := e.Resolve(instant)

	statuses := make([]Status, 0, len(actives))
	for _, a := range actives {
		text, ok := e.Describe(a.Service, a.Position, instant)
		if !ok {
			continue
		}
		n := a.Service.TrainNumber
		statuses = append(statuses, Status{
			TrainNumber: n,
			Direction:   a.Service.Direction,
			Color:       e.palette.Color(n),
			Icon:        Icon(n),
			Text:        text,
			Position:    a.Position,
		})
	}

	return Snapshot{
		Timetable: e.tt.Name,
		Date:      e.tt.Date,
		Instant:   instant,
		Clock:     clockLabel,
		Stations:  append([]string(nil), e.topo...),
		Board:     Layout(e.topo, e.palette, actives),
		Statuses:  statuses,
	}
}
