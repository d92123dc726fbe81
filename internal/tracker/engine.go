package tracker

import (
	"svrlive.org/internal/timetable"
)

const (
	// PreDepartureWindow is how long before its start a service is shown
	// waiting at its origin terminus.
	PreDepartureWindow = 15.0
	// PostArrivalGrace is how long a finished service with no onward
	// working stays at its destination.
	PostArrivalGrace = 15.0
)

// Engine evaluates one immutable timetable. It holds no per-tick state;
// every method takes the instant as an argument.
type Engine struct {
	tt       *timetable.Timetable
	topo     timetable.Topology
	palette  Palette
	byNumber map[string][]int
}

// NewEngine derives the station axis and indexes services by train number.
func NewEngine(tt *timetable.Timetable) (*Engine, error) {
	topo, err := timetable.ExtractTopology(tt)
	if err != nil {
		return nil, err
	}
	byNumber := make(map[string][]int)
	for i := range tt.Trains {
		n := tt.Trains[i].TrainNumber
		byNumber[n] = append(byNumber[n], i)
	}
	return &Engine{
		tt:       tt,
		topo:     topo,
		palette:  NewPalette(tt.TrainNumbers()),
		byNumber: byNumber,
	}, nil
}

// Timetable returns the timetable the engine was built from.
func (e *Engine) Timetable() *timetable.Timetable {
	return e.tt
}

// Topology returns the station axis.
func (e *Engine) Topology() timetable.Topology {
	return e.topo
}

// Palette returns the per-train colour assignment.
func (e *Engine) Palette() Palette {
	return e.palette
}

// Infer places svc at instant (fractional minutes since midnight).
func (e *Engine) Infer(svc *timetable.TrainService, instant float64) Position {
	if svc == nil || len(svc.Stops) == 0 {
		return absent()
	}
	start, okStart := svc.StartTime()
	end, okEnd := svc.EndTime()
	if !okStart || !okEnd {
		return absent()
	}
	first, last := svc.First(), svc.Last()

	if instant < start.Minutes() {
		if e.topo.IsTerminus(first.Station) && instant >= start.Minutes()-PreDepartureWindow {
			return atStation(first.Station, true)
		}
		return absent()
	}

	if instant > end.Minutes() {
		if e.NextService(svc.TrainNumber, last.Station, instant) != nil {
			return atStation(last.Station, false)
		}
		if instant <= end.Minutes()+PostArrivalGrace {
			return atStation(last.Station, false)
		}
		return absent()
	}

	for i := 0; i < len(svc.Stops)-1; i++ {
		from, to := svc.Stops[i], svc.Stops[i+1]
		depart, okDep := from.DepartTime()
		arrive, okArr := to.ArriveTime()
		if okDep && okArr && instant >= depart.Minutes() && instant <= arrive.Minutes() {
			return between(from.Station, to.Station, progress(instant, depart, arrive), depart, arrive)
		}
		if arr, dep, ok := from.Dwell(); ok && instant >= arr.Minutes() && instant < dep.Minutes() {
			return atStation(from.Station, false)
		}
	}
	return atStation(last.Station, false)
}

func progress(instant float64, depart, arrive timetable.TimeOfDay) float64 {
	if instant == depart.Minutes() {
		return 0
	}
	p := (instant - depart.Minutes()) / (arrive.Minutes() - depart.Minutes())
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// NextService returns the earliest service of trainNumber that starts from
// fromStation strictly after the given instant, or nil.
func (e *Engine) NextService(trainNumber, fromStation string, after float64) *timetable.TrainService {
	var next *timetable.TrainService
	var nextStart timetable.TimeOfDay
	for _, i := range e.byNumber[trainNumber] {
		svc := &e.tt.Trains[i]
		if svc.First().Station != fromStation {
			continue
		}
		start, ok := svc.StartTime()
		if !ok || start.Minutes() <= after {
			continue
		}
		if next == nil || start < nextStart {
			next, nextStart = svc, start
		}
	}
	return next
}

// Resolve infers every service at instant and keeps one per train number.
func (e *Engine) Resolve(instant float64) []Active {
	candidates := make([]Active, 0, len(e.tt.Trains))
	for i := range e.tt.Trains {
		svc := &e.tt.Trains[i]
		pos := e.Infer(svc, instant)
		if pos.Kind == Absent {
			continue
		}
		candidates = append(candidates, Active{Service: svc, Position: pos})
	}
	return Select(instant, candidates)
}
