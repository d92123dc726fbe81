package tracker

import (
	"svrlive.org/internal/timetable"
)

// Active is a service together with its position at one instant.
type Active struct {
	Service  *timetable.TrainService
	Position Position
}

// Running reports whether instant lies within the service's own run.
func (a Active) Running(instant float64) bool {
	start, okS := a.Service.StartTime()
	end, okE := a.Service.EndTime()
	return okS && okE && instant >= start.Minutes() && instant <= end.Minutes()
}

// Finished reports whether the service's last stop is behind instant.
func (a Active) Finished(instant float64) bool {
	end, ok := a.Service.EndTime()
	return ok && instant > end.Minutes()
}

// Select keeps at most one candidate per train number, in first-seen order.
// Absent candidates are dropped.
func Select(instant float64, candidates []Active) []Active {
	held := make(map[string]int)
	var out []Active
	for _, c := range candidates {
		if c.Service == nil || c.Position.Kind == Absent {
			continue
		}
		n := c.Service.TrainNumber
		idx, seen := held[n]
		if !seen {
			held[n] = len(out)
			out = append(out, c)
			continue
		}
		if prefer(instant, out[idx], c) {
			out[idx] = c
		}
	}
	return out
}

// prefer reports whether cand should replace cur. Anything not covered by a
// rule keeps cur.
func prefer(instant float64, cur, cand Active) bool {
	curRun, candRun := cur.Running(instant), cand.Running(instant)
	switch {
	case candRun && !curRun:
		return true
	case curRun && !candRun:
		return false
	case curRun && candRun:
		return cand.Position.Kind == Between && cur.Position.Kind == AtStation
	}

	curDone, candDone := cur.Finished(instant), cand.Finished(instant)
	switch {
	case candDone && !curDone:
		return true
	case curDone && candDone:
		curEnd, _ := cur.Service.EndTime()
		candEnd, _ := cand.Service.EndTime()
		return candEnd > curEnd
	}
	return false
}
