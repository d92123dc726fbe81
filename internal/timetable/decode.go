package timetable

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInvalidTimetable wraps every decoding and validation failure.
var ErrInvalidTimetable = errors.New("invalid timetable")

// Decode reads and validates a timetable payload. Stops without any time are
// accepted; the engine degrades around them instead of failing the day.
func Decode(r io.Reader) (*Timetable, error) {
	var tt Timetable
	if err := json.NewDecoder(r).Decode(&tt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTimetable, err)
	}
	if err := tt.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTimetable, err)
	}
	return &tt, nil
}

// Parse is Decode over a byte slice.
func Parse(data []byte) (*Timetable, error) {
	return Decode(bytes.NewReader(data))
}

func (t *Timetable) validate() error {
	if t.Trains == nil {
		return errors.New("missing trains")
	}
	for i := range t.Trains {
		svc := &t.Trains[i]
		if strings.TrimSpace(svc.TrainNumber) == "" {
			return fmt.Errorf("train %d: empty trainNumber", i)
		}
		if !svc.Direction.Valid() {
			return fmt.Errorf("train %d (%s): unknown direction %q", i, svc.TrainNumber, svc.Direction)
		}
		if len(svc.Stops) == 0 {
			return fmt.Errorf("train %d (%s): no stops", i, svc.TrainNumber)
		}
		for j, stop := range svc.Stops {
			if strings.TrimSpace(stop.Station) == "" {
				return fmt.Errorf("train %d (%s) stop %d: empty station", i, svc.TrainNumber, j)
			}
		}
	}
	return nil
}
