// Package store retrieves raw timetable payloads for a service day. Every
// backend resolves a date through a per-year schedule of dd-MMM keys and
// never falls back to a default timetable.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"svrlive.org/internal/timetable"
)

// ErrNotFound means no timetable is scheduled for the requested day.
var ErrNotFound = errors.New("no timetable found for date")

// DebugTimetable is the name of the timetable served in debug mode.
const DebugTimetable = "debug"

// ScheduleFile is the per-year date to timetable mapping.
const ScheduleFile = "schedule.json"

// ScheduleEntry maps one day key ("18-Oct") to a timetable name.
type ScheduleEntry struct {
	Date      string `json:"date"`
	Timetable string `json:"timetable"`
}

// Source is a timetable backend.
type Source interface {
	// Timetable returns the raw JSON payload for date. Debug mode ignores
	// the date and returns the debug timetable.
	Timetable(ctx context.Context, date time.Time, debug bool) ([]byte, error)
	// Schedule returns the schedule for year, or nil when there is none.
	Schedule(ctx context.Context, year int) ([]ScheduleEntry, error)
	// Available lists timetables as "<year>/<name>.json".
	Available(ctx context.Context) ([]string, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Archive is a backend timetables can be written into.
type Archive interface {
	PutTimetable(ctx context.Context, year int, name string, payload []byte) error
	PutSchedule(ctx context.Context, year int, entries []ScheduleEntry) error
}

// DateKey formats date the way schedules key it.
func DateKey(date time.Time) string {
	return date.Format("02-Jan")
}

// ParseDateKey resolves a schedule key within year. Keys match
// case-insensitively.
func ParseDateKey(year int, key string) (time.Time, error) {
	day, month, ok := strings.Cut(strings.TrimSpace(key), "-")
	if !ok || len(month) < 3 {
		return time.Time{}, fmt.Errorf("invalid schedule date %q", key)
	}
	month = strings.ToUpper(month[:1]) + strings.ToLower(month[1:])
	t, err := time.Parse("2-Jan-2006", fmt.Sprintf("%s-%s-%d", day, month, year))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule date %q: %w", key, err)
	}
	return t, nil
}

// Lookup finds the timetable name scheduled for date.
func Lookup(entries []ScheduleEntry, date time.Time) (string, bool) {
	key := DateKey(date)
	for _, e := range entries {
		if strings.EqualFold(e.Date, key) && strings.TrimSpace(e.Timetable) != "" {
			return e.Timetable, true
		}
	}
	return "", false
}

// Load fetches and decodes the timetable for date.
func Load(ctx context.Context, src Source, date time.Time, debug bool) (*timetable.Timetable, error) {
	payload, err := src.Timetable(ctx, date, debug)
	if err != nil {
		return nil, err
	}
	return timetable.Parse(payload)
}

// AvailableDates lists the scheduled days of year as YYYY-MM-DD, sorted.
// Malformed keys are skipped.
func AvailableDates(ctx context.Context, src Source, year int) ([]string, error) {
	entries, err := src.Schedule(ctx, year)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		t, err := ParseDateKey(year, e.Date)
		if err != nil {
			continue
		}
		dates = append(dates, t.Format(time.DateOnly))
	}
	sort.Strings(dates)
	return dates, nil
}

// Copy writes every timetable and schedule of src into dst.
func Copy(ctx context.Context, src Source, dst Archive) (int, error) {
	names, err := src.Available(ctx)
	if err != nil {
		return 0, fmt.Errorf("list timetables: %w", err)
	}

	copied := 0
	years := map[int]bool{}
	for _, rel := range names {
		year, name, err := splitAvailable(rel)
		if err != nil {
			return copied, err
		}
		years[year] = true

		payload, err := readNamed(ctx, src, year, name)
		if err != nil {
			return copied, fmt.Errorf("read %s: %w", rel, err)
		}
		if err := dst.PutTimetable(ctx, year, name, payload); err != nil {
			return copied, fmt.Errorf("write %s: %w", rel, err)
		}
		copied++
	}

	debug, err := src.Timetable(ctx, time.Time{}, true)
	switch {
	case err == nil:
		if err := dst.PutTimetable(ctx, 0, DebugTimetable, debug); err != nil {
			return copied, fmt.Errorf("write debug timetable: %w", err)
		}
		copied++
	case !errors.Is(err, ErrNotFound):
		return copied, fmt.Errorf("read debug timetable: %w", err)
	}

	for year := range years {
		entries, err := src.Schedule(ctx, year)
		if err != nil {
			return copied, fmt.Errorf("read schedule %d: %w", year, err)
		}
		if entries == nil {
			continue
		}
		if err := dst.PutSchedule(ctx, year, entries); err != nil {
			return copied, fmt.Errorf("write schedule %d: %w", year, err)
		}
	}
	return copied, nil
}

// namedReader is implemented by backends that can fetch a timetable by
// name rather than by date.
type namedReader interface {
	Named(ctx context.Context, year int, name string) ([]byte, error)
}

func readNamed(ctx context.Context, src Source, year int, name string) ([]byte, error) {
	nr, ok := src.(namedReader)
	if !ok {
		return nil, fmt.Errorf("%T cannot read timetables by name", src)
	}
	return nr.Named(ctx, year, name)
}

func splitAvailable(rel string) (int, string, error) {
	yearPart, file, ok := strings.Cut(rel, "/")
	if !ok {
		return 0, "", fmt.Errorf("unexpected timetable path %q", rel)
	}
	var year int
	if _, err := fmt.Sscanf(yearPart, "%d", &year); err != nil {
		return 0, "", fmt.Errorf("unexpected timetable path %q: %w", rel, err)
	}
	return year, strings.TrimSuffix(file, ".json"), nil
}

func availableName(year int, name string) string {
	return fmt.Sprintf("%d/%s.json", year, name)
}

// Store is a Source that can also be written to.
type Store interface {
	Source
	Archive
}

// Register saves payload under name and schedules it on date, replacing
// any existing entry for that day.
func Register(ctx context.Context, st Store, date time.Time, name string, payload []byte) error {
	if err := st.PutTimetable(ctx, date.Year(), name, payload); err != nil {
		return fmt.Errorf("store timetable %s: %w", name, err)
	}
	entries, err := st.Schedule(ctx, date.Year())
	if err != nil {
		return fmt.Errorf("read schedule %d: %w", date.Year(), err)
	}
	key := DateKey(date)
	updated := make([]ScheduleEntry, 0, len(entries)+1)
	for _, e := range entries {
		if !strings.EqualFold(e.Date, key) {
			updated = append(updated, e)
		}
	}
	updated = append(updated, ScheduleEntry{Date: key, Timetable: name})
	if err := st.PutSchedule(ctx, date.Year(), updated); err != nil {
		return fmt.Errorf("write schedule %d: %w", date.Year(), err)
	}
	return nil
}
