package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"svrlive.org/internal/logging"
)

// FileSource reads timetables from a directory laid out as
//
//	<base>/debug.json
//	<base>/<year>/schedule.json
//	<base>/<year>/<timetable>.json
//
// Payloads and schedules are cached after the first successful read.
type FileSource struct {
	base   string
	logger *slog.Logger

	mu         sync.RWMutex
	timetables map[string][]byte
	schedules  map[int][]ScheduleEntry
}

// NewFileSource creates a FileSource rooted at base.
func NewFileSource(base string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		base:       base,
		logger:     logger.With(slog.String("component", "file_store")),
		timetables: make(map[string][]byte),
		schedules:  make(map[int][]ScheduleEntry),
	}
}

// Base returns the root directory.
func (s *FileSource) Base() string {
	return s.base
}

func (s *FileSource) Timetable(ctx context.Context, date time.Time, debug bool) ([]byte, error) {
	if debug {
		path := filepath.Join(s.base, DebugTimetable+".json")
		if !fileExists(path) {
			s.logger.Warn("debug timetable missing", slog.String("path", path))
			return nil, fmt.Errorf("%w: debug timetable", ErrNotFound)
		}
		return s.loadAndCache(path)
	}

	schedule, err := s.Schedule(ctx, date.Year())
	if err != nil {
		return nil, err
	}
	name, ok := Lookup(schedule, date)
	if !ok {
		s.logger.Info("no schedule entry", slog.String("date", date.Format(time.DateOnly)))
		return nil, fmt.Errorf("%w %s", ErrNotFound, date.Format(time.DateOnly))
	}
	return s.Named(ctx, date.Year(), name)
}

// Named returns the timetable file <year>/<name>.json.
func (s *FileSource) Named(_ context.Context, year int, name string) ([]byte, error) {
	path := filepath.Join(s.base, strconv.Itoa(year), name+".json")
	if year == 0 && name == DebugTimetable {
		path = filepath.Join(s.base, DebugTimetable+".json")
	}
	if !fileExists(path) {
		s.logger.Warn("scheduled timetable file not found", slog.String("path", path))
		return nil, fmt.Errorf("%w: %s", ErrNotFound, availableName(year, name))
	}
	return s.loadAndCache(path)
}

func (s *FileSource) loadAndCache(path string) ([]byte, error) {
	s.mu.RLock()
	cached, ok := s.timetables[path]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timetable %s: %w", path, err)
	}
	if !json.Valid(content) {
		logging.LogError(s.logger, "invalid JSON in timetable file", errors.New("malformed payload"),
			slog.String("path", path))
		return nil, fmt.Errorf("invalid JSON in timetable file %s", path)
	}

	s.mu.Lock()
	s.timetables[path] = content
	s.mu.Unlock()
	return content, nil
}

// Schedule returns the year's schedule. A missing or unreadable schedule
// yields nil, which resolves every day of that year to ErrNotFound.
func (s *FileSource) Schedule(_ context.Context, year int) ([]ScheduleEntry, error) {
	s.mu.RLock()
	cached, ok := s.schedules[year]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	path := filepath.Join(s.base, strconv.Itoa(year), ScheduleFile)
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("no schedule for year", slog.Int("year", year))
		return nil, nil
	}
	if err != nil {
		logging.LogError(s.logger, "error loading schedule", err, slog.Int("year", year))
		return nil, nil
	}

	var entries []ScheduleEntry
	if err := json.Unmarshal(content, &entries); err != nil {
		logging.LogError(s.logger, "error parsing schedule", err, slog.Int("year", year))
		return nil, nil
	}

	s.mu.Lock()
	s.schedules[year] = entries
	s.mu.Unlock()
	s.logger.Info("loaded schedule", slog.Int("year", year), slog.Int("entries", len(entries)))
	return entries, nil
}

func (s *FileSource) Available(_ context.Context) ([]string, error) {
	dirs, err := os.ReadDir(s.base)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("timetables base directory not found", slog.String("path", s.base))
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.base, err)
	}

	names := []string{}
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.base, dir.Name()))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", dir.Name(), err)
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.EqualFold(filepath.Ext(name), ".json") || strings.EqualFold(name, ScheduleFile) {
				continue
			}
			names = append(names, dir.Name()+"/"+name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Ping checks the base directory is present.
func (s *FileSource) Ping(_ context.Context) error {
	info, err := os.Stat(s.base)
	if err != nil {
		return fmt.Errorf("timetables directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("timetables directory: %s is not a directory", s.base)
	}
	return nil
}

// PutTimetable writes a timetable file and drops any cached copy.
func (s *FileSource) PutTimetable(_ context.Context, year int, name string, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("invalid JSON for timetable %s", availableName(year, name))
	}
	dir := filepath.Join(s.base, strconv.Itoa(year))
	path := filepath.Join(dir, name+".json")
	if year == 0 && name == DebugTimetable {
		dir, path = s.base, filepath.Join(s.base, DebugTimetable+".json")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.timetables, path)
	s.mu.Unlock()
	return nil
}

// PutSchedule replaces a year's schedule file.
func (s *FileSource) PutSchedule(_ context.Context, year int, entries []ScheduleEntry) error {
	dir := filepath.Join(s.base, strconv.Itoa(year))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ScheduleFile), content, 0o644); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.schedules, year)
	s.mu.Unlock()
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
