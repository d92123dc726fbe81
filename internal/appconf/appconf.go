// Package appconf holds runtime configuration for the svrlive binaries.
package appconf

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Environment is the deployment environment.
type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// ParseEnvironment accepts "development", "test", or "production".
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "development", "dev":
		return Development, nil
	case "test":
		return Test, nil
	case "production", "prod":
		return Production, nil
	}
	return Development, fmt.Errorf("unknown environment %q", s)
}

// Backend selects where timetables are read from.
type Backend string

const (
	BackendFiles    Backend = "files"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Config is the resolved runtime configuration.
type Config struct {
	Port      int
	Env       Environment
	ApiKeys   []string // guard clock control when non-empty
	Verbose   bool
	RateLimit int // requests per second per client

	Backend       Backend
	TimetablesDir string
	ArchivePath   string
	DatabaseURL   string
	RedisURL      string
	CacheTTL      time.Duration

	Timezone        string
	RefreshInterval time.Duration
	Debug           bool

	NATSURL    string
	NATSPrefix string
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:            4000,
		Env:             Development,
		RateLimit:       100,
		Backend:         BackendFiles,
		TimetablesDir:   "Timetables",
		CacheTTL:        10 * time.Minute,
		Timezone:        "Europe/London",
		RefreshInterval: 30 * time.Second,
		NATSPrefix:      "svrlive",
	}
}

// ParseAPIKeys splits a comma separated key list, trimming each key.
func ParseAPIKeys(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	keys := strings.Split(s, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}
	return keys
}

// Location resolves Timezone, defaulting to UTC when empty.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate-limit must not be negative, got %d", c.RateLimit))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("refresh-interval must be positive"))
	}
	switch c.Backend {
	case BackendFiles:
		if c.TimetablesDir == "" {
			errs = append(errs, errors.New("timetables-dir is required for the files backend"))
		}
	case BackendSQLite:
		if c.ArchivePath == "" {
			errs = append(errs, errors.New("archive-path is required for the sqlite backend"))
		}
		if c.Env == Test && c.ArchivePath != ":memory:" {
			errs = append(errs, fmt.Errorf("test archive must use in-memory storage, got path: %s", c.ArchivePath))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database-url is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
