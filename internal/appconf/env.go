package appconf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// FromEnv loads .env if present and overlays the environment onto base.
func FromEnv(base Config) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return base, err
	}
	return ApplyEnv(base)
}

// ApplyEnv overlays SVRLIVE_* environment variables onto cfg.
func ApplyEnv(cfg Config) (Config, error) {
	var err error
	if v := os.Getenv("SVRLIVE_PORT"); v != "" {
		if cfg.Port, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("invalid SVRLIVE_PORT: %q", v)
		}
	}
	if v := os.Getenv("SVRLIVE_ENV"); v != "" {
		if cfg.Env, err = ParseEnvironment(v); err != nil {
			return cfg, err
		}
	}
	if v, ok := os.LookupEnv("SVRLIVE_API_KEYS"); ok {
		cfg.ApiKeys = ParseAPIKeys(v)
	}
	if v := os.Getenv("SVRLIVE_RATE_LIMIT"); v != "" {
		if cfg.RateLimit, err = strconv.Atoi(v); err != nil {
			return cfg, fmt.Errorf("invalid SVRLIVE_RATE_LIMIT: %q", v)
		}
	}
	if v := os.Getenv("SVRLIVE_BACKEND"); v != "" {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	setString(&cfg.TimetablesDir, os.Getenv("SVRLIVE_TIMETABLES_DIR"))
	setString(&cfg.ArchivePath, os.Getenv("SVRLIVE_ARCHIVE_PATH"))
	setString(&cfg.DatabaseURL, firstNonEmpty(os.Getenv("SVRLIVE_DATABASE_URL"), os.Getenv("DATABASE_URL")))
	setString(&cfg.RedisURL, os.Getenv("SVRLIVE_REDIS_URL"))
	setString(&cfg.Timezone, os.Getenv("SVRLIVE_TIMEZONE"))
	setString(&cfg.NATSURL, os.Getenv("SVRLIVE_NATS_URL"))
	setString(&cfg.NATSPrefix, os.Getenv("SVRLIVE_NATS_PREFIX"))
	if err := setDuration(&cfg.CacheTTL, "SVRLIVE_CACHE_TTL", os.Getenv("SVRLIVE_CACHE_TTL")); err != nil {
		return cfg, err
	}
	if err := setDuration(&cfg.RefreshInterval, "SVRLIVE_REFRESH_INTERVAL", os.Getenv("SVRLIVE_REFRESH_INTERVAL")); err != nil {
		return cfg, err
	}
	if v := os.Getenv("SVRLIVE_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
	if v := os.Getenv("SVRLIVE_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	return cfg, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
