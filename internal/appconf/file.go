package appconf

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of a config file. YAML and JSON are both
// accepted.
type FileConfig struct {
	Port            int      `yaml:"port"`
	Env             string   `yaml:"env"`
	ApiKeys         []string `yaml:"api-keys"`
	Verbose         bool     `yaml:"verbose"`
	RateLimit       *int     `yaml:"rate-limit"`
	Backend         string   `yaml:"backend"`
	TimetablesDir   string   `yaml:"timetables-dir"`
	ArchivePath     string   `yaml:"archive-path"`
	DatabaseURL     string   `yaml:"database-url"`
	RedisURL        string   `yaml:"redis-url"`
	CacheTTL        string   `yaml:"cache-ttl"`
	Timezone        string   `yaml:"timezone"`
	RefreshInterval string   `yaml:"refresh-interval"`
	Debug           bool     `yaml:"debug"`
	NATSURL         string   `yaml:"nats-url"`
	NATSPrefix      string   `yaml:"nats-prefix"`
}

// LoadFromFile reads and validates a config file.
func LoadFromFile(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := fc.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := fc.ToAppConfig().Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &fc, nil
}

func (fc *FileConfig) validate() error {
	if _, err := ParseEnvironment(fc.Env); err != nil {
		return err
	}
	var d time.Duration
	if err := setDuration(&d, "cache-ttl", fc.CacheTTL); err != nil {
		return err
	}
	return setDuration(&d, "refresh-interval", fc.RefreshInterval)
}

// ToAppConfig overlays the file onto Default. Call it on a FileConfig
// returned by LoadFromFile; unparseable values are left at their defaults.
func (fc *FileConfig) ToAppConfig() Config {
	cfg := Default()
	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	cfg.Env, _ = ParseEnvironment(fc.Env)
	if fc.ApiKeys != nil {
		cfg.ApiKeys = fc.ApiKeys
	}
	cfg.Verbose = fc.Verbose
	if fc.RateLimit != nil {
		cfg.RateLimit = *fc.RateLimit
	}
	if fc.Backend != "" {
		cfg.Backend = Backend(fc.Backend)
	}
	setString(&cfg.TimetablesDir, fc.TimetablesDir)
	setString(&cfg.ArchivePath, fc.ArchivePath)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.RedisURL, fc.RedisURL)
	setString(&cfg.Timezone, fc.Timezone)
	setString(&cfg.NATSURL, fc.NATSURL)
	setString(&cfg.NATSPrefix, fc.NATSPrefix)
	_ = setDuration(&cfg.CacheTTL, "cache-ttl", fc.CacheTTL)
	_ = setDuration(&cfg.RefreshInterval, "refresh-interval", fc.RefreshInterval)
	cfg.Debug = fc.Debug
	return cfg
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = d
	return nil
}
