// Package config loads the finboard YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Rishwanth-M/finboard/internal/fetch"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen        string         `yaml:"listen"`
	DashboardFile string         `yaml:"dashboard_file"`
	LogLevel      string         `yaml:"log_level"`
	Fetch         FetchConfig    `yaml:"fetch"`
	FetchLog      FetchLogConfig `yaml:"fetch_log"`
	Metrics       MetricsConfig  `yaml:"metrics"`
}

type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxBytes      int64         `yaml:"max_bytes"`
	UserAgent     string        `yaml:"user_agent"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

// FetchLogConfig locates the SQLite fetch log. An empty path disables it.
type FetchLogConfig struct {
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.DashboardFile == "" {
		c.DashboardFile = "finboard.json"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.MaxBytes == 0 {
		c.Fetch.MaxBytes = 10 << 20
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "finboard/1.0"
	}
	if c.Fetch.DefaultTTL == 0 {
		c.Fetch.DefaultTTL = time.Minute
	}
	if c.Fetch.Burst == 0 {
		c.Fetch.Burst = 1
	}
}

func (c *Config) validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative")
	}
	if c.Fetch.MaxBytes < 0 {
		return fmt.Errorf("fetch.max_bytes must not be negative")
	}
	if c.Fetch.DefaultTTL < 0 {
		return fmt.Errorf("fetch.default_ttl must not be negative")
	}
	if c.Fetch.RatePerSecond < 0 {
		return fmt.Errorf("fetch.rate_per_second must not be negative")
	}
	if c.Fetch.Burst < 0 {
		return fmt.Errorf("fetch.burst must not be negative")
	}
	return nil
}

// Gateway converts the fetch section into gateway settings.
func (c *Config) Gateway() fetch.Config {
	return fetch.Config{
		Timeout:       c.Fetch.Timeout,
		MaxBytes:      c.Fetch.MaxBytes,
		UserAgent:     c.Fetch.UserAgent,
		DefaultTTL:    c.Fetch.DefaultTTL,
		RatePerSecond: c.Fetch.RatePerSecond,
		Burst:         c.Fetch.Burst,
	}
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level %q: want debug, info, warn or error", s)
}
