// SPDX-License-Identifier: MIT

// Package config loads daemon configuration with ENV > file > defaults
// precedence. The file format is strict YAML; unknown fields are rejected.
package config

import (
	"fmt"
	"time"

	"github.com/pagetap/pagetap/internal/capture"
)

// Config is the effective daemon configuration after merging.
type Config struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// SpoolDir, when set, enables server-side artifact spooling.
	SpoolDir string `yaml:"spool_dir"`

	// PollInterval is the media discovery poll cadence inside a session.
	PollInterval time.Duration `yaml:"poll_interval"`

	// FlushInterval is the recorder chunk flush cadence.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Quality is the default capture quality applied when a start request
	// does not carry its own settings.
	Quality capture.QualitySettings `yaml:"quality"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Version is set from the binary, never from file or environment.
	Version string `yaml:"-"`
}

// RateLimitConfig bounds API request rates per client IP.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// fileConfig mirrors Config with pointer fields so the merge can tell
// "absent" from "zero value".
type fileConfig struct {
	ListenAddr    *string        `yaml:"listen_addr"`
	LogLevel      *string        `yaml:"log_level"`
	SpoolDir      *string        `yaml:"spool_dir"`
	PollInterval  *time.Duration `yaml:"poll_interval"`
	FlushInterval *time.Duration `yaml:"flush_interval"`
	Quality       *struct {
		SampleRate *int `yaml:"sample_rate"`
		BitDepth   *int `yaml:"bit_depth"`
		Channels   *int `yaml:"channels"`
		Level      *int `yaml:"level"`
	} `yaml:"quality"`
	RateLimit *struct {
		Requests *int           `yaml:"requests"`
		Window   *time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		ListenAddr:    ":8090",
		LogLevel:      "info",
		PollInterval:  time.Second,
		FlushInterval: 500 * time.Millisecond,
		Quality:       capture.DefaultQuality(),
		RateLimit: RateLimitConfig{
			Requests: 60,
			Window:   time.Minute,
		},
	}
}

var validLogLevels = map[string]struct{}{
	"trace": {},
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate checks the merged configuration.
func Validate(cfg Config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if _, ok := validLogLevels[cfg.LogLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive (got %s)", cfg.PollInterval)
	}
	if cfg.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive (got %s)", cfg.FlushInterval)
	}
	if err := cfg.Quality.Validate(); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	if cfg.RateLimit.Requests <= 0 {
		return fmt.Errorf("rate_limit.requests must be positive (got %d)", cfg.RateLimit.Requests)
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive (got %s)", cfg.RateLimit.Window)
	}
	return nil
}
