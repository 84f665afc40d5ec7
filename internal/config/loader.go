// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a configuration loader. configPath may be empty, in
// which case only defaults and environment variables apply.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load merges defaults, the optional YAML file and PAGETAP_* environment
// variables, then validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFile(&cfg, fileCfg)
	}

	mergeEnv(&cfg)

	if cfg.SpoolDir != "" {
		if abs, err := filepath.Abs(cfg.SpoolDir); err == nil {
			cfg.SpoolDir = abs
		}
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile parses a YAML config file in strict mode. Unknown fields and
// trailing documents are fatal to prevent silent misconfiguration.
func loadFile(path string) (*fileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- config file path is provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFile(cfg *Config, f *fileConfig) {
	if f.ListenAddr != nil {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.LogLevel != nil {
		cfg.LogLevel = *f.LogLevel
	}
	if f.SpoolDir != nil {
		cfg.SpoolDir = *f.SpoolDir
	}
	if f.PollInterval != nil {
		cfg.PollInterval = *f.PollInterval
	}
	if f.FlushInterval != nil {
		cfg.FlushInterval = *f.FlushInterval
	}
	if f.Quality != nil {
		if f.Quality.SampleRate != nil {
			cfg.Quality.SampleRate = *f.Quality.SampleRate
		}
		if f.Quality.BitDepth != nil {
			cfg.Quality.BitDepth = *f.Quality.BitDepth
		}
		if f.Quality.Channels != nil {
			cfg.Quality.Channels = *f.Quality.Channels
		}
		if f.Quality.Level != nil {
			cfg.Quality.Level = *f.Quality.Level
		}
	}
	if f.RateLimit != nil {
		if f.RateLimit.Requests != nil {
			cfg.RateLimit.Requests = *f.RateLimit.Requests
		}
		if f.RateLimit.Window != nil {
			cfg.RateLimit.Window = *f.RateLimit.Window
		}
	}
}

func mergeEnv(cfg *Config) {
	cfg.ListenAddr = ParseString("PAGETAP_LISTEN", cfg.ListenAddr)
	cfg.LogLevel = ParseString("PAGETAP_LOG_LEVEL", cfg.LogLevel)
	cfg.SpoolDir = ParseString("PAGETAP_SPOOL_DIR", cfg.SpoolDir)
	cfg.PollInterval = ParseDuration("PAGETAP_POLL_INTERVAL", cfg.PollInterval)
	cfg.FlushInterval = ParseDuration("PAGETAP_FLUSH_INTERVAL", cfg.FlushInterval)

	cfg.Quality.SampleRate = ParseInt("PAGETAP_SAMPLE_RATE", cfg.Quality.SampleRate)
	cfg.Quality.BitDepth = ParseInt("PAGETAP_BIT_DEPTH", cfg.Quality.BitDepth)
	cfg.Quality.Channels = ParseInt("PAGETAP_CHANNELS", cfg.Quality.Channels)
	cfg.Quality.Level = ParseInt("PAGETAP_QUALITY_LEVEL", cfg.Quality.Level)

	cfg.RateLimit.Requests = ParseInt("PAGETAP_RATE_LIMIT_REQUESTS", cfg.RateLimit.Requests)
	cfg.RateLimit.Window = ParseDuration("PAGETAP_RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
}
