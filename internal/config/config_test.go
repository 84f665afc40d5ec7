// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pagetap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.0.0-test").Load()
	require.NoError(t, err)

	require.Equal(t, ":8090", cfg.ListenAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, time.Second, cfg.PollInterval)
	require.Equal(t, 500*time.Millisecond, cfg.FlushInterval)
	require.Equal(t, 48000, cfg.Quality.SampleRate)
	require.Equal(t, 16, cfg.Quality.BitDepth)
	require.Equal(t, 2, cfg.Quality.Channels)
	require.Equal(t, "v1.0.0-test", cfg.Version)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
listen_addr: ":9999"
log_level: debug
poll_interval: 2s
quality:
  sample_rate: 96000
  bit_depth: 24
`)

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	require.Equal(t, ":9999", cfg.ListenAddr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, 96000, cfg.Quality.SampleRate)
	require.Equal(t, 24, cfg.Quality.BitDepth)
	// Untouched fields keep defaults.
	require.Equal(t, 2, cfg.Quality.Channels)
	require.Equal(t, 500*time.Millisecond, cfg.FlushInterval)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `listen_addr: ":9999"`)
	t.Setenv("PAGETAP_LISTEN", ":7777")
	t.Setenv("PAGETAP_FLUSH_INTERVAL", "250ms")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	require.Equal(t, ":7777", cfg.ListenAddr)
	require.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, `listen_adr: ":9999"`)

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "strict config parse error")
}

func TestLoadRejectsInvalidQuality(t *testing.T) {
	t.Setenv("PAGETAP_SAMPLE_RATE", "22050")

	_, err := NewLoader("", "").Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "quality")
}

func TestLoadRejectsNonYAMLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagetap.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "only YAML supported")
}

func TestParseHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("PAGETAP_TEST_INT", "nope")
	t.Setenv("PAGETAP_TEST_BOOL", "nope")
	t.Setenv("PAGETAP_TEST_DUR", "nope")

	require.Equal(t, 7, ParseInt("PAGETAP_TEST_INT", 7))
	require.True(t, ParseBool("PAGETAP_TEST_BOOL", true))
	require.Equal(t, time.Second, ParseDuration("PAGETAP_TEST_DUR", time.Second))
}

func TestSpoolDirIsAbsolutized(t *testing.T) {
	t.Setenv("PAGETAP_SPOOL_DIR", "artifacts")

	cfg, err := NewLoader("", "").Load()
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(cfg.SpoolDir))
}
