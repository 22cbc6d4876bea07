package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Tracker config
	assert.Equal(t, SinkLocal, cfg.Tracker.Sink)
	assert.Equal(t, "lines", cfg.Tracker.Format)
	assert.Equal(t, 10, cfg.Tracker.CloseRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Tracker.CloseBackoff)
	assert.Equal(t, 0, cfg.Tracker.QueueLimit)

	// HTTP config
	assert.Equal(t, CompressionNone, cfg.HTTP.Compression)
	assert.Equal(t, 3, cfg.HTTP.Retries)

	// Breaker config
	assert.Equal(t, uint32(5), cfg.Breaker.Failures)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	require.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, SinkLocal, cfg.Tracker.Sink)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"TRACKER_SINK":           "net",
		"TRACKER_FORMAT":         "xapi",
		"TRACKER_HOST":           "http://collector/api/",
		"TRACKER_TRACKING_CODE":  "code-1",
		"TRACKER_AUTHORIZATION":  "a:b",
		"TRACKER_FLUSH_INTERVAL": "-1s",
		"TRACKER_CLOSE_RETRIES":  "3",
		"TRACKER_QUEUE_LIMIT":    "100",
		"HTTP_COMPRESSION":       "zstd",
		"HTTP_RATE_LIMIT":        "2.5",
		"BREAKER_FAILURES":       "7",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, SinkNet, cfg.Tracker.Sink)
	assert.Equal(t, "xapi", cfg.Tracker.Format)
	assert.Equal(t, "http://collector/api/", cfg.Tracker.Host)
	assert.Equal(t, "code-1", cfg.Tracker.TrackingCode)
	assert.Equal(t, "a:b", cfg.Tracker.Authorization)
	assert.Equal(t, -time.Second, cfg.Tracker.FlushInterval)
	assert.Equal(t, 3, cfg.Tracker.CloseRetries)
	assert.Equal(t, 100, cfg.Tracker.QueueLimit)
	assert.Equal(t, CompressionZstd, cfg.HTTP.Compression)
	assert.Equal(t, 2.5, cfg.HTTP.RateLimit)
	assert.Equal(t, uint32(7), cfg.Breaker.Failures)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	// Unset values keep their defaults
	assert.Equal(t, 500*time.Millisecond, cfg.Tracker.CloseBackoff)
	require.NoError(t, cfg.Validate())
}

func TestLoadInvalidEnvironment(t *testing.T) {
	t.Setenv("TRACKER_CLOSE_RETRIES", "many")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 10, cfg.Tracker.CloseRetries)
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	content := `
tracker:
  sink: net
  host: http://collector/api/
  tracking_code: yaml-code
  close_retries: 4
http:
  compression: gzip
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, SinkNet, cfg.Tracker.Sink)
	assert.Equal(t, "yaml-code", cfg.Tracker.TrackingCode)
	assert.Equal(t, 4, cfg.Tracker.CloseRetries)
	assert.Equal(t, CompressionGzip, cfg.HTTP.Compression)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// Untouched sections keep defaults
	assert.Equal(t, "lines", cfg.Tracker.Format)
	assert.Equal(t, uint32(5), cfg.Breaker.Failures)
}

func TestLoadFileTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.toml")
	content := `
[tracker]
sink = "local"
file = "out.csv"
format = "xapi"
queue_limit = 50

[server]
collector_addr = ":9999"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "out.csv", cfg.Tracker.File)
	assert.Equal(t, "xapi", cfg.Tracker.Format)
	assert.Equal(t, 50, cfg.Tracker.QueueLimit)
	assert.Equal(t, ":9999", cfg.Server.CollectorAddr)
}

func TestLoadFileEnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yml")
	require.NoError(t, os.WriteFile(path, []byte("tracker:\n  file: from-file.csv\n"), 0o644))
	t.Setenv("TRACKER_FILE", "from-env.csv")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.csv", cfg.Tracker.File)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	ini := filepath.Join(dir, "tracker.ini")
	require.NoError(t, os.WriteFile(ini, []byte("x=1"), 0o644))
	_, err = LoadFile(ini)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[tracker\nsink="), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown sink", func(c *Config) { c.Tracker.Sink = "kafka" }, false},
		{"net without host", func(c *Config) { c.Tracker.Sink = SinkNet }, false},
		{"net with host", func(c *Config) {
			c.Tracker.Sink = SinkNet
			c.Tracker.Host = "http://localhost/"
		}, true},
		{"local without file", func(c *Config) { c.Tracker.File = "" }, false},
		{"unknown format", func(c *Config) { c.Tracker.Format = "csv" }, false},
		{"unknown compression", func(c *Config) { c.HTTP.Compression = "brotli" }, false},
		{"negative retries", func(c *Config) { c.Tracker.CloseRetries = -1 }, false},
		{"negative queue limit", func(c *Config) { c.Tracker.QueueLimit = -1 }, false},
		{"local xapi without actor", func(c *Config) { c.Tracker.Format = "xapi" }, false},
		{"local xapi with actor", func(c *Config) {
			c.Tracker.Format = "xapi"
			c.Tracker.Actor = `{"name":"player"}`
			c.Tracker.ActivityID = "http://localhost/game"
		}, true},
		{"net xapi without actor", func(c *Config) {
			c.Tracker.Sink = SinkNet
			c.Tracker.Host = "http://localhost/"
			c.Tracker.Format = "xapi"
		}, true},
		{"malformed actor", func(c *Config) { c.Tracker.Actor = "{name" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}
