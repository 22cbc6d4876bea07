package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Sink kinds
const (
	SinkLocal = "local"
	SinkNet   = "net"
)

// Compression schemes
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)

// Config holds all application configuration.
type Config struct {
	Tracker TrackerConfig `yaml:"tracker" toml:"tracker"`
	HTTP    HTTPConfig    `yaml:"http" toml:"http"`
	Breaker BreakerConfig `yaml:"breaker" toml:"breaker"`
	Logging LogConfig     `yaml:"logging" toml:"logging"`
	Server  ServerConfig  `yaml:"server" toml:"server"`
}

// TrackerConfig holds delivery engine and sink configuration.
type TrackerConfig struct {
	Sink          string        `envconfig:"TRACKER_SINK" yaml:"sink" toml:"sink"`
	Format        string        `envconfig:"TRACKER_FORMAT" yaml:"format" toml:"format"`
	File          string        `envconfig:"TRACKER_FILE" yaml:"file" toml:"file"`
	Host          string        `envconfig:"TRACKER_HOST" yaml:"host" toml:"host"`
	TrackingCode  string        `envconfig:"TRACKER_TRACKING_CODE" yaml:"tracking_code" toml:"tracking_code"`
	Authorization string        `envconfig:"TRACKER_AUTHORIZATION" yaml:"authorization" toml:"authorization"`
	// Actor and ActivityID form the session context of the local sink,
	// which has no handshake peer to supply one.
	Actor         string        `envconfig:"TRACKER_ACTOR" yaml:"actor" toml:"actor"`
	ActivityID    string        `envconfig:"TRACKER_ACTIVITY_ID" yaml:"activity_id" toml:"activity_id"`
	FlushInterval time.Duration `envconfig:"TRACKER_FLUSH_INTERVAL" yaml:"flush_interval" toml:"flush_interval"`
	CloseRetries  int           `envconfig:"TRACKER_CLOSE_RETRIES" yaml:"close_retries" toml:"close_retries"`
	CloseBackoff  time.Duration `envconfig:"TRACKER_CLOSE_BACKOFF" yaml:"close_backoff" toml:"close_backoff"`
	QueueLimit    int           `envconfig:"TRACKER_QUEUE_LIMIT" yaml:"queue_limit" toml:"queue_limit"`
}

// HTTPConfig holds network sink client configuration.
type HTTPConfig struct {
	Timeout     time.Duration `envconfig:"HTTP_TIMEOUT" yaml:"timeout" toml:"timeout"`
	Retries     int           `envconfig:"HTTP_RETRIES" yaml:"retries" toml:"retries"`
	RateLimit   float64       `envconfig:"HTTP_RATE_LIMIT" yaml:"rate_limit" toml:"rate_limit"`
	Compression string        `envconfig:"HTTP_COMPRESSION" yaml:"compression" toml:"compression"`
}

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	Failures uint32        `envconfig:"BREAKER_FAILURES" yaml:"failures" toml:"failures"`
	Timeout  time.Duration `envconfig:"BREAKER_TIMEOUT" yaml:"timeout" toml:"timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// ServerConfig holds listen addresses. An empty MetricsAddr disables
// the metrics endpoint of the run command.
type ServerConfig struct {
	MetricsAddr   string `envconfig:"METRICS_ADDR" yaml:"metrics_addr" toml:"metrics_addr"`
	CollectorAddr string `envconfig:"COLLECTOR_ADDR" yaml:"collector_addr" toml:"collector_addr"`
}

// Load loads configuration from environment variables on top of defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile overlays a YAML or TOML file on the defaults, then applies
// environment variables on top.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Tracker: TrackerConfig{
			Sink:          SinkLocal,
			Format:        "lines",
			File:          "traces.csv",
			FlushInterval: 3 * time.Second,
			CloseRetries:  10,
			CloseBackoff:  500 * time.Millisecond,
			QueueLimit:    0,
		},
		HTTP: HTTPConfig{
			Timeout:     10 * time.Second,
			Retries:     3,
			RateLimit:   0,
			Compression: CompressionNone,
		},
		Breaker: BreakerConfig{
			Failures: 5,
			Timeout:  30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Server: ServerConfig{
			MetricsAddr:   "",
			CollectorAddr: ":8080",
		},
	}
}

// Validate rejects values the tracker cannot act on.
func (c *Config) Validate() error {
	switch c.Tracker.Sink {
	case SinkLocal:
		if c.Tracker.File == "" {
			return fmt.Errorf("%w: local sink requires TRACKER_FILE", ErrInvalidConfig)
		}
	case SinkNet:
		if c.Tracker.Host == "" {
			return fmt.Errorf("%w: net sink requires TRACKER_HOST", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrInvalidConfig, c.Tracker.Sink)
	}

	switch c.Tracker.Format {
	case "lines", "xapi":
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Tracker.Format)
	}

	if c.Tracker.Actor != "" && !sonic.Valid([]byte(c.Tracker.Actor)) {
		return fmt.Errorf("%w: TRACKER_ACTOR is not valid JSON", ErrInvalidConfig)
	}
	if c.Tracker.Sink == SinkLocal && c.Tracker.Format == "xapi" && c.Tracker.Actor == "" {
		return fmt.Errorf("%w: xapi format on the local sink requires TRACKER_ACTOR", ErrInvalidConfig)
	}

	switch c.HTTP.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return fmt.Errorf("%w: unknown compression %q", ErrInvalidConfig, c.HTTP.Compression)
	}

	if c.Tracker.CloseRetries < 0 {
		return fmt.Errorf("%w: close retries must not be negative", ErrInvalidConfig)
	}
	if c.Tracker.QueueLimit < 0 {
		return fmt.Errorf("%w: queue limit must not be negative", ErrInvalidConfig)
	}
	return nil
}
