package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 8080
	DefaultDBPath          = "pulsewatch.db"
	DefaultSweepInterval   = 10 * time.Second
	DefaultDispatchTimeout = 5 * time.Second
	DefaultDispatchWorkers = 4
	DefaultDispatchQueue   = 256
	DefaultSampleRetention = 30 * 24 * time.Hour
	DefaultAuditRetention  = 90 * 24 * time.Hour
	DefaultScrapeInterval  = 30 * time.Second
)

// Config holds the server configuration parsed from the `server:` section
// of config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics, and WebSocket hub
	// listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// DBPath is the SQLite database file (default "pulsewatch.db").
	DBPath string `yaml:"db_path"`

	// Auth configures API authentication for inbound HTTP requests.
	Auth AuthConfig `yaml:"auth"`

	// Engine tunes evaluation and notification delivery.
	Engine EngineConfig `yaml:"engine"`

	// Retention controls background cleanup of samples and audit rows.
	Retention RetentionConfig `yaml:"retention"`

	// Scrape configures optional pull-mode ingestion from Prometheus
	// exposition endpoints.
	Scrape ScrapeConfig `yaml:"scrape"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the
	// expected API key. Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header the key is read from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// EngineConfig tunes the evaluation engine and dispatcher.
type EngineConfig struct {
	// SweepInterval is the missing-data monitor period (default 10s).
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// DispatchTimeout bounds one webhook delivery (default 5s).
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`

	// DispatchWorkers is the delivery worker count (default 4).
	DispatchWorkers int `yaml:"dispatch_workers"`

	// DispatchQueue is the delivery queue depth (default 256).
	DispatchQueue int `yaml:"dispatch_queue"`
}

// RetentionConfig controls background cleanup. Zero disables a purge.
type RetentionConfig struct {
	// Samples is how long raw samples are kept (default 720h).
	Samples time.Duration `yaml:"samples"`

	// Audit is how long audit records are kept (default 2160h).
	// Audit rows are append-only to the engine; this is the operator's
	// retention policy, not the engine's.
	Audit time.Duration `yaml:"audit"`
}

// ScrapeConfig configures pull-mode ingestion.
type ScrapeConfig struct {
	// Interval between scrape rounds (default 30s).
	Interval time.Duration `yaml:"interval"`

	// Sources lists the endpoints to pull.
	Sources []ScrapeSource `yaml:"sources"`
}

// ScrapeSource is one Prometheus exposition endpoint scraped on behalf of
// a tenant.
type ScrapeSource struct {
	// TenantID owns the resulting samples.
	TenantID string `yaml:"tenant_id"`

	// Endpoint is the /metrics URL to fetch.
	Endpoint string `yaml:"endpoint"`

	// Prefix, if set, is prepended to every metric name ("node." etc.).
	Prefix string `yaml:"prefix"`

	// InsecureSkipVerify disables TLS verification for this source.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the config file at path. Missing fields are
// filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			DBPath:   DefaultDBPath,
			Engine: EngineConfig{
				SweepInterval:   DefaultSweepInterval,
				DispatchTimeout: DefaultDispatchTimeout,
				DispatchWorkers: DefaultDispatchWorkers,
				DispatchQueue:   DefaultDispatchQueue,
			},
			Retention: RetentionConfig{
				Samples: DefaultSampleRetention,
				Audit:   DefaultAuditRetention,
			},
			Scrape: ScrapeConfig{
				Interval: DefaultScrapeInterval,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.DBPath == "" {
		return fmt.Errorf("server.db_path must not be empty")
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Engine.SweepInterval < time.Second {
		return fmt.Errorf("server.engine.sweep_interval %s is below 1s", s.Engine.SweepInterval)
	}
	if s.Engine.DispatchTimeout <= 0 {
		return fmt.Errorf("server.engine.dispatch_timeout must be positive")
	}
	if s.Retention.Samples < 0 || s.Retention.Audit < 0 {
		return fmt.Errorf("server.retention durations must not be negative")
	}
	for i, src := range s.Scrape.Sources {
		if src.TenantID == "" {
			return fmt.Errorf("server.scrape.sources[%d]: tenant_id is required", i)
		}
		if src.Endpoint == "" {
			return fmt.Errorf("server.scrape.sources[%d]: endpoint is required", i)
		}
	}
	return nil
}
