// Package config provides configuration types for seqgate.
//
// Configuration is file-based (seqgate.yaml) with environment overrides.
// Durations are kept as strings in the schema so they round-trip through YAML
// unchanged; the accessor methods parse them for callers.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for seqgate.
type Config struct {
	// Server configures the HTTP listener and logging.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// RateLimit configures per-client admission control.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Upstream configures the NCBI E-utilities client.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// Cache configures the optional upstream response cache.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Stats configures the optional external stats sink.
	Stats StatsConfig `yaml:"stats" mapstructure:"stats"`

	// Tracing configures OpenTelemetry span export.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// Admin configures the admin API.
	Admin AdminConfig `yaml:"admin" mapstructure:"admin"`

	// DevMode enables development features (debug logging, pretty traces).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: "text" or "json".
	LogFormat string `yaml:"log_format" mapstructure:"log_format" validate:"omitempty,oneof=text json"`

	// TrustProxyHeaders makes client identity come from X-Forwarded-For /
	// X-Real-IP instead of the TCP peer address. Only enable behind a proxy
	// that overwrites these headers.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" mapstructure:"trust_proxy_headers"`

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout string `yaml:"read_header_timeout" mapstructure:"read_header_timeout" validate:"omitempty,duration"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty,duration"`
}

// RateLimitConfig configures the fixed-window limiter.
type RateLimitConfig struct {
	// Requests is the number of requests admitted per identity per window.
	// Defaults to 10.
	Requests int `yaml:"requests" mapstructure:"requests" validate:"omitempty,min=1"`

	// Window is the length of a fixed window (e.g., "60s").
	// Defaults to "60s".
	Window string `yaml:"window" mapstructure:"window" validate:"omitempty,duration"`

	// Shards is the number of independently locked partitions of the
	// identity table. 1 means a single global lock. Defaults to 16.
	Shards int `yaml:"shards" mapstructure:"shards" validate:"omitempty,min=1,max=4096"`

	// CleanupInterval is how often expired windows are swept (e.g., "5m").
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty,duration"`

	// EvictionGrace is how many whole windows an entry may sit expired
	// before the sweep removes it. Defaults to 2.
	EvictionGrace int `yaml:"eviction_grace" mapstructure:"eviction_grace" validate:"omitempty,min=1"`
}

// UpstreamConfig configures the NCBI E-utilities client.
type UpstreamConfig struct {
	// BaseURL is the E-utilities root. Defaults to the public NCBI endpoint.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Database is the Entrez database queried. Defaults to "nuccore".
	Database string `yaml:"database" mapstructure:"database"`

	// APIKey is an optional NCBI API key (raises the allowed request rate).
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Tool and Email identify this client to NCBI.
	Tool  string `yaml:"tool" mapstructure:"tool"`
	Email string `yaml:"email" mapstructure:"email" validate:"omitempty,email"`

	// Timeout is the per-request timeout (e.g., "30s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// RequestsPerSecond throttles outbound calls. Defaults to 3, or 10 when
	// an API key is configured.
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"omitempty,gt=0"`

	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"omitempty,min=0,max=10"`

	// RetryInitialInterval is the first backoff delay (e.g., "500ms").
	RetryInitialInterval string `yaml:"retry_initial_interval" mapstructure:"retry_initial_interval" validate:"omitempty,duration"`

	// RetMax caps the number of identifiers returned by a search.
	// 0 leaves the server default in place.
	RetMax int `yaml:"retmax" mapstructure:"retmax" validate:"omitempty,min=0"`
}

// CacheConfig configures the upstream response cache.
type CacheConfig struct {
	// Size is the number of cached responses. 0 disables the cache.
	Size int `yaml:"size" mapstructure:"size" validate:"omitempty,min=0"`

	// TTL is how long a cached response stays valid.
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty,duration"`
}

// StatsConfig configures the Redis stats sink.
type StatsConfig struct {
	// RedisAddr enables the sink when non-empty (e.g., "localhost:6379").
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db" validate:"omitempty,min=0"`

	// Prefix namespaces every key written by the sink.
	Prefix string `yaml:"prefix" mapstructure:"prefix"`

	// TTL is the retention of per-minute buckets.
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty,duration"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled exports spans to stderr using the stdout exporter.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// AdminConfig configures the admin API.
type AdminConfig struct {
	// Enabled mounts /admin/api/. Defaults to true.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// APIKeyHash is an argon2id hash (see "seqgate hash-key") that remote
	// callers must present as a Bearer token. Localhost is always allowed.
	APIKeyHash string `yaml:"api_key_hash" mapstructure:"api_key_hash" validate:"omitempty,startswith=$argon2id$"`
}

// DefaultBaseURL is the public NCBI E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// SetDefaults applies default values to the configuration.
func (c *Config) SetDefaults() {
	// Bind to localhost only. Network access must be requested explicitly.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "text"
	}
	if c.Server.ReadHeaderTimeout == "" {
		c.Server.ReadHeaderTimeout = "10s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 10
	}
	if c.RateLimit.Window == "" {
		c.RateLimit.Window = "60s"
	}
	if c.RateLimit.Shards == 0 {
		c.RateLimit.Shards = 16
	}
	if c.RateLimit.CleanupInterval == "" {
		c.RateLimit.CleanupInterval = "5m"
	}
	if c.RateLimit.EvictionGrace == 0 {
		c.RateLimit.EvictionGrace = 2
	}

	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultBaseURL
	}
	if c.Upstream.Database == "" {
		c.Upstream.Database = "nuccore"
	}
	if c.Upstream.Tool == "" {
		c.Upstream.Tool = "seqgate"
	}
	if c.Upstream.Timeout == "" {
		c.Upstream.Timeout = "30s"
	}
	if c.Upstream.RequestsPerSecond == 0 {
		// NCBI allows 3 requests/second without a key and 10 with one.
		if c.Upstream.APIKey != "" {
			c.Upstream.RequestsPerSecond = 10
		} else {
			c.Upstream.RequestsPerSecond = 3
		}
	}
	if !viper.IsSet("upstream.max_retries") && c.Upstream.MaxRetries == 0 {
		c.Upstream.MaxRetries = 2
	}
	if c.Upstream.RetryInitialInterval == "" {
		c.Upstream.RetryInitialInterval = "500ms"
	}

	if c.Cache.TTL == "" {
		c.Cache.TTL = "10m"
	}

	if c.Stats.Prefix == "" {
		c.Stats.Prefix = "seqgate:stats"
	}
	if c.Stats.TTL == "" {
		c.Stats.TTL = "24h"
	}

	// viper.IsSet distinguishes "not set" from "explicitly false".
	if !viper.IsSet("admin.enabled") {
		c.Admin.Enabled = true
	}
}

// WindowDuration returns the parsed rate-limit window.
func (c RateLimitConfig) WindowDuration() time.Duration {
	return parseDuration(c.Window, 60*time.Second)
}

// CleanupDuration returns the parsed sweep interval.
func (c RateLimitConfig) CleanupDuration() time.Duration {
	return parseDuration(c.CleanupInterval, 5*time.Minute)
}

// TimeoutDuration returns the parsed upstream request timeout.
func (c UpstreamConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// RetryInitialDuration returns the parsed first backoff delay.
func (c UpstreamConfig) RetryInitialDuration() time.Duration {
	return parseDuration(c.RetryInitialInterval, 500*time.Millisecond)
}

// TTLDuration returns the parsed cache entry lifetime.
func (c CacheConfig) TTLDuration() time.Duration {
	return parseDuration(c.TTL, 10*time.Minute)
}

// TTLDuration returns the parsed bucket retention.
func (c StatsConfig) TTLDuration() time.Duration {
	return parseDuration(c.TTL, 24*time.Hour)
}

// ReadHeaderTimeoutDuration returns the parsed header read timeout.
func (c ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	return parseDuration(c.ReadHeaderTimeout, 10*time.Second)
}

// ShutdownTimeoutDuration returns the parsed graceful shutdown bound.
func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.ShutdownTimeout, 10*time.Second)
}

// Redacted returns a copy safe to display: secrets are masked.
func (c Config) Redacted() Config {
	if c.Upstream.APIKey != "" {
		c.Upstream.APIKey = "********"
	}
	if c.Stats.RedisPassword != "" {
		c.Stats.RedisPassword = "********"
	}
	if c.Admin.APIKeyHash != "" {
		c.Admin.APIKeyHash = "********"
	}
	return c
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
