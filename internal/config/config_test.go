package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8080")
	}
	if cfg.RateLimit.Requests != 10 {
		t.Errorf("RateLimit.Requests = %d, want 10", cfg.RateLimit.Requests)
	}
	if cfg.RateLimit.Window != "60s" {
		t.Errorf("RateLimit.Window = %q, want %q", cfg.RateLimit.Window, "60s")
	}
	if cfg.RateLimit.Shards != 16 {
		t.Errorf("RateLimit.Shards = %d, want 16", cfg.RateLimit.Shards)
	}
	if cfg.Upstream.BaseURL != DefaultBaseURL {
		t.Errorf("Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, DefaultBaseURL)
	}
	if cfg.Upstream.Database != "nuccore" {
		t.Errorf("Upstream.Database = %q, want %q", cfg.Upstream.Database, "nuccore")
	}
	if cfg.Upstream.RequestsPerSecond != 3 {
		t.Errorf("Upstream.RequestsPerSecond = %v, want 3", cfg.Upstream.RequestsPerSecond)
	}
	if cfg.Upstream.MaxRetries != 2 {
		t.Errorf("Upstream.MaxRetries = %d, want 2", cfg.Upstream.MaxRetries)
	}
	if cfg.Cache.Size != 0 {
		t.Errorf("Cache.Size = %d, want 0 (disabled)", cfg.Cache.Size)
	}
	if !cfg.Admin.Enabled {
		t.Error("Admin.Enabled should default to true")
	}
}

func TestConfig_SetDefaults_APIKeyRaisesThrottle(t *testing.T) {
	t.Parallel()

	cfg := Config{Upstream: UpstreamConfig{APIKey: "abc"}}
	cfg.SetDefaults()

	if cfg.Upstream.RequestsPerSecond != 10 {
		t.Errorf("RequestsPerSecond = %v, want 10 with api key", cfg.Upstream.RequestsPerSecond)
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Server:    ServerConfig{HTTPAddr: ":9090", LogLevel: "debug"},
		RateLimit: RateLimitConfig{Requests: 5, Window: "1m", Shards: 1},
		Upstream:  UpstreamConfig{RequestsPerSecond: 1.5},
	}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":9090")
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, "debug")
	}
	if cfg.RateLimit.Requests != 5 {
		t.Errorf("Requests = %d, want 5", cfg.RateLimit.Requests)
	}
	if cfg.RateLimit.Shards != 1 {
		t.Errorf("Shards = %d, want 1", cfg.RateLimit.Shards)
	}
	if cfg.Upstream.RequestsPerSecond != 1.5 {
		t.Errorf("RequestsPerSecond = %v, want 1.5", cfg.Upstream.RequestsPerSecond)
	}
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"window parsed", RateLimitConfig{Window: "90s"}.WindowDuration(), 90 * time.Second},
		{"window fallback", RateLimitConfig{Window: "bogus"}.WindowDuration(), 60 * time.Second},
		{"window zero falls back", RateLimitConfig{Window: "0s"}.WindowDuration(), 60 * time.Second},
		{"cleanup", RateLimitConfig{CleanupInterval: "2m"}.CleanupDuration(), 2 * time.Minute},
		{"upstream timeout", UpstreamConfig{Timeout: "5s"}.TimeoutDuration(), 5 * time.Second},
		{"retry initial", UpstreamConfig{RetryInitialInterval: "100ms"}.RetryInitialDuration(), 100 * time.Millisecond},
		{"cache ttl", CacheConfig{TTL: "1h"}.TTLDuration(), time.Hour},
		{"stats ttl fallback", StatsConfig{}.TTLDuration(), 24 * time.Hour},
		{"shutdown", ServerConfig{ShutdownTimeout: "3s"}.ShutdownTimeoutDuration(), 3 * time.Second},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestConfig_Redacted(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Upstream: UpstreamConfig{APIKey: "secret"},
		Stats:    StatsConfig{RedisPassword: "hunter2"},
		Admin:    AdminConfig{APIKeyHash: "$argon2id$v=19$..."},
	}
	red := cfg.Redacted()

	if red.Upstream.APIKey == "secret" || red.Stats.RedisPassword == "hunter2" || red.Admin.APIKeyHash == cfg.Admin.APIKeyHash {
		t.Errorf("Redacted() leaked a secret: %+v", red)
	}
	if cfg.Upstream.APIKey != "secret" {
		t.Error("Redacted() modified the receiver")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "seqgate.yaml")
	_ = os.WriteFile(cfgPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "seqgate"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "seqgate.yaml")
	ymlPath := filepath.Join(dir, "seqgate.yml")
	_ = os.WriteFile(yamlPath, []byte("server:\n  http_addr: :8080\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("server:\n  http_addr: :9090\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
