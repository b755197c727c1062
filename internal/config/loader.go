package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// SEQGATE_RATE_LIMIT_REQUESTS overrides rate_limit.requests.
const EnvPrefix = "SEQGATE"

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for seqgate.yaml/.yml in standard locations.
// The search requires an explicit YAML extension so the binary itself (same
// base name, no extension) is never picked up.
func InitViper(configFile string) {
	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// Without search paths ReadInConfig returns ConfigFileNotFoundError,
		// which callers treat as "env only".
		viper.SetConfigName("seqgate")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".seqgate"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "seqgate"))
		}
	} else {
		paths = append(paths, "/etc/seqgate")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for seqgate.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "seqgate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// envKeys lists every scalar key that can be overridden from the environment.
// AutomaticEnv alone does not reach nested keys during Unmarshal.
var envKeys = []string{
	"server.http_addr",
	"server.log_level",
	"server.log_format",
	"server.trust_proxy_headers",
	"server.read_header_timeout",
	"server.shutdown_timeout",

	"rate_limit.requests",
	"rate_limit.window",
	"rate_limit.shards",
	"rate_limit.cleanup_interval",
	"rate_limit.eviction_grace",

	"upstream.base_url",
	"upstream.database",
	"upstream.api_key",
	"upstream.tool",
	"upstream.email",
	"upstream.timeout",
	"upstream.requests_per_second",
	"upstream.max_retries",
	"upstream.retry_initial_interval",
	"upstream.retmax",

	"cache.size",
	"cache.ttl",

	"stats.redis_addr",
	"stats.redis_password",
	"stats.redis_db",
	"stats.prefix",
	"stats.ttl",

	"tracing.enabled",

	"admin.enabled",
	"admin.api_key_hash",

	"dev_mode",
}

func bindNestedEnvKeys() {
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, validates, and returns the Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT validate. Use this when CLI flags may still override values.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
