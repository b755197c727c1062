package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/seqgate/seqgate/internal/adapter/inbound/admin"
	httpadapter "github.com/seqgate/seqgate/internal/adapter/inbound/http"
	"github.com/seqgate/seqgate/internal/adapter/outbound/entrez"
	"github.com/seqgate/seqgate/internal/adapter/outbound/memory"
	"github.com/seqgate/seqgate/internal/adapter/outbound/redisstats"
	"github.com/seqgate/seqgate/internal/config"
	"github.com/seqgate/seqgate/internal/domain/ratelimit"
	"github.com/seqgate/seqgate/internal/domain/stats"
	"github.com/seqgate/seqgate/internal/port/outbound"
	"github.com/seqgate/seqgate/internal/service"
	"github.com/seqgate/seqgate/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway server",
	Long: `Start the seqgate HTTP gateway.

Routes:
  GET /search/genus/{query}    organism search, JSON array of identifiers
  GET /search/author/{query}   author search, JSON array of identifiers
  GET /details/{id}            {"genbank": "...", "fasta": "..."}

Each client IP is admitted rate_limit.requests times per rate_limit.window
(10 per 60s by default); further requests get 429 until the window ends.

Examples:
  # Start with config file settings
  seqgate start

  # Start with debug logging and pretty-printed traces
  seqgate start --dev

  # Start with a specific config file
  seqgate --config /path/to/seqgate.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, pretty-printed traces)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load configuration (without validation, so CLI flags can override first)
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(cfg, os.Stderr)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// Write PID file so "seqgate stop" can find us.
	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("seqgate stopped")
	return nil
}

// run wires all components together and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startTime := time.Now().UTC()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:        cfg.Tracing.Enabled,
		ServiceVersion: Version,
		PrettyPrint:    cfg.DevMode,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// Admission control
	windowCfg := ratelimit.WindowConfig{
		Limit:  cfg.RateLimit.Requests,
		Window: cfg.RateLimit.WindowDuration(),
	}
	limiter := memory.NewFixedWindowLimiter(windowCfg,
		memory.WithShards(cfg.RateLimit.Shards),
		memory.WithCleanup(cfg.RateLimit.CleanupDuration(), cfg.RateLimit.EvictionGrace),
		memory.WithLimiterLogger(logger),
	)
	limiter.StartCleanup(ctx)
	defer limiter.Stop()
	logger.Info("rate limiter configured",
		"limit", windowCfg.Limit,
		"window", windowCfg.Window,
		"shards", cfg.RateLimit.Shards,
	)

	// Metrics
	registry := httpadapter.NewRegistry()
	metrics := httpadapter.NewMetrics(registry)
	metrics.RegisterRateLimitKeys(limiter.Size)

	// Remote API
	remote := newRemoteClient(cfg, logger, metrics.ObserveUpstream)

	// Stats, with the optional Redis sink
	var sinks []stats.Sink
	var rdb *redis.Client
	if cfg.Stats.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		defer rdb.Close()
		sinks = append(sinks, redisstats.New(rdb,
			redisstats.WithPrefix(cfg.Stats.Prefix),
			redisstats.WithTTL(cfg.Stats.TTLDuration()),
		))
		logger.Info("redis stats sink enabled", "addr", cfg.Stats.RedisAddr, "prefix", cfg.Stats.Prefix)
	}
	statsService := service.NewStatsService(logger, sinks...)
	defer statsService.Close()

	orchestrator := service.NewOrchestrator(remote, entrez.NewParser(), logger)

	gateway := httpadapter.NewGatewayHandler(limiter, orchestrator,
		httpadapter.WithOutcomeRecorder(statsService),
		httpadapter.WithGatewayMetrics(metrics),
		httpadapter.WithGatewayLogger(logger),
	)

	health := httpadapter.NewHealthChecker(limiter, statsService, Version)
	if rdb != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	transportOpts := []httpadapter.Option{
		httpadapter.WithAddr(cfg.Server.HTTPAddr),
		httpadapter.WithLogger(logger),
		httpadapter.WithTrustProxyHeaders(cfg.Server.TrustProxyHeaders),
		httpadapter.WithTimeouts(cfg.Server.ReadHeaderTimeoutDuration(), cfg.Server.ShutdownTimeoutDuration()),
		httpadapter.WithMetrics(registry, metrics),
		httpadapter.WithHealthChecker(health),
	}

	if cfg.Admin.Enabled {
		adminHandler := admin.NewAdminAPIHandler(
			admin.WithStatsService(statsService),
			admin.WithRateLimiter(limiter, windowCfg),
			admin.WithConfig(cfg),
			admin.WithAPIKeyHash(cfg.Admin.APIKeyHash),
			admin.WithAPILogger(logger),
			admin.WithBuildInfo(&admin.BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}),
			admin.WithStartTime(startTime),
		)
		transportOpts = append(transportOpts, httpadapter.WithExtraHandler(adminHandler.Routes()))
		if cfg.Admin.APIKeyHash == "" {
			logger.Info("admin API enabled (localhost only)")
		} else {
			logger.Info("admin API enabled (localhost or bearer key)")
		}
	}

	transport := httpadapter.NewHTTPTransport(gateway.Routes(), transportOpts...)

	logger.Info("seqgate ready",
		"addr", cfg.Server.HTTPAddr,
		"upstream", cfg.Upstream.BaseURL,
		"database", cfg.Upstream.Database,
	)
	return transport.Start(ctx)
}

// newRemoteClient builds the E-utilities client from configuration, wrapped
// in the response cache when cache.size > 0. observe may be nil.
func newRemoteClient(cfg *config.Config, logger *slog.Logger, observe entrez.CallObserver) outbound.RemoteClient {
	opts := []entrez.ClientOption{
		entrez.WithBaseURL(cfg.Upstream.BaseURL),
		entrez.WithDatabase(cfg.Upstream.Database),
		entrez.WithCredentials(cfg.Upstream.APIKey, cfg.Upstream.Tool, cfg.Upstream.Email),
		entrez.WithRetMax(cfg.Upstream.RetMax),
		entrez.WithTimeout(cfg.Upstream.TimeoutDuration()),
		entrez.WithRequestsPerSecond(cfg.Upstream.RequestsPerSecond),
		entrez.WithRetry(cfg.Upstream.MaxRetries, cfg.Upstream.RetryInitialDuration()),
		entrez.WithLogger(logger),
	}
	if observe != nil {
		opts = append(opts, entrez.WithCallObserver(observe))
	}

	var client outbound.RemoteClient = entrez.NewClient(opts...)
	if cfg.Cache.Size > 0 {
		client = entrez.NewCachingClient(client, cfg.Cache.Size, cfg.Cache.TTLDuration())
		logger.Info("upstream response cache enabled", "size", cfg.Cache.Size, "ttl", cfg.Cache.TTLDuration())
	}
	return client
}

// newLogger builds the process logger on w.
// Priority: DevMode=true -> debug, otherwise server.log_level.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Server.LogFormat, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", level.String())
	return logger
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pidFilePath returns the standard location for the seqgate PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".seqgate", "server.pid")
	}
	return filepath.Join(os.TempDir(), "seqgate-server.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
