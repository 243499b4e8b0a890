package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/audio"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/codec"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/config"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/metrics"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/ratelimit"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/server"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/storage"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/submit"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "scorespoken-submission-service"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load environment overrides from .env if present
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("http_address", cfg.HTTP.Address),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.String("separator_kind", cfg.Audio.SeparatorKind),
		slog.Float64("separator_duration", cfg.Audio.SeparatorDuration),
		slog.Bool("compression_enabled", cfg.Compression.Enabled),
		slog.String("scoring_endpoint", cfg.Scoring.Endpoint),
		slog.String("storage_directory", cfg.Storage.Directory),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize artifact storage
	store, err := storage.NewStore(cfg.Storage.Directory, logger)
	if err != nil {
		logger.Error("Failed to open artifact storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Artifact storage initialized",
		slog.String("directory", cfg.Storage.Directory),
		slog.Int("artifacts", store.Len()),
	)

	// Initialize scoring client
	client, err := submit.NewClient(submit.Config{
		Endpoint:     cfg.Scoring.Endpoint,
		APIKey:       cfg.Scoring.APIKey,
		RedirectBase: cfg.Scoring.RedirectBase,
		Timeout:      cfg.Scoring.GetTimeoutDuration(),
		MaxRetries:   cfg.Scoring.MaxRetries,
		BaseDelay:    cfg.Scoring.GetBaseDelayDuration(),
		UserAgent:    cfg.Scoring.UserAgent,
	}, logger)
	if err != nil {
		logger.Error("Failed to create scoring client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	scheduler := submit.NewScheduler(client, logger)
	logger.Info("Scoring client initialized",
		slog.String("endpoint", cfg.Scoring.Endpoint),
		slog.Int("max_retries", cfg.Scoring.MaxRetries),
	)

	// Initialize the assembly and compression pipeline
	assembler := audio.NewAssembler(cfg.Audio.SampleRate, cfg.Audio.SeparatorFrequency)
	cdc := codec.New(codec.Config{
		Enabled: cfg.Compression.Enabled,
		Level:   cfg.Compression.Level,
	}, logger)

	// Initialize rate limiting
	governor := ratelimit.NewGovernor(ratelimit.NewMemoryStore(), ratelimit.SystemClock())

	// Initialize HTTP API server
	httpServer := server.NewHTTPServer(cfg, logger, assembler, cdc, store, client, governor, appMetrics)
	logger.Info("HTTP API server initialized",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Cancel any deferred submissions and abort in-flight retries
	scheduler.CancelAll()

	// Get final statistics
	stats := client.GetStats()
	logger.Info("Final submission statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
