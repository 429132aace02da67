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

	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/config"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/conversation"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/metrics"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/relay"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/server"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/store"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voice-concierge-relay"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Local development secrets; absence is fine in production
	godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("address", cfg.Server.Address),
		slog.Int("max_concurrent_calls", cfg.Server.MaxConcurrentCalls),
		slog.Int("telephony_rate", cfg.Audio.TelephonyRate),
		slog.Int("conversation_rate", cfg.Audio.ConversationRate),
		slog.Int("frame_duration_ms", cfg.Audio.FrameDurationMs),
		slog.Bool("vad_enabled", cfg.VAD.Enabled),
		slog.String("conversation_model", cfg.Conversation.Model),
		slog.Bool("store_enabled", cfg.Store.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	apiKey := cfg.Conversation.APIKey()
	if apiKey == "" {
		logger.Error("Conversation API key is not set",
			slog.String("env", cfg.Conversation.APIKeyEnv),
		)
		os.Exit(1)
	}

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize call history store
	var calls store.CallStore
	if cfg.Store.Enabled {
		sqlite, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			logger.Error("Failed to open call store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		calls = sqlite
		logger.Info("Call store opened", slog.String("path", cfg.Store.Path))
	} else {
		calls = store.Noop{}
		logger.Info("Call history disabled")
	}

	// Initialize relay manager
	manager, err := relay.NewManager(logger, appMetrics, calls, nil, relay.ManagerConfig{
		Relay: relay.Config{
			TelephonyRate:    cfg.Audio.TelephonyRate,
			ConversationRate: cfg.Audio.ConversationRate,
			FrameDurationMs:  cfg.Audio.FrameDurationMs,
			MaxBufferBytes:   cfg.Audio.MaxBufferBytes,
			FlushInterval:    cfg.Audio.GetFlushInterval(),
			BargeIn:          cfg.Conversation.BargeIn,
		},
		SessionTimeout: cfg.Server.GetSessionTimeout(),
		EnableVAD:      cfg.VAD.Enabled,
		VADThreshold:   cfg.VAD.Threshold,
	})
	if err != nil {
		logger.Error("Failed to create relay manager", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Relay manager initialized",
		slog.Duration("session_timeout", cfg.Server.GetSessionTimeout()),
	)

	// Each call dials its own conversational session
	dial := func(ctx context.Context) (relay.ConversationalEndpoint, error) {
		return conversation.Dial(ctx, conversation.Config{
			URL:          cfg.Conversation.URL,
			APIKey:       apiKey,
			Model:        cfg.Conversation.Model,
			Voice:        cfg.Conversation.Voice,
			Instructions: cfg.Conversation.Instructions,
		})
	}

	gateway := server.NewGateway(logger, manager, dial)
	httpServer := server.NewHTTPServer(logger, cfg, manager, calls, gateway, appMetrics)
	logger.Info("Media gateway initialized",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop accepting new calls first
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	// Unwind live calls and background routines
	manager.Stop()

	if err := calls.Close(); err != nil {
		logger.Error("Error closing call store", slog.String("error", err.Error()))
	}

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
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
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
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
