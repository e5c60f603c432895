package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/plexbw/internal/attribution"
	"github.com/goodtune/plexbw/internal/config"
	"github.com/goodtune/plexbw/internal/exporter"
	"github.com/goodtune/plexbw/internal/metrics"
	"github.com/goodtune/plexbw/internal/plex"
	"github.com/goodtune/plexbw/internal/storage"
	"github.com/goodtune/plexbw/internal/storage/memory"
	"github.com/goodtune/plexbw/internal/storage/redis"
	"github.com/goodtune/plexbw/internal/systemd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the exporter",
	Long:  `Start the metrics server. Every scrape of /metrics polls the Plex server and publishes the newly attributed bandwidth.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Str("plex", cfg.Plex.URL).
		Msg("Starting plexbw")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().Str("type", cfg.Storage.Type).Msg("Storage initialized")

	poller := newPoller(cfg, store, logger)

	exp, err := exporter.New(poller, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize exporter: %w", err)
	}

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, exp.Refresh, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := metricsServer.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("plexbw stopped")

	return nil
}

// newPoller builds the Plex client and attribution poller from cfg.
func newPoller(cfg *config.Config, store storage.MarkerStore, logger zerolog.Logger) *attribution.Poller {
	client := plex.NewClient(plex.Config{
		URL:                cfg.Plex.URL,
		Token:              cfg.Plex.Token,
		ClientIdentifier:   cfg.Plex.ClientIdentifier,
		DeviceName:         cfg.Plex.DeviceName,
		Timeout:            parseDuration(cfg.Plex.Timeout, 10*time.Second),
		InsecureSkipVerify: cfg.Plex.InsecureSkipVerify,
		DefaultBitrateKbps: float64(cfg.Attribution.DefaultBitrateKbps),
	}, logger)

	return attribution.NewPoller(client, store, attribution.Config{
		Timespan:                cfg.Plex.Timespan,
		OwnerAccountID:          cfg.Attribution.OwnerAccountID,
		StreamingThresholdBytes: cfg.Attribution.StreamingThresholdBytes,
	}, logger)
}

func openStorage(cfg config.StorageConfig) (storage.MarkerStore, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.Open(cfg.Memory.Capacity)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
