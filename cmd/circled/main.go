// ABOUTME: Entry point for the circled coordination daemon.
// ABOUTME: Wires config, registry, workflow engine, and notification logging.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/2389/circle-core/internal/config"
	"github.com/2389/circle-core/internal/notify"
	"github.com/2389/circle-core/internal/registry"
	"github.com/2389/circle-core/internal/workflow"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the circled config file.
// Priority: CIRCLE_CONFIG env var > XDG_CONFIG_HOME/circle/circled.yaml > ~/.config/circle/circled.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CIRCLE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "circled.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "circle", "circled.yaml")
}

// loadConfig reads the config file, falling back to defaults when absent.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "circled: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("circled starting", "version", version)

	broadcaster := notify.NewBroadcaster(logger)
	defer broadcaster.Close()

	reg := registry.New(registry.Options{
		StaleTimeout:    cfg.Registry.StaleTimeout,
		SweepInterval:   cfg.Registry.SweepInterval,
		FreshnessWindow: cfg.Registry.FreshnessWindow,
		Broadcaster:     broadcaster,
		Logger:          logger,
	})

	engine := workflow.NewEngine(workflow.Options{
		EventBufferCap:   cfg.Workflow.EventBufferCap,
		DedupeTTL:        cfg.Workflow.DedupeTTL,
		DedupeMaxEntries: cfg.Workflow.DedupeMaxEntries,
		Broadcaster:      broadcaster,
		Logger:           logger,
	})
	defer engine.Close()

	go reg.RunSweep(ctx)
	go logNotifications(ctx, broadcaster, logger)

	logger.Info("circled ready")
	<-ctx.Done()

	// Use a fresh context: the signal context is already cancelled.
	logger.Info("circled shutting down")
	reg.Shutdown(context.Background())
	return nil
}

// logNotifications mirrors registry notifications into the process log so
// operators can follow agent churn without a UI attached.
func logNotifications(ctx context.Context, b *notify.Broadcaster, logger *slog.Logger) {
	ch, _ := b.Subscribe(ctx, notify.TopicRegistry)
	for event := range ch {
		logger.Debug("registry notification",
			"kind", event.Kind,
			"agent_id", event.AgentID,
			"reason", event.Reason,
		)
	}
}
