// Command stenod is the main entry point for the stenod speech-to-text
// ingest daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwulff/stenod/internal/config"
	"github.com/jwulff/stenod/internal/daemon"
	"github.com/jwulff/stenod/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ───────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "stenod: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "stenod: %v\n", err)
		}
		return 1
	}

	// ── Logger ───────────────────────────────────────────────────────────
	levelVar := &slog.LevelVar{}
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("stenod starting",
		"config", *configPath,
		"socket_path", cfg.Server.SocketPath,
		"db_path", cfg.Server.DBPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Metrics provider ─────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownProvider, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "stenod"})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownProvider(shutdownCtx); err != nil {
			slog.Warn("metrics provider shutdown error", "err", err)
		}
	}()

	// ── Daemon wiring ─────────────────────────────────────────────────────
	d, err := daemon.New(ctx, cfg, daemon.WithLogger(logger))
	if err != nil {
		slog.Error("failed to initialise daemon", "err", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────
	// Only log level and coordinator thresholds are hot-reloadable; every
	// other field requires a restart (spec.md §8).
	watcher, err := config.NewWatcher(*configPath, func(old, newCfg *config.Config) {
		levelVar.Set(slogLevel(newCfg.Server.LogLevel))
		d.Coordinator().SetThresholds(
			newCfg.Coordinator.TriggerCount,
			newCfg.Coordinator.TimeThreshold,
			newCfg.Coordinator.MinSegmentsForTimeTrigger,
			newCfg.Coordinator.LLMTimeout,
		)
		slog.Info("config reloaded", "log_level", newCfg.Server.LogLevel)
	}, config.WithLogger(logger))
	if err != nil {
		slog.Warn("config watcher failed to start — hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("stenod ready")

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := d.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
