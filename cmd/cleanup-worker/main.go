package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scontrino/internal/config"
	applog "scontrino/internal/log"
	"scontrino/internal/uploads"
)

// cleanup-worker deletes receipt images that were uploaded but never
// saved, once they outlive the configured TTL.
func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentUploads})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	store, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		logger.Error("Failed to initialize upload store", "error", err, "dir", cfg.UploadDir)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting cleanup-worker", "dir", cfg.UploadDir, "ttl", cfg.UploadTTL)

	sweep := func() {
		removed, err := store.CleanupOlderThan(ctx, cfg.UploadTTL)
		if err != nil {
			logger.Error("Cleanup sweep failed", "error", err)
			return
		}
		if removed > 0 {
			logger.Info("Removed stale uploads", "count", removed)
		}
	}
	sweep()

	// Sweeping at a fraction of the TTL keeps the overshoot small.
	interval := cfg.UploadTTL / 4
	if interval > time.Hour {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup worker stopped")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
