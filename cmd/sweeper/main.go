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

	"github.com/robfig/cron/v3"

	"github.com/your-org/herbid/internal/config"
	"github.com/your-org/herbid/internal/identify"
	"github.com/your-org/herbid/internal/observability"
	"github.com/your-org/herbid/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	runOnce := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting herbid retention sweeper",
		"schedule", cfg.Cleanup.Schedule,
		"retention_days", cfg.Cleanup.RetentionDays)

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// The sweeper only needs the cleanup path; the classifier and extractor
	// stay unset.
	svc := identify.NewService(cfg.Identify, db, minioStore, nil, nil, nil)
	age := time.Duration(cfg.Cleanup.RetentionDays) * 24 * time.Hour

	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		purged, err := svc.Cleanup(ctx, age)
		if err != nil {
			slog.Error("retention sweep failed", "error", err)
			return
		}
		slog.Info("retention sweep complete", "purged", purged)
	}

	if *runOnce {
		sweep()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Cleanup.Schedule, sweep); err != nil {
		slog.Error("invalid cleanup schedule", "schedule", cfg.Cleanup.Schedule, "error", err)
		os.Exit(1)
	}
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down sweeper...")
	stopCtx := c.Stop()
	<-stopCtx.Done()

	slog.Info("sweeper stopped")
}
