package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/herbid/internal/api"
	"github.com/your-org/herbid/internal/api/ws"
	"github.com/your-org/herbid/internal/botany"
	"github.com/your-org/herbid/internal/config"
	"github.com/your-org/herbid/internal/embedding"
	"github.com/your-org/herbid/internal/identify"
	"github.com/your-org/herbid/internal/models"
	"github.com/your-org/herbid/internal/observability"
	"github.com/your-org/herbid/internal/plantid"
	"github.com/your-org/herbid/internal/queue"
	"github.com/your-org/herbid/internal/storage"
	"github.com/your-org/herbid/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting herbid API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume identification events and fan them out to WebSocket clients
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeIdentifications(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		var ev models.IdentificationEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			return err
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:   "plant_identified",
			Source: ev.Source,
			Data:   ev,
		})
		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	// Feature extraction: remote embeddings when a key is configured, with
	// the hash-derived local strategy always available as the fallback.
	var strategies []identify.FeatureStrategy
	if cfg.Embedding.APIKey != "" {
		strategies = append(strategies, embedding.NewStrategy(embedding.NewClient(cfg.Embedding)))
		slog.Info("remote embedding strategy enabled", "model", cfg.Embedding.Model)
	}
	strategies = append(strategies, identify.LocalFeatures{})
	extractor := identify.NewExtractor(strategies...)

	classifier := plantid.NewClient(cfg.PlantID)

	svc := identify.NewService(cfg.Identify, db, minioStore, classifier, extractor, producer)
	engine := botany.NewEngine(db)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:    cfg.Server.APIKey,
		DB:        db,
		MinIO:     minioStore,
		Producer:  producer,
		Hub:       hub,
		Service:   svc,
		Engine:    engine,
		ExtractFn: extractor.Extract,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
