package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pagopa/interop-tracing-core-sub000/internal/config"
	"github.com/pagopa/interop-tracing-core-sub000/internal/db"
	"github.com/pagopa/interop-tracing-core-sub000/internal/observability"
	"github.com/pagopa/interop-tracing-core-sub000/internal/processing"
	"github.com/pagopa/interop-tracing-core-sub000/internal/queue"
	"github.com/pagopa/interop-tracing-core-sub000/internal/repository"
	"github.com/pagopa/interop-tracing-core-sub000/internal/storage"
)

func main() {
	logger, err := observability.NewLogger("processing")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	store, err := storage.NewClient(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to connect to object storage", zap.Error(err))
	}

	qc, err := queue.Dial(ctx, cfg.Queue.URL, logger)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer qc.Close()

	if err := qc.Declare(cfg.Queue.ProcessingQueue, cfg.Queue.ErrorQueue); err != nil {
		logger.Fatal("failed to declare queues", zap.Error(err))
	}

	refs := repository.NewReferenceRepository(conn.Pool)
	engine := processing.NewEngine(store, qc, refs, cfg.Storage, cfg.Queue, logger)

	observability.StartHealthServer(cfg.Observability.HealthPort, "processing", logger)
	observability.StartMetricsServer(cfg.Observability.MetricsPort, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	if err := qc.Consume(ctx, cfg.Queue.ProcessingQueue, engine.HandleObjectCreated); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
}
