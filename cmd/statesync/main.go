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
	"github.com/pagopa/interop-tracing-core-sub000/internal/ledger"
	"github.com/pagopa/interop-tracing-core-sub000/internal/observability"
	"github.com/pagopa/interop-tracing-core-sub000/internal/queue"
	"github.com/pagopa/interop-tracing-core-sub000/internal/repository"
	"github.com/pagopa/interop-tracing-core-sub000/internal/statesync"
	"github.com/pagopa/interop-tracing-core-sub000/internal/storage"
)

func main() {
	logger, err := observability.NewLogger("statesync")
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

	if err := qc.Declare(cfg.Queue.ErrorQueue, cfg.Queue.CompletionQueue); err != nil {
		logger.Fatal("failed to declare queues", zap.Error(err))
	}

	tracings := repository.NewTracingRepository(conn.Pool)
	purposeErrors := repository.NewPurposeErrorRepository(conn.Pool)
	ledgerService := ledger.NewService(tracings, purposeErrors, logger)
	sync := statesync.NewSynchronizer(ledgerService, store, cfg.Storage, logger)

	observability.StartHealthServer(cfg.Observability.HealthPort, "statesync", logger)
	observability.StartMetricsServer(cfg.Observability.MetricsPort, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	// One blocking loop per queue; first failure stops the process.
	errCh := make(chan error, 2)
	go func() {
		errCh <- qc.Consume(ctx, cfg.Queue.ErrorQueue, sync.HandlePurposeError)
	}()
	go func() {
		errCh <- qc.Consume(ctx, cfg.Queue.CompletionQueue, sync.HandleUpdateState)
	}()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
}
