package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pagopa/interop-tracing-core-sub000/internal/config"
	"github.com/pagopa/interop-tracing-core-sub000/internal/db"
	"github.com/pagopa/interop-tracing-core-sub000/internal/ledger"
	"github.com/pagopa/interop-tracing-core-sub000/internal/observability"
	"github.com/pagopa/interop-tracing-core-sub000/internal/repository"
)

func main() {
	logger, err := observability.NewLogger("maintenance")
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

	tracings := repository.NewTracingRepository(conn.Pool)
	purposeErrors := repository.NewPurposeErrorRepository(conn.Pool)
	ledgerService := ledger.NewService(tracings, purposeErrors, logger)

	observability.StartHealthServer(cfg.Observability.HealthPort, "maintenance", logger)
	observability.StartMetricsServer(cfg.Observability.MetricsPort, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	interval := time.Duration(cfg.Maintenance.PurgeIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("maintenance loop started", zap.Duration("interval", interval))
	sweep(ctx, ledgerService, cfg.Maintenance, logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, ledgerService, cfg.Maintenance, logger)
		}
	}
}

// sweep purges stale purpose errors and flags MISSING tracings for the day
// tenants were expected to have submitted by now.
func sweep(ctx context.Context, ledgerService *ledger.Service, cfg config.MaintenanceConfig, logger *zap.Logger) {
	if _, err := ledgerService.DeletePurposeErrors(ctx); err != nil {
		logger.Error("purge failed", zap.Error(err))
	}

	missingDate := time.Now().UTC().AddDate(0, 0, -cfg.MissingAfterDays)
	missingDate = missingDate.Truncate(24 * time.Hour)
	if _, err := ledgerService.FlagMissing(ctx, missingDate); err != nil {
		logger.Error("missing flagging failed", zap.Error(err))
	}
}
