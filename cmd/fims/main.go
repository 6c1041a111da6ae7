package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fims-logistics/fims/internal/app"
	"github.com/fims-logistics/fims/internal/billing"
	"github.com/fims-logistics/fims/internal/dispatch"
	"github.com/fims-logistics/fims/internal/masterdata"
	"github.com/fims-logistics/fims/internal/observability"
	"github.com/fims-logistics/fims/internal/platform/cache"
	"github.com/fims-logistics/fims/internal/platform/db"
	"github.com/fims-logistics/fims/internal/rake"
	"github.com/fims-logistics/fims/internal/shared"
	"github.com/fims-logistics/fims/internal/transport"
	"github.com/fims-logistics/fims/internal/warehouse"
	"github.com/fims-logistics/fims/jobs"
	"github.com/fims-logistics/fims/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if err := migrations.Up(ctx, cfg.PGDSN); err != nil {
		logger.Error("apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, balance cache disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()
	balances := cache.NewBalances(redisClient, cfg.BalanceCacheTTL)

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	rakeRepo := rake.NewRepository(pool)
	rakeService := rake.NewService(logger, rakeRepo, auditLogger, balances)
	rakeHandler := rake.NewHandler(logger, rakeService)

	dispatchRepo := dispatch.NewRepository(pool)
	dispatchService := dispatch.NewService(logger, dispatchRepo, auditLogger, metrics, balances)
	dispatchHandler := dispatch.NewHandler(logger, dispatchService)

	transportRepo := transport.NewRepository(pool)
	transportService := transport.NewService(logger, transportRepo, auditLogger, balances)
	transportHandler := transport.NewHandler(logger, transportService)

	warehouseRepo := warehouse.NewRepository(pool)
	warehouseService := warehouse.NewService(logger, warehouseRepo, auditLogger, metrics, balances)
	warehouseHandler := warehouse.NewHandler(logger, warehouseService)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(logger, billingRepo, auditLogger, metrics)
	billingHandler := billing.NewHandler(logger, billingService)

	masterRepo := masterdata.NewRepository(pool)
	masterService := masterdata.NewService(masterRepo)
	masterHandler := masterdata.NewHandler(logger, masterService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		RakeHandler:       rakeHandler,
		DispatchHandler:   dispatchHandler,
		TransportHandler:  transportHandler,
		WarehouseHandler:  warehouseHandler,
		BillingHandler:    billingHandler,
		MasterDataHandler: masterHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
