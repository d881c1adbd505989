package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tradeflow-erp/tradeflow/internal/app"
	"github.com/tradeflow-erp/tradeflow/internal/finance"
	"github.com/tradeflow-erp/tradeflow/internal/opportunities"
	"github.com/tradeflow-erp/tradeflow/internal/platform/cache"
	"github.com/tradeflow-erp/tradeflow/internal/platform/db"
	"github.com/tradeflow-erp/tradeflow/internal/procurement"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
	"github.com/tradeflow-erp/tradeflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, redisClient, cfg.FinanceCacheTTL)

	opportunitiesRepo := opportunities.NewRepository(pool)
	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, opportunitiesRepo, auditLogger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeNotify, Handler: jobs.NewNotifyHandler(logger)},
			{Type: jobs.TaskTypeLedgerIntegrity, Handler: jobs.NewLedgerIntegrityHandler(logger, financeService)},
			{Type: jobs.TaskTypeSourcingAlerts, Handler: jobs.NewSourcingAlertsHandler(logger, procurementService, client)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 2 * * *", Task: jobs.NewLedgerIntegrityTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 6 * * *", Task: jobs.NewSourcingAlertsTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
