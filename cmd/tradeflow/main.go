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

	"github.com/tradeflow-erp/tradeflow/internal/app"
	"github.com/tradeflow-erp/tradeflow/internal/auth"
	"github.com/tradeflow-erp/tradeflow/internal/billing"
	"github.com/tradeflow-erp/tradeflow/internal/companies"
	"github.com/tradeflow-erp/tradeflow/internal/finance"
	"github.com/tradeflow-erp/tradeflow/internal/observability"
	"github.com/tradeflow-erp/tradeflow/internal/opportunities"
	"github.com/tradeflow-erp/tradeflow/internal/platform/cache"
	"github.com/tradeflow-erp/tradeflow/internal/platform/db"
	"github.com/tradeflow-erp/tradeflow/internal/procurement"
	"github.com/tradeflow-erp/tradeflow/internal/rbac"
	"github.com/tradeflow-erp/tradeflow/internal/salesorders"
	"github.com/tradeflow-erp/tradeflow/internal/samples"
	"github.com/tradeflow-erp/tradeflow/internal/shared"
	"github.com/tradeflow-erp/tradeflow/internal/shipments"
	"github.com/tradeflow-erp/tradeflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	sessionManager := shared.NewSessionManager(redisClient, "tradeflow_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	locker := shared.NewMutationLocker(redisClient, cfg.MutationLockTTL)
	idemStore := shared.NewIdempotencyStore(pool)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rbacService := rbac.NewService(pool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	companiesRepo := companies.NewRepository(pool)
	companiesService := companies.NewService(companiesRepo, auditLogger)

	samplesRepo := samples.NewRepository(pool)
	samplesService := samples.NewService(samplesRepo, auditLogger)

	opportunitiesRepo := opportunities.NewRepository(pool)
	opportunitiesService := opportunities.NewService(opportunitiesRepo, samplesService, auditLogger)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, opportunitiesRepo, auditLogger)

	shipmentsRepo := shipments.NewRepository(pool)
	shipmentsService := shipments.NewService(shipmentsRepo, procurementService, auditLogger)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, redisClient, cfg.FinanceCacheTTL)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, auditLogger, locker, financeService, idemStore)

	salesOrdersRepo := salesorders.NewRepository(pool)
	salesOrdersService := salesorders.NewService(salesOrdersRepo, opportunitiesRepo, procurementService, billingService, shipmentsService, auditLogger, locker, idemStore)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		AuthHandler:          authHandler,
		CompaniesHandler:     companies.NewHandler(logger, companiesService, rbacMiddleware),
		OpportunitiesHandler: opportunities.NewHandler(logger, opportunitiesService, rbacMiddleware),
		SamplesHandler:       samples.NewHandler(logger, samplesService, rbacMiddleware),
		ProcurementHandler:   procurement.NewHandler(logger, procurementService, rbacMiddleware),
		ShipmentsHandler:     shipments.NewHandler(logger, shipmentsService, rbacMiddleware),
		SalesOrdersHandler:   salesorders.NewHandler(logger, salesOrdersService, rbacMiddleware),
		BillingHandler:       billing.NewHandler(logger, billingService, rbacMiddleware),
		FinanceHandler:       finance.NewHandler(logger, financeService, rbacMiddleware),
		JobHandler:           jobHandler,
		Metrics:              metrics,
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
