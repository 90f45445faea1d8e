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

	"github.com/campusledger/campusledger/internal/app"
	"github.com/campusledger/campusledger/internal/billing"
	"github.com/campusledger/campusledger/internal/calendar"
	"github.com/campusledger/campusledger/internal/directory"
	"github.com/campusledger/campusledger/internal/feeschedule"
	"github.com/campusledger/campusledger/internal/observability"
	"github.com/campusledger/campusledger/internal/platform/cache"
	"github.com/campusledger/campusledger/internal/platform/db"
	"github.com/campusledger/campusledger/internal/reports"
	"github.com/campusledger/campusledger/internal/shared"
	"github.com/campusledger/campusledger/jobs"
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
		logger.Warn("redis unavailable, reports uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	calendarService := calendar.NewService(calendar.NewRepository(pool))
	directoryRepo := directory.NewRepository(pool)
	directoryHandler := directory.NewHandler(logger, directoryRepo)

	feeRepo := feeschedule.NewRepository(pool)
	feeService := feeschedule.NewService(feeRepo, auditLogger)
	feeHandler := feeschedule.NewHandler(logger, feeService)

	policy, err := billing.ParseStreamFeePolicy(cfg.StreamFeePolicy)
	if err != nil {
		logger.Error("stream fee policy", slog.Any("error", err))
		os.Exit(1)
	}

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, directoryRepo, feeService, calendarService,
		auditLogger, reportCache, metrics, logger, billing.ServiceConfig{StreamFeePolicy: policy})
	billingHandler := billing.NewHandler(logger, billingService)

	reportsService := reports.NewService(billingService, directoryRepo)
	reportsHandler := reports.NewHandler(logger, reportsService, reportCache)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	idemStore := shared.NewIdempotencyStore(pool)
	jobHandler := jobs.NewHandler(jobClient, inspector, idemStore, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		BillingHandler:     billingHandler,
		DirectoryHandler:   directoryHandler,
		FeeScheduleHandler: feeHandler,
		ReportsHandler:     reportsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
