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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/arcbooks/arcbooks/internal/accounts"
	"github.com/arcbooks/arcbooks/internal/app"
	"github.com/arcbooks/arcbooks/internal/history"
	"github.com/arcbooks/arcbooks/internal/journals"
	"github.com/arcbooks/arcbooks/internal/observability"
	"github.com/arcbooks/arcbooks/internal/platform/cache"
	"github.com/arcbooks/arcbooks/internal/shared"
	"github.com/arcbooks/arcbooks/internal/taxes"
	"github.com/arcbooks/arcbooks/internal/tenant"
	"github.com/arcbooks/arcbooks/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	schemaCache := cache.NewRedisCache(redisClient, "arcbooks")

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	tenantRouter := tenant.NewRouter(pool, cfg.TenantSchemaPrefix)
	tenantRepo := tenant.NewRepository(pool)
	tenantService := tenant.NewService(tenantRepo, schemaCache)
	provisioner := tenant.NewProvisioner(pool, tenantRepo, tenantRouter, auditLogger, jobsClient, metrics, logger)
	if err := provisioner.EnsureSharedSchema(ctx); err != nil {
		logger.Error("ensure shared schema", slog.Any("error", err))
		os.Exit(1)
	}
	tenantHandler := tenant.NewHandler(logger, tenantService, provisioner)

	accountRepo := accounts.NewRepository(tenantRouter)
	accountService := accounts.NewService(accountRepo)
	accountHandler := accounts.NewHandler(logger, accountService)

	journalRepo := journals.NewRepository(tenantRouter)
	journalService := journals.NewService(logger, journalRepo).
		WithAudit(auditLogger).
		WithMetrics(metrics)
	journalHandler := journals.NewHandler(logger, journalService)

	taxRepo := taxes.NewRepository(tenantRouter)
	taxService := taxes.NewService(taxRepo)
	taxHandler := taxes.NewHandler(logger, taxService)

	historyRepo := history.NewRepository(tenantRouter)
	historyService := history.NewService(historyRepo)
	historyHandler := history.NewHandler(logger, historyService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		TenantService:  tenantService,
		TenantHandler:  tenantHandler,
		AccountHandler: accountHandler,
		JournalHandler: journalHandler,
		TaxHandler:     taxHandler,
		HistoryHandler: historyHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
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
