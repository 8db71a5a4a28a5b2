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
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/packledger/packledger/internal/app"
	"github.com/packledger/packledger/internal/costing"
	"github.com/packledger/packledger/internal/invoice"
	"github.com/packledger/packledger/internal/observability"
	"github.com/packledger/packledger/internal/outstanding"
	"github.com/packledger/packledger/internal/party"
	"github.com/packledger/packledger/internal/platform/cache"
	"github.com/packledger/packledger/internal/platform/db"
	"github.com/packledger/packledger/internal/settlement"
	"github.com/packledger/packledger/internal/shared"
	"github.com/packledger/packledger/internal/stock"
	"github.com/packledger/packledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

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
		logger.Warn("redis connect", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	outstandingCache := outstanding.NewCache(redisClient, logger, cfg.OutstandingCacheTTL)

	partyRepo := party.NewRepository(pool)
	partyService := party.NewService(partyRepo)
	partyHandler := party.NewHandler(logger, partyService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, auditLogger, idempotencyStore, stock.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})
	stockHandler := stock.NewHandler(logger, stockService)

	costingRepo := costing.NewRepository(pool)
	costingService := costing.NewService(costingRepo)

	settlementRepo := settlement.NewRepository(pool)
	settlementService := settlement.NewService(settlementRepo, auditLogger, outstandingCache)
	settlementHandler := settlement.NewHandler(logger, settlementService, metrics)

	outstandingRepo := outstanding.NewRepository(pool)
	outstandingService := outstanding.NewService(outstandingRepo, outstandingCache)
	outstandingHandler := outstanding.NewHandler(logger, outstandingService)

	invoiceRepo := invoice.NewRepository(pool)
	invoiceService := invoice.NewService(logger, invoiceRepo, partyService, costingService, stockService, settlementService, outstandingCache)
	invoiceHandler := invoice.NewHandler(logger, invoiceService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		PartyHandler:       partyHandler,
		InvoiceHandler:     invoiceHandler,
		SettlementHandler:  settlementHandler,
		OutstandingHandler: outstandingHandler,
		StockHandler:       stockHandler,
		JobHandler:         jobHandler,
		Pool:               pool,
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
