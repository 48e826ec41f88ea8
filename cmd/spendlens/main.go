package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spendlens/spendlens-go/internal/config"
	"github.com/spendlens/spendlens-go/internal/domain"
	"github.com/spendlens/spendlens-go/internal/handler"
	"github.com/spendlens/spendlens-go/internal/infra/cache"
	"github.com/spendlens/spendlens-go/internal/infra/client"
	"github.com/spendlens/spendlens-go/internal/infra/feedstore"
	"github.com/spendlens/spendlens-go/internal/infra/observability"
	"github.com/spendlens/spendlens-go/internal/infra/resilience"
	"github.com/spendlens/spendlens-go/internal/port"
	"github.com/spendlens/spendlens-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("home_city", cfg.HomeCity),
		zap.Duration("dup_window", cfg.DupWindow),
		zap.Float64("spike_multiplier", cfg.SpikeMultiplier),
		zap.String("feed_db", cfg.FeedDBPath),
		zap.Duration("feed_poll_interval", cfg.FeedPollInterval),
		zap.Duration("cache_ttl", cfg.CacheTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "spendlens")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Plan catalog ---
	catalog, err := cfg.LoadPlanCatalog()
	if err != nil {
		logger.Fatal("failed to load plan catalog", zap.Error(err))
	}

	// --- Cache ---
	reportCache := cache.New[*domain.AnalysisReport](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("openrouter")

	// --- Services ---
	analysisSvc := service.NewAnalysis(
		service.DetectionConfig{
			HomeCity:        cfg.HomeCity,
			DupWindow:       cfg.DupWindow,
			SpikeMultiplier: cfg.SpikeMultiplier,
			Catalog:         catalog,
		},
		reportCache,
		metrics,
		logger,
	)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	openRouter := client.NewOpenRouterClient(
		httpClient, cfg.OpenRouterURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel,
		cb, resilienceCfg,
	)
	if cfg.OpenRouterAPIKey == "" {
		logger.Warn("OPENROUTER_API_KEY not set, advisor requests will fail upstream")
	}
	advisorSvc := service.NewAdvisor(openRouter, analysisSvc, metrics, logger)

	// --- Live feed ---
	pollCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()

	var feed port.TransactionSource
	var sink port.TransactionSink
	if cfg.FeedDBPath != "" {
		store, err := feedstore.NewStore(cfg.FeedDBPath)
		if err != nil {
			logger.Fatal("failed to open feed store", zap.Error(err))
		}
		defer store.Close()
		feed = store
		sink = store

		poller := feedstore.NewPoller(store, cfg.FeedPollInterval, func(ctx context.Context, txns []domain.Transaction) {
			analysisSvc.SetLedger(ctx, txns, "feed")
		}, logger)
		go poller.Run(pollCtx)
		logger.Info("feed poller started", zap.String("db", cfg.FeedDBPath))
	} else {
		logger.Warn("FEED_DB_PATH empty, running upload-only")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Analysis: analysisSvc,
		Advisor:  advisorSvc,
		Feed:     feed,
		Sink:     sink,
		HomeCity: cfg.HomeCity,
		Metrics:  metrics,
		Logger:   logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	stopPoller()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
