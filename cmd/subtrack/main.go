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

	"github.com/subtrack/subtrack-go/internal/config"
	"github.com/subtrack/subtrack-go/internal/detect"
	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/handler"
	"github.com/subtrack/subtrack-go/internal/infra/bankfeed"
	"github.com/subtrack/subtrack-go/internal/infra/cache"
	"github.com/subtrack/subtrack-go/internal/infra/docparse"
	"github.com/subtrack/subtrack-go/internal/infra/observability"
	"github.com/subtrack/subtrack-go/internal/infra/resilience"
	"github.com/subtrack/subtrack-go/internal/infra/store/sqlite"
	"github.com/subtrack/subtrack-go/internal/port"
	"github.com/subtrack/subtrack-go/internal/service"
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
		zap.String("db_path", cfg.DBPath),
		zap.Bool("stub_feed", cfg.UseStubFeed),
		zap.Bool("mock_docparse", cfg.MockDocParse),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "subtrack")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	// --- Cache ---
	subscriptionCache := cache.New[[]domain.SubscriptionView](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("external-apis")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var feed port.BankFeed
	if cfg.UseStubFeed {
		logger.Info("using stub bank feed")
		feed = bankfeed.NewStub()
	} else {
		feed = bankfeed.NewClient(httpClient, cfg.FeedAPIURL, cfg.FeedAPIToken, cb, resilienceCfg)
	}

	var parser port.InvoiceParser
	if cfg.MockDocParse {
		logger.Info("using mock invoice parser")
		parser = docparse.NewMock()
	} else {
		parser = docparse.NewClient(httpClient, cfg.DocParseURL, cb, resilienceCfg)
	}

	// --- Detector ---
	detectCfg := detect.DefaultConfig()
	if cfg.DetectionWindowDays > 0 {
		detectCfg.WindowDays = cfg.DetectionWindowDays
	}
	if len(cfg.NoiseTerms) > 0 {
		detectCfg.NoiseTerms = cfg.NoiseTerms
	}
	if len(cfg.ExcludedCategories) > 0 {
		detectCfg.ExcludedCategories = cfg.ExcludedCategories
	}
	detector := detect.New(detectCfg)

	// --- Services ---
	svcs := handler.Services{
		Detection:     service.NewDetectionService(store, detector, subscriptionCache, metrics, logger),
		Subscriptions: service.NewSubscriptionService(store, subscriptionCache, metrics, logger),
		Transactions:  service.NewTransactionService(store, subscriptionCache, metrics, logger),
		Sync:          service.NewSyncService(store, feed, metrics, logger),
		Invoices:      service.NewInvoiceService(store, parser, metrics, logger),
	}

	// --- Router ---
	router := handler.NewRouter(svcs, metrics, logger)

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
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
