package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/orderbook-engine/service/internal/apiserver"
	"github.com/orderbook-engine/service/internal/config"
	"github.com/orderbook-engine/service/internal/feed"
	"github.com/orderbook-engine/service/internal/orderbook"
	"github.com/orderbook-engine/service/internal/sik"
	"github.com/orderbook-engine/service/pkg/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Initialize observability stack
	obs, err := observability.NewProvider(cfg.Observability)
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	logger := obs.Logger
	if err := obs.Start(ctx); err != nil {
		log.Fatalf("Failed to start observability: %v", err)
	}

	// Build the per-symbol book registry
	bookCfg, err := orderBookConfig(cfg.OrderBook)
	if err != nil {
		logger.Error(ctx, "Invalid order book configuration", err)
		os.Exit(1)
	}
	registry := orderbook.NewRegistry(bookCfg)
	registry.SetLogger(logger)

	// Depth feed
	reader := feed.NewReader(logger, feed.Config{
		WSBaseURL:           cfg.Feed.WSBaseURL,
		Testnet:             cfg.Feed.Testnet,
		Symbols:             cfg.Feed.Symbols,
		HandshakeTimeout:    cfg.Feed.HandshakeTimeout,
		ReadTimeout:         cfg.Feed.ReadTimeout,
		PingInterval:        cfg.Feed.PingInterval,
		ReconnectRate:       cfg.Feed.ReconnectRate,
		ReconnectBurst:      cfg.Feed.ReconnectBurst,
		CircuitOpenDuration: cfg.Feed.CircuitOpenDuration,
	}, registry)
	reader.SetMetrics(obs.Metrics)

	feedCtx, cancelFeed := context.WithCancel(ctx)
	go func() {
		if err := reader.Start(feedCtx); err != nil && feedCtx.Err() == nil {
			logger.Error(ctx, "Depth feed exited", err)
		}
	}()

	// Query API server
	api := apiserver.NewServer(apiserver.Options{
		ServiceName:        cfg.Observability.ServiceName,
		CORSAllowedOrigins: cfg.Security.CORSAllowedOrigins,
		JWTSecret:          cfg.JWT.Secret,
		RequestsPerMinute:  cfg.RateLimit.RequestsPerMinute,
		Burst:              cfg.RateLimit.Burst,
	}, registry, logger, obs.Metrics)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "Starting query API server", map[string]interface{}{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Failed to start server", err)
			os.Exit(1)
		}
	}()

	// Ops server: health probes and book-level performance snapshot
	perf := observability.NewPerformanceMonitor(logger)
	opsServer := startOpsServer(cfg, registry, reader, perf, logger)

	// Periodic book-state sampling for the performance monitor
	samplerDone := make(chan struct{})
	go sampleBooks(registry, perf, cfg.OrderBook.PruneInterval, samplerDone)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Shutting down order book service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cancelFeed()
	reader.Stop()
	close(samplerDone)
	perf.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Server forced to shutdown", err)
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Ops server forced to shutdown", err)
	}
	if err := obs.Stop(shutdownCtx); err != nil {
		logger.Error(ctx, "Observability shutdown failed", err)
	}
}

// orderBookConfig converts the wire-form configuration into the core's
// scaled representation.
func orderBookConfig(cfg config.OrderBookConfig) (orderbook.OrderBookConfig, error) {
	tick, err := sik.PriceToInt(cfg.TickSize, sik.PriceScale)
	if err != nil {
		return orderbook.OrderBookConfig{}, fmt.Errorf("tick size: %w", err)
	}
	return orderbook.OrderBookConfig{
		PricePrecision:   cfg.PricePrecision,
		TickSize:         sik.ScaledPrice(tick),
		MaxLevels:        cfg.MaxLevels,
		MaxPriceDistance: cfg.MaxPriceDistance,
		PruneInterval:    cfg.PruneInterval,
		MaxErrorRate:     cfg.MaxErrorRate,
		StaleThreshold:   cfg.StaleThreshold,
	}, nil
}

// startOpsServer serves the Kubernetes-style health probes and the
// performance snapshot on a separate port from the query API.
func startOpsServer(cfg *config.Config, registry *orderbook.Registry, reader *feed.Reader, perf *observability.PerformanceMonitor, logger *observability.Logger) *http.Server {
	checker := observability.NewHealthChecker(logger)
	checker.RegisterCheck("feed", observability.FeedHealthCheck(reader.Connected))
	for _, symbol := range cfg.Feed.Symbols {
		book := registry.GetOrCreate(symbol)
		checker.RegisterCheck("book:"+symbol, observability.OrderBookHealthCheck(symbol, func() (string, map[string]interface{}) {
			h := book.GetHealth()
			return h.Status, map[string]interface{}{
				"book_size":    h.BookSize,
				"stale_levels": h.Details.StaleLevels,
				"error_rate":   h.ErrorRate,
			}
		}))
	}

	healthServer := observability.NewHealthServer(checker, observability.ServiceInfo{
		Name:        cfg.Observability.ServiceName,
		Version:     "1.0.0",
		Environment: os.Getenv("ENVIRONMENT"),
	}, logger)

	router := mux.NewRouter()
	healthServer.RegisterRoutes(router)
	router.HandleFunc("/performance", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(perf.GetHealthStatus())
	}).Methods("GET")

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.OpsPort),
		Handler: router,
	}

	go func() {
		logger.Info(context.Background(), "Starting ops server", map[string]interface{}{
			"port": cfg.Server.OpsPort,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(context.Background(), "Failed to start ops server", err)
		}
	}()

	return server
}

// sampleBooks periodically records registry-wide book gauges for the
// performance monitor.
func sampleBooks(registry *orderbook.Registry, perf *observability.PerformanceMonitor, interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			var levels, breakersOpen int64
			for _, symbol := range registry.Symbols() {
				book, err := registry.Get(symbol)
				if err != nil {
					continue
				}
				levels += int64(book.Size())
				if book.CircuitBreakerOpen() {
					breakersOpen++
				}
			}
			perf.RecordBookMetrics(levels, breakersOpen)
		}
	}
}
