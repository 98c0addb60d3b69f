// Package main is the entry point for the stocktally API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocktally/internal/domain/alert"
	"stocktally/internal/domain/engine"
	"stocktally/internal/domain/expiry"
	"stocktally/internal/domain/reconcile"
	"stocktally/internal/infrastructure/cache"
	v1 "stocktally/internal/infrastructure/http/v1"
	"stocktally/internal/infrastructure/storage/postgres"
	"stocktally/pkg/config"
	"stocktally/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.App.Env == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stocktally server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	ledgerRepo := postgres.NewLedgerRepo(txManager)
	catalogRepo := postgres.NewCatalogRepo(txManager)
	readingsRepo := postgres.NewStockReadingRepo(txManager)
	financeRepo := postgres.NewFinanceRepo(txManager)

	// --- Domain services ---
	reconcileService := reconcile.NewService(ledgerRepo, catalogRepo, readingsRepo, cfg.Reconcile.SourceTimeout)
	dispatcher := expiry.NewDispatcher(financeRepo, financeRepo, catalogRepo, cfg.Expiry.RequireLossAmount)

	// --- Summary cache ---
	var snapshots *cache.SnapshotStore
	if cfg.Cache.SnapshotPath != "" {
		snapshots, err = cache.NewSnapshotStore(cfg.Cache.SnapshotPath)
		if err != nil {
			log.Fatalw("failed to create snapshot store", "error", err)
		}
	}

	summaryCache := cache.NewSummaryCache(reconcileService, snapshots)
	if err := summaryCache.Restore(ctx); err != nil {
		log.Warnw("failed to restore summary snapshot, starting empty", "error", err)
	}

	engineService := engine.NewService(ledgerRepo, txManager, dispatcher, summaryCache)

	// --- Alert rules ---
	var evaluator *alert.Evaluator
	if len(cfg.Alerts.Rules) > 0 {
		rules := make([]alert.Rule, 0, len(cfg.Alerts.Rules))
		for _, r := range cfg.Alerts.Rules {
			rules = append(rules, alert.Rule{Name: r.Name, Expr: r.Expr})
		}
		evaluator, err = alert.NewEvaluator(rules)
		if err != nil {
			log.Fatalw("failed to compile alert rules", "error", err)
		}
		log.Infow("alert rules compiled", "count", len(rules))
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		Pool:         pool,
		Engine:       engineService,
		SummaryCache: summaryCache,
		Dispatcher:   dispatcher,
		Pendings:     financeRepo,
		Readings:     readingsRepo,
		Alerts:       evaluator,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
