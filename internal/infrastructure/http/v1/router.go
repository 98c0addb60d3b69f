// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stocktally/internal/domain/alert"
	"stocktally/internal/domain/engine"
	"stocktally/internal/domain/expiry"
	"stocktally/internal/domain/finance"
	"stocktally/internal/infrastructure/cache"
	"stocktally/internal/infrastructure/http/v1/handlers"
	"stocktally/internal/infrastructure/http/v1/middleware"
	"stocktally/internal/infrastructure/storage/postgres"
	"stocktally/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Pool is the database connection (for health checks)
	Pool *postgres.Pool

	// Engine is the movement submission orchestrator
	Engine *engine.Service

	// SummaryCache serves reconciliation summaries
	SummaryCache *cache.SummaryCache

	// Dispatcher retries failed financial postings
	Dispatcher *expiry.Dispatcher

	// Pendings lists pending-posting markers
	Pendings finance.PendingStore

	// Readings stores actual-stock counts
	Readings *postgres.StockReadingRepo

	// Alerts evaluates discrepancy rules
	Alerts *alert.Evaluator
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.SummaryCache)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	base := handlers.NewBaseHandler()
	api := router.Group("/api/v1")
	{
		movementsHandler := handlers.NewMovementsHandler(base, cfg.Engine)
		movements := api.Group("/movements")
		{
			movements.POST("", movementsHandler.Submit)
			movements.POST("/batch", movementsHandler.SubmitBatch)
			movements.GET("", movementsHandler.List)
			movements.GET("/skus", movementsHandler.SKUs)
			movements.DELETE("/:id", movementsHandler.Delete)
		}

		summariesHandler := handlers.NewSummariesHandler(base, cfg.SummaryCache)
		summaries := api.Group("/summaries")
		{
			summaries.GET("", summariesHandler.List)
			summaries.POST("/refresh", summariesHandler.Refresh)
			summaries.GET("/:sku", summariesHandler.Get)
		}

		postingsHandler := handlers.NewPostingsHandler(base, cfg.Pendings, cfg.Dispatcher)
		pending := api.Group("/postings/pending")
		{
			pending.GET("", postingsHandler.List)
			pending.GET("/:id", postingsHandler.Get)
			pending.POST("/:id/retry", postingsHandler.Retry)
		}

		readingsHandler := handlers.NewReadingsHandler(base, cfg.Readings, cfg.SummaryCache)
		api.POST("/readings", readingsHandler.Record)

		if cfg.Alerts != nil {
			alertsHandler := handlers.NewAlertsHandler(base, cfg.SummaryCache, cfg.Alerts)
			api.GET("/alerts", alertsHandler.List)
		}
	}

	return router
}
