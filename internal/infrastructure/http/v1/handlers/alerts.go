package handlers

import (
	"github.com/gin-gonic/gin"

	"stocktally/internal/domain/alert"
	"stocktally/internal/infrastructure/cache"
)

// AlertsHandler evaluates discrepancy rules against the current summary set.
type AlertsHandler struct {
	*BaseHandler
	cache     *cache.SummaryCache
	evaluator *alert.Evaluator
}

// NewAlertsHandler creates an alerts handler.
func NewAlertsHandler(base *BaseHandler, summaryCache *cache.SummaryCache, evaluator *alert.Evaluator) *AlertsHandler {
	return &AlertsHandler{BaseHandler: base, cache: summaryCache, evaluator: evaluator}
}

// List handles GET /alerts?forceRefresh=.
func (h *AlertsHandler) List(c *gin.Context) {
	force := h.ParseBoolQuery(c, "forceRefresh", false)

	result, err := h.cache.Load(c.Request.Context(), force)
	if err != nil {
		h.Error(c, err)
		return
	}

	alerts := h.evaluator.Evaluate(c.Request.Context(), result.Summaries)

	h.OK(c, gin.H{
		"alerts":      alerts,
		"rules":       h.evaluator.Rules(),
		"lastUpdated": result.LastUpdated,
		"stale":       result.Stale,
	})
}
