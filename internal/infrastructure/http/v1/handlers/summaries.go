package handlers

import (
	"github.com/gin-gonic/gin"

	"stocktally/internal/infrastructure/cache"
)

// SummariesHandler serves reconciliation summaries from the cache.
type SummariesHandler struct {
	*BaseHandler
	cache *cache.SummaryCache
}

// NewSummariesHandler creates a summaries handler.
func NewSummariesHandler(base *BaseHandler, summaryCache *cache.SummaryCache) *SummariesHandler {
	return &SummariesHandler{BaseHandler: base, cache: summaryCache}
}

// List handles GET /summaries?forceRefresh=.
// Cached data is served as-is; forceRefresh recomputes the whole set first.
func (h *SummariesHandler) List(c *gin.Context) {
	force := h.ParseBoolQuery(c, "forceRefresh", false)

	result, err := h.cache.Load(c.Request.Context(), force)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Refresh handles POST /summaries/refresh.
// Always recomputes; concurrent refreshes coalesce into one pass.
func (h *SummariesHandler) Refresh(c *gin.Context) {
	result, err := h.cache.Load(c.Request.Context(), true)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}

// Get handles GET /summaries/:sku.
func (h *SummariesHandler) Get(c *gin.Context) {
	summary, err := h.cache.Summary(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, summary)
}
