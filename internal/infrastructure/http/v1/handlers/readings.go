package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"stocktally/internal/infrastructure/cache"
	"stocktally/internal/infrastructure/http/v1/dto"
	"stocktally/internal/infrastructure/storage/postgres"
)

// ReadingsHandler accepts actual-stock counts from the external stock system.
type ReadingsHandler struct {
	*BaseHandler
	readings *postgres.StockReadingRepo
	cache    *cache.SummaryCache
}

// NewReadingsHandler creates an actual-stock readings handler.
func NewReadingsHandler(base *BaseHandler, readings *postgres.StockReadingRepo, summaryCache *cache.SummaryCache) *ReadingsHandler {
	return &ReadingsHandler{BaseHandler: base, readings: readings, cache: summaryCache}
}

// Record handles POST /readings.
// A new count changes reconciliation input, so the cached set goes stale.
func (h *ReadingsHandler) Record(c *gin.Context) {
	var req dto.RecordReadingRequest
	if !h.BindJSON(c, &req) {
		return
	}

	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	if err := h.readings.RecordReading(c.Request.Context(), req.SKU, req.Quantity, recordedAt); err != nil {
		h.Error(c, err)
		return
	}

	h.cache.Invalidate()

	h.Success(c, "reading recorded")
}
