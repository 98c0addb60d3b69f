// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stocktally/internal/core/apperror"
	"stocktally/internal/core/id"
	"stocktally/internal/domain/engine"
	"stocktally/internal/domain/ledger"
	"stocktally/internal/infrastructure/http/v1/dto"
)

// MovementsHandler exposes the movement ledger.
type MovementsHandler struct {
	*BaseHandler
	engine *engine.Service
}

// NewMovementsHandler creates a movements handler.
func NewMovementsHandler(base *BaseHandler, eng *engine.Service) *MovementsHandler {
	return &MovementsHandler{BaseHandler: base, engine: eng}
}

// Submit handles POST /movements.
// An expiry removal must carry an expiryContext; a failed financial posting
// surfaces as 502 with the pending posting id while the movement stays
// committed.
func (h *MovementsHandler) Submit(c *gin.Context) {
	var req dto.SubmitMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	movement := req.ToMovement()
	summary, err := h.engine.SubmitMovement(c.Request.Context(), movement, req.ExpiryContext.ToContext())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SubmitMovementResponse{
		Movement: *movement,
		Summary:  summary,
	})
}

// SubmitBatch handles POST /movements/batch.
func (h *MovementsHandler) SubmitBatch(c *gin.Context) {
	var req dto.SubmitBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	movements := make([]*ledger.Movement, 0, len(req.Movements))
	for _, mr := range req.Movements {
		movements = append(movements, mr.ToMovement())
	}

	if err := h.engine.SubmitBatch(c.Request.Context(), movements); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"count": len(movements)})
}

// List handles GET /movements?sku=.
func (h *MovementsHandler) List(c *gin.Context) {
	sku := c.Query("sku")
	movements, err := h.engine.Movements(c.Request.Context(), sku)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"movements": movements})
}

// SKUs handles GET /movements/skus.
func (h *MovementsHandler) SKUs(c *gin.Context) {
	skus, err := h.engine.SKUs(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"skus": skus})
}

// Delete handles DELETE /movements/:id.
// Exceptional correction path; the routine correction is an offsetting movement.
func (h *MovementsHandler) Delete(c *gin.Context) {
	movementID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid movement id").WithDetail("id", c.Param("id")))
		return
	}

	if err := h.engine.DeleteMovement(c.Request.Context(), movementID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
