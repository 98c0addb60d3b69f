package handlers

import (
	"github.com/gin-gonic/gin"

	"stocktally/internal/core/apperror"
	"stocktally/internal/core/id"
	"stocktally/internal/domain/expiry"
	"stocktally/internal/domain/finance"
)

// PostingsHandler exposes pending financial postings and their retry.
type PostingsHandler struct {
	*BaseHandler
	pendings   finance.PendingStore
	dispatcher *expiry.Dispatcher
}

// NewPostingsHandler creates a pending postings handler.
func NewPostingsHandler(base *BaseHandler, pendings finance.PendingStore, dispatcher *expiry.Dispatcher) *PostingsHandler {
	return &PostingsHandler{BaseHandler: base, pendings: pendings, dispatcher: dispatcher}
}

// List handles GET /postings/pending?includeResolved=.
func (h *PostingsHandler) List(c *gin.Context) {
	includeResolved := h.ParseBoolQuery(c, "includeResolved", false)

	pendings, err := h.pendings.List(c.Request.Context(), includeResolved)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"pendingPostings": pendings})
}

// Get handles GET /postings/pending/:id.
func (h *PostingsHandler) Get(c *gin.Context) {
	pendingID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid pending posting id").WithDetail("id", c.Param("id")))
		return
	}

	pending, err := h.pendings.Get(c.Request.Context(), pendingID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, pending)
}

// Retry handles POST /postings/pending/:id/retry.
func (h *PostingsHandler) Retry(c *gin.Context) {
	pendingID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid pending posting id").WithDetail("id", c.Param("id")))
		return
	}

	if err := h.dispatcher.Retry(c.Request.Context(), pendingID); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "posting retried")
}
