package dto

import (
	"time"

	"stocktally/internal/core/types"
	"stocktally/internal/domain/expiry"
	"stocktally/internal/domain/ledger"
	"stocktally/internal/domain/reconcile"
)

// ExpiryContextRequest selects the financial handling for an expiry removal.
type ExpiryContextRequest struct {
	Mode        string  `json:"mode" binding:"required"`
	SaleAmount  float64 `json:"saleAmount"`
	PostNetLoss bool    `json:"postNetLoss"`
	LossAmount  float64 `json:"lossAmount"`
}

// ToContext converts to the domain expiry context.
func (r *ExpiryContextRequest) ToContext() *expiry.Context {
	if r == nil {
		return nil
	}
	return &expiry.Context{
		Mode:        expiry.Mode(r.Mode),
		SaleAmount:  types.NewMoney(r.SaleAmount),
		PostNetLoss: r.PostNetLoss,
		LossAmount:  types.NewMoney(r.LossAmount),
	}
}

// SubmitMovementRequest creates one ledger movement.
type SubmitMovementRequest struct {
	SKU          string     `json:"sku" binding:"required"`
	MovementDate *time.Time `json:"movementDate"`
	Quantity     int64      `json:"quantity" binding:"required"`
	MovementType string     `json:"movementType" binding:"required"`
	Reason       string     `json:"reason"`
	ReferenceID  *string    `json:"referenceId"`
	BatchNumber  *string    `json:"batchNumber"`
	ExpiryDate   *time.Time `json:"expiryDate"`
	Notes        string     `json:"notes"`
	CreatedBy    string     `json:"createdBy"`

	// ExpiryContext is required exactly when the movement is an
	// expiry-reason stock removal.
	ExpiryContext *ExpiryContextRequest `json:"expiryContext"`
}

// ToMovement converts the request to a domain movement.
func (r *SubmitMovementRequest) ToMovement() *ledger.Movement {
	m := ledger.NewMovement(r.SKU, r.Quantity, ledger.MovementType(r.MovementType))
	if r.MovementDate != nil {
		m.Date = *r.MovementDate
	}
	m.Reason = ledger.AdjustmentReason(r.Reason)
	m.ReferenceID = r.ReferenceID
	m.BatchNumber = r.BatchNumber
	m.ExpiryDate = r.ExpiryDate
	m.Notes = r.Notes
	m.CreatedBy = r.CreatedBy
	return m
}

// SubmitBatchRequest appends many movements at once (e.g. a sales import).
type SubmitBatchRequest struct {
	Movements []SubmitMovementRequest `json:"movements" binding:"required"`
}

// SubmitMovementResponse returns the recorded movement and, when available,
// the refreshed summary for its SKU.
type SubmitMovementResponse struct {
	Movement ledger.Movement    `json:"movement"`
	Summary  *reconcile.Summary `json:"summary,omitempty"`
}

// RecordReadingRequest stores an actual-stock count from the external system.
type RecordReadingRequest struct {
	SKU        string     `json:"sku" binding:"required"`
	Quantity   int64      `json:"quantity"`
	RecordedAt *time.Time `json:"recordedAt"`
}
