// Package ledger provides the append-only stock movement ledger.
// Movements are never edited; corrections are new offsetting movements.
package ledger

import (
	"context"
	"time"

	"stocktally/internal/core/apperror"
	"stocktally/internal/core/id"
)

// MovementType classifies a ledger entry by origin.
type MovementType string

const (
	TypeInitial    MovementType = "initial"
	TypeSale       MovementType = "sale"
	TypeAdjustment MovementType = "adjustment"
	TypePurchase   MovementType = "purchase"
)

// AdjustmentReason is set if and only if the movement type is adjustment.
type AdjustmentReason string

const (
	ReasonExpiry     AdjustmentReason = "expiry"
	ReasonDamage     AdjustmentReason = "damage"
	ReasonTheft      AdjustmentReason = "theft"
	ReasonCorrection AdjustmentReason = "correction"
	ReasonOther      AdjustmentReason = "other"
)

// Movement is a single signed quantity change event for a SKU.
// Quantity sign encodes direction: positive adds stock, negative removes it.
type Movement struct {
	ID          id.ID            `db:"id" json:"id"`
	SKU         string           `db:"sku" json:"sku"`
	Date        time.Time        `db:"movement_date" json:"movementDate"`
	Quantity    int64            `db:"quantity" json:"quantity"`
	Type        MovementType     `db:"movement_type" json:"movementType"`
	Reason      AdjustmentReason `db:"reason" json:"reason,omitempty"`
	ReferenceID *string          `db:"reference_id" json:"referenceId,omitempty"`
	BatchNumber *string          `db:"batch_number" json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time       `db:"expiry_date" json:"expiryDate,omitempty"`
	Notes       string           `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
	CreatedBy   string           `db:"created_by" json:"createdBy,omitempty"`
}

// NewMovement creates a movement with a generated id and timestamps.
func NewMovement(sku string, quantity int64, movementType MovementType) *Movement {
	now := time.Now().UTC()
	return &Movement{
		ID:        id.New(),
		SKU:       sku,
		Date:      now,
		Quantity:  quantity,
		Type:      movementType,
		CreatedAt: now,
	}
}

// Validate checks the ledger entry invariants. Movements are rejected before
// any write: a zero quantity carries no ledger meaning, and an adjustment
// reason is required exactly for adjustments.
func (m *Movement) Validate(ctx context.Context) error {
	if m.SKU == "" {
		return apperror.NewValidation("sku is required").
			WithDetail("field", "sku")
	}

	if m.Quantity == 0 {
		return apperror.NewValidation("quantity must not be zero").
			WithDetail("field", "quantity")
	}

	if !isValidMovementType(m.Type) {
		return apperror.NewValidation("invalid movement type").
			WithDetail("field", "movementType").
			WithDetail("value", string(m.Type))
	}

	if m.Type == TypeAdjustment {
		if m.Reason == "" {
			return apperror.NewValidation("adjustment requires a reason").
				WithDetail("field", "reason")
		}
		if !isValidAdjustmentReason(m.Reason) {
			return apperror.NewValidation("invalid adjustment reason").
				WithDetail("field", "reason").
				WithDetail("value", string(m.Reason))
		}
	} else if m.Reason != "" {
		return apperror.NewValidation("reason is only allowed for adjustments").
			WithDetail("field", "reason").
			WithDetail("movementType", string(m.Type))
	}

	if m.Date.IsZero() {
		return apperror.NewValidation("movement date is required").
			WithDetail("field", "movementDate")
	}

	return nil
}

// IsExpiryRemoval reports whether this movement triggers the expiry
// side-effect: an expiry-reason adjustment that removes stock.
func (m *Movement) IsExpiryRemoval() bool {
	return m.Type == TypeAdjustment && m.Reason == ReasonExpiry && m.Quantity < 0
}

// --- Validation Helpers ---

func isValidMovementType(t MovementType) bool {
	switch t {
	case TypeInitial, TypeSale, TypeAdjustment, TypePurchase:
		return true
	}
	return false
}

func isValidAdjustmentReason(r AdjustmentReason) bool {
	switch r {
	case ReasonExpiry, ReasonDamage, ReasonTheft, ReasonCorrection, ReasonOther:
		return true
	}
	return false
}
