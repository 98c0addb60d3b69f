package finance

import (
	"context"
	"time"

	"stocktally/internal/core/id"
)

// PendingPosting is a durable marker written when a movement committed but
// its financial posting failed. The stock change stays authoritative; the
// marker lets the caller retry the posting alone instead of resubmitting the
// movement (which would double-count stock).
type PendingPosting struct {
	ID         id.ID      `db:"id" json:"id"`
	MovementID id.ID      `db:"movement_id" json:"movementId"`
	SKU        string     `db:"sku" json:"sku"`
	Entry      Entry      `db:"-" json:"entry"`
	Reason     string     `db:"reason" json:"reason"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// Resolved reports whether the posting has since succeeded.
func (p PendingPosting) Resolved() bool {
	return p.ResolvedAt != nil
}

// PendingStore persists pending-posting markers.
type PendingStore interface {
	// Save records a failed posting for later retry.
	Save(ctx context.Context, pending PendingPosting) error

	// Get returns a pending posting by id.
	Get(ctx context.Context, pendingID id.ID) (PendingPosting, error)

	// List returns pending postings, newest first. When includeResolved
	// is false only open markers are returned.
	List(ctx context.Context, includeResolved bool) ([]PendingPosting, error)

	// MarkResolved stamps a marker after a successful retry.
	MarkResolved(ctx context.Context, pendingID id.ID, when time.Time) error
}
