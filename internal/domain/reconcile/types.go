// Package reconcile derives expected stock from the movement ledger and
// reconciles it against externally reported actual stock.
package reconcile

import (
	"context"
	"time"
)

// Summary is the reconciliation result for one SKU. It is derived state:
// always rebuildable by replaying the ledger, never edited independently.
type Summary struct {
	SKU         string `json:"sku"`
	ProductName string `json:"productName"`

	// Signed sums by movement type.
	InitialStock     int64 `json:"initialStock"`
	TotalSales       int64 `json:"totalSales"`
	TotalAdjustments int64 `json:"totalAdjustments"`
	TotalPurchases   int64 `json:"totalPurchases"`

	// ExpectedStock is exactly the fold of all movements for the SKU
	// at computation time.
	ExpectedStock int64 `json:"expectedStock"`

	// ActualStock is supplied by the external stock source, not derived.
	ActualStock int64 `json:"actualStock"`

	// Discrepancy = actual - expected. Zero is a healthy, common state.
	Discrepancy int64 `json:"discrepancy"`

	LastReconciled time.Time `json:"lastReconciled"`
}

// ActualStockSource reports the authoritative stock snapshot for a SKU.
// A reading may be absent; the engine excludes such SKUs from the run
// rather than fabricating a value.
type ActualStockSource interface {
	ActualStock(ctx context.Context, sku string) (quantity int64, ok bool, err error)
}
