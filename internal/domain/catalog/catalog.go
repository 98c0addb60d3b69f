// Package catalog provides the read-only product catalog port.
// The catalog itself is owned by an external collaborator; the engine only
// needs product names and supplier unit costs.
package catalog

import (
	"context"

	"stocktally/internal/core/types"
)

// ProductRef is the slice of catalog data the engine cares about.
type ProductRef struct {
	SKU  string `db:"sku" json:"sku"`
	Name string `db:"name" json:"name"`

	// SupplierUnitCost is nil when the catalog has no cost on record.
	SupplierUnitCost *types.Money `db:"supplier_unit_cost" json:"supplierUnitCost,omitempty"`
}

// Catalog defines read operations against the product catalog.
type Catalog interface {
	// Products returns all products known to the catalog.
	Products(ctx context.Context) ([]ProductRef, error)

	// Product returns a single product. Returns apperror.CodeNotFound
	// when the SKU is absent from the catalog.
	Product(ctx context.Context, sku string) (ProductRef, error)

	// UnitCost returns the supplier unit cost for a SKU.
	// ok is false when the SKU is unknown or carries no cost; callers
	// treat that as "cost unknown" (zero), not as a failure.
	UnitCost(ctx context.Context, sku string) (cost types.Money, ok bool, err error)
}
