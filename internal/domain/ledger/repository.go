package ledger

import (
	"context"

	"stocktally/internal/core/id"
)

// Store defines persistence operations for the movement ledger.
type Store interface {
	// Append persists a single movement. The ledger is append-only.
	Append(ctx context.Context, m *Movement) error

	// AppendBatch persists many movements in one transaction
	// (used by the sale importer and purchase receiving).
	AppendBatch(ctx context.Context, movements []*Movement) error

	// MovementsBySKU returns all movements for a SKU, oldest first.
	// The query is finite and re-runnable.
	MovementsBySKU(ctx context.Context, sku string) ([]Movement, error)

	// Delete removes a movement by id. Exceptional path for operator
	// error correction only; normal corrections are offsetting movements.
	Delete(ctx context.Context, movementID id.ID) error

	// SKUs returns the distinct SKUs present in the ledger.
	SKUs(ctx context.Context) ([]string, error)
}
