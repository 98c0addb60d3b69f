// Package finance provides the financial ledger port and posting types.
// The financial ledger is a separate collaborator: postings into it are side
// effects of inventory movements, never stock mutations.
package finance

import (
	"context"
	"time"

	"stocktally/internal/core/id"
	"stocktally/internal/core/types"
)

// Well-known posting categories.
const (
	CategoryManualSale      = "Manual Sale"
	CategoryExpiredProducts = "Expired Products"
)

// EntryKind distinguishes revenue from expense postings.
type EntryKind string

const (
	KindRevenue EntryKind = "revenue"
	KindExpense EntryKind = "expense"
)

// Entry is a single revenue or expense posting in the financial ledger.
type Entry struct {
	ID          id.ID       `db:"id" json:"id"`
	Kind        EntryKind   `db:"kind" json:"kind"`
	Amount      types.Money `db:"amount" json:"amount"`
	Date        time.Time   `db:"entry_date" json:"date"`
	Category    string      `db:"category" json:"category"`
	CategoryID  int64       `db:"category_id" json:"categoryId"`
	Description string      `db:"description" json:"description"`

	// Reference carries the SKU that triggered the posting.
	Reference string `db:"reference" json:"reference"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Ledger defines operations against the financial ledger collaborator.
type Ledger interface {
	// PostEntry writes one entry and returns it with storage-assigned fields.
	PostEntry(ctx context.Context, entry Entry) (Entry, error)

	// LookupCategoryID resolves a category name to its id.
	// ok is false when the category does not exist.
	LookupCategoryID(ctx context.Context, name string) (categoryID int64, ok bool, err error)
}
