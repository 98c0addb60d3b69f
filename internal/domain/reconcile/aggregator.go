package reconcile

import (
	"stocktally/internal/domain/ledger"
)

// Totals holds the signed quantity sums of a SKU's ledger, partitioned by
// movement type.
type Totals struct {
	Initial     int64
	Sales       int64
	Adjustments int64
	Purchases   int64
}

// Fold partitions movements by type and sums quantities within each
// partition. Integer sums make the fold commutative and associative, so
// input order never affects the result. An empty ledger folds to all zeros
// and is still reportable. Duplicate initial movements are tolerated; the
// fold stays sum-based.
func Fold(movements []ledger.Movement) Totals {
	var t Totals
	for _, m := range movements {
		switch m.Type {
		case ledger.TypeInitial:
			t.Initial += m.Quantity
		case ledger.TypeSale:
			t.Sales += m.Quantity
		case ledger.TypeAdjustment:
			t.Adjustments += m.Quantity
		case ledger.TypePurchase:
			t.Purchases += m.Quantity
		}
	}
	return t
}

// Expected returns the expected stock: the sum of the four partitions.
func (t Totals) Expected() int64 {
	return t.Initial + t.Sales + t.Adjustments + t.Purchases
}
