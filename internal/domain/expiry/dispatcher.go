// Package expiry posts the financial consequence of expiry-driven stock
// removals. The dispatcher never mutates stock: the quantity change is
// entirely the effect of the underlying movement.
package expiry

import (
	"context"
	"fmt"
	"time"

	"stocktally/internal/core/apperror"
	"stocktally/internal/core/id"
	"stocktally/internal/core/types"
	"stocktally/internal/domain/catalog"
	"stocktally/internal/domain/finance"
	"stocktally/internal/domain/ledger"
	"stocktally/pkg/logger"
)

// Mode selects how the operator handled the expiring stock.
type Mode string

const (
	// ModeManualSale means some value was recovered by selling the
	// expiring stock at a discount.
	ModeManualSale Mode = "manual_sale"

	// ModeDisposal means the stock was written off.
	ModeDisposal Mode = "disposal"
)

// Context carries the submission mode for an expiry removal. It travels with
// the submission and is never stored on the movement itself.
type Context struct {
	Mode Mode

	// SaleAmount is the recovered value (manual sale mode, must be > 0).
	SaleAmount types.Money

	// PostNetLoss additionally posts max(0, maximumPossibleLoss - SaleAmount)
	// as an expense in manual sale mode.
	PostNetLoss bool

	// LossAmount is the written-off value (disposal mode).
	LossAmount types.Money
}

// Dispatcher computes and posts financial entries for expiry removals.
type Dispatcher struct {
	finLedger finance.Ledger
	pendings  finance.PendingStore
	catalog   catalog.Catalog

	// requireLossAmount rejects zero-amount disposals when true. Call
	// sites disagree on whether zero means "fully disposed, no financial
	// record", so both behaviors stay expressible via configuration.
	requireLossAmount bool
}

// NewDispatcher creates an expiry side-effect dispatcher.
func NewDispatcher(finLedger finance.Ledger, pendings finance.PendingStore, cat catalog.Catalog, requireLossAmount bool) *Dispatcher {
	return &Dispatcher{
		finLedger:         finLedger,
		pendings:          pendings,
		catalog:           cat,
		requireLossAmount: requireLossAmount,
	}
}

// ValidateContext checks a submission before anything is written.
func (d *Dispatcher) ValidateContext(m *ledger.Movement, ec *Context) error {
	if !m.IsExpiryRemoval() {
		if ec != nil {
			return apperror.NewValidation("expiry context is only valid for expiry-reason stock removals").
				WithDetail("movementType", string(m.Type)).
				WithDetail("reason", string(m.Reason))
		}
		return nil
	}

	if ec == nil {
		return apperror.NewValidation("expiry removal requires a submission mode (manual sale or disposal)").
			WithDetail("field", "expiryContext")
	}

	switch ec.Mode {
	case ModeManualSale:
		if !ec.SaleAmount.IsPositive() {
			return apperror.NewValidation("manual sale requires a positive sale amount").
				WithDetail("field", "saleAmount")
		}
	case ModeDisposal:
		if ec.LossAmount.IsNegative() {
			return apperror.NewValidation("loss amount must not be negative").
				WithDetail("field", "lossAmount")
		}
		if d.requireLossAmount && ec.LossAmount.IsZero() {
			return apperror.NewValidation("disposal requires a positive loss amount").
				WithDetail("field", "lossAmount")
		}
	default:
		return apperror.NewValidation("unknown expiry submission mode").
			WithDetail("field", "mode").
			WithDetail("value", string(ec.Mode))
	}

	return nil
}

// MaximumPossibleLoss returns |quantity| x supplier unit cost.
// An unknown cost counts as zero, not as a failure.
func (d *Dispatcher) MaximumPossibleLoss(ctx context.Context, m *ledger.Movement) types.Money {
	cost, ok, err := d.catalog.UnitCost(ctx, m.SKU)
	if err != nil && !apperror.IsNotFound(err) {
		logger.Warn(ctx, "unit cost lookup failed, treating cost as unknown",
			"sku", m.SKU,
			"error", err,
		)
		return types.Zero()
	}
	if !ok {
		return types.Zero()
	}

	qty := m.Quantity
	if qty < 0 {
		qty = -qty
	}
	return cost.Mul(types.NewMoney(float64(qty)))
}

// Dispatch posts the financial consequence of an expiry removal. The
// triggering movement is already committed and is never rolled back here: a
// failed posting is saved as a pending marker and surfaced as
// POSTING_PARTIAL_FAILURE so the caller retries the posting alone.
func (d *Dispatcher) Dispatch(ctx context.Context, m *ledger.Movement, ec Context) error {
	if !m.IsExpiryRemoval() {
		return nil
	}

	switch ec.Mode {
	case ModeManualSale:
		return d.dispatchManualSale(ctx, m, ec)
	case ModeDisposal:
		return d.dispatchDisposal(ctx, m, ec)
	default:
		return apperror.NewValidation("unknown expiry submission mode").
			WithDetail("value", string(ec.Mode))
	}
}

func (d *Dispatcher) dispatchManualSale(ctx context.Context, m *ledger.Movement, ec Context) error {
	revenue := d.buildEntry(ctx, m, finance.KindRevenue, finance.CategoryManualSale, ec.SaleAmount,
		fmt.Sprintf("Recovered value from expiring stock %s", m.SKU))

	if err := d.post(ctx, m, revenue); err != nil {
		return err
	}

	if !ec.PostNetLoss {
		return nil
	}

	maxLoss := d.MaximumPossibleLoss(ctx, m)
	netLoss := types.MaxMoney(types.Zero(), maxLoss.Sub(ec.SaleAmount))
	if netLoss.IsZero() {
		return nil
	}

	loss := d.buildEntry(ctx, m, finance.KindExpense, finance.CategoryExpiredProducts, netLoss,
		fmt.Sprintf("Net loss on expiring stock %s", m.SKU))
	return d.post(ctx, m, loss)
}

func (d *Dispatcher) dispatchDisposal(ctx context.Context, m *ledger.Movement, ec Context) error {
	if ec.LossAmount.IsZero() {
		// Fully disposed with no financial record (lenient call sites).
		logger.Debug(ctx, "disposal with zero loss amount, no posting",
			"sku", m.SKU,
			"movement_id", m.ID,
		)
		return nil
	}

	loss := d.buildEntry(ctx, m, finance.KindExpense, finance.CategoryExpiredProducts, ec.LossAmount,
		fmt.Sprintf("Expired stock written off %s", m.SKU))
	return d.post(ctx, m, loss)
}

// Retry re-posts a previously failed entry from its pending marker.
func (d *Dispatcher) Retry(ctx context.Context, pendingID id.ID) error {
	pending, err := d.pendings.Get(ctx, pendingID)
	if err != nil {
		return err
	}
	if pending.Resolved() {
		return apperror.NewConflict("pending posting already resolved").
			WithDetail("id", pendingID)
	}

	if _, err := d.finLedger.PostEntry(ctx, pending.Entry); err != nil {
		return apperror.NewPostingPartialFailure(pending.MovementID, err).
			WithDetail("pending_id", pendingID)
	}

	if err := d.pendings.MarkResolved(ctx, pendingID, time.Now().UTC()); err != nil {
		logger.Error(ctx, "posting succeeded but pending marker not resolved",
			"pending_id", pendingID,
			"error", err,
		)
	}

	logger.Info(ctx, "pending posting retried successfully",
		"pending_id", pendingID,
		"sku", pending.SKU,
	)
	return nil
}

func (d *Dispatcher) buildEntry(ctx context.Context, m *ledger.Movement, kind finance.EntryKind, category string, amount types.Money, description string) finance.Entry {
	categoryID, ok, err := d.finLedger.LookupCategoryID(ctx, category)
	if err != nil || !ok {
		// Posting proceeds by category name; id resolution is best effort.
		categoryID = 0
	}

	return finance.Entry{
		ID:          id.New(),
		Kind:        kind,
		Amount:      amount,
		Date:        m.Date,
		Category:    category,
		CategoryID:  categoryID,
		Description: description,
		Reference:   m.SKU,
		CreatedAt:   time.Now().UTC(),
	}
}

func (d *Dispatcher) post(ctx context.Context, m *ledger.Movement, entry finance.Entry) error {
	if _, err := d.finLedger.PostEntry(ctx, entry); err != nil {
		pending := finance.PendingPosting{
			ID:         id.New(),
			MovementID: m.ID,
			SKU:        m.SKU,
			Entry:      entry,
			Reason:     err.Error(),
			CreatedAt:  time.Now().UTC(),
		}
		if saveErr := d.pendings.Save(ctx, pending); saveErr != nil {
			logger.Error(ctx, "failed to save pending posting marker",
				"movement_id", m.ID,
				"error", saveErr,
			)
		}

		logger.Warn(ctx, "financial posting failed, movement kept",
			"movement_id", m.ID,
			"sku", m.SKU,
			"category", entry.Category,
			"error", err,
		)
		return apperror.NewPostingPartialFailure(m.ID, err).
			WithDetail("sku", m.SKU).
			WithDetail("pending_id", pending.ID)
	}

	logger.Info(ctx, "financial posting recorded",
		"sku", m.SKU,
		"kind", string(entry.Kind),
		"category", entry.Category,
		"amount", entry.Amount.String(),
	)
	return nil
}
