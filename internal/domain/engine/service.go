// Package engine orchestrates movement submission: validation, the ledger
// append, expiry side effects, and the summary refresh that follows every
// mutation.
package engine

import (
	"context"

	"stocktally/internal/core/apperror"
	"stocktally/internal/core/id"
	"stocktally/internal/core/tx"
	"stocktally/internal/domain/expiry"
	"stocktally/internal/domain/ledger"
	"stocktally/internal/domain/reconcile"
	"stocktally/pkg/logger"
)

// SummaryRefresher is the slice of the summary cache the engine needs after
// a mutation. Implemented by cache.SummaryCache.
type SummaryRefresher interface {
	// LoadSilently recomputes summaries, swallowing failures.
	LoadSilently(ctx context.Context)

	// Summary returns the cached summary for one SKU.
	Summary(ctx context.Context, sku string) (reconcile.Summary, error)

	// Invalidate marks cached data stale without discarding it.
	Invalidate()
}

// Service is the movement submission orchestrator.
type Service struct {
	store      ledger.Store
	txManager  tx.Manager
	dispatcher *expiry.Dispatcher
	refresher  SummaryRefresher
}

// NewService creates the orchestrator.
func NewService(store ledger.Store, txManager tx.Manager, dispatcher *expiry.Dispatcher, refresher SummaryRefresher) *Service {
	return &Service{
		store:      store,
		txManager:  txManager,
		dispatcher: dispatcher,
		refresher:  refresher,
	}
}

// SubmitMovement validates and appends one movement, dispatches the expiry
// side effect when applicable, refreshes summaries, and returns the updated
// summary for the movement's SKU (nil when the SKU is excluded from
// reconciliation).
//
// All validation runs before any write: an invalid submission leaves no
// trace. A failed financial posting after the append does NOT roll the
// movement back; it surfaces as POSTING_PARTIAL_FAILURE alongside the
// refreshed summary so the caller retries the posting alone.
func (s *Service) SubmitMovement(ctx context.Context, m *ledger.Movement, ec *expiry.Context) (*reconcile.Summary, error) {
	if err := m.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.dispatcher.ValidateContext(m, ec); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.store.Append(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "movement appended",
		"movement_id", m.ID,
		"sku", m.SKU,
		"type", string(m.Type),
		"quantity", m.Quantity,
	)

	var dispatchErr error
	if m.IsExpiryRemoval() {
		dispatchErr = s.dispatcher.Dispatch(ctx, m, *ec)
	}

	s.refresher.LoadSilently(ctx)

	summary := s.lookupSummary(ctx, m.SKU)
	return summary, dispatchErr
}

// SubmitBatch appends many movements in one transaction. Expiry removals are
// rejected here: each needs its own submission mode and belongs in a single
// submission.
func (s *Service) SubmitBatch(ctx context.Context, movements []*ledger.Movement) error {
	if len(movements) == 0 {
		return apperror.NewValidation("batch must contain at least one movement")
	}

	for _, m := range movements {
		if err := m.Validate(ctx); err != nil {
			return err
		}
		if m.IsExpiryRemoval() {
			return apperror.NewValidation("expiry removals are not accepted in batches; submit individually with a mode").
				WithDetail("sku", m.SKU)
		}
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.store.AppendBatch(ctx, movements)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "movement batch appended", "count", len(movements))

	s.refresher.LoadSilently(ctx)
	return nil
}

// Movements returns a SKU's full ledger, oldest first.
func (s *Service) Movements(ctx context.Context, sku string) ([]ledger.Movement, error) {
	if sku == "" {
		return nil, apperror.NewValidation("sku is required").
			WithDetail("field", "sku")
	}
	return s.store.MovementsBySKU(ctx, sku)
}

// SKUs returns the distinct SKUs present in the ledger.
func (s *Service) SKUs(ctx context.Context) ([]string, error) {
	return s.store.SKUs(ctx)
}

// DeleteMovement removes a movement. This is the exceptional correction path
// for operator mistakes; the routine correction is an offsetting movement.
func (s *Service) DeleteMovement(ctx context.Context, movementID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.store.Delete(ctx, movementID)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "movement deleted", "movement_id", movementID)

	s.refresher.LoadSilently(ctx)
	return nil
}

// lookupSummary fetches the refreshed summary for a SKU. Absence (no
// actual-stock reading yet) is normal and yields nil, not an error.
func (s *Service) lookupSummary(ctx context.Context, sku string) *reconcile.Summary {
	summary, err := s.refresher.Summary(ctx, sku)
	if err != nil {
		if !apperror.IsNotFound(err) {
			logger.Warn(ctx, "summary lookup after mutation failed",
				"sku", sku,
				"error", err,
			)
		}
		return nil
	}
	return &summary
}
