package reconcile

import (
	"context"
	"errors"
	"time"

	"stocktally/internal/core/apperror"
	"stocktally/internal/domain/catalog"
	"stocktally/internal/domain/ledger"
	"stocktally/pkg/logger"
)

// DefaultSourceTimeout bounds each external read (ledger store, actual-stock
// source) during a reconciliation pass.
const DefaultSourceTimeout = 10 * time.Second

// Service recomputes reconciliation summaries across the catalog.
type Service struct {
	store         ledger.Store
	catalog       catalog.Catalog
	stock         ActualStockSource
	sourceTimeout time.Duration
}

// NewService creates a reconciliation service.
func NewService(store ledger.Store, cat catalog.Catalog, stock ActualStockSource, sourceTimeout time.Duration) *Service {
	if sourceTimeout <= 0 {
		sourceTimeout = DefaultSourceTimeout
	}
	return &Service{
		store:         store,
		catalog:       cat,
		stock:         stock,
		sourceTimeout: sourceTimeout,
	}
}

// BuildSummary combines a ledger fold with an actual-stock reading.
// Running it twice with unchanged inputs yields an identical summary except
// for the LastReconciled stamp.
func BuildSummary(sku, productName string, totals Totals, actual int64, now time.Time) Summary {
	expected := totals.Expected()
	return Summary{
		SKU:              sku,
		ProductName:      productName,
		InitialStock:     totals.Initial,
		TotalSales:       totals.Sales,
		TotalAdjustments: totals.Adjustments,
		TotalPurchases:   totals.Purchases,
		ExpectedStock:    expected,
		ActualStock:      actual,
		Discrepancy:      actual - expected,
		LastReconciled:   now,
	}
}

// BuildOne recomputes the summary for a single SKU.
// ok is false when the SKU has no actual-stock reading and is therefore
// excluded rather than reconciled against a fabricated value.
func (s *Service) BuildOne(ctx context.Context, product catalog.ProductRef) (Summary, bool, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
	defer cancel()

	movements, err := s.store.MovementsBySKU(readCtx, product.SKU)
	if err != nil {
		return Summary{}, false, s.classify(err, "ledger store")
	}

	actual, ok, err := s.stock.ActualStock(readCtx, product.SKU)
	if err != nil {
		return Summary{}, false, s.classify(err, "actual stock source")
	}
	if !ok {
		return Summary{}, false, nil
	}

	return BuildSummary(product.SKU, product.Name, Fold(movements), actual, time.Now().UTC()), true, nil
}

// BuildAll recomputes summaries for every catalog product in one pass.
// A SKU whose sources fail or whose actual stock is missing is skipped; the
// run still returns partial results for the rest. Only a catalog failure
// aborts the pass, since without the product set there is nothing to fold.
func (s *Service) BuildAll(ctx context.Context) ([]Summary, []catalog.ProductRef, error) {
	listCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
	defer cancel()

	products, err := s.catalog.Products(listCtx)
	if err != nil {
		return nil, nil, s.classify(err, "catalog")
	}

	summaries := make([]Summary, 0, len(products))
	for _, p := range products {
		summary, ok, err := s.BuildOne(ctx, p)
		if err != nil {
			logger.Warn(ctx, "skipping sku in reconciliation pass",
				"sku", p.SKU,
				"error", err,
			)
			continue
		}
		if !ok {
			logger.Debug(ctx, "sku has no actual stock reading, excluded",
				"sku", p.SKU,
			)
			continue
		}
		summaries = append(summaries, summary)
	}

	logger.Info(ctx, "reconciliation pass completed",
		"products", len(products),
		"summaries", len(summaries),
	)

	return summaries, products, nil
}

// classify maps raw source errors to the engine's error kinds. A deadline
// hit is a distinct TIMEOUT_ERROR; everything else is SOURCE_UNAVAILABLE.
func (s *Service) classify(err error, source string) error {
	if apperror.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewTimeout(source, err)
	}
	return apperror.NewSourceUnavailable(source, err)
}
