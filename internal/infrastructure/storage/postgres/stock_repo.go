package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stocktally/internal/domain/reconcile"
)

const readingsTable = "actual_stock_readings"

// Compile-time check that StockReadingRepo implements reconcile.ActualStockSource.
var _ reconcile.ActualStockSource = (*StockReadingRepo)(nil)

// StockReadingRepo stores physical stock counts reported by the external
// stock system. Readings are kept as a history; reconciliation uses the
// latest reading per SKU.
type StockReadingRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockReadingRepo creates an actual-stock reading repository.
func NewStockReadingRepo(txManager *TxManager) *StockReadingRepo {
	return &StockReadingRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ActualStock returns the latest reading for a SKU. ok is false when the SKU
// has never been counted; reconciliation excludes it rather than guessing.
func (r *StockReadingRepo) ActualStock(ctx context.Context, sku string) (int64, bool, error) {
	q := r.builder.Select("quantity").
		From(readingsTable).
		Where(squirrel.Eq{"sku": sku}).
		OrderBy("recorded_at DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build select: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var quantity int64
	if err := pgxscan.Get(ctx, querier, &quantity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get reading: %w", err)
	}

	return quantity, true, nil
}

// RecordReading appends a stock count for a SKU.
func (r *StockReadingRepo) RecordReading(ctx context.Context, sku string, quantity int64, recordedAt time.Time) error {
	q := r.builder.Insert(readingsTable).
		Columns("sku", "quantity", "recorded_at").
		Values(sku, quantity, recordedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	return nil
}
