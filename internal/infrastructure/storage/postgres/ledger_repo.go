package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stocktally/internal/core/apperror"
	"stocktally/internal/core/id"
	"stocktally/internal/domain/ledger"
)

const movementsTable = "ledger_movements"

var movementColumns = []string{
	"id", "sku", "movement_date", "quantity", "movement_type",
	"reason", "reference_id", "batch_number", "expiry_date",
	"notes", "created_at", "created_by",
}

// Compile-time check that LedgerRepo implements ledger.Store.
var _ ledger.Store = (*LedgerRepo)(nil)

// LedgerRepo is the PostgreSQL movement ledger. Rows are append-only;
// Delete exists only for the exceptional operator-correction path.
type LedgerRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewLedgerRepo creates a movement ledger repository.
func NewLedgerRepo(txManager *TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts a single movement.
func (r *LedgerRepo) Append(ctx context.Context, m *ledger.Movement) error {
	q := r.builder.Insert(movementsTable).
		Columns(movementColumns...).
		Values(movementValues(m)...)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}

	return nil
}

// AppendBatch inserts many movements. Inside a transaction the COPY protocol
// is used; outside it falls back to a multi-row INSERT.
func (r *LedgerRepo) AppendBatch(ctx context.Context, movements []*ledger.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	if tx := r.txManager.GetTx(ctx); tx != nil {
		inserter := NewBatchInserter(r.txManager)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, movementValues(m))
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(movementValues(m)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build batch insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

// MovementsBySKU returns all movements for a SKU, oldest first. The order is
// stable across reruns so repeated folds see identical input.
func (r *LedgerRepo) MovementsBySKU(ctx context.Context, sku string) ([]ledger.Movement, error) {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"sku": sku}).
		OrderBy("movement_date ASC", "created_at ASC", "id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var movements []ledger.Movement
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}

	return movements, nil
}

// Delete removes a movement by id.
func (r *LedgerRepo) Delete(ctx context.Context, movementID id.ID) error {
	q := r.builder.Delete(movementsTable).
		Where(squirrel.Eq{"id": movementID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("movement", movementID)
	}

	return nil
}

// SKUs returns the distinct SKUs present in the ledger.
func (r *LedgerRepo) SKUs(ctx context.Context) ([]string, error) {
	q := r.builder.Select("DISTINCT sku").
		From(movementsTable).
		OrderBy("sku ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var skus []string
	if err := pgxscan.Select(ctx, querier, &skus, sql, args...); err != nil {
		return nil, fmt.Errorf("select skus: %w", err)
	}

	return skus, nil
}

func movementValues(m *ledger.Movement) []any {
	return []any{
		m.ID, m.SKU, m.Date, m.Quantity, m.Type,
		m.Reason, m.ReferenceID, m.BatchNumber, m.ExpiryDate,
		m.Notes, m.CreatedAt, m.CreatedBy,
	}
}
