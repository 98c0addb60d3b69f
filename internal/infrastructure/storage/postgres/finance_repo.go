package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stocktally/internal/core/apperror"
	"stocktally/internal/core/id"
	"stocktally/internal/domain/finance"
)

const (
	entriesTable    = "finance_entries"
	categoriesTable = "finance_categories"
	pendingsTable   = "pending_postings"
)

// Compile-time interface checks.
var (
	_ finance.Ledger       = (*FinanceRepo)(nil)
	_ finance.PendingStore = (*FinanceRepo)(nil)
)

// FinanceRepo writes financial ledger entries and pending-posting markers.
type FinanceRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewFinanceRepo creates a financial ledger repository.
func NewFinanceRepo(txManager *TxManager) *FinanceRepo {
	return &FinanceRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// PostEntry inserts one financial entry.
func (r *FinanceRepo) PostEntry(ctx context.Context, entry finance.Entry) (finance.Entry, error) {
	q := r.builder.Insert(entriesTable).
		Columns("id", "kind", "amount", "entry_date", "category",
			"category_id", "description", "reference", "created_at").
		Values(entry.ID, entry.Kind, entry.Amount, entry.Date, entry.Category,
			entry.CategoryID, entry.Description, entry.Reference, entry.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return finance.Entry{}, fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return finance.Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	return entry, nil
}

// LookupCategoryID resolves a category name. ok is false when absent.
func (r *FinanceRepo) LookupCategoryID(ctx context.Context, name string) (int64, bool, error) {
	q := r.builder.Select("id").
		From(categoriesTable).
		Where(squirrel.Eq{"name": name})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build select: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var categoryID int64
	if err := pgxscan.Get(ctx, querier, &categoryID, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get category: %w", err)
	}

	return categoryID, true, nil
}

// pendingRow is the storage shape of a pending posting. The entry is kept as
// JSON so a retry replays exactly what failed.
type pendingRow struct {
	ID         id.ID      `db:"id"`
	MovementID id.ID      `db:"movement_id"`
	SKU        string     `db:"sku"`
	EntryJSON  []byte     `db:"entry_json"`
	Reason     string     `db:"reason"`
	CreatedAt  time.Time  `db:"created_at"`
	ResolvedAt *time.Time `db:"resolved_at"`
}

func (row pendingRow) toPending() (finance.PendingPosting, error) {
	pending := finance.PendingPosting{
		ID:         row.ID,
		MovementID: row.MovementID,
		SKU:        row.SKU,
		Reason:     row.Reason,
		CreatedAt:  row.CreatedAt,
		ResolvedAt: row.ResolvedAt,
	}
	if err := json.Unmarshal(row.EntryJSON, &pending.Entry); err != nil {
		return finance.PendingPosting{}, fmt.Errorf("unmarshal pending entry: %w", err)
	}
	return pending, nil
}

// Save records a failed posting for later retry.
func (r *FinanceRepo) Save(ctx context.Context, pending finance.PendingPosting) error {
	entryJSON, err := json.Marshal(pending.Entry)
	if err != nil {
		return fmt.Errorf("marshal pending entry: %w", err)
	}

	q := r.builder.Insert(pendingsTable).
		Columns("id", "movement_id", "sku", "entry_json",
			"reason", "created_at", "resolved_at").
		Values(pending.ID, pending.MovementID, pending.SKU, entryJSON,
			pending.Reason, pending.CreatedAt, pending.ResolvedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert pending posting: %w", err)
	}

	return nil
}

// Get returns a pending posting by id.
func (r *FinanceRepo) Get(ctx context.Context, pendingID id.ID) (finance.PendingPosting, error) {
	q := r.builder.Select("id", "movement_id", "sku", "entry_json",
		"reason", "created_at", "resolved_at").
		From(pendingsTable).
		Where(squirrel.Eq{"id": pendingID})

	sql, args, err := q.ToSql()
	if err != nil {
		return finance.PendingPosting{}, fmt.Errorf("build select: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var row pendingRow
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return finance.PendingPosting{}, apperror.NewNotFound("pending posting", pendingID)
		}
		return finance.PendingPosting{}, fmt.Errorf("get pending posting: %w", err)
	}

	return row.toPending()
}

// List returns pending postings, newest first.
func (r *FinanceRepo) List(ctx context.Context, includeResolved bool) ([]finance.PendingPosting, error) {
	q := r.builder.Select("id", "movement_id", "sku", "entry_json",
		"reason", "created_at", "resolved_at").
		From(pendingsTable).
		OrderBy("created_at DESC")
	if !includeResolved {
		q = q.Where(squirrel.Eq{"resolved_at": nil})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var rows []pendingRow
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select pending postings: %w", err)
	}

	pendings := make([]finance.PendingPosting, 0, len(rows))
	for _, row := range rows {
		pending, err := row.toPending()
		if err != nil {
			return nil, err
		}
		pendings = append(pendings, pending)
	}

	return pendings, nil
}

// MarkResolved stamps a marker after a successful retry.
func (r *FinanceRepo) MarkResolved(ctx context.Context, pendingID id.ID, when time.Time) error {
	q := r.builder.Update(pendingsTable).
		Set("resolved_at", when).
		Where(squirrel.Eq{"id": pendingID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update pending posting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("pending posting", pendingID)
	}

	return nil
}
