package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stocktally/internal/core/apperror"
	"stocktally/internal/core/types"
	"stocktally/internal/domain/catalog"
)

const productsTable = "catalog_products"

// Compile-time check that CatalogRepo implements catalog.Catalog.
var _ catalog.Catalog = (*CatalogRepo)(nil)

// CatalogRepo reads the product catalog. The engine never writes here; the
// catalog is maintained by the dashboard's product management.
type CatalogRepo struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
}

// NewCatalogRepo creates a catalog reader.
func NewCatalogRepo(txManager *TxManager) *CatalogRepo {
	return &CatalogRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Products returns all catalog products, ordered by SKU.
func (r *CatalogRepo) Products(ctx context.Context) ([]catalog.ProductRef, error) {
	q := r.builder.Select("sku", "name", "supplier_unit_cost").
		From(productsTable).
		OrderBy("sku ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var products []catalog.ProductRef
	if err := pgxscan.Select(ctx, querier, &products, sql, args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}

	return products, nil
}

// Product returns one product by SKU.
func (r *CatalogRepo) Product(ctx context.Context, sku string) (catalog.ProductRef, error) {
	q := r.builder.Select("sku", "name", "supplier_unit_cost").
		From(productsTable).
		Where(squirrel.Eq{"sku": sku})

	sql, args, err := q.ToSql()
	if err != nil {
		return catalog.ProductRef{}, fmt.Errorf("build select: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var product catalog.ProductRef
	if err := pgxscan.Get(ctx, querier, &product, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return catalog.ProductRef{}, apperror.NewNotFound("product", sku)
		}
		return catalog.ProductRef{}, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// UnitCost returns the supplier unit cost. ok is false for an unknown SKU or
// a product without a recorded cost.
func (r *CatalogRepo) UnitCost(ctx context.Context, sku string) (types.Money, bool, error) {
	product, err := r.Product(ctx, sku)
	if err != nil {
		if apperror.IsNotFound(err) {
			return types.Zero(), false, nil
		}
		return types.Zero(), false, err
	}
	if product.SupplierUnitCost == nil {
		return types.Zero(), false, nil
	}

	return *product.SupplierUnitCost, true, nil
}
