package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stocktally/internal/core/apperror"
	"stocktally/internal/core/id"
	"stocktally/internal/core/types"
	"stocktally/internal/domain/catalog"
	"stocktally/internal/domain/ledger"
)

// --- Fakes ---

type fakeStore struct {
	movements map[string][]ledger.Movement
	err       error
}

func (s *fakeStore) Append(ctx context.Context, m *ledger.Movement) error { return nil }
func (s *fakeStore) AppendBatch(ctx context.Context, movements []*ledger.Movement) error {
	return nil
}
func (s *fakeStore) Delete(ctx context.Context, movementID id.ID) error { return nil }
func (s *fakeStore) SKUs(ctx context.Context) ([]string, error)         { return nil, nil }

func (s *fakeStore) MovementsBySKU(ctx context.Context, sku string) ([]ledger.Movement, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.movements[sku], nil
}

type fakeCatalog struct {
	products []catalog.ProductRef
	err      error
}

func (c *fakeCatalog) Products(ctx context.Context) ([]catalog.ProductRef, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.products, nil
}

func (c *fakeCatalog) Product(ctx context.Context, sku string) (catalog.ProductRef, error) {
	for _, p := range c.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return catalog.ProductRef{}, apperror.NewNotFound("product", sku)
}

func (c *fakeCatalog) UnitCost(ctx context.Context, sku string) (types.Money, bool, error) {
	p, err := c.Product(ctx, sku)
	if err != nil || p.SupplierUnitCost == nil {
		return types.Zero(), false, nil
	}
	return *p.SupplierUnitCost, true, nil
}

type fakeStock struct {
	readings map[string]int64
	errs     map[string]error
}

func (s *fakeStock) ActualStock(ctx context.Context, sku string) (int64, bool, error) {
	if err := s.errs[sku]; err != nil {
		return 0, false, err
	}
	qty, ok := s.readings[sku]
	return qty, ok, nil
}

func product(sku, name string) catalog.ProductRef {
	return catalog.ProductRef{SKU: sku, Name: name}
}

func newTestService(store *fakeStore, cat *fakeCatalog, stock *fakeStock) *Service {
	return NewService(store, cat, stock, time.Second)
}

// --- Tests ---

func TestBuildAll_ZeroDiscrepancy(t *testing.T) {
	store := &fakeStore{movements: map[string][]ledger.Movement{
		"SKU-001": {
			movement("SKU-001", 50, ledger.TypeInitial),
			movement("SKU-001", -10, ledger.TypeSale),
			movement("SKU-001", -5, ledger.TypeAdjustment),
			movement("SKU-001", 20, ledger.TypePurchase),
		},
	}}
	cat := &fakeCatalog{products: []catalog.ProductRef{product("SKU-001", "Milk 1L")}}
	stock := &fakeStock{readings: map[string]int64{"SKU-001": 55}}

	summaries, products, err := newTestService(store, cat, stock).BuildAll(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Len(t, products, 1)

	s := summaries[0]
	assert.Equal(t, "SKU-001", s.SKU)
	assert.Equal(t, "Milk 1L", s.ProductName)
	assert.Equal(t, int64(50), s.InitialStock)
	assert.Equal(t, int64(-10), s.TotalSales)
	assert.Equal(t, int64(-5), s.TotalAdjustments)
	assert.Equal(t, int64(20), s.TotalPurchases)
	assert.Equal(t, int64(55), s.ExpectedStock)
	assert.Equal(t, int64(55), s.ActualStock)
	assert.Equal(t, int64(0), s.Discrepancy)
	assert.False(t, s.LastReconciled.IsZero())
}

func TestBuildAll_Idempotent(t *testing.T) {
	store := &fakeStore{movements: map[string][]ledger.Movement{
		"SKU-001": {
			movement("SKU-001", 10, ledger.TypeInitial),
			movement("SKU-001", -4, ledger.TypeSale),
		},
	}}
	cat := &fakeCatalog{products: []catalog.ProductRef{product("SKU-001", "Milk 1L")}}
	stock := &fakeStock{readings: map[string]int64{"SKU-001": 5}}
	svc := newTestService(store, cat, stock)

	first, _, err := svc.BuildAll(context.Background())
	require.NoError(t, err)
	second, _, err := svc.BuildAll(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)

	a, b := first[0], second[0]
	a.LastReconciled, b.LastReconciled = time.Time{}, time.Time{}
	assert.Equal(t, a, b)
	assert.Equal(t, int64(-1), a.Discrepancy)
}

func TestBuildAll_MissingActualExcluded(t *testing.T) {
	store := &fakeStore{movements: map[string][]ledger.Movement{
		"SKU-001": {movement("SKU-001", 10, ledger.TypeInitial)},
		"SKU-002": {movement("SKU-002", 7, ledger.TypeInitial)},
	}}
	cat := &fakeCatalog{products: []catalog.ProductRef{
		product("SKU-001", "Milk 1L"),
		product("SKU-002", "Bread"),
	}}
	stock := &fakeStock{readings: map[string]int64{"SKU-001": 10}}

	summaries, products, err := newTestService(store, cat, stock).BuildAll(context.Background())
	require.NoError(t, err)

	// SKU-002 has no reading and is excluded, never fabricated.
	require.Len(t, summaries, 1)
	assert.Equal(t, "SKU-001", summaries[0].SKU)
	assert.Len(t, products, 2)
}

func TestBuildAll_SourceErrorPartialResults(t *testing.T) {
	store := &fakeStore{movements: map[string][]ledger.Movement{
		"SKU-001": {movement("SKU-001", 10, ledger.TypeInitial)},
		"SKU-002": {movement("SKU-002", 7, ledger.TypeInitial)},
	}}
	cat := &fakeCatalog{products: []catalog.ProductRef{
		product("SKU-001", "Milk 1L"),
		product("SKU-002", "Bread"),
	}}
	stock := &fakeStock{
		readings: map[string]int64{"SKU-001": 10},
		errs:     map[string]error{"SKU-002": errors.New("connection refused")},
	}

	summaries, _, err := newTestService(store, cat, stock).BuildAll(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "SKU-001", summaries[0].SKU)
}

func TestBuildAll_CatalogFailureAborts(t *testing.T) {
	cat := &fakeCatalog{err: errors.New("catalog down")}

	_, _, err := newTestService(&fakeStore{}, cat, &fakeStock{}).BuildAll(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsSourceUnavailable(err))
}

func TestBuildOne_TimeoutClassified(t *testing.T) {
	store := &fakeStore{movements: map[string][]ledger.Movement{}}
	cat := &fakeCatalog{products: []catalog.ProductRef{product("SKU-001", "Milk 1L")}}
	stock := &fakeStock{errs: map[string]error{"SKU-001": context.DeadlineExceeded}}

	_, _, err := newTestService(store, cat, stock).BuildOne(context.Background(), product("SKU-001", "Milk 1L"))
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeTimeout, appErr.Code)
}

func TestBuildSummary_Discrepancy(t *testing.T) {
	now := time.Now().UTC()
	s := BuildSummary("SKU-001", "Milk 1L", Totals{Initial: 10, Sales: -2}, 5, now)

	assert.Equal(t, int64(8), s.ExpectedStock)
	assert.Equal(t, int64(-3), s.Discrepancy)
	assert.Equal(t, now, s.LastReconciled)
}
