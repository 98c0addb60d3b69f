package expiry

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
	"stocktally/internal/domain/finance"
	"stocktally/internal/domain/ledger"
)

// --- Fakes ---

type fakeFinance struct {
	entries    []finance.Entry
	categories map[string]int64
	fail       bool
}

func (f *fakeFinance) PostEntry(ctx context.Context, entry finance.Entry) (finance.Entry, error) {
	if f.fail {
		return finance.Entry{}, errors.New("finance ledger unavailable")
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeFinance) LookupCategoryID(ctx context.Context, name string) (int64, bool, error) {
	categoryID, ok := f.categories[name]
	return categoryID, ok, nil
}

type fakePendings struct {
	saved []finance.PendingPosting
}

func (p *fakePendings) Save(ctx context.Context, pending finance.PendingPosting) error {
	p.saved = append(p.saved, pending)
	return nil
}

func (p *fakePendings) Get(ctx context.Context, pendingID id.ID) (finance.PendingPosting, error) {
	for _, pending := range p.saved {
		if pending.ID == pendingID {
			return pending, nil
		}
	}
	return finance.PendingPosting{}, apperror.NewNotFound("pending posting", pendingID)
}

func (p *fakePendings) List(ctx context.Context, includeResolved bool) ([]finance.PendingPosting, error) {
	return p.saved, nil
}

func (p *fakePendings) MarkResolved(ctx context.Context, pendingID id.ID, when time.Time) error {
	for i, pending := range p.saved {
		if pending.ID == pendingID {
			p.saved[i].ResolvedAt = &when
			return nil
		}
	}
	return apperror.NewNotFound("pending posting", pendingID)
}

type fakeCatalog struct {
	costs map[string]types.Money
}

func (c *fakeCatalog) Products(ctx context.Context) ([]catalog.ProductRef, error) { return nil, nil }

func (c *fakeCatalog) Product(ctx context.Context, sku string) (catalog.ProductRef, error) {
	return catalog.ProductRef{}, apperror.NewNotFound("product", sku)
}

func (c *fakeCatalog) UnitCost(ctx context.Context, sku string) (types.Money, bool, error) {
	cost, ok := c.costs[sku]
	return cost, ok, nil
}

func expiryRemoval(sku string, qty int64) *ledger.Movement {
	m := ledger.NewMovement(sku, qty, ledger.TypeAdjustment)
	m.Reason = ledger.ReasonExpiry
	return m
}

func newTestDispatcher(fin *fakeFinance, pendings *fakePendings, costs map[string]types.Money, strict bool) *Dispatcher {
	return NewDispatcher(fin, pendings, &fakeCatalog{costs: costs}, strict)
}

// --- Validation ---

func TestValidateContext(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		m       *ledger.Movement
		ec      *Context
		wantErr bool
	}{
		{
			name: "context on plain sale rejected",
			m:    ledger.NewMovement("SKU-001", -5, ledger.TypeSale),
			ec:   &Context{Mode: ModeDisposal}, wantErr: true,
		},
		{
			name: "plain sale without context ok",
			m:    ledger.NewMovement("SKU-001", -5, ledger.TypeSale),
		},
		{
			name: "expiry removal without context rejected",
			m:    expiryRemoval("SKU-001", -5), wantErr: true,
		},
		{
			name: "manual sale requires positive amount",
			m:    expiryRemoval("SKU-001", -5),
			ec:   &Context{Mode: ModeManualSale}, wantErr: true,
		},
		{
			name: "manual sale with amount ok",
			m:    expiryRemoval("SKU-001", -5),
			ec:   &Context{Mode: ModeManualSale, SaleAmount: types.MustMoney("25")},
		},
		{
			name: "disposal negative loss rejected",
			m:    expiryRemoval("SKU-001", -5),
			ec:   &Context{Mode: ModeDisposal, LossAmount: types.MustMoney("-1")}, wantErr: true,
		},
		{
			name: "lenient disposal zero loss ok",
			m:    expiryRemoval("SKU-001", -5),
			ec:   &Context{Mode: ModeDisposal},
		},
		{
			name:   "strict disposal zero loss rejected",
			strict: true,
			m:      expiryRemoval("SKU-001", -5),
			ec:     &Context{Mode: ModeDisposal}, wantErr: true,
		},
		{
			name: "unknown mode rejected",
			m:    expiryRemoval("SKU-001", -5),
			ec:   &Context{Mode: "donation"}, wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDispatcher(&fakeFinance{}, &fakePendings{}, nil, tt.strict)
			err := d.ValidateContext(tt.m, tt.ec)
			if tt.wantErr {
				require.Error(t, err)
				appErr, ok := apperror.AsAppError(err)
				require.True(t, ok)
				assert.Equal(t, apperror.CodeValidation, appErr.Code)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- Dispatch ---

func TestDispatch_ManualSaleWithNetLoss(t *testing.T) {
	fin := &fakeFinance{categories: map[string]int64{
		finance.CategoryManualSale:      1,
		finance.CategoryExpiredProducts: 2,
	}}
	costs := map[string]types.Money{"SKU-001": types.MustMoney("5")}
	d := newTestDispatcher(fin, &fakePendings{}, costs, false)

	m := expiryRemoval("SKU-001", -10)
	err := d.Dispatch(context.Background(), m, Context{
		Mode:        ModeManualSale,
		SaleAmount:  types.MustMoney("30"),
		PostNetLoss: true,
	})
	require.NoError(t, err)
	require.Len(t, fin.entries, 2)

	revenue := fin.entries[0]
	assert.Equal(t, finance.KindRevenue, revenue.Kind)
	assert.Equal(t, finance.CategoryManualSale, revenue.Category)
	assert.Equal(t, int64(1), revenue.CategoryID)
	assert.True(t, revenue.Amount.Equal(types.MustMoney("30")))
	assert.Equal(t, "SKU-001", revenue.Reference)

	// Maximum loss 10 x 5 = 50, recovered 30, net loss 20.
	loss := fin.entries[1]
	assert.Equal(t, finance.KindExpense, loss.Kind)
	assert.Equal(t, finance.CategoryExpiredProducts, loss.Category)
	assert.True(t, loss.Amount.Equal(types.MustMoney("20")))
}

func TestDispatch_NetLossClampedAtZero(t *testing.T) {
	fin := &fakeFinance{}
	costs := map[string]types.Money{"SKU-001": types.MustMoney("5")}
	d := newTestDispatcher(fin, &fakePendings{}, costs, false)

	// Recovered more than the maximum possible loss: no loss entry.
	err := d.Dispatch(context.Background(), expiryRemoval("SKU-001", -10), Context{
		Mode:        ModeManualSale,
		SaleAmount:  types.MustMoney("60"),
		PostNetLoss: true,
	})
	require.NoError(t, err)
	require.Len(t, fin.entries, 1)
	assert.Equal(t, finance.KindRevenue, fin.entries[0].Kind)
}

func TestDispatch_ManualSaleWithoutNetLoss(t *testing.T) {
	fin := &fakeFinance{}
	d := newTestDispatcher(fin, &fakePendings{}, nil, false)

	err := d.Dispatch(context.Background(), expiryRemoval("SKU-001", -10), Context{
		Mode:       ModeManualSale,
		SaleAmount: types.MustMoney("30"),
	})
	require.NoError(t, err)
	assert.Len(t, fin.entries, 1)
}

func TestDispatch_UnknownCostMeansZeroLoss(t *testing.T) {
	fin := &fakeFinance{}
	d := newTestDispatcher(fin, &fakePendings{}, nil, false)

	// No cost on record: maximum loss is zero, net loss never posts.
	err := d.Dispatch(context.Background(), expiryRemoval("SKU-001", -10), Context{
		Mode:        ModeManualSale,
		SaleAmount:  types.MustMoney("1"),
		PostNetLoss: true,
	})
	require.NoError(t, err)
	assert.Len(t, fin.entries, 1)
}

func TestDispatch_Disposal(t *testing.T) {
	fin := &fakeFinance{categories: map[string]int64{finance.CategoryExpiredProducts: 2}}
	d := newTestDispatcher(fin, &fakePendings{}, nil, false)

	m := expiryRemoval("SKU-001", -8)
	err := d.Dispatch(context.Background(), m, Context{
		Mode:       ModeDisposal,
		LossAmount: types.MustMoney("40"),
	})
	require.NoError(t, err)
	require.Len(t, fin.entries, 1)

	loss := fin.entries[0]
	assert.Equal(t, finance.KindExpense, loss.Kind)
	assert.Equal(t, finance.CategoryExpiredProducts, loss.Category)
	assert.True(t, loss.Amount.Equal(types.MustMoney("40")))
	assert.Equal(t, "SKU-001", loss.Reference)
	assert.Equal(t, m.Date, loss.Date)
}

func TestDispatch_DisposalZeroLossNoEntry(t *testing.T) {
	fin := &fakeFinance{}
	d := newTestDispatcher(fin, &fakePendings{}, nil, false)

	err := d.Dispatch(context.Background(), expiryRemoval("SKU-001", -8), Context{Mode: ModeDisposal})
	require.NoError(t, err)
	assert.Empty(t, fin.entries)
}

func TestDispatch_NonExpiryMovementNoop(t *testing.T) {
	fin := &fakeFinance{}
	d := newTestDispatcher(fin, &fakePendings{}, nil, false)

	err := d.Dispatch(context.Background(), ledger.NewMovement("SKU-001", -5, ledger.TypeSale), Context{Mode: ModeDisposal})
	require.NoError(t, err)
	assert.Empty(t, fin.entries)
}

// --- Partial failure and retry ---

func TestDispatch_PostingFailureSavesPending(t *testing.T) {
	fin := &fakeFinance{fail: true}
	pendings := &fakePendings{}
	d := newTestDispatcher(fin, pendings, nil, false)

	m := expiryRemoval("SKU-001", -8)
	err := d.Dispatch(context.Background(), m, Context{
		Mode:       ModeDisposal,
		LossAmount: types.MustMoney("40"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsPostingPartialFailure(err))

	require.Len(t, pendings.saved, 1)
	pending := pendings.saved[0]
	assert.Equal(t, m.ID, pending.MovementID)
	assert.Equal(t, "SKU-001", pending.SKU)
	assert.False(t, pending.Resolved())
	assert.True(t, pending.Entry.Amount.Equal(types.MustMoney("40")))
}

func TestRetry(t *testing.T) {
	fin := &fakeFinance{fail: true}
	pendings := &fakePendings{}
	d := newTestDispatcher(fin, pendings, nil, false)

	err := d.Dispatch(context.Background(), expiryRemoval("SKU-001", -8), Context{
		Mode:       ModeDisposal,
		LossAmount: types.MustMoney("40"),
	})
	require.Error(t, err)
	require.Len(t, pendings.saved, 1)
	pendingID := pendings.saved[0].ID

	// Finance recovers; retry posts the saved entry and resolves the marker.
	fin.fail = false
	require.NoError(t, d.Retry(context.Background(), pendingID))
	require.Len(t, fin.entries, 1)
	assert.True(t, fin.entries[0].Amount.Equal(types.MustMoney("40")))
	assert.True(t, pendings.saved[0].Resolved())

	// A resolved marker is not retried again.
	err = d.Retry(context.Background(), pendingID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
}

func TestRetry_StillFailing(t *testing.T) {
	fin := &fakeFinance{fail: true}
	pendings := &fakePendings{}
	d := newTestDispatcher(fin, pendings, nil, false)

	_ = d.Dispatch(context.Background(), expiryRemoval("SKU-001", -8), Context{
		Mode:       ModeDisposal,
		LossAmount: types.MustMoney("40"),
	})
	require.Len(t, pendings.saved, 1)

	err := d.Retry(context.Background(), pendings.saved[0].ID)
	require.Error(t, err)
	assert.True(t, apperror.IsPostingPartialFailure(err))
	assert.False(t, pendings.saved[0].Resolved())
}

func TestMaximumPossibleLoss(t *testing.T) {
	costs := map[string]types.Money{"SKU-001": types.MustMoney("2.50")}
	d := newTestDispatcher(&fakeFinance{}, &fakePendings{}, costs, false)

	loss := d.MaximumPossibleLoss(context.Background(), expiryRemoval("SKU-001", -4))
	assert.True(t, loss.Equal(types.MustMoney("10")))

	unknown := d.MaximumPossibleLoss(context.Background(), expiryRemoval("SKU-404", -4))
	assert.True(t, unknown.IsZero())
}
