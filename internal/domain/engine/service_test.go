package engine

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
	"stocktally/internal/domain/expiry"
	"stocktally/internal/domain/finance"
	"stocktally/internal/domain/ledger"
	"stocktally/internal/domain/reconcile"
)

// --- Fakes ---

type memStore struct {
	appended []*ledger.Movement
	deleted  []id.ID
}

func (s *memStore) Append(ctx context.Context, m *ledger.Movement) error {
	s.appended = append(s.appended, m)
	return nil
}

func (s *memStore) AppendBatch(ctx context.Context, movements []*ledger.Movement) error {
	s.appended = append(s.appended, movements...)
	return nil
}

func (s *memStore) MovementsBySKU(ctx context.Context, sku string) ([]ledger.Movement, error) {
	var out []ledger.Movement
	for _, m := range s.appended {
		if m.SKU == sku {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) Delete(ctx context.Context, movementID id.ID) error {
	s.deleted = append(s.deleted, movementID)
	return nil
}

func (s *memStore) SKUs(ctx context.Context) ([]string, error) { return nil, nil }

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRefresher struct {
	refreshes int
	summaries map[string]reconcile.Summary
}

func (r *fakeRefresher) LoadSilently(ctx context.Context) { r.refreshes++ }

func (r *fakeRefresher) Summary(ctx context.Context, sku string) (reconcile.Summary, error) {
	if s, ok := r.summaries[sku]; ok {
		return s, nil
	}
	return reconcile.Summary{}, apperror.NewNotFound("summary", sku)
}

func (r *fakeRefresher) Invalidate() {}

type fakeFinance struct {
	entries []finance.Entry
	fail    bool
}

func (f *fakeFinance) PostEntry(ctx context.Context, entry finance.Entry) (finance.Entry, error) {
	if f.fail {
		return finance.Entry{}, errors.New("finance ledger unavailable")
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeFinance) LookupCategoryID(ctx context.Context, name string) (int64, bool, error) {
	return 0, false, nil
}

type fakePendings struct {
	saved []finance.PendingPosting
}

func (p *fakePendings) Save(ctx context.Context, pending finance.PendingPosting) error {
	p.saved = append(p.saved, pending)
	return nil
}

func (p *fakePendings) Get(ctx context.Context, pendingID id.ID) (finance.PendingPosting, error) {
	return finance.PendingPosting{}, apperror.NewNotFound("pending posting", pendingID)
}

func (p *fakePendings) List(ctx context.Context, includeResolved bool) ([]finance.PendingPosting, error) {
	return p.saved, nil
}

func (p *fakePendings) MarkResolved(ctx context.Context, pendingID id.ID, when time.Time) error {
	return nil
}

type noCostCatalog struct{}

func (noCostCatalog) Products(ctx context.Context) ([]catalog.ProductRef, error) { return nil, nil }
func (noCostCatalog) Product(ctx context.Context, sku string) (catalog.ProductRef, error) {
	return catalog.ProductRef{}, apperror.NewNotFound("product", sku)
}
func (noCostCatalog) UnitCost(ctx context.Context, sku string) (types.Money, bool, error) {
	return types.Zero(), false, nil
}

type testRig struct {
	store     *memStore
	finance   *fakeFinance
	pendings  *fakePendings
	refresher *fakeRefresher
	svc       *Service
}

func newTestRig() *testRig {
	store := &memStore{}
	fin := &fakeFinance{}
	pendings := &fakePendings{}
	refresher := &fakeRefresher{summaries: map[string]reconcile.Summary{}}
	dispatcher := expiry.NewDispatcher(fin, pendings, noCostCatalog{}, false)
	return &testRig{
		store:     store,
		finance:   fin,
		pendings:  pendings,
		refresher: refresher,
		svc:       NewService(store, passthroughTx{}, dispatcher, refresher),
	}
}

// --- Tests ---

func TestSubmitMovement_Sale(t *testing.T) {
	rig := newTestRig()
	rig.refresher.summaries["SKU-001"] = reconcile.Summary{SKU: "SKU-001", ExpectedStock: 45}

	m := ledger.NewMovement("SKU-001", -5, ledger.TypeSale)
	summary, err := rig.svc.SubmitMovement(context.Background(), m, nil)
	require.NoError(t, err)

	require.Len(t, rig.store.appended, 1)
	assert.Equal(t, 1, rig.refresher.refreshes)
	require.NotNil(t, summary)
	assert.Equal(t, int64(45), summary.ExpectedStock)
}

func TestSubmitMovement_InvalidLeavesNoTrace(t *testing.T) {
	rig := newTestRig()

	m := ledger.NewMovement("", -5, ledger.TypeSale)
	_, err := rig.svc.SubmitMovement(context.Background(), m, nil)
	require.Error(t, err)

	assert.Empty(t, rig.store.appended)
	assert.Zero(t, rig.refresher.refreshes)
}

func TestSubmitMovement_ExpiryRemovalNeedsContext(t *testing.T) {
	rig := newTestRig()

	m := ledger.NewMovement("SKU-001", -5, ledger.TypeAdjustment)
	m.Reason = ledger.ReasonExpiry
	_, err := rig.svc.SubmitMovement(context.Background(), m, nil)
	require.Error(t, err)

	// Validation happens before any write.
	assert.Empty(t, rig.store.appended)
}

func TestSubmitMovement_ExpiryDisposal(t *testing.T) {
	rig := newTestRig()

	m := ledger.NewMovement("SKU-001", -5, ledger.TypeAdjustment)
	m.Reason = ledger.ReasonExpiry
	_, err := rig.svc.SubmitMovement(context.Background(), m, &expiry.Context{
		Mode:       expiry.ModeDisposal,
		LossAmount: types.MustMoney("25"),
	})
	require.NoError(t, err)

	require.Len(t, rig.store.appended, 1)
	require.Len(t, rig.finance.entries, 1)
	assert.Equal(t, finance.KindExpense, rig.finance.entries[0].Kind)
}

func TestSubmitMovement_PartialFailureKeepsMovement(t *testing.T) {
	rig := newTestRig()
	rig.finance.fail = true

	m := ledger.NewMovement("SKU-001", -5, ledger.TypeAdjustment)
	m.Reason = ledger.ReasonExpiry
	_, err := rig.svc.SubmitMovement(context.Background(), m, &expiry.Context{
		Mode:       expiry.ModeDisposal,
		LossAmount: types.MustMoney("25"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsPostingPartialFailure(err))

	// Movement stays committed, marker saved, cache still refreshed.
	assert.Len(t, rig.store.appended, 1)
	assert.Len(t, rig.pendings.saved, 1)
	assert.Equal(t, 1, rig.refresher.refreshes)
}

func TestSubmitMovement_MissingSummaryIsNil(t *testing.T) {
	rig := newTestRig()

	m := ledger.NewMovement("SKU-001", 10, ledger.TypePurchase)
	summary, err := rig.svc.SubmitMovement(context.Background(), m, nil)
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestSubmitBatch(t *testing.T) {
	rig := newTestRig()

	movements := []*ledger.Movement{
		ledger.NewMovement("SKU-001", -2, ledger.TypeSale),
		ledger.NewMovement("SKU-002", -1, ledger.TypeSale),
	}
	require.NoError(t, rig.svc.SubmitBatch(context.Background(), movements))
	assert.Len(t, rig.store.appended, 2)
	assert.Equal(t, 1, rig.refresher.refreshes)
}

func TestSubmitBatch_RejectsExpiryRemovals(t *testing.T) {
	rig := newTestRig()

	removal := ledger.NewMovement("SKU-001", -2, ledger.TypeAdjustment)
	removal.Reason = ledger.ReasonExpiry
	err := rig.svc.SubmitBatch(context.Background(), []*ledger.Movement{removal})
	require.Error(t, err)
	assert.Empty(t, rig.store.appended)
}

func TestSubmitBatch_Empty(t *testing.T) {
	rig := newTestRig()
	assert.Error(t, rig.svc.SubmitBatch(context.Background(), nil))
}

func TestDeleteMovement(t *testing.T) {
	rig := newTestRig()

	movementID := id.New()
	require.NoError(t, rig.svc.DeleteMovement(context.Background(), movementID))
	assert.Equal(t, []id.ID{movementID}, rig.store.deleted)
	assert.Equal(t, 1, rig.refresher.refreshes)
}

func TestMovements_RequiresSKU(t *testing.T) {
	rig := newTestRig()
	_, err := rig.svc.Movements(context.Background(), "")
	assert.Error(t, err)
}
