package alerts_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricefeed/basket-engine/alerts"
	"github.com/pricefeed/basket-engine/catalog"
	memstore "github.com/pricefeed/basket-engine/catalog/store"
	"github.com/pricefeed/basket-engine/pricing"
)

// fakeAlertStore keeps alerts in a map, enough for checker tests.
type fakeAlertStore struct {
	alerts map[uuid.UUID]alerts.Alert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: make(map[uuid.UUID]alerts.Alert)}
}

func (s *fakeAlertStore) SaveAlert(_ context.Context, a *alerts.Alert) error {
	s.alerts[a.ID] = *a
	return nil
}

func (s *fakeAlertStore) GetAlert(_ context.Context, id uuid.UUID) (*alerts.Alert, error) {
	a, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *fakeAlertStore) ListAlerts(_ context.Context) ([]alerts.Alert, error) {
	var out []alerts.Alert
	for _, a := range s.alerts {
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeAlertStore) ListActiveAlerts(_ context.Context) ([]alerts.Alert, error) {
	var out []alerts.Alert
	for _, a := range s.alerts {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAlertStore) DeleteAlert(_ context.Context, id uuid.UUID) error {
	delete(s.alerts, id)
	return nil
}

// =============================================================================
// FIXTURE
// =============================================================================

type checkerFixture struct {
	mem     *memstore.Memory
	store   *catalog.Store
	product *catalog.Product
	alerts  *fakeAlertStore
	checker *alerts.Checker
	asOf    catalog.Day
}

func newCheckerFixture(t *testing.T) *checkerFixture {
	t.Helper()
	ctx := context.Background()
	mem := memstore.NewMemory()
	r := catalog.NewResolver(mem)

	store, err := r.ResolveStore(ctx, "mercadona")
	require.NoError(t, err)
	brand, err := r.ResolveBrand(ctx, "hacendado")
	require.NoError(t, err)
	category, err := r.ResolveCategory(ctx, "dairy")
	require.NoError(t, err)
	product, err := r.ResolveProduct(ctx, "whole milk", brand, category)
	require.NoError(t, err)

	alertStore := newFakeAlertStore()
	return &checkerFixture{
		mem:     mem,
		store:   store,
		product: product,
		alerts:  alertStore,
		checker: alerts.NewChecker(pricing.NewEngine(mem), alertStore),
		asOf:    catalog.NewDay(2026, time.March, 7),
	}
}

func (f *checkerFixture) addPrice(t *testing.T, storeID catalog.StoreID, price string) {
	t.Helper()
	_, err := catalog.UpsertPriceEntry(context.Background(), f.mem, catalog.PriceEntry{
		ProductID:   f.product.ID,
		StoreID:     storeID,
		EntryDate:   f.asOf.AddDays(-1),
		Price:       decimal.RequireFromString(price),
		Currency:    "EUR",
		PackageQty:  decimal.NewFromInt(1),
		PackageUnit: "l",
	})
	require.NoError(t, err)
}

// =============================================================================
// CHECKER TESTS
// =============================================================================

func TestCheckAll_TriggersAtOrBelowTarget(t *testing.T) {
	f := newCheckerFixture(t)
	f.addPrice(t, f.store.ID, "1.40")

	a := alerts.New(f.product.ID, nil, decimal.RequireFromString("1.40"))
	require.NoError(t, f.alerts.SaveAlert(context.Background(), a))

	triggered, err := f.checker.CheckAll(context.Background(), f.asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, triggered)

	saved, err := f.alerts.GetAlert(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, saved.Active, "triggered alert must deactivate")
	require.NotNil(t, saved.TriggeredPrice)
	assert.True(t, saved.TriggeredPrice.Equal(decimal.RequireFromString("1.40")))
	require.NotNil(t, saved.TriggeredStoreID)
	assert.Equal(t, f.store.ID, *saved.TriggeredStoreID)
	require.NotNil(t, saved.TriggeredAt)
}

func TestCheckAll_PriceAboveTargetKeepsWatching(t *testing.T) {
	f := newCheckerFixture(t)
	f.addPrice(t, f.store.ID, "1.60")

	a := alerts.New(f.product.ID, nil, decimal.RequireFromString("1.40"))
	require.NoError(t, f.alerts.SaveAlert(context.Background(), a))

	triggered, err := f.checker.CheckAll(context.Background(), f.asOf)
	require.NoError(t, err)
	assert.Zero(t, triggered)

	saved, _ := f.alerts.GetAlert(context.Background(), a.ID)
	assert.True(t, saved.Active)
}

func TestCheckAll_DiscountCountsTowardTarget(t *testing.T) {
	f := newCheckerFixture(t)
	f.addPrice(t, f.store.ID, "1.60")

	_, err := catalog.UpsertDiscount(context.Background(), f.mem, catalog.Discount{
		ProductID:   f.product.ID,
		StoreID:     f.store.ID,
		FromDate:    f.asOf.AddDays(-2),
		ToDate:      f.asOf.AddDays(2),
		PackageQty:  decimal.NewFromInt(1),
		PackageUnit: "l",
		Percentage:  20,
		RecordedAt:  f.asOf.AddDays(-2),
	})
	require.NoError(t, err)

	// 1.60 at 20% off is 1.28, under the 1.40 target.
	a := alerts.New(f.product.ID, nil, decimal.RequireFromString("1.40"))
	require.NoError(t, f.alerts.SaveAlert(context.Background(), a))

	triggered, err := f.checker.CheckAll(context.Background(), f.asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, triggered)

	saved, _ := f.alerts.GetAlert(context.Background(), a.ID)
	require.NotNil(t, saved.TriggeredPrice)
	assert.True(t, saved.TriggeredPrice.Equal(decimal.RequireFromString("1.28")))
}

func TestCheckAll_PinnedStoreIgnoresOtherStores(t *testing.T) {
	f := newCheckerFixture(t)
	ctx := context.Background()

	other, err := catalog.NewResolver(f.mem).ResolveStore(ctx, "lidl")
	require.NoError(t, err)

	f.addPrice(t, f.store.ID, "1.60") // watched store, too expensive
	f.addPrice(t, other.ID, "1.20")   // cheaper elsewhere

	a := alerts.New(f.product.ID, &f.store.ID, decimal.RequireFromString("1.40"))
	require.NoError(t, f.alerts.SaveAlert(ctx, a))

	triggered, err := f.checker.CheckAll(ctx, f.asOf)
	require.NoError(t, err)
	assert.Zero(t, triggered, "a pinned alert must not trigger on another store's price")
}

func TestCheckAll_NoDataKeepsWatching(t *testing.T) {
	f := newCheckerFixture(t)

	a := alerts.New(f.product.ID, nil, decimal.RequireFromString("1.40"))
	require.NoError(t, f.alerts.SaveAlert(context.Background(), a))

	triggered, err := f.checker.CheckAll(context.Background(), f.asOf)
	require.NoError(t, err)
	assert.Zero(t, triggered)
}

func TestCheckAll_InactiveAlertsUntouched(t *testing.T) {
	f := newCheckerFixture(t)
	f.addPrice(t, f.store.ID, "1.00")

	a := alerts.New(f.product.ID, nil, decimal.RequireFromString("1.40"))
	a.Active = false
	require.NoError(t, f.alerts.SaveAlert(context.Background(), a))

	triggered, err := f.checker.CheckAll(context.Background(), f.asOf)
	require.NoError(t, err)
	assert.Zero(t, triggered, "already-triggered alerts are not re-evaluated")
}
