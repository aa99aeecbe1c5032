package quote

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-labquote/internal/catalog"
	"github.com/noah-isme/backend-labquote/internal/pricing"
)

type stubSource struct {
	items   []catalog.Item
	details map[string]catalog.Details
}

func (s stubSource) Prices(context.Context) ([]catalog.Item, error) { return s.items, nil }
func (s stubSource) Details(context.Context) (map[string]catalog.Details, error) {
	return s.details, nil
}

func variantItem(code, name string, private, tourist float64) catalog.Item {
	return catalog.Item{
		Code: catalog.Code(code),
		Name: name,
		Price: catalog.Price{Variants: map[string]float64{
			"private": private,
			"tourist": tourist,
		}},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	cat := catalog.New()
	src := stubSource{
		items: []catalog.Item{
			variantItem("5022", "Complete Blood Count", 150, 210),
			variantItem("6331", "SMAC Panel", 300, 390),
			variantItem("4410", "TSH", 95, 120),
		},
		details: map[string]catalog.Details{
			"5022": {Tubes: "1 EDTA", Sampling: "none", Transport: "room temperature", Execution: "daily", Turnaround: "same day"},
		},
	}
	cat.Load(context.Background(), src, zerolog.Nop())
	catSvc, err := catalog.NewService(catalog.ServiceConfig{Catalog: cat})
	require.NoError(t, err)
	return &Service{
		Store:       NewMemoryStore(0),
		Catalog:     catSvc,
		PrivateBase: 710,
		TouristBase: 890,
		Now:         func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) },
	}
}

func TestCreateDefaultsToPrivate(t *testing.T) {
	svc := newTestService(t)
	view, err := svc.Create(context.Background(), "")
	require.NoError(t, err)
	require.NotEmpty(t, view.ID)
	require.Equal(t, pricing.VariantPrivate, view.Variant)
	require.Empty(t, view.Items)
	require.Equal(t, pricing.Money(710), view.Summary.FinalTotal)
	require.Nil(t, view.Focus)
}

func TestAddItemUpdatesTotalsAndFocus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx, "private")
	require.NoError(t, err)

	view, err = svc.AddItem(ctx, view.ID, "5022")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, pricing.Money(150), view.Items[0].Price)
	require.Equal(t, pricing.Money(860), view.Summary.FinalTotal)
	require.NotNil(t, view.Focus)
	require.Equal(t, "5022", view.Focus.Code)
	require.NotNil(t, view.Focus.Details)
	require.Equal(t, "1 EDTA", view.Focus.Details.Tubes)
}

func TestAddDuplicateIsNoOp(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx, "private")
	require.NoError(t, err)
	id := view.ID

	_, err = svc.AddItem(ctx, id, "5022")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "6331")
	require.NoError(t, err)
	view, err = svc.AddItem(ctx, id, "5022")
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	// the duplicate add does not steal focus from the latest real add
	require.Equal(t, "6331", view.Focus.Code)
}

func TestAddUnknownCode(t *testing.T) {
	svc := newTestService(t)
	view, err := svc.Create(context.Background(), "private")
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), view.ID, "9999")
	require.ErrorIs(t, err, ErrUnknownTest)
}

func TestRemoveItemFocusPolicy(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx, "private")
	require.NoError(t, err)
	id := view.ID

	for _, code := range []string{"5022", "6331", "4410"} {
		_, err = svc.AddItem(ctx, id, code)
		require.NoError(t, err)
	}

	// removing a middle item moves focus to the last item in insertion order
	view, err = svc.RemoveItem(ctx, id, "6331")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	require.Equal(t, "4410", view.Focus.Code)

	// removing an absent code changes nothing
	view, err = svc.RemoveItem(ctx, id, "6331")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	require.Equal(t, "4410", view.Focus.Code)

	view, err = svc.RemoveItem(ctx, id, "4410")
	require.NoError(t, err)
	require.Equal(t, "5022", view.Focus.Code)

	view, err = svc.RemoveItem(ctx, id, "5022")
	require.NoError(t, err)
	require.Empty(t, view.Items)
	require.Nil(t, view.Focus)
	require.Equal(t, pricing.Money(710), view.Summary.FinalTotal)
}

func TestDiscountLayering(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx, "private")
	require.NoError(t, err)
	id := view.ID

	_, err = svc.AddItem(ctx, id, "5022")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "4410")
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "6331")
	require.NoError(t, err)
	// selection: 150 + 95 + 300 = 545, base 710

	pct := func(v float64) *float64 { return &v }
	on := true
	view, err = svc.SetDiscount(ctx, id, DiscountBase, pct(10), &on)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(71), view.Summary.BaseDiscount)
	require.Equal(t, pricing.Money(639), view.Summary.BaseTotal)

	view, err = svc.SetDiscount(ctx, id, DiscountTests, pct(5), &on)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(545), view.Summary.TestsSubtotal)
	require.Equal(t, pricing.Money(27), view.Summary.TestsDiscount)
	require.Equal(t, pricing.Money(518), view.Summary.TestsTotal)
	require.Equal(t, pricing.Money(1157), view.Summary.GrandSubtotal)

	view, err = svc.SetDiscount(ctx, id, DiscountOverall, pct(10), &on)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(116), view.Summary.OverallDiscount)
	require.Equal(t, pricing.Money(1041), view.Summary.FinalTotal)
}

func TestDiscountGateToggleKeepsPercent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx, "private")
	require.NoError(t, err)
	id := view.ID

	pct, on, off := 10.0, true, false
	view, err = svc.SetDiscount(ctx, id, DiscountBase, &pct, &on)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(639), view.Summary.FinalTotal)

	// disabling the gate zeroes the effect but keeps the stored percent
	view, err = svc.SetDiscount(ctx, id, DiscountBase, nil, &off)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(710), view.Summary.FinalTotal)
	require.Equal(t, 10.0, view.Base.Percent)

	view, err = svc.SetDiscount(ctx, id, DiscountBase, nil, &on)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(639), view.Summary.FinalTotal)
}

func TestSetVariantRepricesEverything(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx, "private")
	require.NoError(t, err)
	id := view.ID

	view, err = svc.AddItem(ctx, id, "5022")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(860), view.Summary.FinalTotal)

	view, err = svc.SetVariant(ctx, id, "tourist")
	require.NoError(t, err)
	require.Equal(t, pricing.VariantTourist, view.Variant)
	require.Equal(t, pricing.Money(210), view.Items[0].Price)
	require.Equal(t, pricing.Money(1100), view.Summary.FinalTotal)

	view, err = svc.SetVariant(ctx, id, "private")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(860), view.Summary.FinalTotal)

	_, err = svc.SetVariant(ctx, id, "vip")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetUnknownQuote(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Hour)
	store.Now = func() time.Time { return now }

	require.NoError(t, store.Put(context.Background(), Quote{ID: "q-1"}))
	_, err := store.Get(context.Background(), "q-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = store.Get(context.Background(), "q-1")
	require.ErrorIs(t, err, ErrNotFound)
}
