package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-labquote/internal/catalog"
	"github.com/noah-isme/backend-labquote/internal/pricing"
)

type stubSource struct {
	items      []catalog.Item
	details    map[string]catalog.Details
	pricesErr  error
	detailsErr error
}

func (s stubSource) Prices(context.Context) ([]catalog.Item, error) {
	return s.items, s.pricesErr
}

func (s stubSource) Details(context.Context) (map[string]catalog.Details, error) {
	return s.details, s.detailsErr
}

func flat(v float64) catalog.Price {
	return catalog.Price{Flat: &v}
}

func variantPriced(private, tourist float64) catalog.Price {
	return catalog.Price{Variants: map[string]float64{"private": private, "tourist": tourist}}
}

func testItems() []catalog.Item {
	return []catalog.Item{
		{Code: "5022", Name: "Complete Blood Count", Price: variantPriced(150, 210)},
		{Code: "6331", Name: "SMAC Panel", Price: variantPriced(180, 240)},
		{Code: "4410", Name: "TSH", Price: flat(95)},
		{Code: "4412", Name: "Free T4", Price: catalog.Price{Variants: map[string]float64{"private": 88}}},
	}
}

func loadedCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()
	c.Load(context.Background(), stubSource{
		items: testItems(),
		details: map[string]catalog.Details{
			"5022": {Tubes: "1 x EDTA", Sampling: "no fasting required", Turnaround: "same day"},
		},
	}, zerolog.Nop())
	return c
}

func TestSearchWhileLoading(t *testing.T) {
	c := catalog.New()
	_, err := c.Search("cbc", pricing.VariantPrivate, 15)
	require.ErrorIs(t, err, catalog.ErrLoading)

	state, _ := c.State()
	require.Equal(t, catalog.StateLoading, state)
}

func TestSearchSemantics(t *testing.T) {
	c := loadedCatalog(t)

	t.Run("empty query yields no results", func(t *testing.T) {
		results, err := c.Search("   ", pricing.VariantPrivate, 15)
		require.NoError(t, err)
		require.Empty(t, results)
	})

	t.Run("case-insensitive name match", func(t *testing.T) {
		results, err := c.Search("BLOOD", pricing.VariantPrivate, 15)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "5022", results[0].Code)
		require.Equal(t, pricing.Money(150), results[0].Price)
	})

	t.Run("code substring match", func(t *testing.T) {
		results, err := c.Search("633", pricing.VariantPrivate, 15)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Equal(t, "SMAC Panel", results[0].Name)
	})

	t.Run("no match yields empty set", func(t *testing.T) {
		results, err := c.Search("zzz", pricing.VariantPrivate, 15)
		require.NoError(t, err)
		require.Empty(t, results)
	})

	t.Run("storage order preserved", func(t *testing.T) {
		results, err := c.Search("44", pricing.VariantPrivate, 15)
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, "4410", results[0].Code)
		require.Equal(t, "4412", results[1].Code)
	})

	t.Run("result cap applies", func(t *testing.T) {
		items := make([]catalog.Item, 0, 30)
		for i := 0; i < 30; i++ {
			items = append(items, catalog.Item{
				Code:  catalog.Code(fmt.Sprintf("90%02d", i)),
				Name:  fmt.Sprintf("Panel %d", i),
				Price: flat(10),
			})
		}
		big := catalog.New()
		big.Load(context.Background(), stubSource{items: items}, zerolog.Nop())
		results, err := big.Search("panel", pricing.VariantPrivate, 15)
		require.NoError(t, err)
		require.Len(t, results, 15)
	})
}

func TestVariantPricing(t *testing.T) {
	c := loadedCatalog(t)
	require.Equal(t, pricing.Money(150), c.PriceOf("5022", pricing.VariantPrivate))
	require.Equal(t, pricing.Money(210), c.PriceOf("5022", pricing.VariantTourist))

	// flat price applies to every variant
	require.Equal(t, pricing.Money(95), c.PriceOf("4410", pricing.VariantPrivate))
	require.Equal(t, pricing.Money(95), c.PriceOf("4410", pricing.VariantTourist))

	// missing variant column degrades to zero
	require.Equal(t, pricing.Money(88), c.PriceOf("4412", pricing.VariantPrivate))
	require.Equal(t, pricing.Money(0), c.PriceOf("4412", pricing.VariantTourist))

	// unknown code degrades to zero
	require.Equal(t, pricing.Money(0), c.PriceOf("0000", pricing.VariantPrivate))
}

func TestDetailsLookup(t *testing.T) {
	c := loadedCatalog(t)

	d, ok := c.DetailsOf(" 5022 ")
	require.True(t, ok)
	require.Equal(t, "1 x EDTA", d.Tubes)

	_, ok = c.DetailsOf("6331")
	require.False(t, ok)
}

func TestLoadDegradation(t *testing.T) {
	t.Run("price failure leaves empty degraded catalog", func(t *testing.T) {
		c := catalog.New()
		c.Load(context.Background(), stubSource{pricesErr: errors.New("boom")}, zerolog.Nop())
		state, notice := c.State()
		require.Equal(t, catalog.StateDegraded, state)
		require.NotEmpty(t, notice)
		require.Zero(t, c.Len())

		results, err := c.Search("cbc", pricing.VariantPrivate, 15)
		require.NoError(t, err)
		require.Empty(t, results)
	})

	t.Run("details failure keeps prices", func(t *testing.T) {
		c := catalog.New()
		c.Load(context.Background(), stubSource{items: testItems(), detailsErr: errors.New("boom")}, zerolog.Nop())
		state, notice := c.State()
		require.Equal(t, catalog.StateDegraded, state)
		require.NotEmpty(t, notice)
		require.Equal(t, 4, c.Len())
		require.Equal(t, pricing.Money(150), c.PriceOf("5022", pricing.VariantPrivate))
	})

	t.Run("duplicate codes keep first occurrence", func(t *testing.T) {
		c := catalog.New()
		c.Load(context.Background(), stubSource{items: []catalog.Item{
			{Code: "5022", Name: "First", Price: flat(100)},
			{Code: "5022", Name: "Second", Price: flat(200)},
		}}, zerolog.Nop())
		item, ok := c.Get("5022")
		require.True(t, ok)
		require.Equal(t, "First", item.Name)
	})
}

func TestPriceJSONShapes(t *testing.T) {
	var item catalog.Item
	require.NoError(t, json.Unmarshal([]byte(`{"test_code": 5022, "test_name": "CBC", "price": 150.4}`), &item))
	require.Equal(t, catalog.Code("5022"), item.Code)
	require.Equal(t, pricing.Money(150), item.Price.Amount(pricing.VariantPrivate))
	require.Equal(t, pricing.Money(150), item.Price.Amount(pricing.VariantTourist))

	require.NoError(t, json.Unmarshal([]byte(`{"test_code": "6331", "test_name": "SMAC", "price": {"private": 180, "tourist": 240.6}}`), &item))
	require.Equal(t, pricing.Money(180), item.Price.Amount(pricing.VariantPrivate))
	require.Equal(t, pricing.Money(241), item.Price.Amount(pricing.VariantTourist))

	require.Error(t, json.Unmarshal([]byte(`{"price": "abc"}`), &item))
}
