package pricing

import "math"

// Money represents a monetary value in whole currency units. All displayed
// amounts are rounded to the nearest whole unit; fractional intermediates
// only ever exist inside a single computation step.
type Money = int64

// Variant selects which price list column applies.
type Variant string

const (
	// VariantPrivate is the default price list.
	VariantPrivate Variant = "private"
	// VariantTourist applies the tourist price list.
	VariantTourist Variant = "tourist"
)

// ParseVariant normalises a raw variant string. Unknown values report false.
func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case VariantPrivate:
		return VariantPrivate, true
	case VariantTourist:
		return VariantTourist, true
	default:
		return "", false
	}
}

// Discount is a percentage knob gated by an independent enable toggle.
// Disabling forces the effective percentage to zero while preserving the
// stored value, so re-enabling restores the previous effect.
type Discount struct {
	Enabled bool    `json:"enabled"`
	Percent float64 `json:"percent"`
}

// EffectivePercent returns the percentage actually applied. Negative and
// non-numeric stored values coerce to zero; values above 100 pass through
// unchanged.
func (d Discount) EffectivePercent() float64 {
	if !d.Enabled {
		return 0
	}
	p := d.Percent
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}

// Input carries everything the engine needs to price a quote.
type Input struct {
	BaseFee    Money
	ItemPrices []Money
	Base       Discount
	Tests      Discount
	Overall    Discount
}

// Summary holds every monetary figure derived from an Input.
type Summary struct {
	BaseFee                Money   `json:"baseFee"`
	BaseDiscountPercent    float64 `json:"baseDiscountPercent"`
	BaseDiscount           Money   `json:"baseDiscount"`
	BaseTotal              Money   `json:"baseTotal"`
	TestsSubtotal          Money   `json:"testsSubtotal"`
	TestsDiscountPercent   float64 `json:"testsDiscountPercent"`
	TestsDiscount          Money   `json:"testsDiscount"`
	TestsTotal             Money   `json:"testsTotal"`
	GrandSubtotal          Money   `json:"grandSubtotal"`
	OverallDiscountPercent float64 `json:"overallDiscountPercent"`
	OverallDiscount        Money   `json:"overallDiscount"`
	FinalTotal             Money   `json:"finalTotal"`
}

// Compute derives the full quote breakdown from its inputs. It is pure and
// never fails: missing prices count as zero and every discount amount is
// rounded to the nearest whole unit independently before subtracting.
func Compute(in Input) Summary {
	basePct := in.Base.EffectivePercent()
	baseDiscount := discountAmount(in.BaseFee, basePct)
	baseTotal := in.BaseFee - baseDiscount

	var testsSubtotal Money
	for _, p := range in.ItemPrices {
		if p <= 0 {
			continue
		}
		testsSubtotal += p
	}
	testsPct := in.Tests.EffectivePercent()
	testsDiscount := discountAmount(testsSubtotal, testsPct)
	testsTotal := testsSubtotal - testsDiscount

	grandSubtotal := baseTotal + testsTotal
	overallPct := in.Overall.EffectivePercent()
	overallDiscount := discountAmount(grandSubtotal, overallPct)

	return Summary{
		BaseFee:                in.BaseFee,
		BaseDiscountPercent:    basePct,
		BaseDiscount:           baseDiscount,
		BaseTotal:              baseTotal,
		TestsSubtotal:          testsSubtotal,
		TestsDiscountPercent:   testsPct,
		TestsDiscount:          testsDiscount,
		TestsTotal:             testsTotal,
		GrandSubtotal:          grandSubtotal,
		OverallDiscountPercent: overallPct,
		OverallDiscount:        overallDiscount,
		FinalTotal:             grandSubtotal - overallDiscount,
	}
}

func discountAmount(base Money, pct float64) Money {
	if base <= 0 || pct <= 0 {
		return 0
	}
	return Money(math.Round(float64(base) * pct / 100))
}
