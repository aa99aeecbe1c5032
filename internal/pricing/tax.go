package pricing

import "math"

// TaxSummary splits a tax-inclusive total into its pre-tax amount and the
// tax portion.
type TaxSummary struct {
	RateBps   int   `json:"rateBps"`
	BeforeTax Money `json:"beforeTax"`
	Tax       Money `json:"tax"`
	Total     Money `json:"total"`
}

// SplitTax derives the tax breakdown from a tax-inclusive total at the given
// rate in basis points. The pre-tax amount is rounded first and the tax is
// the remainder, so the two always sum back to the total.
func SplitTax(total Money, rateBps int) TaxSummary {
	if rateBps <= 0 || total <= 0 {
		return TaxSummary{RateBps: rateBps, BeforeTax: total, Total: total}
	}
	divisor := 1 + float64(rateBps)/10000
	before := Money(math.Round(float64(total) / divisor))
	return TaxSummary{
		RateBps:   rateBps,
		BeforeTax: before,
		Tax:       total - before,
		Total:     total,
	}
}
