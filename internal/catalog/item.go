package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/backend-labquote/internal/pricing"
)

// Code is a lab test identifier. Source data carries it either as a JSON
// string or a bare number; it is always compared in normalised string form.
type Code string

// UnmarshalJSON accepts both string and numeric representations.
func (c *Code) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Code(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*c = Code(n.String())
		return nil
	}
	return fmt.Errorf("catalog: invalid test code: %s", string(data))
}

// NormalizeCode trims and canonicalises a raw code for comparison.
func NormalizeCode(raw string) string {
	return strings.TrimSpace(raw)
}

// Price is either a single flat amount or a mapping of variant name to
// amount. Amounts are kept as loaded and rounded to whole units on read.
type Price struct {
	Flat     *float64
	Variants map[string]float64
}

// UnmarshalJSON accepts a bare number or a variant-to-amount object.
func (p *Price) UnmarshalJSON(data []byte) error {
	var flat float64
	if err := json.Unmarshal(data, &flat); err == nil {
		p.Flat = &flat
		p.Variants = nil
		return nil
	}
	var variants map[string]float64
	if err := json.Unmarshal(data, &variants); err == nil {
		p.Flat = nil
		p.Variants = variants
		return nil
	}
	return fmt.Errorf("catalog: invalid price: %s", string(data))
}

// MarshalJSON writes back the same shape the price was loaded from.
func (p Price) MarshalJSON() ([]byte, error) {
	if p.Flat != nil {
		return json.Marshal(*p.Flat)
	}
	return json.Marshal(p.Variants)
}

// Amount returns the price for the requested variant rounded to whole units.
// A flat price applies to every variant. Missing variant columns and
// non-positive amounts degrade to zero rather than failing.
func (p Price) Amount(v pricing.Variant) pricing.Money {
	var raw float64
	switch {
	case p.Flat != nil:
		raw = *p.Flat
	case p.Variants != nil:
		raw = p.Variants[string(v)]
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw <= 0 {
		return 0
	}
	return pricing.Money(math.Round(raw))
}

// Item is one purchasable lab test from the price list.
type Item struct {
	Code  Code   `json:"test_code"`
	Name  string `json:"test_name"`
	Price Price  `json:"price"`
}

// Details carries handling metadata for a test, sourced from the optional
// details dataset. Absence of details for a code is valid.
type Details struct {
	Tubes      string `json:"tubes"`
	Sampling   string `json:"sampling_conditions"`
	Transport  string `json:"transport"`
	Execution  string `json:"execution_time"`
	Turnaround string `json:"results_turnaround"`
}

// Result is a single search hit with the display price for the active
// variant.
type Result struct {
	Code  string        `json:"code"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
}
