package document

import (
	"fmt"
	"time"

	"github.com/noah-isme/backend-labquote/internal/catalog"
	"github.com/noah-isme/backend-labquote/internal/pricing"
	"github.com/noah-isme/backend-labquote/internal/quote"
)

// notSpecified fills detail fields the catalog has no data for.
const notSpecified = "not specified"

// ItemLine is one priced row on the customer document.
type ItemLine struct {
	Code  string        `json:"code"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
}

// DiscountLine is one applied reduction. Lines with a zero amount are
// omitted from the document entirely.
type DiscountLine struct {
	Label   string        `json:"label"`
	Percent float64       `json:"percent"`
	Amount  pricing.Money `json:"amount"`
}

// CustomerQuote is the price document handed to the customer.
type CustomerQuote struct {
	QuoteID     string             `json:"quoteId"`
	Variant     pricing.Variant    `json:"variant"`
	GeneratedAt time.Time          `json:"generatedAt"`
	BaseFee     pricing.Money      `json:"baseFee"`
	Items       []ItemLine         `json:"items"`
	Discounts   []DiscountLine     `json:"discounts"`
	Summary     pricing.Summary    `json:"summary"`
	Tax         pricing.TaxSummary `json:"tax"`
	Notice      string             `json:"notice,omitempty"`
}

// StaffRow carries the handling instructions for one selected test.
type StaffRow struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Tubes      string `json:"tubes"`
	Sampling   string `json:"samplingConditions"`
	Transport  string `json:"transport"`
	Execution  string `json:"executionTime"`
	Turnaround string `json:"resultsTurnaround"`
}

// StaffSheet is the internal worksheet for sample collection. It carries no
// pricing information.
type StaffSheet struct {
	QuoteID     string          `json:"quoteId"`
	Variant     pricing.Variant `json:"variant"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Rows        []StaffRow      `json:"rows"`
}

// Builder renders quote views into exportable documents.
type Builder struct {
	Catalog    *catalog.Service
	TaxRateBps int
	Now        func() time.Time
}

func (b *Builder) now() time.Time {
	if b != nil && b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) taxRate() int {
	if b == nil || b.TaxRateBps <= 0 {
		return 1800
	}
	return b.TaxRateBps
}

// CustomerQuote builds the priced customer document from a quote view.
func (b *Builder) CustomerQuote(view quote.View) CustomerQuote {
	items := make([]ItemLine, 0, len(view.Items))
	for _, it := range view.Items {
		items = append(items, ItemLine{Code: it.Code, Name: it.Name, Price: it.Price})
	}
	s := view.Summary
	discounts := make([]DiscountLine, 0, 3)
	if s.BaseDiscount != 0 {
		discounts = append(discounts, DiscountLine{
			Label:   fmt.Sprintf("nurse visit discount (%s)", formatPercent(s.BaseDiscountPercent)),
			Percent: s.BaseDiscountPercent,
			Amount:  s.BaseDiscount,
		})
	}
	if s.TestsDiscount != 0 {
		discounts = append(discounts, DiscountLine{
			Label:   fmt.Sprintf("lab tests discount (%s)", formatPercent(s.TestsDiscountPercent)),
			Percent: s.TestsDiscountPercent,
			Amount:  s.TestsDiscount,
		})
	}
	if s.OverallDiscount != 0 {
		discounts = append(discounts, DiscountLine{
			Label:   fmt.Sprintf("overall discount (%s)", formatPercent(s.OverallDiscountPercent)),
			Percent: s.OverallDiscountPercent,
			Amount:  s.OverallDiscount,
		})
	}
	return CustomerQuote{
		QuoteID:     view.ID,
		Variant:     view.Variant,
		GeneratedAt: b.now(),
		BaseFee:     s.BaseFee,
		Items:       items,
		Discounts:   discounts,
		Summary:     s,
		Tax:         pricing.SplitTax(s.FinalTotal, b.taxRate()),
		Notice:      view.Notice,
	}
}

// StaffSheet builds the sample-handling worksheet. Tests without catalog
// details still get a row, with every field marked not specified.
func (b *Builder) StaffSheet(view quote.View) StaffSheet {
	rows := make([]StaffRow, 0, len(view.Items))
	for _, it := range view.Items {
		row := StaffRow{
			Code:       it.Code,
			Name:       it.Name,
			Tubes:      notSpecified,
			Sampling:   notSpecified,
			Transport:  notSpecified,
			Execution:  notSpecified,
			Turnaround: notSpecified,
		}
		if b.Catalog != nil {
			if d, ok := b.Catalog.DetailsOf(it.Code); ok {
				row.Tubes = orNotSpecified(d.Tubes)
				row.Sampling = orNotSpecified(d.Sampling)
				row.Transport = orNotSpecified(d.Transport)
				row.Execution = orNotSpecified(d.Execution)
				row.Turnaround = orNotSpecified(d.Turnaround)
			}
		}
		rows = append(rows, row)
	}
	return StaffSheet{
		QuoteID:     view.ID,
		Variant:     view.Variant,
		GeneratedAt: b.now(),
		Rows:        rows,
	}
}

func orNotSpecified(s string) string {
	if s == "" {
		return notSpecified
	}
	return s
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%g%%", p)
}
