package quote

import (
	"time"

	"github.com/noah-isme/backend-labquote/internal/catalog"
	"github.com/noah-isme/backend-labquote/internal/pricing"
)

// Line is one selected lab test. The price is resolved live against the
// catalog so a variant switch re-prices every line.
type Line struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Quote is the mutable per-session state: the selection, the three discount
// knobs, and the active price variant. Totals are never stored; they are
// recomputed from scratch on every read.
type Quote struct {
	ID        string           `json:"id"`
	Variant   pricing.Variant  `json:"variant"`
	Items     []Line           `json:"items"`
	Base      pricing.Discount `json:"base"`
	Tests     pricing.Discount `json:"tests"`
	Overall   pricing.Discount `json:"overall"`
	FocusCode string           `json:"focusCode,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func (q *Quote) indexOf(code string) int {
	for i, line := range q.Items {
		if line.Code == code {
			return i
		}
	}
	return -1
}

// DiscountKind identifies one of the three discount knobs.
type DiscountKind string

const (
	// DiscountBase applies to the nurse visit base fee.
	DiscountBase DiscountKind = "base"
	// DiscountTests applies to the selected tests subtotal.
	DiscountTests DiscountKind = "tests"
	// DiscountOverall applies to the grand subtotal.
	DiscountOverall DiscountKind = "overall"
)

// ParseDiscountKind normalises a raw kind string. Unknown values report
// false.
func ParseDiscountKind(s string) (DiscountKind, bool) {
	switch DiscountKind(s) {
	case DiscountBase, DiscountTests, DiscountOverall:
		return DiscountKind(s), true
	default:
		return "", false
	}
}

// ItemView is a selected test with its price under the active variant.
type ItemView struct {
	Code  string        `json:"code"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
}

// FocusView carries detail information for the currently focused test.
// Details is nil when the details dataset has no entry for the code, in
// which case Placeholder holds the text to render instead.
type FocusView struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Details     *catalog.Details `json:"details"`
	Placeholder string           `json:"placeholder,omitempty"`
}

// View is the full derived representation of a quote handed to the
// presentation layer.
type View struct {
	ID        string           `json:"id"`
	Variant   pricing.Variant  `json:"variant"`
	Items     []ItemView       `json:"items"`
	Base      pricing.Discount `json:"baseDiscount"`
	Tests     pricing.Discount `json:"testsDiscount"`
	Overall   pricing.Discount `json:"overallDiscount"`
	Summary   pricing.Summary  `json:"summary"`
	Focus     *FocusView       `json:"focus"`
	Notice    string           `json:"notice,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
