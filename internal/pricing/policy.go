package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/checkout-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/checkout-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Line is a priced quantity of one product.
type Line struct {
	Quantity       int
	UnitPriceCents int64
}

// SubtotalCents is quantity x unit price.
func (l Line) SubtotalCents() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

// Breakdown is the full set of order amounts in integer cents.
type Breakdown struct {
	Currency      string  `json:"currency"`
	SubtotalCents int64   `json:"subtotal_cents"`
	ShippingCents int64   `json:"shipping_cents"`
	TaxCents      int64   `json:"tax_cents"`
	DiscountCents int64   `json:"discount_cents"`
	TotalCents    int64   `json:"total_cents"`
	LineTaxCents  []int64 `json:"-"`
}

// Policy is the single authority for shipping, tax and totals.
type Policy struct {
	currency              string
	freeShippingThreshold int64
	flatShipping          int64
	taxRatePercent        decimal.Decimal
}

// NewPolicy builds the policy from pricing config.
func NewPolicy(cfg config.PricingConfig) (*Policy, error) {
	rate, err := cfg.TaxRate()
	if err != nil {
		return nil, err
	}
	if cfg.FreeShippingThresholdCents < 0 || cfg.FlatShippingCents < 0 {
		return nil, fmt.Errorf("shipping amounts must be non-negative")
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Policy{
		currency:              currency,
		freeShippingThreshold: cfg.FreeShippingThresholdCents,
		flatShipping:          cfg.FlatShippingCents,
		taxRatePercent:        rate,
	}, nil
}

// Currency returns the ISO currency every amount is denominated in.
func (p *Policy) Currency() string {
	return p.currency
}

// Shipping is free at or above the threshold and flat below it.
func (p *Policy) Shipping(subtotalCents int64) int64 {
	if subtotalCents >= p.freeShippingThreshold {
		return 0
	}
	return p.flatShipping
}

// Tax is subtotal x rate, rounded half up to the cent.
func (p *Policy) Tax(subtotalCents int64) int64 {
	return decimal.NewFromInt(subtotalCents).
		Mul(p.taxRatePercent).
		Div(hundred).
		Round(0).
		IntPart()
}

// Price computes the breakdown for lines with an order level discount.
// LineTaxCents allocates the order tax across lines proportionally to their
// subtotals, the largest line absorbing the rounding remainder.
func (p *Policy) Price(lines []Line, discountCents int64) (Breakdown, error) {
	if len(lines) == 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeEmptyCart, "no items to price")
	}
	if discountCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must be non-negative")
	}

	var subtotal int64
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if line.UnitPriceCents < 0 {
			return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative")
		}
		subtotal += line.SubtotalCents()
	}

	shipping := p.Shipping(subtotal)
	tax := p.Tax(subtotal)
	if discountCents > subtotal+shipping+tax {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds order total")
	}

	return Breakdown{
		Currency:      p.currency,
		SubtotalCents: subtotal,
		ShippingCents: shipping,
		TaxCents:      tax,
		DiscountCents: discountCents,
		TotalCents:    subtotal + shipping + tax - discountCents,
		LineTaxCents:  allocate(lines, subtotal, tax),
	}, nil
}

func allocate(lines []Line, subtotal, tax int64) []int64 {
	shares := make([]int64, len(lines))
	if subtotal == 0 || tax == 0 {
		return shares
	}

	var assigned int64
	largest := 0
	for i, line := range lines {
		shares[i] = line.SubtotalCents() * tax / subtotal
		assigned += shares[i]
		if line.SubtotalCents() > lines[largest].SubtotalCents() {
			largest = i
		}
	}
	shares[largest] += tax - assigned
	return shares
}
