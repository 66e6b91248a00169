// Package pricing computes order totals from cart lines and the discount
// amounts already selected for the cart. It performs no I/O.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Line is one priced cart row.
type Line struct {
	UnitPriceCents int
	Quantity       int
}

// Rates holds the fixed charges applied to every order.
type Rates struct {
	DeliveryFeeCents int
	TaxRate          decimal.Decimal
}

// DefaultRates returns the platform's standard fee and tax rate.
func DefaultRates() Rates {
	return Rates{
		DeliveryFeeCents: 4900,
		TaxRate:          decimal.RequireFromString("0.05"),
	}
}

// Quote is the priced breakdown of a cart. Discount fields hold the clamped
// amounts actually granted, so TotalCents always equals
// SubtotalCents - CouponDiscountCents - LoyaltyDiscountCents + DeliveryFeeCents + TaxCents.
type Quote struct {
	SubtotalCents        int `json:"subtotal_cents"`
	CouponDiscountCents  int `json:"coupon_discount_cents"`
	LoyaltyDiscountCents int `json:"loyalty_discount_cents"`
	DeliveryFeeCents     int `json:"delivery_fee_cents"`
	TaxCents             int `json:"tax_cents"`
	TotalCents           int `json:"total_cents"`
}

// DiscountCents sums both granted discounts.
func (q Quote) DiscountCents() int {
	return q.CouponDiscountCents + q.LoyaltyDiscountCents
}

// Subtotal sums unit price times quantity. Non-positive quantities and
// negative prices contribute nothing.
func Subtotal(lines []Line) int {
	total := 0
	for _, line := range lines {
		if line.Quantity <= 0 || line.UnitPriceCents < 0 {
			continue
		}
		total += line.UnitPriceCents * line.Quantity
	}
	return total
}

// Tax applies the tax rate to the undiscounted subtotal, rounded to whole cents.
func (r Rates) Tax(subtotalCents int) int {
	if subtotalCents <= 0 || r.TaxRate.IsZero() {
		return 0
	}
	return int(decimal.NewFromInt(int64(subtotalCents)).Mul(r.TaxRate).Round(0).IntPart())
}

// Price builds a Quote. Discounts are clamped so that the coupon never
// exceeds the subtotal and both discounts together never exceed it.
func (r Rates) Price(lines []Line, couponDiscountCents, loyaltyDiscountCents int) Quote {
	subtotal := Subtotal(lines)

	coupon := clamp(couponDiscountCents, subtotal)
	loyalty := clamp(loyaltyDiscountCents, subtotal-coupon)

	fee := r.DeliveryFeeCents
	if fee < 0 {
		fee = 0
	}
	tax := r.Tax(subtotal)

	return Quote{
		SubtotalCents:        subtotal,
		CouponDiscountCents:  coupon,
		LoyaltyDiscountCents: loyalty,
		DeliveryFeeCents:     fee,
		TaxCents:             tax,
		TotalCents:           subtotal - coupon - loyalty + fee + tax,
	}
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
