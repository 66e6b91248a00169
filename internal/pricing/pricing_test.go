package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceWithoutDiscount(t *testing.T) {
	q := DefaultRates().Price([]Line{{UnitPriceCents: 10000, Quantity: 2}}, 0, 0)

	assert.Equal(t, 20000, q.SubtotalCents)
	assert.Equal(t, 1000, q.TaxCents)
	assert.Equal(t, 4900, q.DeliveryFeeCents)
	assert.Equal(t, 25900, q.TotalCents)
}

func TestPriceWithLoyaltyDiscount(t *testing.T) {
	q := DefaultRates().Price([]Line{{UnitPriceCents: 10000, Quantity: 2}}, 0, 4000)
	assert.Equal(t, 21900, q.TotalCents)
}

func TestPriceWithCouponDiscount(t *testing.T) {
	q := DefaultRates().Price([]Line{{UnitPriceCents: 10000, Quantity: 2}}, 5000, 0)
	assert.Equal(t, 20900, q.TotalCents)
}

func TestPriceClampsDiscountsToSubtotal(t *testing.T) {
	rates := DefaultRates()
	lines := []Line{{UnitPriceCents: 3000, Quantity: 1}}

	q := rates.Price(lines, 10000, 0)
	assert.Equal(t, 3000, q.CouponDiscountCents)
	assert.Equal(t, q.DeliveryFeeCents+q.TaxCents, q.TotalCents)

	q = rates.Price(lines, 2000, 5000)
	assert.Equal(t, 2000, q.CouponDiscountCents)
	assert.Equal(t, 1000, q.LoyaltyDiscountCents)
	assert.Equal(t, q.DeliveryFeeCents+q.TaxCents, q.TotalCents)

	q = rates.Price(lines, -50, -1)
	assert.Zero(t, q.DiscountCents())
}

func TestPriceIdentityHoldsAcrossInputs(t *testing.T) {
	rates := Rates{DeliveryFeeCents: 4900, TaxRate: decimal.RequireFromString("0.075")}
	for subtotal := 0; subtotal <= 30000; subtotal += 1333 {
		for _, discount := range []int{0, 500, 5000, 40000} {
			q := rates.Price([]Line{{UnitPriceCents: subtotal, Quantity: 1}}, discount, discount/2)
			require.Equal(t, q.SubtotalCents-q.DiscountCents()+q.DeliveryFeeCents+q.TaxCents, q.TotalCents)
			require.GreaterOrEqual(t, q.TotalCents, q.DeliveryFeeCents+q.TaxCents)
			require.LessOrEqual(t, q.DiscountCents(), q.SubtotalCents)
		}
	}
}

func TestEmptyCartStillCarriesDeliveryFee(t *testing.T) {
	q := DefaultRates().Price(nil, 0, 0)
	assert.Zero(t, q.SubtotalCents)
	assert.Zero(t, q.TaxCents)
	assert.Equal(t, 4900, q.TotalCents)
}

func TestTaxRoundsHalfAwayFromZero(t *testing.T) {
	rates := Rates{TaxRate: decimal.RequireFromString("0.05")}
	assert.Equal(t, 1, rates.Tax(10))
	assert.Equal(t, 0, rates.Tax(9))
	assert.Equal(t, 0, rates.Tax(-100))
}

func TestSubtotalSkipsInvalidLines(t *testing.T) {
	got := Subtotal([]Line{
		{UnitPriceCents: 250, Quantity: 4},
		{UnitPriceCents: 999, Quantity: 0},
		{UnitPriceCents: -5, Quantity: 2},
	})
	assert.Equal(t, 1000, got)
}
