package discounts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
)

func TestApplicableTier(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		balance   int
		threshold int
		ok        bool
	}{
		{balance: 0, ok: false},
		{balance: 99, ok: false},
		{balance: 100, threshold: 100, ok: true},
		{balance: 250, threshold: 200, ok: true},
		{balance: 499, threshold: 200, ok: true},
		{balance: 500, threshold: 500, ok: true},
		{balance: 10_000, threshold: 500, ok: true},
	}
	for _, tc := range cases {
		tier, ok := p.ApplicableTier(tc.balance)
		require.Equal(t, tc.ok, ok, "balance %d", tc.balance)
		if ok {
			assert.Equal(t, tc.threshold, tier.PointsThreshold, "balance %d", tc.balance)
		}
	}
	assert.Equal(t, 100, p.MinThreshold())
}

func TestNewPolicySortsAndFiltersTiers(t *testing.T) {
	p := NewPolicy([]Tier{
		{PointsThreshold: 100, DiscountPercent: 10},
		{PointsThreshold: 0, DiscountPercent: 50},
		{PointsThreshold: 300, DiscountPercent: 25},
	}, nil)

	tiers := p.Tiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, 300, tiers[0].PointsThreshold)
	assert.Equal(t, 100, tiers[1].PointsThreshold)
}

func TestLoyaltyDiscountCents(t *testing.T) {
	assert.Equal(t, 4000, LoyaltyDiscountCents(20000, Tier{PointsThreshold: 200, DiscountPercent: 20}))
	assert.Equal(t, 0, LoyaltyDiscountCents(0, Tier{DiscountPercent: 30}))
	assert.Equal(t, 500, LoyaltyDiscountCents(500, Tier{DiscountPercent: 150}))
	assert.Equal(t, 1, LoyaltyDiscountCents(5, Tier{DiscountPercent: 10}))
}

func TestCouponLookupIsCaseNormalized(t *testing.T) {
	p := DefaultPolicy()

	code, cents, err := p.CouponDiscountCents("  tastebud10 ")
	require.NoError(t, err)
	assert.Equal(t, "TASTEBUD10", code)
	assert.Equal(t, 5000, cents)

	_, _, err = p.CouponDiscountCents("NOPE")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))

	_, _, err = p.CouponDiscountCents("   ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidCoupon))
}

func TestMutualExclusion(t *testing.T) {
	code := "FEAST25"
	assert.True(t, CanApplyCoupon(0))
	assert.False(t, CanApplyCoupon(200))
	assert.True(t, CanApplyLoyalty(nil))
	assert.False(t, CanApplyLoyalty(&code))
	assert.True(t, pkgerrors.IsCode(ConflictError("coupon"), pkgerrors.CodeConflictingDiscount))
}
