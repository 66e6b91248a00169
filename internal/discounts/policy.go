// Package discounts holds the loyalty tier table, the coupon table and the
// rule that at most one discount mechanism is active on a cart.
package discounts

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
)

// Tier unlocks DiscountPercent once a point balance reaches PointsThreshold.
type Tier struct {
	PointsThreshold int `json:"points_threshold"`
	DiscountPercent int `json:"discount_percent"`
}

// Policy is immutable after construction and safe for concurrent use.
type Policy struct {
	tiers   []Tier
	coupons map[string]int
}

// DefaultTiers is the production tier table.
func DefaultTiers() []Tier {
	return []Tier{
		{PointsThreshold: 500, DiscountPercent: 30},
		{PointsThreshold: 200, DiscountPercent: 20},
		{PointsThreshold: 100, DiscountPercent: 10},
	}
}

// DefaultCoupons maps coupon codes to flat discounts in cents.
func DefaultCoupons() map[string]int {
	return map[string]int{
		"TASTEBUD10": 5000,
		"FIRSTBITE":  10000,
		"FEAST25":    2500,
	}
}

// NewPolicy copies the tables, orders tiers by descending threshold and
// normalizes coupon codes.
func NewPolicy(tiers []Tier, coupons map[string]int) *Policy {
	sorted := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if t.PointsThreshold <= 0 || t.DiscountPercent <= 0 {
			continue
		}
		sorted = append(sorted, t)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PointsThreshold > sorted[j].PointsThreshold
	})

	normalized := make(map[string]int, len(coupons))
	for code, cents := range coupons {
		if cents < 0 {
			continue
		}
		normalized[NormalizeCode(code)] = cents
	}
	return &Policy{tiers: sorted, coupons: normalized}
}

// DefaultPolicy returns the production tier and coupon tables.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultTiers(), DefaultCoupons())
}

// Tiers returns the tier table, highest threshold first.
func (p *Policy) Tiers() []Tier {
	out := make([]Tier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// MinThreshold is the smallest balance that unlocks any tier.
func (p *Policy) MinThreshold() int {
	if len(p.tiers) == 0 {
		return 0
	}
	return p.tiers[len(p.tiers)-1].PointsThreshold
}

// ApplicableTier returns the highest tier whose threshold does not exceed balance.
func (p *Policy) ApplicableTier(balance int) (Tier, bool) {
	for _, t := range p.tiers {
		if t.PointsThreshold <= balance {
			return t, true
		}
	}
	return Tier{}, false
}

// LoyaltyDiscountCents is min(subtotal, subtotal*percent/100), rounded to cents.
func LoyaltyDiscountCents(subtotalCents int, tier Tier) int {
	if subtotalCents <= 0 || tier.DiscountPercent <= 0 {
		return 0
	}
	amount := decimal.NewFromInt(int64(subtotalCents)).
		Mul(decimal.NewFromInt(int64(tier.DiscountPercent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	if int(amount) > subtotalCents {
		return subtotalCents
	}
	return int(amount)
}

// CouponDiscountCents looks up a code. Unknown codes fail with INVALID_COUPON.
func (p *Policy) CouponDiscountCents(code string) (string, int, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return "", 0, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon code required")
	}
	cents, ok := p.coupons[normalized]
	if !ok {
		return "", 0, pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon code not recognized").
			WithDetails(map[string]string{"code": normalized})
	}
	return normalized, cents, nil
}

// CanApplyCoupon reports whether a coupon may be added given the loyalty
// points already applied.
func CanApplyCoupon(appliedLoyaltyPoints int) bool {
	return appliedLoyaltyPoints == 0
}

// CanApplyLoyalty reports whether loyalty points may be added given the
// coupon already applied.
func CanApplyLoyalty(appliedCouponCode *string) bool {
	return appliedCouponCode == nil
}

// ConflictError is returned when the other discount mechanism is active.
func ConflictError(active string) error {
	return pkgerrors.New(pkgerrors.CodeConflictingDiscount, "remove the active "+active+" discount first").
		WithDetails(map[string]string{"active": active})
}

// NormalizeCode trims and upper-cases a coupon code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
