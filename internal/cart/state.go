package cart

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/angelmondragon/tastebud-backend/internal/discounts"
	"github.com/angelmondragon/tastebud-backend/internal/pricing"
)

// Item is a menu item snapshot held in a cart.
type Item struct {
	MenuItemID     uuid.UUID `json:"menu_item_id"`
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	ImageURL       *string   `json:"image_url,omitempty"`
	IsVeg          bool      `json:"is_veg"`
}

// State is the cart as seen by callers. RestaurantID is nil exactly when
// Items is empty, and at most one of AppliedCouponCode and
// AppliedLoyaltyPoints is set.
type State struct {
	Items                []Item     `json:"items"`
	RestaurantID         *uuid.UUID `json:"restaurant_id"`
	AppliedCouponCode    *string    `json:"applied_coupon_code"`
	CouponDiscountCents  int        `json:"coupon_discount_cents"`
	AppliedLoyaltyPoints int        `json:"applied_loyalty_points"`
	LoyaltyDiscountCents int        `json:"loyalty_discount_cents"`
}

// IsEmpty reports whether the cart has no items.
func (s State) IsEmpty() bool {
	return len(s.Items) == 0
}

// Lines converts the items into pricing input.
func (s State) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(s.Items))
	for _, item := range s.Items {
		lines = append(lines, pricing.Line{UnitPriceCents: item.UnitPriceCents, Quantity: item.Quantity})
	}
	return lines
}

func (s State) clone() State {
	out := s
	if s.Items != nil {
		out.Items = make([]Item, len(s.Items))
		for i, item := range s.Items {
			if item.ImageURL != nil {
				url := *item.ImageURL
				item.ImageURL = &url
			}
			out.Items[i] = item
		}
	}
	if s.RestaurantID != nil {
		id := *s.RestaurantID
		out.RestaurantID = &id
	}
	if s.AppliedCouponCode != nil {
		code := *s.AppliedCouponCode
		out.AppliedCouponCode = &code
	}
	return out
}

func (s State) indexOf(menuItemID uuid.UUID) int {
	for i, item := range s.Items {
		if item.MenuItemID == menuItemID {
			return i
		}
	}
	return -1
}

// blob is the persisted shape. Discount amounts are derived on load.
type blob struct {
	Items         []Item     `json:"items"`
	RestaurantID  *uuid.UUID `json:"restaurant_id"`
	CouponCode    *string    `json:"coupon_code,omitempty"`
	LoyaltyPoints int        `json:"loyalty_points,omitempty"`
}

func encode(s State) ([]byte, error) {
	return json.Marshal(blob{
		Items:         s.Items,
		RestaurantID:  s.RestaurantID,
		CouponCode:    s.AppliedCouponCode,
		LoyaltyPoints: s.AppliedLoyaltyPoints,
	})
}

// decode rebuilds a State from storage. Anything unparsable or inconsistent
// yields the empty cart rather than an error.
func decode(raw []byte, policy *discounts.Policy) State {
	if len(raw) == 0 {
		return State{}
	}
	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return State{}
	}

	var s State
	for _, item := range b.Items {
		if item.MenuItemID == uuid.Nil || item.Quantity <= 0 || item.UnitPriceCents < 0 {
			continue
		}
		if len(s.Items) > 0 && item.RestaurantID != s.Items[0].RestaurantID {
			continue
		}
		if s.indexOf(item.MenuItemID) >= 0 {
			continue
		}
		s.Items = append(s.Items, item)
	}
	if len(s.Items) > 0 {
		id := s.Items[0].RestaurantID
		s.RestaurantID = &id
	}

	if b.CouponCode != nil {
		if code, _, err := policy.CouponDiscountCents(*b.CouponCode); err == nil {
			s.AppliedCouponCode = &code
		}
	}
	if s.AppliedCouponCode == nil && b.LoyaltyPoints > 0 {
		if tier, ok := policy.ApplicableTier(b.LoyaltyPoints); ok {
			s.AppliedLoyaltyPoints = tier.PointsThreshold
		}
	}
	recompute(&s, policy)
	return s
}

// recompute derives both discount amounts from the current selection and subtotal.
func recompute(s *State, policy *discounts.Policy) {
	s.CouponDiscountCents = 0
	s.LoyaltyDiscountCents = 0
	if s.AppliedCouponCode != nil {
		if _, cents, err := policy.CouponDiscountCents(*s.AppliedCouponCode); err == nil {
			s.CouponDiscountCents = cents
		}
	}
	if s.AppliedLoyaltyPoints > 0 {
		if tier, ok := policy.ApplicableTier(s.AppliedLoyaltyPoints); ok {
			s.LoyaltyDiscountCents = discounts.LoyaltyDiscountCents(pricing.Subtotal(s.Lines()), tier)
		}
	}
}
