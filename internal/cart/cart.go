// Package cart holds a customer's pending selection of menu items and the
// discount applied to it. Every mutation is computed on a copy and only
// becomes visible once it has been persisted.
package cart

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/tastebud-backend/internal/discounts"
	"github.com/angelmondragon/tastebud-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
)

// Cart is one customer's cart bound to its storage.
type Cart struct {
	mu         sync.Mutex
	customerID string
	state      State
	store      Storage
	policy     *discounts.Policy
	rates      pricing.Rates
}

// CustomerID returns the owner key the cart is stored under.
func (c *Cart) CustomerID() string {
	return c.customerID
}

// State returns a copy of the current cart.
func (c *Cart) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Quote prices the current cart.
func (c *Cart) Quote() pricing.Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rates.Price(c.state.Lines(), c.state.CouponDiscountCents, c.state.LoyaltyDiscountCents)
}

// AddItem adds one unit of item. A cart holds items from a single restaurant;
// an item from any other restaurant is rejected and the cart is left as is.
func (c *Cart) AddItem(ctx context.Context, item Item) error {
	if item.MenuItemID == uuid.Nil || item.RestaurantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "menu item and restaurant are required")
	}
	if item.UnitPriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	if strings.TrimSpace(item.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}

	return c.mutate(ctx, func(next *State) error {
		if next.RestaurantID != nil && *next.RestaurantID != item.RestaurantID {
			return pkgerrors.New(pkgerrors.CodeCrossRestaurantItem, "cart already holds items from another restaurant").
				WithDetails(map[string]string{"cart_restaurant_id": next.RestaurantID.String()})
		}
		if idx := next.indexOf(item.MenuItemID); idx >= 0 {
			next.Items[idx].Quantity++
			return nil
		}
		item.Quantity = 1
		next.Items = append(next.Items, item)
		if next.RestaurantID == nil {
			id := item.RestaurantID
			next.RestaurantID = &id
		}
		return nil
	})
}

// RemoveItem drops an item. Removing the last item clears restaurant affinity.
func (c *Cart) RemoveItem(ctx context.Context, menuItemID uuid.UUID) error {
	return c.mutate(ctx, func(next *State) error {
		idx := next.indexOf(menuItemID)
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
		if len(next.Items) == 0 {
			next.RestaurantID = nil
		}
		return nil
	})
}

// UpdateQuantity sets an item's quantity; zero or less removes it.
func (c *Cart) UpdateQuantity(ctx context.Context, menuItemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return c.RemoveItem(ctx, menuItemID)
	}
	return c.mutate(ctx, func(next *State) error {
		idx := next.indexOf(menuItemID)
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		next.Items[idx].Quantity = qty
		return nil
	})
}

// ApplyCoupon selects a coupon. It fails while loyalty points are applied.
func (c *Cart) ApplyCoupon(ctx context.Context, code string) error {
	return c.mutate(ctx, func(next *State) error {
		if !discounts.CanApplyCoupon(next.AppliedLoyaltyPoints) {
			return discounts.ConflictError("loyalty")
		}
		normalized, _, err := c.policy.CouponDiscountCents(code)
		if err != nil {
			return err
		}
		next.AppliedCouponCode = &normalized
		return nil
	})
}

// ApplyLoyalty redeems the highest tier the offered balance unlocks. The cart
// records the tier threshold as the points spent. It fails while a coupon is
// applied or when the balance is below the lowest tier.
func (c *Cart) ApplyLoyalty(ctx context.Context, points int) error {
	return c.mutate(ctx, func(next *State) error {
		if !discounts.CanApplyLoyalty(next.AppliedCouponCode) {
			return discounts.ConflictError("coupon")
		}
		tier, ok := c.policy.ApplicableTier(points)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "not enough loyalty points for a discount").
				WithDetails(map[string]int{"minimum_points": c.policy.MinThreshold()})
		}
		next.AppliedLoyaltyPoints = tier.PointsThreshold
		return nil
	})
}

// RemoveCoupon drops the applied coupon, if any.
func (c *Cart) RemoveCoupon(ctx context.Context) error {
	return c.mutate(ctx, func(next *State) error {
		next.AppliedCouponCode = nil
		return nil
	})
}

// RemoveLoyalty drops the applied loyalty tier, if any.
func (c *Cart) RemoveLoyalty(ctx context.Context) error {
	return c.mutate(ctx, func(next *State) error {
		next.AppliedLoyaltyPoints = 0
		return nil
	})
}

// Clear empties the cart, discounts included, and removes the stored blob.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(ctx, c.customerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	c.state = State{}
	return nil
}

// mutate applies fn to a copy of the state, derives discount amounts and
// persists the result. The live state only changes after a successful save.
func (c *Cart) mutate(ctx context.Context, fn func(next *State) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	recompute(&next, c.policy)

	data, err := encode(next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := c.store.Save(ctx, c.customerID, data); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart")
	}
	c.state = next
	return nil
}
