// Package observer streams committed order snapshots to live subscribers:
// restaurant dashboards watching all their orders and customers tracking a
// single order.
package observer

import (
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
)

const (
	kindRestaurant = "restaurant"
	kindOrder      = "order"
)

// Filter selects what a subscription watches. Build one with
// RestaurantOrders or CustomerOrder.
type Filter struct {
	kind         string
	RestaurantID uuid.UUID
	CustomerID   uuid.UUID
	OrderID      uuid.UUID
}

// RestaurantOrders watches every order placed with a restaurant.
func RestaurantOrders(restaurantID uuid.UUID) Filter {
	return Filter{kind: kindRestaurant, RestaurantID: restaurantID}
}

// CustomerOrder watches one order through the customer's mirror.
func CustomerOrder(customerID, orderID uuid.UUID) Filter {
	return Filter{kind: kindOrder, CustomerID: customerID, OrderID: orderID}
}

// Kind is "restaurant" or "order".
func (f Filter) Kind() string {
	return f.kind
}

func (f Filter) validate() error {
	switch f.kind {
	case kindRestaurant:
		if f.RestaurantID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
		}
	case kindOrder:
		if f.CustomerID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeMissingCustomerRef, "customer id required")
		}
		if f.OrderID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown subscription filter")
	}
	return nil
}

func (f Filter) key() string {
	if f.kind == kindRestaurant {
		return restaurantKey(f.RestaurantID)
	}
	return orderKey(f.OrderID)
}

func restaurantKey(id uuid.UUID) string {
	return kindRestaurant + ":" + id.String()
}

func orderKey(id uuid.UUID) string {
	return kindOrder + ":" + id.String()
}
