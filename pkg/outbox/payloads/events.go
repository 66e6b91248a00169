package payloads

import (
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent is emitted in the same transaction that writes a new order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	RestaurantID  uuid.UUID           `json:"restaurant_id"`
	ItemCount     int                 `json:"item_count"`
	TotalCents    int                 `json:"total_cents"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
}

// OrderStatusChangedEvent notifies riders, restaurants and customers of a
// lifecycle move. Forced is set when the move bypassed lifecycle ordering.
type OrderStatusChangedEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	CustomerID   uuid.UUID         `json:"customer_id"`
	RestaurantID uuid.UUID         `json:"restaurant_id"`
	From         enums.OrderStatus `json:"from"`
	To           enums.OrderStatus `json:"to"`
	Forced       bool              `json:"forced"`
}

// OrderDetailsUpdatedEvent lists the non-status fields that changed.
type OrderDetailsUpdatedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	CustomerID   uuid.UUID `json:"customer_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Fields       []string  `json:"fields"`
}

// LoyaltyPointsSettledEvent reports the ledger effect of a placed order.
type LoyaltyPointsSettledEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	PointsEarned   int       `json:"points_earned"`
	PointsRedeemed int       `json:"points_redeemed"`
}
