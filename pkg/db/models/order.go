package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/angelmondragon/tastebud-backend/pkg/types"
)

// OrderDocument is the full order payload. The same document is persisted in
// the global orders table and in the per-customer mirror, and both copies must
// stay field-for-field identical.
type OrderDocument struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CustomerID           uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	RestaurantID         uuid.UUID           `gorm:"column:restaurant_id;type:uuid;not null;index" json:"restaurant_id"`
	Items                []types.OrderLine   `gorm:"column:items;type:jsonb;serializer:json;not null" json:"items"`
	SubtotalCents        int                 `gorm:"column:subtotal_cents;not null" json:"subtotal_cents"`
	CouponCode           *string             `gorm:"column:coupon_code" json:"coupon_code,omitempty"`
	CouponDiscountCents  int                 `gorm:"column:coupon_discount_cents;not null;default:0" json:"coupon_discount_cents"`
	LoyaltyPointsApplied int                 `gorm:"column:loyalty_points_applied;not null;default:0" json:"loyalty_points_applied"`
	LoyaltyDiscountCents int                 `gorm:"column:loyalty_discount_cents;not null;default:0" json:"loyalty_discount_cents"`
	DeliveryFeeCents     int                 `gorm:"column:delivery_fee_cents;not null" json:"delivery_fee_cents"`
	TaxCents             int                 `gorm:"column:tax_cents;not null" json:"tax_cents"`
	TotalCents           int                 `gorm:"column:total_cents;not null" json:"total_cents"`
	Status               enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending';index" json:"status"`
	DeliveryAddress      types.Address       `gorm:"column:delivery_address;type:jsonb;serializer:json;not null" json:"delivery_address"`
	CustomerName         string              `gorm:"column:customer_name;not null" json:"customer_name"`
	CustomerPhone        string              `gorm:"column:customer_phone;not null" json:"customer_phone"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null" json:"payment_method"`
	DonationFlag         bool                `gorm:"column:donation_flag;not null;default:false" json:"donation_flag"`
	DonationTargetID     *uuid.UUID          `gorm:"column:donation_target_id;type:uuid" json:"donation_target_id,omitempty"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime:false;not null" json:"created_at"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime:false;not null;index" json:"updated_at"`
}

// Order is the globally addressable copy used by restaurant dashboards.
type Order struct {
	OrderDocument `gorm:"embedded"`
}

func (Order) TableName() string { return "orders" }

// CustomerOrder is the customer-scoped mirror used by order history and tracking.
type CustomerOrder struct {
	OrderDocument `gorm:"embedded"`
}

func (CustomerOrder) TableName() string { return "customer_orders" }

// DiscountCents sums both discount kinds.
func (d OrderDocument) DiscountCents() int {
	return d.CouponDiscountCents + d.LoyaltyDiscountCents
}

// TotalsConsistent reports whether the stored amounts satisfy the pricing identity.
func (d OrderDocument) TotalsConsistent() bool {
	return d.TotalCents == d.SubtotalCents-d.DiscountCents()+d.DeliveryFeeCents+d.TaxCents
}
