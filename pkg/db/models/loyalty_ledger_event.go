package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/enums"
)

// LoyaltyLedgerEvent records an immutable change to a customer's point
// balance. Earned points are positive, redeemed points negative. At most one
// event of each type exists per order.
type LoyaltyLedgerEvent struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID              `gorm:"column:customer_id;type:uuid;not null;index"`
	OrderID    uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_loyalty_order_type"`
	Type       enums.LoyaltyEventType `gorm:"column:type;type:loyalty_event_type;not null;uniqueIndex:ux_loyalty_order_type"`
	Points     int                    `gorm:"column:points;not null"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (LoyaltyLedgerEvent) TableName() string { return "loyalty_ledger_events" }

func (e *LoyaltyLedgerEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
