package models

import (
	"time"

	"github.com/google/uuid"
)

// MenuItem is a restaurant's sellable dish. Menu management lives elsewhere;
// this service only reads it.
type MenuItem struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string    `gorm:"column:name;not null"`
	PriceCents   int       `gorm:"column:price_cents;not null"`
	ImageURL     *string   `gorm:"column:image_url"`
	IsVeg        bool      `gorm:"column:is_veg;not null;default:false"`
	IsAvailable  bool      `gorm:"column:is_available;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MenuItem) TableName() string { return "menu_items" }
