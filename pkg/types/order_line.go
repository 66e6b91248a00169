package types

import "github.com/google/uuid"

// OrderLine is an immutable snapshot of a menu item at the moment an order
// was placed. Later menu edits never change it.
type OrderLine struct {
	MenuItemID     uuid.UUID `json:"menu_item_id"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	ImageURL       *string   `json:"image_url,omitempty"`
	IsVeg          bool      `json:"is_veg"`
	Notes          *string   `json:"notes,omitempty"`
}

// LineTotalCents returns unit price times quantity.
func (l OrderLine) LineTotalCents() int {
	return l.UnitPriceCents * l.Quantity
}
