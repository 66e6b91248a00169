// Package menu is the read-only catalog lookup used when items are added to a cart.
package menu

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
)

// Item is the current catalog view of a menu item.
type Item struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	PriceCents   int
	ImageURL     *string
	IsVeg        bool
	IsAvailable  bool
}

// Catalog resolves menu items by id.
type Catalog interface {
	Lookup(ctx context.Context, id uuid.UUID) (*Item, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog backed by the menu_items table.
func NewRepository(db *gorm.DB) Catalog {
	return &repository{db: db}
}

func (r *repository) Lookup(ctx context.Context, id uuid.UUID) (*Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
	}
	var row models.MenuItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
	}
	return &Item{
		ID:           row.ID,
		RestaurantID: row.RestaurantID,
		Name:         row.Name,
		PriceCents:   row.PriceCents,
		ImageURL:     row.ImageURL,
		IsVeg:        row.IsVeg,
		IsAvailable:  row.IsAvailable,
	}, nil
}
