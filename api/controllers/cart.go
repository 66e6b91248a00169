package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tastebud-backend/api/responses"
	"github.com/angelmondragon/tastebud-backend/api/validators"
	"github.com/angelmondragon/tastebud-backend/internal/cart"
	"github.com/angelmondragon/tastebud-backend/internal/menu"
	"github.com/angelmondragon/tastebud-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
)

type cartOpener interface {
	Open(ctx context.Context, customerID uuid.UUID) (*cart.Cart, error)
}

type balanceReader interface {
	Balance(ctx context.Context, customerID uuid.UUID) (int, error)
}

type cartView struct {
	cart.State
	Quote pricing.Quote `json:"quote"`
}

type addItemRequest struct {
	MenuItemID string `json:"menu_item_id" validate:"required,uuid"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=50"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

type applyLoyaltyRequest struct {
	Points int `json:"points" validate:"omitempty,min=1"`
}

// CartHandlers serves the customer's cart.
type CartHandlers struct {
	carts   cartOpener
	catalog menu.Catalog
	loyalty balanceReader
	logg    *logger.Logger
}

func NewCartHandlers(carts cartOpener, catalog menu.Catalog, loyalty balanceReader, logg *logger.Logger) *CartHandlers {
	return &CartHandlers{carts: carts, catalog: catalog, loyalty: loyalty, logg: logg}
}

func (h *CartHandlers) Get(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(context.Context, *cart.Cart) error { return nil })
}

func (h *CartHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid menu item id"))
		return
	}

	h.mutate(w, r, func(ctx context.Context, c *cart.Cart) error {
		item, err := h.catalog.Lookup(ctx, menuItemID)
		if err != nil {
			return err
		}
		if !item.IsAvailable {
			return pkgerrors.New(pkgerrors.CodeValidation, "menu item is not available").
				WithDetails(map[string]string{"menu_item_id": item.ID.String()})
		}
		return c.AddItem(ctx, cart.Item{
			MenuItemID:     item.ID,
			RestaurantID:   item.RestaurantID,
			Name:           item.Name,
			UnitPriceCents: item.PriceCents,
			ImageURL:       item.ImageURL,
			IsVeg:          item.IsVeg,
		})
	})
}

func (h *CartHandlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := validators.ParseUUIDParam(r, "itemID")
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	var req updateQuantityRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, c *cart.Cart) error {
		return c.UpdateQuantity(ctx, itemID, req.Quantity)
	})
}

func (h *CartHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := validators.ParseUUIDParam(r, "itemID")
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, c *cart.Cart) error {
		return c.RemoveItem(ctx, itemID)
	})
}

func (h *CartHandlers) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, c *cart.Cart) error {
		return c.ApplyCoupon(ctx, strings.TrimSpace(req.Code))
	})
}

func (h *CartHandlers) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, c *cart.Cart) error {
		return c.RemoveCoupon(ctx)
	})
}

// ApplyLoyalty redeems the best tier the customer's balance covers. A points
// value in the body caps how much of the balance is offered.
func (h *CartHandlers) ApplyLoyalty(w http.ResponseWriter, r *http.Request) {
	var req applyLoyaltyRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, c *cart.Cart) error {
		customerID, err := callerID(r)
		if err != nil {
			return err
		}
		balance, err := h.loyalty.Balance(ctx, customerID)
		if err != nil {
			return err
		}
		offered := balance
		if req.Points > 0 && req.Points < offered {
			offered = req.Points
		}
		return c.ApplyLoyalty(ctx, offered)
	})
}

func (h *CartHandlers) RemoveLoyalty(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, c *cart.Cart) error {
		return c.RemoveLoyalty(ctx)
	})
}

func (h *CartHandlers) Clear(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, c *cart.Cart) error {
		return c.Clear(ctx)
	})
}

// mutate opens the caller's cart, applies fn and writes the resulting view.
func (h *CartHandlers) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context, *cart.Cart) error) {
	customerID, err := callerID(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	c, err := h.carts.Open(r.Context(), customerID)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	if err := fn(r.Context(), c); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, cartView{State: c.State(), Quote: c.Quote()})
}
