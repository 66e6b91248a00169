package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tastebud-backend/api/responses"
	"github.com/angelmondragon/tastebud-backend/api/validators"
	"github.com/angelmondragon/tastebud-backend/internal/orders"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	"github.com/angelmondragon/tastebud-backend/pkg/pagination"
	"github.com/angelmondragon/tastebud-backend/pkg/types"
)

type setStatusRequest struct {
	CustomerID string `json:"customer_id" validate:"required,uuid"`
	Status     string `json:"status" validate:"required"`
	Force      bool   `json:"force"`
}

type updateDetailsRequest struct {
	DonationFlag     *bool              `json:"donation_flag,omitempty"`
	DonationTargetID types.NullableUUID `json:"donation_target_id"`
	CustomerPhone    *string            `json:"customer_phone,omitempty" validate:"omitempty,min=1,max=32"`
	DeliveryAddress  *types.Address     `json:"delivery_address,omitempty"`
}

// OrderHandlers exposes order reads and lifecycle writes for every role.
type OrderHandlers struct {
	orders orders.Service
	logg   *logger.Logger
}

func NewOrderHandlers(svc orders.Service, logg *logger.Logger) *OrderHandlers {
	return &OrderHandlers{orders: svc, logg: logg}
}

// ListMine returns the caller's order history from the customer mirror.
func (h *OrderHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	customerID, err := callerID(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	h.list(w, r, func(ctx context.Context, query orders.ListQuery) (*orders.ListResult, error) {
		return h.orders.ListForCustomer(ctx, customerID, query)
	})
}

func (h *OrderHandlers) GetMine(w http.ResponseWriter, r *http.Request) {
	customerID, err := callerID(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	orderID, err := validators.ParseUUIDParam(r, "orderID")
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	doc, err := h.orders.GetForCustomer(r.Context(), customerID, orderID)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, doc)
}

func (h *OrderHandlers) CancelMine(w http.ResponseWriter, r *http.Request) {
	customerID, err := callerID(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	orderID, err := validators.ParseUUIDParam(r, "orderID")
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	doc, err := h.orders.SetStatus(r.Context(), orders.SetStatusInput{
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     enums.OrderStatusCancelled,
		Actor:      callerActor(r),
	})
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, doc)
}

func (h *OrderHandlers) UpdateMine(w http.ResponseWriter, r *http.Request) {
	customerID, err := callerID(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	orderID, err := validators.ParseUUIDParam(r, "orderID")
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	var req updateDetailsRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	doc, err := h.orders.UpdateOrderDetails(r.Context(), orders.UpdateDetailsInput{
		OrderID:          orderID,
		CustomerID:       customerID,
		DonationFlag:     req.DonationFlag,
		DonationTargetID: req.DonationTargetID,
		CustomerPhone:    req.CustomerPhone,
		DeliveryAddress:  req.DeliveryAddress,
		Actor:            callerActor(r),
	})
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, doc)
}

// ListRestaurant returns the dashboard listing for the caller's restaurant.
func (h *OrderHandlers) ListRestaurant(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := callerRestaurantID(r)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	h.list(w, r, func(ctx context.Context, query orders.ListQuery) (*orders.ListResult, error) {
		return h.orders.ListForRestaurant(ctx, restaurantID, query)
	})
}

// SetStatus serves both restaurant staff and admins; the service enforces
// restaurant ownership and who may force.
func (h *OrderHandlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := validators.ParseUUIDParam(r, "orderID")
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	var req setStatusRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	status, err := enums.ParseOrderStatus(req.Status)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order status").
			WithDetails(map[string]string{"status": "is invalid"}))
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, pkgerrors.New(pkgerrors.CodeMissingCustomerRef, "customer id required"))
		return
	}

	doc, err := h.orders.SetStatus(r.Context(), orders.SetStatusInput{
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		Force:      req.Force,
		Actor:      callerActor(r),
	})
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, doc)
}

func (h *OrderHandlers) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, orders.ListQuery) (*orders.ListResult, error)) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	query := orders.ListQuery{
		Params: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
	}
	for _, raw := range validators.ParseQueryList(r, "status") {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			responses.WriteError(r.Context(), h.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown order status filter"))
			return
		}
		query.Statuses = append(query.Statuses, status)
	}

	result, err := fetch(r.Context(), query)
	if err != nil {
		responses.WriteError(r.Context(), h.logg, w, err)
		return
	}
	responses.WriteSuccess(w, result)
}
