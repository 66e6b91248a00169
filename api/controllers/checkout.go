package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/tastebud-backend/api/responses"
	"github.com/angelmondragon/tastebud-backend/api/validators"
	"github.com/angelmondragon/tastebud-backend/internal/checkout"
	"github.com/angelmondragon/tastebud-backend/internal/loyalty"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	"github.com/angelmondragon/tastebud-backend/pkg/types"
)

type orderPlacer interface {
	PlaceOrder(ctx context.Context, input checkout.PlaceOrderInput) (*checkout.PlaceOrderResult, error)
}

type loyaltySettler interface {
	SettleLoyalty(ctx context.Context, orderID uuid.UUID) (*loyalty.Settlement, error)
}

type checkoutRequest struct {
	DeliveryAddress  types.Address `json:"delivery_address"`
	CustomerName     string        `json:"customer_name" validate:"required,max=120"`
	CustomerPhone    string        `json:"customer_phone" validate:"required,max=32"`
	PaymentMethod    string        `json:"payment_method" validate:"required"`
	DonationFlag     bool          `json:"donation_flag"`
	DonationTargetID *uuid.UUID    `json:"donation_target_id,omitempty"`
}

// Checkout places an order from the caller's cart.
func Checkout(carts cartOpener, placer orderPlacer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
				WithDetails(map[string]string{"payment_method": "is invalid"}))
			return
		}

		c, err := carts.Open(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := placer.PlaceOrder(r.Context(), checkout.PlaceOrderInput{
			CustomerID:       customerID,
			Cart:             c,
			DeliveryAddress:  req.DeliveryAddress,
			CustomerName:     validators.SanitizeString(req.CustomerName, 120),
			CustomerPhone:    validators.SanitizeString(req.CustomerPhone, 32),
			PaymentMethod:    method,
			DonationFlag:     req.DonationFlag,
			DonationTargetID: req.DonationTargetID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// SettleLoyalty lets an operator replay a failed post-commit settlement.
func SettleLoyalty(settler loyaltySettler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		settlement, err := settler.SettleLoyalty(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settlement)
	}
}

// LoyaltyBalance returns the caller's current points.
func LoyaltyBalance(balances balanceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		points, err := balances.Balance(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"points": points})
	}
}
