// Package checkout turns a priced cart into an order. The order is written to
// the global table and the customer mirror in one transaction, retried with
// backoff, and the cart is only cleared once that transaction commits.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/internal/cart"
	"github.com/angelmondragon/tastebud-backend/internal/loyalty"
	"github.com/angelmondragon/tastebud-backend/internal/orders"
	dbpkg "github.com/angelmondragon/tastebud-backend/pkg/db"
	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	"github.com/angelmondragon/tastebud-backend/pkg/metrics"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tastebud-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type loyaltyLedger interface {
	Balance(ctx context.Context, customerID uuid.UUID) (int, error)
	SettleOrder(ctx context.Context, order models.OrderDocument) (*loyalty.Settlement, error)
}

// Service places orders from carts.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	SettleLoyalty(ctx context.Context, orderID uuid.UUID) (*loyalty.Settlement, error)
}

// PlaceOrderInput carries the opened cart and the delivery details captured
// at checkout.
type PlaceOrderInput struct {
	CustomerID       uuid.UUID
	Cart             *cart.Cart
	DeliveryAddress  types.Address
	CustomerName     string
	CustomerPhone    string
	PaymentMethod    enums.PaymentMethod
	DonationFlag     bool
	DonationTargetID *uuid.UUID
}

// PlaceOrderResult is the committed order plus its loyalty settlement. When
// PlaceOrder returns a post-commit error alongside a result, Order is final
// and Loyalty is nil.
type PlaceOrderResult struct {
	Order   models.OrderDocument `json:"order"`
	Loyalty *loyalty.Settlement  `json:"loyalty,omitempty"`
}

// RetryPolicy bounds the dual-write transaction retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// ServiceParams bundles checkout dependencies.
type ServiceParams struct {
	Orders      orders.Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Loyalty     loyaltyLedger
	Broadcaster orders.Broadcaster
	Metrics     *metrics.OrderMetrics
	Logger      *logger.Logger
	Retry       RetryPolicy
	Clock       func() time.Time
	NewID       func() uuid.UUID
}

type service struct {
	orders      orders.Repository
	tx          txRunner
	outbox      outboxPublisher
	loyalty     loyaltyLedger
	broadcaster orders.Broadcaster
	metrics     *metrics.OrderMetrics
	logg        *logger.Logger
	retry       RetryPolicy
	now         func() time.Time
	newID       func() uuid.UUID
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty ledger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	policy := params.Retry
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = 50 * time.Millisecond
	}
	if policy.MaxBackoff < policy.BaseBackoff {
		policy.MaxBackoff = policy.BaseBackoff
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := params.NewID
	if newID == nil {
		newID = uuid.New
	}
	return &service{
		orders:      params.Orders,
		tx:          params.Tx,
		outbox:      params.Outbox,
		loyalty:     params.Loyalty,
		broadcaster: params.Broadcaster,
		metrics:     params.Metrics,
		logg:        params.Logger,
		retry:       policy,
		now:         clock,
		newID:       newID,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	started := time.Now()

	state, err := s.validate(ctx, input)
	if err != nil {
		s.metrics.ObservePlacement(metrics.ResultRejected, time.Since(started))
		return nil, err
	}

	doc := s.buildOrder(input, state)
	ctx = s.logg.WithOrderID(s.logg.WithCustomerID(ctx, doc.CustomerID.String()), doc.ID.String())

	if err := s.commit(ctx, doc); err != nil {
		s.metrics.ObservePlacement(metrics.ResultTxFailure, time.Since(started))
		s.logg.Error(ctx, "order placement did not commit", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransaction, err, "order was not placed; please retry")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"restaurant_id": doc.RestaurantID.String(),
		"total_cents":   doc.TotalCents,
	}), "order placed")

	if err := input.Cart.Clear(ctx); err != nil {
		s.logg.Error(ctx, "failed to clear cart after checkout", err)
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ctx, doc)
	}

	result := &PlaceOrderResult{Order: doc}
	settlement, err := s.loyalty.SettleOrder(ctx, doc)
	if err != nil {
		s.metrics.ObservePlacement(metrics.ResultPostCommit, time.Since(started))
		s.logg.Critical(ctx, "order committed but loyalty settlement failed", err)
		return result, pkgerrors.Wrap(pkgerrors.CodePostCommit, err, "order placed but loyalty points were not updated").
			WithDetails(map[string]string{"order_id": doc.ID.String()})
	}
	result.Loyalty = settlement
	s.metrics.ObservePlacement(metrics.ResultSuccess, time.Since(started))
	return result, nil
}

// SettleLoyalty reruns the loyalty settlement of a committed order. It is
// safe to call repeatedly.
func (s *service) SettleLoyalty(ctx context.Context, orderID uuid.UUID) (*loyalty.Settlement, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	settlement, err := s.loyalty.SettleOrder(ctx, order.OrderDocument)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "loyalty settlement replayed")
	return settlement, nil
}

// validate checks every precondition before an id is generated or anything
// is written.
func (s *service) validate(ctx context.Context, input PlaceOrderInput) (cart.State, error) {
	if input.CustomerID == uuid.Nil {
		return cart.State{}, pkgerrors.New(pkgerrors.CodeMissingCustomerRef, "customer id required")
	}
	if input.Cart == nil {
		return cart.State{}, pkgerrors.New(pkgerrors.CodeInvalidCheckout, "cart required")
	}
	if input.Cart.CustomerID() != input.CustomerID.String() {
		return cart.State{}, pkgerrors.New(pkgerrors.CodeForbidden, "cart belongs to another customer")
	}

	state := input.Cart.State()
	if state.IsEmpty() {
		return state, pkgerrors.New(pkgerrors.CodeInvalidCheckout, "cart is empty")
	}
	if state.RestaurantID == nil {
		return state, pkgerrors.New(pkgerrors.CodeInvalidCheckout, "cart has no restaurant")
	}
	if input.DeliveryAddress.IsEmpty() {
		return state, pkgerrors.New(pkgerrors.CodeInvalidCheckout, "delivery address required")
	}
	if err := input.DeliveryAddress.Validate(); err != nil {
		return state, pkgerrors.Wrap(pkgerrors.CodeInvalidCheckout, err, "delivery address incomplete")
	}
	if !input.PaymentMethod.IsValid() {
		return state, pkgerrors.New(pkgerrors.CodeInvalidCheckout, "unsupported payment method").
			WithDetails(map[string]string{"payment_method": string(input.PaymentMethod)})
	}
	if strings.TrimSpace(input.CustomerName) == "" || strings.TrimSpace(input.CustomerPhone) == "" {
		return state, pkgerrors.New(pkgerrors.CodeInvalidCheckout, "customer name and phone required")
	}

	if state.AppliedLoyaltyPoints > 0 {
		balance, err := s.loyalty.Balance(ctx, input.CustomerID)
		if err != nil {
			return state, err
		}
		if balance < state.AppliedLoyaltyPoints {
			return state, pkgerrors.New(pkgerrors.CodeValidation, "loyalty balance no longer covers the applied points").
				WithDetails(map[string]int{"applied_points": state.AppliedLoyaltyPoints, "balance": balance})
		}
	}
	return state, nil
}

func (s *service) buildOrder(input PlaceOrderInput, state cart.State) models.OrderDocument {
	quote := input.Cart.Quote()
	now := orders.Timestamp(s.now())

	lines := make([]types.OrderLine, 0, len(state.Items))
	for _, item := range state.Items {
		lines = append(lines, types.OrderLine{
			MenuItemID:     item.MenuItemID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			ImageURL:       item.ImageURL,
			IsVeg:          item.IsVeg,
		})
	}

	var donationTarget *uuid.UUID
	if input.DonationTargetID != nil {
		id := *input.DonationTargetID
		donationTarget = &id
	}

	return models.OrderDocument{
		ID:                   s.newID(),
		CustomerID:           input.CustomerID,
		RestaurantID:         *state.RestaurantID,
		Items:                lines,
		SubtotalCents:        quote.SubtotalCents,
		CouponCode:           state.AppliedCouponCode,
		CouponDiscountCents:  quote.CouponDiscountCents,
		LoyaltyPointsApplied: state.AppliedLoyaltyPoints,
		LoyaltyDiscountCents: quote.LoyaltyDiscountCents,
		DeliveryFeeCents:     quote.DeliveryFeeCents,
		TaxCents:             quote.TaxCents,
		TotalCents:           quote.TotalCents,
		Status:               enums.OrderStatusPending,
		DeliveryAddress:      input.DeliveryAddress.Normalized(),
		CustomerName:         strings.TrimSpace(input.CustomerName),
		CustomerPhone:        strings.TrimSpace(input.CustomerPhone),
		PaymentMethod:        input.PaymentMethod,
		DonationFlag:         input.DonationFlag,
		DonationTargetID:     donationTarget,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// commit writes doc to both order tables and queues order_created in one
// transaction. Every attempt reuses doc.ID, so a unique violation after an
// attempt whose outcome was unknown means that attempt committed.
func (s *service) commit(ctx context.Context, doc models.OrderDocument) error {
	attempt := 0
	return retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		s.metrics.IncWriteAttempt()

		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.orders.WithTx(tx).CreateOrder(ctx, doc); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   doc.ID,
				Actor: &outbox.ActorRef{
					UserID: doc.CustomerID,
					Role:   string(enums.MemberRoleCustomer),
				},
				Data: payloads.OrderCreatedEvent{
					OrderID:       doc.ID,
					CustomerID:    doc.CustomerID,
					RestaurantID:  doc.RestaurantID,
					ItemCount:     len(doc.Items),
					TotalCents:    doc.TotalCents,
					PaymentMethod: doc.PaymentMethod,
				},
			})
		})
		if err == nil {
			return nil
		}
		if attempt > 1 && dbpkg.IsUniqueViolation(err, "") && s.committed(ctx, doc) {
			s.logg.Warn(ctx, "order write found already committed on retry")
			return nil
		}
		if pkgerrors.As(err) != nil || ctx.Err() != nil {
			return err
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "order write failed; retrying")
		return retry.RetryableError(err)
	})
}

func (s *service) committed(ctx context.Context, doc models.OrderDocument) bool {
	if _, err := s.orders.FindOrder(ctx, doc.ID); err != nil {
		return false
	}
	if _, err := s.orders.FindCustomerOrder(ctx, doc.CustomerID, doc.ID); err != nil {
		return false
	}
	return true
}

func (s *service) backoff() retry.Backoff {
	b := retry.NewExponential(s.retry.BaseBackoff)
	b = retry.WithCappedDuration(s.retry.MaxBackoff, b)
	b = retry.WithJitter(s.retry.BaseBackoff/2, b)
	return retry.WithMaxRetries(uint64(s.retry.MaxAttempts-1), b)
}
