package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	"github.com/angelmondragon/tastebud-backend/pkg/metrics"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tastebud-backend/pkg/pagination"
	"github.com/angelmondragon/tastebud-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the order lifecycle and read surface.
type Service interface {
	SetStatus(ctx context.Context, input SetStatusInput) (*models.OrderDocument, error)
	UpdateOrderDetails(ctx context.Context, input UpdateDetailsInput) (*models.OrderDocument, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.OrderDocument, error)
	GetForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.OrderDocument, error)
	ListForRestaurant(ctx context.Context, restaurantID uuid.UUID, query ListQuery) (*ListResult, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, query ListQuery) (*ListResult, error)
}

// Actor identifies who requested a change.
type Actor struct {
	UserID       uuid.UUID
	Role         enums.MemberRole
	RestaurantID *uuid.UUID
}

// SetStatusInput moves an order to Status. Force bypasses lifecycle ordering
// and is only honored for admins.
type SetStatusInput struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	Status     enums.OrderStatus
	Force      bool
	Actor      Actor
}

// UpdateDetailsInput patches mutable non-status fields. Nil fields are left
// untouched. Items, id and created_at cannot be expressed here.
type UpdateDetailsInput struct {
	OrderID          uuid.UUID
	CustomerID       uuid.UUID
	DonationFlag     *bool
	DonationTargetID types.NullableUUID
	CustomerPhone    *string
	DeliveryAddress  *types.Address
	Actor            Actor
}

// ListQuery is a page request for order listings.
type ListQuery struct {
	Statuses []enums.OrderStatus
	Params   pagination.Params
}

// ListResult is one page of orders, newest first.
type ListResult struct {
	Orders     []models.OrderDocument `json:"orders"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	broadcaster Broadcaster
	metrics     *metrics.OrderMetrics
	logg        *logger.Logger
	allowForce  bool
	now         func() time.Time
}

// ServiceParams bundles the dependencies of the lifecycle service.
type ServiceParams struct {
	Repository       Repository
	Tx               txRunner
	Outbox           outboxPublisher
	Broadcaster      Broadcaster
	Metrics          *metrics.OrderMetrics
	Logger           *logger.Logger
	AllowForceStatus bool
	Clock            func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:        params.Repository,
		tx:          params.Tx,
		outbox:      params.Outbox,
		broadcaster: params.Broadcaster,
		metrics:     params.Metrics,
		logg:        params.Logger,
		allowForce:  params.AllowForceStatus,
		now:         clock,
	}, nil
}

// Timestamp normalizes a wall-clock reading to the precision both order
// tables store.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// nextUpdatedAt keeps updated_at strictly increasing per order even when this
// instance's clock is behind the one that wrote the previous version.
func (s *service) nextUpdatedAt(previous time.Time) time.Time {
	now := Timestamp(s.now())
	floor := Timestamp(previous).Add(time.Microsecond)
	if now.Before(floor) {
		return floor
	}
	return now
}

func (s *service) SetStatus(ctx context.Context, input SetStatusInput) (*models.OrderDocument, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeMissingCustomerRef, "customer id required to address the order")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]string{"status": string(input.Status)})
	}
	if input.Actor.Role == enums.MemberRoleCustomer && input.Status != enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customers can only cancel orders")
	}
	if input.Force {
		if !s.allowForce {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "forced status changes are disabled")
		}
		if input.Actor.Role != enums.MemberRoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can force a status change")
		}
	}

	var (
		updated *models.OrderDocument
		from    enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.loadPair(ctx, repo, input.CustomerID, input.OrderID, input.Actor)
		if err != nil {
			return err
		}
		from = current.Status
		if from == input.Status {
			updated = current
			return nil
		}
		if input.Actor.Role == enums.MemberRoleCustomer && !customerCancellable(from) {
			return pkgerrors.New(pkgerrors.CodeIllegalTransition, "order is already being prepared").
				WithDetails(map[string]string{"from": string(from), "to": string(input.Status)})
		}
		if !input.Force && !from.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeIllegalTransition, "order cannot move to the requested status").
				WithDetails(map[string]string{"from": string(from), "to": string(input.Status)})
		}

		next := *current
		next.Status = input.Status
		next.UpdatedAt = s.nextUpdatedAt(current.UpdatedAt)
		if err := repo.UpdateBoth(ctx, next, from, []string{"status", "updated_at"}); err != nil {
			return err
		}

		updated = &next
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   next.ID,
			Actor:         buildActor(input.Actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:      next.ID,
				CustomerID:   next.CustomerID,
				RestaurantID: next.RestaurantID,
				From:         from,
				To:           next.Status,
				Forced:       input.Force,
			},
		})
	})
	if err != nil {
		return nil, s.translateWriteError(err)
	}
	if from == input.Status {
		return updated, nil
	}

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, updated.ID.String()), map[string]any{
		"from":   from,
		"to":     updated.Status,
		"forced": input.Force,
	})
	if input.Force && !from.CanTransitionTo(updated.Status) {
		s.logg.Warn(logCtx, "order status forced outside lifecycle")
	} else {
		s.logg.Info(logCtx, "order status updated")
	}
	s.metrics.IncTransition(string(updated.Status), input.Force)
	s.broadcast(ctx, *updated)
	return updated, nil
}

func (s *service) UpdateOrderDetails(ctx context.Context, input UpdateDetailsInput) (*models.OrderDocument, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeMissingCustomerRef, "customer id required to address the order")
	}
	if input.CustomerPhone != nil && strings.TrimSpace(*input.CustomerPhone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer phone must not be blank")
	}
	if input.DeliveryAddress != nil {
		if err := input.DeliveryAddress.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery address")
		}
	}

	var (
		updated *models.OrderDocument
		fields  []string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.loadPair(ctx, repo, input.CustomerID, input.OrderID, input.Actor)
		if err != nil {
			return err
		}

		next := *current
		fields, err = applyDetails(&next, input)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			updated = current
			return nil
		}
		next.UpdatedAt = s.nextUpdatedAt(current.UpdatedAt)

		if err := repo.UpdateBoth(ctx, next, current.Status, append(fields, "updated_at")); err != nil {
			return err
		}
		updated = &next
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDetailsUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   next.ID,
			Actor:         buildActor(input.Actor),
			Data: payloads.OrderDetailsUpdatedEvent{
				OrderID:      next.ID,
				CustomerID:   next.CustomerID,
				RestaurantID: next.RestaurantID,
				Fields:       fields,
			},
		})
	})
	if err != nil {
		return nil, s.translateWriteError(err)
	}
	if len(fields) > 0 {
		s.logg.Info(s.logg.WithField(s.logg.WithOrderID(ctx, updated.ID.String()), "fields", fields), "order details updated")
		s.broadcast(ctx, *updated)
	}
	return updated, nil
}

// applyDetails copies the patch onto doc and returns the changed columns.
func applyDetails(doc *models.OrderDocument, input UpdateDetailsInput) ([]string, error) {
	var fields []string
	if input.DonationFlag != nil && *input.DonationFlag != doc.DonationFlag {
		doc.DonationFlag = *input.DonationFlag
		fields = append(fields, "donation_flag")
	}
	if input.DonationTargetID.Valid && !sameUUID(input.DonationTargetID.Value, doc.DonationTargetID) {
		doc.DonationTargetID = input.DonationTargetID.Clone().Value
		fields = append(fields, "donation_target_id")
	}
	if input.CustomerPhone != nil {
		phone := strings.TrimSpace(*input.CustomerPhone)
		if phone != doc.CustomerPhone {
			doc.CustomerPhone = phone
			fields = append(fields, "customer_phone")
		}
	}
	if input.DeliveryAddress != nil {
		if !addressEditable(doc.Status) {
			return nil, pkgerrors.New(pkgerrors.CodeIllegalTransition, "delivery address can no longer be changed").
				WithDetails(map[string]string{"status": string(doc.Status)})
		}
		doc.DeliveryAddress = input.DeliveryAddress.Normalized()
		fields = append(fields, "delivery_address")
	}
	return fields, nil
}

// customerCancellable reports whether the customer may still cancel without
// the restaurant's involvement.
func customerCancellable(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPending || status == enums.OrderStatusConfirmed
}

func addressEditable(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusPending, enums.OrderStatusConfirmed, enums.OrderStatusPreparing, enums.OrderStatusReadyForPickup:
		return true
	default:
		return false
	}
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// loadPair reads the global copy and checks that the mirror addressed by
// customerID exists, so a write never lands in only one location.
func (s *service) loadPair(ctx context.Context, repo Repository, customerID, orderID uuid.UUID, actor Actor) (*models.OrderDocument, error) {
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if actor.Role == enums.MemberRoleRestaurant {
		if actor.RestaurantID == nil || *actor.RestaurantID != order.RestaurantID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to restaurant")
		}
	}
	if _, err := repo.FindCustomerOrder(ctx, customerID, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order mirror is missing; retry after reconciliation")
		}
		return nil, err
	}
	doc := order.OrderDocument
	return &doc, nil
}

func (s *service) translateWriteError(err error) error {
	if errors.Is(err, ErrStaleWrite) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order was modified concurrently")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeTransaction, err, "order update did not commit")
}

func (s *service) broadcast(ctx context.Context, doc models.OrderDocument) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(ctx, doc)
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.OrderDocument, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	doc := order.OrderDocument
	return &doc, nil
}

func (s *service) GetForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.OrderDocument, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeMissingCustomerRef, "customer id required")
	}
	order, err := s.repo.FindCustomerOrder(ctx, customerID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer order")
	}
	doc := order.OrderDocument
	return &doc, nil
}

func (s *service) ListForRestaurant(ctx context.Context, restaurantID uuid.UUID, query ListQuery) (*ListResult, error) {
	filter, err := buildFilter(query)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListRestaurantOrders(ctx, restaurantID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list restaurant orders")
	}
	docs := make([]models.OrderDocument, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.OrderDocument)
	}
	return page(docs, query.Params.Limit), nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, query ListQuery) (*ListResult, error) {
	filter, err := buildFilter(query)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListCustomerOrders(ctx, customerID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer orders")
	}
	docs := make([]models.OrderDocument, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.OrderDocument)
	}
	return page(docs, query.Params.Limit), nil
}

func buildFilter(query ListQuery) (ListFilter, error) {
	cursor, err := pagination.ParseCursor(query.Params.Cursor)
	if err != nil {
		return ListFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	for _, status := range query.Statuses {
		if !status.IsValid() {
			return ListFilter{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status filter")
		}
	}
	return ListFilter{Statuses: query.Statuses, Limit: query.Params.Limit, Cursor: cursor}, nil
}

func page(docs []models.OrderDocument, limit int) *ListResult {
	limit = pagination.NormalizeLimit(limit)
	result := &ListResult{Orders: docs}
	if len(docs) > limit {
		result.Orders = docs[:limit]
		last := result.Orders[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result
}

func buildActor(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{
		UserID:       actor.UserID,
		RestaurantID: actor.RestaurantID,
		Role:         string(actor.Role),
	}
}
