// Package loyalty keeps the append-only points ledger that backs loyalty
// discounts. A customer's balance is the sum of their ledger entries.
package loyalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/tastebud-backend/pkg/db"
	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox/payloads"
)

var (
	errSettledConcurrently = errors.New("order settled by a concurrent call")
	errBalanceShort        = errors.New("loyalty balance does not cover the redeemed points")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Settlement is the ledger effect of one order.
type Settlement struct {
	OrderID        uuid.UUID `json:"order_id"`
	PointsRedeemed int       `json:"points_redeemed"`
	PointsEarned   int       `json:"points_earned"`
}

// Service reads balances and settles orders against the ledger.
type Service interface {
	Balance(ctx context.Context, customerID uuid.UUID) (int, error)
	SettleOrder(ctx context.Context, order models.OrderDocument) (*Settlement, error)
}

type service struct {
	repo              Repository
	tx                txRunner
	outbox            outboxPublisher
	earnCentsPerPoint int
}

// NewService wires a loyalty service. earnCentsPerPoint is the order total
// that earns one point; zero or less disables earning.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, earnCentsPerPoint int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:              repo,
		tx:                tx,
		outbox:            outbox,
		earnCentsPerPoint: earnCentsPerPoint,
	}, nil
}

func (s *service) Balance(ctx context.Context, customerID uuid.UUID) (int, error) {
	if customerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	balance, err := s.repo.SumByCustomer(ctx, customerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loyalty balance")
	}
	return balance, nil
}

// PointsEarned is the whole number of points a total earns.
func (s *service) PointsEarned(totalCents int) int {
	if s.earnCentsPerPoint <= 0 || totalCents <= 0 {
		return 0
	}
	return totalCents / s.earnCentsPerPoint
}

// SettleOrder deducts redeemed points and credits earned points for order.
// Each entry is unique per order and type, so repeated calls are no-ops. A
// redeem is only written while the customer's balance still covers it.
func (s *service) SettleOrder(ctx context.Context, order models.OrderDocument) (*Settlement, error) {
	if order.ID == uuid.Nil || order.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and customer are required")
	}

	result := &Settlement{
		OrderID:        order.ID,
		PointsRedeemed: order.LoyaltyPointsApplied,
		PointsEarned:   s.PointsEarned(order.TotalCents),
	}

	wanted := map[enums.LoyaltyEventType]int{}
	if result.PointsRedeemed > 0 {
		wanted[enums.LoyaltyEventRedeem] = -result.PointsRedeemed
	}
	if result.PointsEarned > 0 {
		wanted[enums.LoyaltyEventEarn] = result.PointsEarned
	}
	if len(wanted) == 0 {
		return result, nil
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.ListByOrderID(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, event := range existing {
			delete(wanted, event.Type)
		}
		if _, ok := wanted[enums.LoyaltyEventRedeem]; ok {
			if err := repo.LockCustomer(ctx, order.CustomerID); err != nil {
				return err
			}
			balance, err := repo.SumByCustomer(ctx, order.CustomerID)
			if err != nil {
				return err
			}
			if balance < result.PointsRedeemed {
				return fmt.Errorf("%w: balance %d, redeemed %d", errBalanceShort, balance, result.PointsRedeemed)
			}
		}
		for _, eventType := range []enums.LoyaltyEventType{enums.LoyaltyEventRedeem, enums.LoyaltyEventEarn} {
			points, ok := wanted[eventType]
			if !ok {
				continue
			}
			entry := &models.LoyaltyLedgerEvent{
				CustomerID: order.CustomerID,
				OrderID:    order.ID,
				Type:       eventType,
				Points:     points,
			}
			if err := repo.Create(ctx, entry); err != nil {
				if dbpkg.IsUniqueViolation(err, "") {
					return errSettledConcurrently
				}
				return err
			}
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoyaltyPointsSettled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.LoyaltyPointsSettledEvent{
				OrderID:        order.ID,
				CustomerID:     order.CustomerID,
				PointsEarned:   result.PointsEarned,
				PointsRedeemed: result.PointsRedeemed,
			},
		})
	})
	if errors.Is(err, errSettledConcurrently) {
		return result, nil
	}
	if errors.Is(err, errBalanceShort) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "loyalty balance no longer covers the redeemed points").
			WithDetails(map[string]any{"order_id": order.ID, "points_redeemed": result.PointsRedeemed})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle loyalty points")
	}
	return result, nil
}
