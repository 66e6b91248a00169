package loyalty

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/db"
	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox"
)

func newTestStack(t *testing.T) (*gorm.DB, Service) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&models.LoyaltyLedgerEvent{}, &models.OutboxEvent{}))

	svc, err := NewService(
		NewRepository(conn),
		db.NewFromConn(conn),
		outbox.NewService(outbox.NewRepository(conn), nil),
		1000,
	)
	require.NoError(t, err)
	return conn, svc
}

func TestBalanceSumsLedger(t *testing.T) {
	conn, svc := newTestStack(t)
	customer := uuid.New()
	repo := NewRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.LoyaltyLedgerEvent{CustomerID: customer, OrderID: uuid.New(), Type: enums.LoyaltyEventEarn, Points: 320}))
	require.NoError(t, repo.Create(ctx, &models.LoyaltyLedgerEvent{CustomerID: customer, OrderID: uuid.New(), Type: enums.LoyaltyEventRedeem, Points: -200}))
	require.NoError(t, repo.Create(ctx, &models.LoyaltyLedgerEvent{CustomerID: uuid.New(), OrderID: uuid.New(), Type: enums.LoyaltyEventEarn, Points: 999}))

	balance, err := svc.Balance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, 120, balance)

	balance, err = svc.Balance(ctx, uuid.New())
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestSettleOrderIsIdempotent(t *testing.T) {
	conn, svc := newTestStack(t)
	ctx := context.Background()
	order := models.OrderDocument{
		ID:                   uuid.New(),
		CustomerID:           uuid.New(),
		LoyaltyPointsApplied: 200,
		TotalCents:           21900,
	}
	require.NoError(t, NewRepository(conn).Create(ctx, &models.LoyaltyLedgerEvent{
		CustomerID: order.CustomerID, OrderID: uuid.New(), Type: enums.LoyaltyEventEarn, Points: 250,
	}))

	first, err := svc.SettleOrder(ctx, order)
	require.NoError(t, err)
	require.Equal(t, 200, first.PointsRedeemed)
	require.Equal(t, 21, first.PointsEarned)

	second, err := svc.SettleOrder(ctx, order)
	require.NoError(t, err)
	require.Equal(t, first, second)

	var entries []models.LoyaltyLedgerEvent
	require.NoError(t, conn.Where("order_id = ?", order.ID).Find(&entries).Error)
	require.Len(t, entries, 2)

	balance, err := svc.Balance(ctx, order.CustomerID)
	require.NoError(t, err)
	require.Equal(t, 71, balance)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventLoyaltyPointsSettled, order.ID).
		Count(&events).Error)
	require.EqualValues(t, 1, events)
}

func TestSettleOrderWithNothingToRecord(t *testing.T) {
	conn, svc := newTestStack(t)
	order := models.OrderDocument{ID: uuid.New(), CustomerID: uuid.New(), TotalCents: 999}

	got, err := svc.SettleOrder(context.Background(), order)
	require.NoError(t, err)
	require.Zero(t, got.PointsEarned)

	var count int64
	require.NoError(t, conn.Model(&models.LoyaltyLedgerEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSettleOrderRequiresIdentifiers(t *testing.T) {
	_, svc := newTestStack(t)
	_, err := svc.SettleOrder(context.Background(), models.OrderDocument{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSettleOrderRejectsRedeemBeyondBalance(t *testing.T) {
	conn, svc := newTestStack(t)
	ctx := context.Background()
	customer := uuid.New()
	require.NoError(t, NewRepository(conn).Create(ctx, &models.LoyaltyLedgerEvent{
		CustomerID: customer, OrderID: uuid.New(), Type: enums.LoyaltyEventEarn, Points: 250,
	}))

	first := models.OrderDocument{ID: uuid.New(), CustomerID: customer, LoyaltyPointsApplied: 200, TotalCents: 5000}
	second := models.OrderDocument{ID: uuid.New(), CustomerID: customer, LoyaltyPointsApplied: 200, TotalCents: 5000}

	_, err := svc.SettleOrder(ctx, first)
	require.NoError(t, err)

	_, err = svc.SettleOrder(ctx, second)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var entries int64
	require.NoError(t, conn.Model(&models.LoyaltyLedgerEvent{}).Where("order_id = ?", second.ID).Count(&entries).Error)
	require.Zero(t, entries)

	balance, err := svc.Balance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, 55, balance)
}
