package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/db"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/angelmondragon/tastebud-backend/pkg/pagination"
)

func TestCreateOrderWritesBothLocations(t *testing.T) {
	stack := newTestStack(t, false)
	doc := sampleDocument(time.Now())
	stack.seed(t, doc)

	got := stack.requireInSync(t, doc.CustomerID, doc.ID)
	require.Equal(t, doc.TotalCents, got.TotalCents)
	require.Len(t, got.Items, 1)
	require.Equal(t, "Butter Chicken", got.Items[0].Name)
	require.Equal(t, "Bengaluru", got.DeliveryAddress.City)
	require.True(t, got.CreatedAt.Equal(doc.CreatedAt))
}

func TestCreateOrderRollsBackBothOnFailure(t *testing.T) {
	stack := newTestStack(t, false)
	doc := sampleDocument(time.Now())
	stack.seed(t, doc)

	fresh := sampleDocument(time.Now())
	client := db.NewFromConn(stack.conn)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		repo := stack.repo.WithTx(tx)
		if err := repo.CreateOrder(context.Background(), fresh); err != nil {
			return err
		}
		return errors.New("commit aborted")
	})
	require.Error(t, err)

	_, err = stack.repo.FindOrder(context.Background(), fresh.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = stack.repo.FindCustomerOrder(context.Background(), fresh.CustomerID, fresh.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = stack.repo.CreateOrder(context.Background(), doc)
	require.True(t, db.IsUniqueViolation(err, ""))
}

func TestUpdateBothRequiresExpectedStatus(t *testing.T) {
	stack := newTestStack(t, false)
	doc := sampleDocument(time.Now())
	stack.seed(t, doc)

	next := doc
	next.Status = enums.OrderStatusConfirmed
	next.UpdatedAt = Timestamp(time.Now().Add(time.Second))

	err := stack.repo.UpdateBoth(context.Background(), next, enums.OrderStatusPreparing, []string{"status", "updated_at"})
	require.ErrorIs(t, err, ErrStaleWrite)

	require.NoError(t, stack.repo.UpdateBoth(context.Background(), next, enums.OrderStatusPending, []string{"status", "updated_at"}))
	got := stack.requireInSync(t, doc.CustomerID, doc.ID)
	require.Equal(t, enums.OrderStatusConfirmed, got.Status)
}

func TestListRestaurantOrdersPaginates(t *testing.T) {
	stack := newTestStack(t, false)
	base := sampleDocument(time.Now())
	start := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		doc := sampleDocument(start.Add(time.Duration(i) * time.Minute))
		doc.RestaurantID = base.RestaurantID
		stack.seed(t, doc)
	}
	other := sampleDocument(time.Now())
	stack.seed(t, other)

	ctx := context.Background()
	first, err := stack.svc.ListForRestaurant(ctx, base.RestaurantID, ListQuery{Params: pagination.Params{Limit: 3}})
	require.NoError(t, err)
	require.Len(t, first.Orders, 3)
	require.NotEmpty(t, first.NextCursor)
	require.True(t, first.Orders[0].CreatedAt.After(first.Orders[1].CreatedAt))

	second, err := stack.svc.ListForRestaurant(ctx, base.RestaurantID, ListQuery{Params: pagination.Params{Limit: 3, Cursor: first.NextCursor}})
	require.NoError(t, err)
	require.Len(t, second.Orders, 2)
	require.Empty(t, second.NextCursor)
}

func TestListCustomerOrdersFiltersStatus(t *testing.T) {
	stack := newTestStack(t, false)
	doc := sampleDocument(time.Now())
	stack.seed(t, doc)

	ctx := context.Background()
	res, err := stack.svc.ListForCustomer(ctx, doc.CustomerID, ListQuery{Statuses: []enums.OrderStatus{enums.OrderStatusDelivered}})
	require.NoError(t, err)
	require.Empty(t, res.Orders)

	res, err = stack.svc.ListForCustomer(ctx, doc.CustomerID, ListQuery{Statuses: []enums.OrderStatus{enums.OrderStatusPending}})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
}
