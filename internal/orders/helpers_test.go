package orders

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/db"
	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox"
	"github.com/angelmondragon/tastebud-backend/pkg/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

func sampleDocument(createdAt time.Time) models.OrderDocument {
	ts := Timestamp(createdAt)
	return models.OrderDocument{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		RestaurantID: uuid.New(),
		Items: []types.OrderLine{
			{MenuItemID: uuid.New(), Name: "Butter Chicken", UnitPriceCents: 10000, Quantity: 2},
		},
		SubtotalCents:    20000,
		DeliveryFeeCents: 4900,
		TaxCents:         1000,
		TotalCents:       25900,
		Status:           enums.OrderStatusPending,
		DeliveryAddress: types.Address{
			Line1:      "12 MG Road",
			City:       "Bengaluru",
			PostalCode: "560001",
			Country:    "IN",
		},
		CustomerName:  "Asha",
		CustomerPhone: "+919800000000",
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	docs []models.OrderDocument
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, doc models.OrderDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

type testStack struct {
	conn        *gorm.DB
	repo        Repository
	svc         Service
	broadcaster *recordingBroadcaster
}

func newTestStack(t *testing.T, allowForce bool) *testStack {
	t.Helper()
	return newTestStackWithClock(t, allowForce, nil)
}

func newTestStackWithClock(t *testing.T, allowForce bool, clock func() time.Time) *testStack {
	t.Helper()
	conn := openTestDB(t)
	repo := NewRepository(conn)
	b := &recordingBroadcaster{}
	svc, err := NewService(ServiceParams{
		Repository:       repo,
		Tx:               db.NewFromConn(conn),
		Outbox:           outbox.NewService(outbox.NewRepository(conn), nil),
		Broadcaster:      b,
		Logger:           logger.New(logger.Options{ServiceName: "orders-test"}),
		AllowForceStatus: allowForce,
		Clock:            clock,
	})
	require.NoError(t, err)
	return &testStack{conn: conn, repo: repo, svc: svc, broadcaster: b}
}

func (s *testStack) seed(t *testing.T, doc models.OrderDocument) {
	t.Helper()
	require.NoError(t, s.repo.CreateOrder(context.Background(), doc))
}

func (s *testStack) requireInSync(t *testing.T, customerID, orderID uuid.UUID) models.OrderDocument {
	t.Helper()
	ctx := context.Background()
	global, err := s.repo.FindOrder(ctx, orderID)
	require.NoError(t, err)
	mirror, err := s.repo.FindCustomerOrder(ctx, customerID, orderID)
	require.NoError(t, err)
	require.True(t, DocumentsEqual(global.OrderDocument, mirror.OrderDocument), "global and mirror diverged")
	return global.OrderDocument
}

func (s *testStack) outboxCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}
