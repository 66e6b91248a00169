package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/angelmondragon/tastebud-backend/pkg/outbox/payloads"
)

func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}))
	return conn
}

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	conn := setupOutboxDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: uuid.New(), Role: "customer"},
			Data:          payloads.OrderCreatedEvent{OrderID: orderID, TotalCents: 10400},
		})
	})
	require.NoError(t, err)

	rows, err := repo.FetchUnpublished(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	var data payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, 10400, data.TotalCents)
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	conn := setupOutboxDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]any{"ok": true},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := repo.FetchUnpublished(10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	conn := setupOutboxDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	event := DomainEvent{
		EventType:     enums.EventLoyaltyPointsSettled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          payloads.LoyaltyPointsSettledEvent{PointsEarned: 4},
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	rows, err := repo.FetchUnpublished(10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := setupOutboxDB(t)
	repo := NewRepository(conn)

	fresh := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	exhausted := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 10}
	require.NoError(t, repo.Insert(conn, fresh))
	require.NoError(t, repo.Insert(conn, exhausted))

	var batch []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = repo.FetchUnpublishedForPublish(tx, 10, 10)
		return err
	}))
	require.Len(t, batch, 1)

	id := batch[0].ID
	require.NoError(t, repo.MarkFailedTx(conn, id, errors.New("broker down")))
	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	assert.Equal(t, 1, row.AttemptCount)
	require.NotNil(t, row.LastError)

	require.NoError(t, repo.MarkPublishedTx(conn, id))
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	require.NotNil(t, row.PublishedAt)

	deleted, err := repo.DeletePublishedBefore(context.Background(), conn, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestDLQRepositoryTruncatesMessages(t *testing.T) {
	conn := setupOutboxDB(t)
	dlq := NewDLQRepository(conn)
	long := make([]byte, 4096)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	eventID := uuid.New()

	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
	}))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen)

	rows, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
