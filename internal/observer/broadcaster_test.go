package observer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string]string
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messages == nil {
		f.messages = map[string]string{}
	}
	f.messages[channel] = payload.(string)
	return nil
}

func TestRedisBroadcasterPublishesBothChannels(t *testing.T) {
	pub := &fakePublisher{}
	b, err := NewRedisBroadcaster(pub, "tb:orders:", logger.New(logger.Options{ServiceName: "observer-test"}))
	require.NoError(t, err)

	doc := newDoc(uuid.New(), enums.OrderStatusConfirmed, time.Now().UTC())
	b.Broadcast(context.Background(), doc)

	require.Len(t, pub.messages, 2)
	payload, ok := pub.messages["tb:orders:restaurant:"+doc.RestaurantID.String()]
	require.True(t, ok)
	_, ok = pub.messages["tb:orders:order:"+doc.ID.String()]
	require.True(t, ok)

	var decoded models.OrderDocument
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, doc.ID, decoded.ID)
	assert.Equal(t, enums.OrderStatusConfirmed, decoded.Status)
}

type fakeSource struct {
	messages chan *goredis.Message
	failWith error
	closed   bool
}

func (f *fakeSource) ReceiveMessage(ctx context.Context) (*goredis.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-f.messages:
		if !ok {
			return nil, f.failWith
		}
		return msg, nil
	}
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func TestRedisRelayFeedsHub(t *testing.T) {
	restaurant := uuid.New()
	hub := newTestHub(t, &stubLoader{})
	rec := &recorder{}
	sub, err := hub.Subscribe(context.Background(), RestaurantOrders(restaurant), rec.onChange, rec.onError)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	source := &fakeSource{messages: make(chan *goredis.Message, 4), failWith: errors.New("connection lost")}
	relay := &RedisRelay{
		hub:    hub,
		prefix: "tb:orders",
		logg:   logger.New(logger.Options{ServiceName: "observer-test"}),
		delay:  time.Millisecond,
		open: func(context.Context) (messageSource, error) {
			return source, nil
		},
	}

	doc := newDoc(restaurant, enums.OrderStatusPreparing, time.Now().UTC())
	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	source.messages <- &goredis.Message{Channel: "elsewhere:1", Payload: "{}"}
	source.messages <- &goredis.Message{Channel: "tb:orders:restaurant:" + restaurant.String(), Payload: "not json"}
	source.messages <- &goredis.Message{Channel: "tb:orders:restaurant:" + restaurant.String(), Payload: string(payload)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, ok := rec.latest(doc.ID)
		return ok && got.Status == enums.OrderStatusPreparing
	}, time.Second, 5*time.Millisecond)

	close(source.messages)
	require.Eventually(t, func() bool {
		_, errs := rec.snapshot()
		return len(errs) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestLocalBroadcasterDelivers(t *testing.T) {
	restaurant := uuid.New()
	hub := newTestHub(t, &stubLoader{})
	rec := &recorder{}
	sub, err := hub.Subscribe(context.Background(), RestaurantOrders(restaurant), rec.onChange, rec.onError)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	doc := newDoc(restaurant, enums.OrderStatusPending, time.Now())
	NewLocalBroadcaster(hub).Broadcast(context.Background(), doc)
	require.Eventually(t, func() bool {
		_, ok := rec.latest(doc.ID)
		return ok
	}, time.Second, 5*time.Millisecond)
}
