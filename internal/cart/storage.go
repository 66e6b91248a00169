package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/tastebud-backend/pkg/redis"
)

// ErrNotFound is returned by Storage.Load when no blob exists for the key.
var ErrNotFound = errors.New("cart blob not found")

// Storage persists one serialized cart per customer.
type Storage interface {
	Load(ctx context.Context, customerID string) ([]byte, error)
	Save(ctx context.Context, customerID string, data []byte) error
	Delete(ctx context.Context, customerID string) error
}

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(customerID string) string
}

// RedisStorage keeps carts in Redis with a sliding TTL refreshed on every save.
type RedisStorage struct {
	client redisStore
	ttl    time.Duration
}

func NewRedisStorage(client redisStore, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

func (s *RedisStorage) Load(ctx context.Context, customerID string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.client.CartKey(customerID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(raw), nil
}

func (s *RedisStorage) Save(ctx context.Context, customerID string, data []byte) error {
	return s.client.Set(ctx, s.client.CartKey(customerID), string(data), s.ttl)
}

func (s *RedisStorage) Delete(ctx context.Context, customerID string) error {
	return s.client.Del(ctx, s.client.CartKey(customerID))
}

// MemoryStorage is an in-process Storage for tests and single-node dev.
type MemoryStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

func (s *MemoryStorage) Load(_ context.Context, customerID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.blobs[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (s *MemoryStorage) Save(_ context.Context, customerID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[customerID] = stored
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, customerID)
	return nil
}
