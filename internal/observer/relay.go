package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
)

const relayRetryDelay = time.Second

type patternSubscriber interface {
	PSubscribe(ctx context.Context, patterns ...string) (*goredis.PubSub, error)
}

type messageSource interface {
	ReceiveMessage(ctx context.Context) (*goredis.Message, error)
	Close() error
}

// RedisRelay feeds snapshots published by any instance into the local hub.
type RedisRelay struct {
	hub    *Hub
	prefix string
	logg   *logger.Logger
	open   func(ctx context.Context) (messageSource, error)
	delay  time.Duration
}

func NewRedisRelay(client patternSubscriber, prefix string, hub *Hub, logg *logger.Logger) (*RedisRelay, error) {
	if client == nil {
		return nil, fmt.Errorf("redis subscriber required")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	prefix = normalizePrefix(prefix)
	return &RedisRelay{
		hub:    hub,
		prefix: prefix,
		logg:   logg,
		delay:  relayRetryDelay,
		open: func(ctx context.Context) (messageSource, error) {
			return client.PSubscribe(ctx,
				channelFor(prefix, kindRestaurant+":*"),
				channelFor(prefix, kindOrder+":*"),
			)
		},
	}, nil
}

// Run relays until ctx is done. Receive errors are reported to every
// subscriber and the subscription is reopened.
func (r *RedisRelay) Run(ctx context.Context) error {
	r.logg.Info(ctx, "order relay started")
	for {
		err := r.consume(ctx)
		if ctx.Err() != nil {
			r.logg.Info(ctx, "order relay stopped")
			return nil
		}
		r.logg.Error(ctx, "order relay interrupted", err)
		r.hub.FailAll(fmt.Errorf("live order feed interrupted: %w", err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.delay):
		}
	}
}

func (r *RedisRelay) consume(ctx context.Context) error {
	source, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer source.Close()

	for {
		msg, err := source.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		if err := r.dispatch(msg); err != nil {
			r.logg.Warn(r.logg.WithField(ctx, "channel", msg.Channel), err.Error())
		}
	}
}

func (r *RedisRelay) dispatch(msg *goredis.Message) error {
	key, ok := strings.CutPrefix(msg.Channel, r.prefix+":")
	if !ok || key == "" {
		return errors.New("message on unexpected channel")
	}
	var doc models.OrderDocument
	if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
		return fmt.Errorf("decode order snapshot: %w", err)
	}
	r.hub.DeliverKey(key, doc)
	return nil
}
