package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
)

// LocalBroadcaster hands committed snapshots straight to an in-process hub.
type LocalBroadcaster struct {
	hub *Hub
}

func NewLocalBroadcaster(hub *Hub) *LocalBroadcaster {
	return &LocalBroadcaster{hub: hub}
}

func (b *LocalBroadcaster) Broadcast(_ context.Context, doc models.OrderDocument) {
	if b == nil || b.hub == nil {
		return
	}
	b.hub.Deliver(doc)
}

type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// RedisBroadcaster publishes committed snapshots on Redis channels so every
// API instance's relay can feed its own hub.
type RedisBroadcaster struct {
	client publisher
	prefix string
	logg   *logger.Logger
}

func NewRedisBroadcaster(client publisher, prefix string, logg *logger.Logger) (*RedisBroadcaster, error) {
	if client == nil {
		return nil, fmt.Errorf("redis publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &RedisBroadcaster{client: client, prefix: normalizePrefix(prefix), logg: logg}, nil
}

// Broadcast is best effort: a failed publish is logged and observers catch
// up on their next snapshot or reconnect.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, doc models.OrderDocument) {
	payload, err := json.Marshal(doc)
	if err != nil {
		b.logg.Error(ctx, "encode order snapshot", err)
		return
	}
	for _, key := range []string{restaurantKey(doc.RestaurantID), orderKey(doc.ID)} {
		if err := b.client.Publish(ctx, channelFor(b.prefix, key), string(payload)); err != nil {
			b.logg.Error(b.logg.WithField(ctx, "channel_key", key), "publish order snapshot", err)
		}
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		return "tb:orders"
	}
	return prefix
}

func channelFor(prefix, key string) string {
	return prefix + ":" + key
}
