package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/angelmondragon/tastebud-backend/api/responses"
	"github.com/angelmondragon/tastebud-backend/api/validators"
	"github.com/angelmondragon/tastebud-backend/internal/observer"
	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
)

const (
	streamHeartbeat = 15 * time.Second
	streamBuffer    = 16
)

type subscriber interface {
	Subscribe(ctx context.Context, filter observer.Filter, onChange observer.ChangeFunc, onError observer.ErrorFunc) (*observer.Subscription, error)
}

type streamEvent struct {
	name string
	data any
}

// StreamCustomerOrder pushes the caller's order as server-sent events: the
// current snapshot first, then every committed change.
func StreamCustomerOrder(hub subscriber, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		serveStream(w, r, hub, observer.CustomerOrder(customerID, orderID), logg)
	}
}

// StreamRestaurantOrders pushes the dashboard feed of the caller's restaurant.
func StreamRestaurantOrders(hub subscriber, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := callerRestaurantID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		serveStream(w, r, hub, observer.RestaurantOrders(restaurantID), logg)
	}
}

func serveStream(w http.ResponseWriter, r *http.Request, hub subscriber, filter observer.Filter, logg *logger.Logger) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan streamEvent, streamBuffer)
	push := func(ev streamEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	sub, err := hub.Subscribe(ctx, filter,
		func(docs []models.OrderDocument) { push(streamEvent{name: "orders", data: docs}) },
		func(err error) {
			typed := pkgerrors.As(err)
			if typed == nil {
				typed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order feed interrupted")
			}
			push(streamEvent{name: "error", data: map[string]string{
				"code":    string(typed.Code()),
				"message": pkgerrors.MetadataFor(typed.Code()).PublicMessage,
			}})
		},
	)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	defer sub.Unsubscribe()

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logg.Error(ctx, "event stream not supported", err)
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev := <-events:
			if err := writeEvent(w, ev); err != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "event stream write failed")
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev streamEvent) error {
	payload, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, payload)
	return err
}
