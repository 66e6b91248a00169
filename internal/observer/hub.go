package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tastebud-backend/internal/orders"
	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tastebud-backend/pkg/errors"
	"github.com/angelmondragon/tastebud-backend/pkg/logger"
	"github.com/angelmondragon/tastebud-backend/pkg/metrics"
)

const defaultRestaurantBacklog = 50

// ChangeFunc receives snapshots. The first call carries the state loaded at
// subscribe time; later calls carry the newest snapshot of each changed
// order.
type ChangeFunc func(docs []models.OrderDocument)

// ErrorFunc receives delivery errors, such as a lost cross-instance feed.
type ErrorFunc func(err error)

// Loader reads the state a new subscription starts from.
type Loader interface {
	ListRestaurantOrders(ctx context.Context, restaurantID uuid.UUID, filter orders.ListFilter) ([]models.Order, error)
	FindCustomerOrder(ctx context.Context, customerID, orderID uuid.UUID) (*models.CustomerOrder, error)
}

// Hub indexes live subscriptions by watched key and fans snapshots out to
// them. Publishers never block on subscribers.
type Hub struct {
	loader  Loader
	backlog int
	metrics *metrics.OrderMetrics
	logg    *logger.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
}

// NewHub builds a hub. backlog caps the orders a restaurant subscription
// receives up front.
func NewHub(loader Loader, backlog int, m *metrics.OrderMetrics, logg *logger.Logger) (*Hub, error) {
	if loader == nil {
		return nil, fmt.Errorf("subscription loader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if backlog <= 0 {
		backlog = defaultRestaurantBacklog
	}
	return &Hub{
		loader:  loader,
		backlog: backlog,
		metrics: m,
		logg:    logg,
		subs:    make(map[string]map[uint64]*Subscription),
	}, nil
}

// Subscribe registers a subscription and delivers the current state before
// any change. The subscription ends when Unsubscribe is called or ctx is
// done.
func (h *Hub) Subscribe(ctx context.Context, filter Filter, onChange ChangeFunc, onError ErrorFunc) (*Subscription, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if onChange == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "change callback required")
	}
	if onError == nil {
		onError = func(error) {}
	}

	sub := &Subscription{
		hub:      h,
		filter:   filter,
		key:      filter.key(),
		box:      newMailbox(),
		onChange: onChange,
		onError:  onError,
		done:     make(chan struct{}),
	}
	// register before loading so no commit between the read and the
	// registration is missed
	h.register(sub)

	initial, err := h.load(ctx, filter)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}

	go sub.run(ctx, initial)
	return sub, nil
}

func (h *Hub) load(ctx context.Context, filter Filter) ([]models.OrderDocument, error) {
	if filter.kind == kindRestaurant {
		rows, err := h.loader.ListRestaurantOrders(ctx, filter.RestaurantID, orders.ListFilter{Limit: h.backlog})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant orders")
		}
		if len(rows) > h.backlog {
			rows = rows[:h.backlog]
		}
		docs := make([]models.OrderDocument, 0, len(rows))
		for _, row := range rows {
			docs = append(docs, row.OrderDocument)
		}
		return docs, nil
	}

	row, err := h.loader.FindCustomerOrder(ctx, filter.CustomerID, filter.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return []models.OrderDocument{row.OrderDocument}, nil
}

// Deliver routes doc to everyone watching its restaurant or the order itself.
func (h *Hub) Deliver(doc models.OrderDocument) {
	h.DeliverKey(restaurantKey(doc.RestaurantID), doc)
	h.DeliverKey(orderKey(doc.ID), doc)
}

// DeliverKey routes doc to subscribers of a single key.
func (h *Hub) DeliverKey(key string, doc models.OrderDocument) {
	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs[key]))
	for _, sub := range h.subs[key] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if !sub.accepts(doc) {
			continue
		}
		if sub.box.put(doc) {
			h.metrics.IncCoalesced()
		}
	}
}

// FailAll reports err to every live subscription.
func (h *Hub) FailAll(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, bucket := range h.subs {
		for _, sub := range bucket {
			sub.box.fail(err)
		}
	}
}

// Count returns the number of live subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, bucket := range h.subs {
		n += len(bucket)
	}
	return n
}

func (h *Hub) register(sub *Subscription) {
	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	bucket, ok := h.subs[sub.key]
	if !ok {
		bucket = make(map[uint64]*Subscription)
		h.subs[sub.key] = bucket
	}
	bucket[sub.id] = sub
	h.mu.Unlock()
	h.metrics.SubscriberDelta(sub.filter.kind, 1)
}

func (h *Hub) unregister(sub *Subscription) {
	h.mu.Lock()
	if bucket, ok := h.subs[sub.key]; ok {
		delete(bucket, sub.id)
		if len(bucket) == 0 {
			delete(h.subs, sub.key)
		}
	}
	h.mu.Unlock()
	h.metrics.SubscriberDelta(sub.filter.kind, -1)
}

// Subscription is a live handle returned by Subscribe.
type Subscription struct {
	id       uint64
	hub      *Hub
	filter   Filter
	key      string
	box      *mailbox
	onChange ChangeFunc
	onError  ErrorFunc
	done     chan struct{}
	once     sync.Once
}

// Unsubscribe stops future callbacks. It is safe to call more than once; a
// callback already running is allowed to finish.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.hub.unregister(s)
	})
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) accepts(doc models.OrderDocument) bool {
	if s.filter.kind == kindOrder {
		return doc.CustomerID == s.filter.CustomerID
	}
	return doc.RestaurantID == s.filter.RestaurantID
}

func (s *Subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription) run(ctx context.Context, initial []models.OrderDocument) {
	defer s.Unsubscribe()

	seen := make(map[uuid.UUID]time.Time, len(initial))
	for _, doc := range initial {
		seen[doc.ID] = doc.UpdatedAt
	}
	if s.stopped() {
		return
	}
	s.onChange(initial)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.box.signal:
		}

		docs, errs := s.box.drain()
		fresh := docs[:0]
		for _, doc := range docs {
			// snapshots older than one already delivered are stale replays
			if last, ok := seen[doc.ID]; ok && !doc.UpdatedAt.After(last) {
				continue
			}
			seen[doc.ID] = doc.UpdatedAt
			fresh = append(fresh, doc)
		}

		for _, err := range errs {
			if s.stopped() {
				return
			}
			s.onError(err)
		}
		if len(fresh) > 0 && !s.stopped() {
			s.onChange(fresh)
		}
	}
}
