package observer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/tastebud-backend/pkg/db/models"
)

// mailbox buffers pending snapshots for one subscriber. It holds at most one
// snapshot per order, the newest by UpdatedAt, so a slow consumer skips
// intermediate states instead of blocking publishers.
type mailbox struct {
	mu      sync.Mutex
	pending map[uuid.UUID]models.OrderDocument
	order   []uuid.UUID
	errs    []error
	signal  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		pending: make(map[uuid.UUID]models.OrderDocument),
		signal:  make(chan struct{}, 1),
	}
}

// put queues doc and reports whether it replaced or lost to a queued
// snapshot of the same order.
func (m *mailbox) put(doc models.OrderDocument) bool {
	m.mu.Lock()
	existing, ok := m.pending[doc.ID]
	switch {
	case !ok:
		m.pending[doc.ID] = doc
		m.order = append(m.order, doc.ID)
	case !doc.UpdatedAt.Before(existing.UpdatedAt):
		m.pending[doc.ID] = doc
	}
	m.mu.Unlock()
	m.notify()
	return ok
}

func (m *mailbox) fail(err error) {
	m.mu.Lock()
	m.errs = append(m.errs, err)
	m.mu.Unlock()
	m.notify()
}

func (m *mailbox) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// drain empties the mailbox, returning snapshots in first-queued order.
func (m *mailbox) drain() ([]models.OrderDocument, []error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]models.OrderDocument, 0, len(m.order))
	for _, id := range m.order {
		docs = append(docs, m.pending[id])
	}
	errs := m.errs
	m.pending = make(map[uuid.UUID]models.OrderDocument)
	m.order = nil
	m.errs = nil
	return docs, errs
}
