package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Order placement outcomes.
const (
	ResultSuccess    = "success"
	ResultRejected   = "rejected"
	ResultTxFailure  = "transaction_failure"
	ResultPostCommit = "post_commit_failure"
)

// OrderMetrics tracks checkout, lifecycle and observer activity. A nil
// *OrderMetrics is valid and records nothing.
type OrderMetrics struct {
	placed         *prometheus.CounterVec
	placeDuration  prometheus.Histogram
	writeAttempts  prometheus.Counter
	transitions    *prometheus.CounterVec
	mirrorRepairs  prometheus.Counter
	subscribers    *prometheus.GaugeVec
	droppedUpdates prometheus.Counter
}

// NewOrderMetrics registers order metrics on reg. A nil registerer yields a
// no-op collector.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		placed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"result"}),
		placeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_place_duration_seconds",
			Help:      "End-to-end checkout latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		writeAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_dual_write_attempts_total",
			Help:      "Transactions started to write an order to both locations.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Applied status changes by target status and mode.",
		}, []string{"to", "forced"}),
		mirrorRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_mirror_repairs_total",
			Help:      "Customer order copies rewritten by the reconciler.",
		}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "order_observer_subscribers",
			Help:      "Live observer subscriptions by kind.",
		}, []string{"kind"}),
		droppedUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_observer_coalesced_total",
			Help:      "Intermediate snapshots superseded before delivery.",
		}),
	}
	reg.MustRegister(m.placed, m.placeDuration, m.writeAttempts, m.transitions, m.mirrorRepairs, m.subscribers, m.droppedUpdates)
	return m
}

func (m *OrderMetrics) ObservePlacement(result string, d time.Duration) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.WithLabelValues(normalizeLabel(result)).Inc()
	m.placeDuration.Observe(d.Seconds())
}

func (m *OrderMetrics) IncWriteAttempt() {
	if m == nil || m.writeAttempts == nil {
		return
	}
	m.writeAttempts.Inc()
}

func (m *OrderMetrics) IncTransition(to string, forced bool) {
	if m == nil || m.transitions == nil {
		return
	}
	f := "false"
	if forced {
		f = "true"
	}
	m.transitions.WithLabelValues(normalizeLabel(to), f).Inc()
}

func (m *OrderMetrics) AddMirrorRepairs(n int) {
	if m == nil || m.mirrorRepairs == nil || n <= 0 {
		return
	}
	m.mirrorRepairs.Add(float64(n))
}

// SubscriberDelta moves the live subscriber gauge for kind by delta.
func (m *OrderMetrics) SubscriberDelta(kind string, delta int) {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.WithLabelValues(normalizeLabel(kind)).Add(float64(delta))
}

func (m *OrderMetrics) IncCoalesced() {
	if m == nil || m.droppedUpdates == nil {
		return
	}
	m.droppedUpdates.Inc()
}
