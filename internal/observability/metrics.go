// Package observability provides Prometheus metrics for the indexer.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Projection metrics
	EventsProjected  *prometheus.CounterVec
	ProjectionErrors *prometheus.CounterVec
	OrphanUpdates    *prometheus.CounterVec

	// Notification metrics
	Notifications        *prometheus.CounterVec
	NotificationsDropped prometheus.Counter
	NotificationQueue    prometheus.Gauge

	// Source metrics
	LastIndexedBlock prometheus.Gauge
	ChainHeadBlock   prometheus.Gauge
	RPCCallLatency   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "otc"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EventsProjected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_projected_total",
			Help:      "Events applied to the read-model, by event kind.",
		}, []string{"kind"}),
		ProjectionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_errors_total",
			Help:      "Events whose store transaction failed, by event kind.",
		}, []string{"kind"}),
		OrphanUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_updates_total",
			Help:      "Executions or cancellations referencing a listing that does not exist.",
		}, []string{"kind"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Forwarded notifications, by target and outcome.",
		}, []string{"target", "outcome"}),
		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the dispatch buffer was full or closed.",
		}),
		NotificationQueue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_queue_size",
			Help:      "Notifications waiting for dispatch.",
		}),

		LastIndexedBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_indexed_block",
			Help:      "Last block fully applied to the read-model.",
		}),
		ChainHeadBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_head_block",
			Help:      "Latest block reported by the rpc node.",
		}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_duration_seconds",
			Help:      "Latency of rpc calls made by the event source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler exposes the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventProjected(kind string) {
	if m == nil {
		return
	}
	m.EventsProjected.WithLabelValues(kind).Inc()
}

func (m *Metrics) ProjectionFailed(kind string) {
	if m == nil {
		return
	}
	m.ProjectionErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) OrphanUpdate(kind string) {
	if m == nil {
		return
	}
	m.OrphanUpdates.WithLabelValues(kind).Inc()
}

func (m *Metrics) Notification(target, outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(target, outcome).Inc()
}

func (m *Metrics) NotificationDropped() {
	if m == nil {
		return
	}
	m.NotificationsDropped.Inc()
}

func (m *Metrics) QueueSize(n int) {
	if m == nil {
		return
	}
	m.NotificationQueue.Set(float64(n))
}

func (m *Metrics) IndexedBlock(block int64) {
	if m == nil {
		return
	}
	m.LastIndexedBlock.Set(float64(block))
}

func (m *Metrics) HeadBlock(block int64) {
	if m == nil {
		return
	}
	m.ChainHeadBlock.Set(float64(block))
}

func (m *Metrics) ObserveRPC(method string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
