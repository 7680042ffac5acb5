package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Metrics implements subsync.Metrics using Prometheus.
type Metrics struct {
	transitionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	planChangesTotal   *prometheus.CounterVec
	storageOpsDuration *prometheus.HistogramVec
	storageOpsErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_transitions_total",
			Help:      "Total number of persisted subscription status transitions.",
		}, []string{"event_type", "from", "to"}),

		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_sync_notifications_total",
			Help:      "Total number of role-sync notifications by outcome.",
		}, []string{"action_context", "outcome"}),

		planChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_changes_total",
			Help:      "Total number of plan change attempts by result.",
		}, []string{"result"}),

		storageOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Latency of profile store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storageOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operation_errors_total",
			Help:      "Total number of profile store errors.",
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordTransition(eventType string, from, to subsync.Status) {
	m.transitionsTotal.WithLabelValues(eventType, statusLabel(from), statusLabel(to)).Inc()
}

func (m *Metrics) RecordNotification(actionContext, outcome string) {
	m.notificationsTotal.WithLabelValues(actionContext, outcome).Inc()
}

func (m *Metrics) RecordPlanChange(result string) {
	m.planChangesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	m.storageOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storageOpsErrors.WithLabelValues(operation).Inc()
	}
}

func statusLabel(s subsync.Status) string {
	if s == "" {
		return string(subsync.StatusNone)
	}
	return string(s)
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
