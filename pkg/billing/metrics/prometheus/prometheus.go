// Package prommetrics exports billing webhook and provider API activity to Prometheus.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mihaimyh/subsync/pkg/billing"
)

const subsystem = "billing"

// webhookBuckets covers verify + one profile lookup + one write + one bot call.
var webhookBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics implements billing.Metrics using Prometheus.
type Metrics struct {
	webhookEventsTotal        *prometheus.CounterVec
	webhookProcessingDuration *prometheus.HistogramVec
	webhookErrorsTotal        *prometheus.CounterVec
	priceChangesTotal         *prometheus.CounterVec
	apiCallsTotal             *prometheus.CounterVec
	apiCallDuration           *prometheus.HistogramVec
}

var _ billing.Metrics = (*Metrics)(nil)

// NewMetrics registers the billing collectors on reg under namespace_billing_*.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
		}, labels)
	}

	return &Metrics{
		webhookEventsTotal: counter("webhook_events_total",
			"Authenticated webhook events by provider event type and outcome (applied, skipped, error).",
			"provider", "event_type", "outcome"),
		webhookProcessingDuration: histogram("webhook_processing_duration_seconds",
			"Time from signature verification to acknowledgement of one webhook event.",
			webhookBuckets, "provider", "event_type"),
		webhookErrorsTotal: counter("webhook_errors_total",
			"Webhook deliveries that failed before or during reconciliation, by reason "+
				"(auth_failed, invalid_payload, translation_failed, processing_error, callback_error).",
			"provider", "reason"),
		priceChangesTotal: counter("price_changes_total",
			"Plan changes sent to the provider, by proration behaviour (create_prorations for upgrades, none for downgrades).",
			"provider", "proration"),
		apiCallsTotal: counter("api_calls_total",
			"Outbound provider API calls by endpoint and result (success, error).",
			"provider", "endpoint", "result"),
		apiCallDuration: histogram("api_call_duration_seconds",
			"Latency of outbound provider API calls.",
			prometheus.DefBuckets, "provider", "endpoint"),
	}
}

// RecordWebhookEvent counts one authenticated event and how the processor handled it.
func (m *Metrics) RecordWebhookEvent(provider, eventType, outcome string) {
	m.webhookEventsTotal.WithLabelValues(provider, eventType, outcome).Inc()
}

func (m *Metrics) RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration) {
	m.webhookProcessingDuration.WithLabelValues(provider, eventType).Observe(duration.Seconds())
}

func (m *Metrics) RecordWebhookError(provider, reason string) {
	m.webhookErrorsTotal.WithLabelValues(provider, reason).Inc()
}

// RecordPriceChange counts one subscription price update.
func (m *Metrics) RecordPriceChange(provider, proration string) {
	m.priceChangesTotal.WithLabelValues(provider, proration).Inc()
}

func (m *Metrics) RecordAPICall(provider, endpoint, result string) {
	m.apiCallsTotal.WithLabelValues(provider, endpoint, result).Inc()
}

func (m *Metrics) RecordAPICallDuration(provider, endpoint string, duration time.Duration) {
	m.apiCallDuration.WithLabelValues(provider, endpoint).Observe(duration.Seconds())
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) billing.Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
