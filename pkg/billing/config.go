package billing

import "github.com/mihaimyh/subsync/pkg/subsync"

// Config defines the standard configuration all providers should accept
type Config struct {
	// Processor applies verified, translated events to profiles (required)
	Processor *subsync.Processor

	// WebhookSecret is used to verify incoming webhook signatures.
	WebhookSecret string

	// APIKey is used for outbound API calls to the billing provider.
	APIKey string

	// WebhookCallback is invoked after every authenticated webhook event, once
	// the processor has run. Errors are logged and never change the acknowledgement.
	WebhookCallback WebhookCallback

	// Logger is optional. If nil, logging is disabled.
	Logger subsync.Logger

	// Metrics is an optional metrics collector for tracking billing provider operations.
	// If nil, metrics will be silently ignored (no-op).
	// Use billing/metrics/prometheus.DefaultMetrics(namespace) for Prometheus metrics.
	Metrics Metrics
}
