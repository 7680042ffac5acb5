package stripe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/billing/internal"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

const (
	providerName             = "stripe"
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 5000
	maxWebhookBodyBytes      = 256 * 1024
	subscriptionStatusActive = "active"
)

// Config extends billing.Config with Stripe-specific options
type Config struct {
	billing.Config // Base config (Processor, Logger, Metrics, etc.)

	// Stripe-specific
	StripeAPIKey        string
	StripeWebhookSecret string

	// WebhookRateLimit caps deliveries per client IP per WebhookRateWindow.
	// Zero values fall back to 5000 per minute, well above Stripe's delivery rate
	// from its small pool of sender IPs.
	WebhookRateLimit  int
	WebhookRateWindow time.Duration
}

// Provider implements billing.Provider and subsync.Billing for Stripe.
type Provider struct {
	processor       *subsync.Processor
	api             stripeAPI
	rateLimiter     *internal.RateLimiter
	webhookSecret   string
	webhookCallback billing.WebhookCallback
	logger          subsync.Logger
	metrics         billing.Metrics
}

var (
	_ billing.Provider = (*Provider)(nil)
	_ subsync.Billing  = (*Provider)(nil)
)

// NewProvider creates a new Stripe billing provider
func NewProvider(config Config) (*Provider, error) {
	if config.Processor == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	apiKey := strings.TrimSpace(config.StripeAPIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(config.APIKey)
	}
	if apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	webhookSecret := strings.TrimSpace(config.StripeWebhookSecret)
	if webhookSecret == "" {
		webhookSecret = strings.TrimSpace(config.WebhookSecret)
	}

	limit := config.WebhookRateLimit
	if limit <= 0 {
		limit = defaultRateLimitRequests
	}
	window := config.WebhookRateWindow
	if window <= 0 {
		window = defaultRateLimitWindow
	}

	logger := config.Logger
	if logger == nil {
		logger = &subsync.NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	return &Provider{
		processor:       config.Processor,
		api:             &clientAPI{client: stripe.NewClient(apiKey)},
		rateLimiter:     internal.NewRateLimiter(limit, window),
		webhookSecret:   webhookSecret,
		webhookCallback: config.WebhookCallback,
		logger:          logger,
		metrics:         metrics,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Stripe webhooks
func (p *Provider) WebhookHandler() http.Handler {
	return p.rateLimiter.Middleware(http.HandlerFunc(p.handleWebhook))
}

// recordAPICall records the outcome and latency of one Stripe API call.
func (p *Provider) recordAPICall(endpoint string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordAPICall(providerName, endpoint, status)
	p.metrics.RecordAPICallDuration(providerName, endpoint, time.Since(start))
}

func (p *Provider) retrieveSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	start := time.Now()
	sub, err := p.api.RetrieveSubscription(ctx, id)
	p.recordAPICall("/subscriptions/{id}", start, err)
	return sub, err
}
