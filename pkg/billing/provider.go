package billing

import (
	"context"
	"net/http"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Provider is the interface a billing backend implements to feed the reconciliation core.
type Provider interface {
	// Name returns the provider name (e.g., "stripe")
	Name() string

	// WebhookHandler returns the HTTP handler that verifies and processes real-time events.
	WebhookHandler() http.Handler

	// ProcessWebhook verifies a raw signed payload and hands the translated event to the
	// processor. It returns subsync.AckRejected and ErrInvalidWebhookSignature when the
	// signature does not verify; every authenticated event is acknowledged as processed.
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (subsync.Ack, error)

	// CreateCheckout opens a hosted checkout session for a profile.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// CheckoutRequest asks the provider for a subscription checkout session.
type CheckoutRequest struct {
	Profile *subsync.Profile
	PriceID string

	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the hosted checkout the caller is redirected to.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`

	// CustomerRef is the billing customer the session belongs to. CreatedCustomer is
	// true when the customer was created for this checkout and must be persisted.
	CustomerRef     string `json:"-"`
	CreatedCustomer bool   `json:"-"`
}
