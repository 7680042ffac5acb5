package billing

import (
	"context"
	"time"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// WebhookOutcome describes what a single authenticated webhook delivery did.
type WebhookOutcome struct {
	// Provider is the billing provider name ("stripe")
	Provider string

	// EventID and EventType are the provider's identifiers for the delivery.
	EventID   string
	EventType string

	// EventTimestamp is when the event occurred (from provider)
	EventTimestamp time.Time

	// ProfileID is the profile the event resolved to, if any.
	ProfileID string

	// PreviousStatus and NewStatus are only meaningful when Applied is true.
	PreviousStatus subsync.Status
	NewStatus      subsync.Status

	Applied  bool
	Notified bool

	// Skip names why nothing was written (see subsync.Skip* constants).
	Skip string

	// Err is the translation or downstream failure that was logged, if any.
	Err error
}

// WebhookCallback is called after the processor has handled an event.
type WebhookCallback func(ctx context.Context, outcome WebhookOutcome) error
