package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Checkout and customer metadata keys.
const (
	metadataUserID    = "supabase_user_id"
	metadataDiscordID = "discord_id"
	metadataUsername  = "username"
)

// translateEvent maps a verified Stripe event onto a provider-neutral subsync.Event.
// Unhandled event types are carried through with only their identity set.
func (p *Provider) translateEvent(ctx context.Context, event *stripe.Event) (subsync.Event, error) {
	ev := subsync.Event{
		ID:      event.ID,
		Type:    subsync.EventType(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}

	switch ev.Type {
	case subsync.EventCheckoutCompleted,
		subsync.EventSubscriptionUpdated,
		subsync.EventSubscriptionDeleted,
		subsync.EventInvoicePaymentFailed:
		if event.Data == nil || len(event.Data.Raw) == 0 {
			return ev, fmt.Errorf("%w: event %s has no data", billing.ErrInvalidWebhookPayload, event.ID)
		}
	default:
		return ev, nil
	}

	switch ev.Type {
	case subsync.EventCheckoutCompleted:
		return p.translateCheckout(ctx, event, ev)
	case subsync.EventSubscriptionUpdated, subsync.EventSubscriptionDeleted:
		return translateSubscription(event, ev)
	default:
		return translateInvoice(event, ev)
	}
}

func (p *Provider) translateCheckout(ctx context.Context, event *stripe.Event, ev subsync.Event) (subsync.Event, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return ev, fmt.Errorf("%w: checkout session: %v", billing.ErrInvalidWebhookPayload, err)
	}

	ev.UserID = session.Metadata[metadataUserID]
	ev.DiscordID = session.Metadata[metadataDiscordID]
	ev.Username = session.Metadata[metadataUsername]
	ev.Mode = subsync.CheckoutMode(session.Mode)
	if session.Customer != nil {
		ev.CustomerRef = session.Customer.ID
	}

	switch ev.Mode {
	case subsync.CheckoutModePayment:
		ev.PlanID = subsync.LifetimePlanID
	case subsync.CheckoutModeSubscription:
		if session.Subscription == nil || session.Subscription.ID == "" {
			break
		}
		ev.SubscriptionRef = session.Subscription.ID
		if ev.UserID == "" {
			// Nothing will be written; skip the lookup.
			break
		}
		sub, err := p.retrieveSubscription(ctx, ev.SubscriptionRef)
		if err != nil {
			return ev, fmt.Errorf("retrieve subscription %s: %w", ev.SubscriptionRef, err)
		}
		ev.PlanID = firstPriceID(sub)
	}
	return ev, nil
}

func translateSubscription(event *stripe.Event, ev subsync.Event) (subsync.Event, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return ev, fmt.Errorf("%w: subscription: %v", billing.ErrInvalidWebhookPayload, err)
	}
	ev.SubscriptionRef = sub.ID
	ev.ProviderStatus = string(sub.Status)
	ev.PlanID = firstPriceID(&sub)
	if sub.Customer != nil {
		ev.CustomerRef = sub.Customer.ID
	}
	return ev, nil
}

func translateInvoice(event *stripe.Event, ev subsync.Event) (subsync.Event, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return ev, fmt.Errorf("%w: invoice: %v", billing.ErrInvalidWebhookPayload, err)
	}
	if invoice.Customer != nil {
		ev.CustomerRef = invoice.Customer.ID
	}
	return ev, nil
}

func firstPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	item := sub.Items.Data[0]
	if item == nil || item.Price == nil {
		return ""
	}
	return item.Price.ID
}
