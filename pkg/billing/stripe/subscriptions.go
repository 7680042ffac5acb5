package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

const (
	prorationCreate = "create_prorations"
	prorationNone   = "none"
)

// ListActiveSubscriptions returns up to limit active subscriptions of a customer.
func (p *Provider) ListActiveSubscriptions(ctx context.Context, customerRef string, limit int) ([]subsync.Subscription, error) {
	params := &stripe.SubscriptionListParams{}
	params.Customer = stripe.String(customerRef)
	params.Status = stripe.String(subscriptionStatusActive)
	if limit > 0 {
		params.Limit = stripe.Int64(int64(limit))
	}

	start := time.Now()
	subs, err := p.api.ListSubscriptions(ctx, params, limit)
	p.recordAPICall("/subscriptions", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: list subscriptions: %v", billing.ErrProviderAPIError, err)
	}

	out := make([]subsync.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub == nil || string(sub.Status) != subscriptionStatusActive {
			continue
		}
		out = append(out, toSubscription(sub))
	}
	return out, nil
}

// UpdateSubscriptionPrice moves one subscription item to a new price. Prorated changes
// are billed immediately; otherwise the new price applies from the next renewal.
// The billing cycle anchor is left unchanged either way.
func (p *Provider) UpdateSubscriptionPrice(ctx context.Context, change subsync.PriceChange) (*subsync.Subscription, error) {
	proration := prorationNone
	if change.Prorate {
		proration = prorationCreate
	}

	params := &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:    stripe.String(change.ItemID),
				Price: stripe.String(change.PriceID),
			},
		},
		ProrationBehavior:           stripe.String(proration),
		BillingCycleAnchorUnchanged: stripe.Bool(true),
	}

	start := time.Now()
	sub, err := p.api.UpdateSubscription(ctx, change.SubscriptionID, params)
	p.recordAPICall("/subscriptions/{id}", start, err)
	if err != nil {
		return nil, fmt.Errorf("%w: update subscription: %v", billing.ErrProviderAPIError, err)
	}
	p.metrics.RecordPriceChange(providerName, proration)

	out := toSubscription(sub)
	return &out, nil
}

// RetrieveSubscription fetches a single subscription by id.
func (p *Provider) RetrieveSubscription(ctx context.Context, id string) (*subsync.Subscription, error) {
	sub, err := p.retrieveSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve subscription: %v", billing.ErrProviderAPIError, err)
	}
	out := toSubscription(sub)
	return &out, nil
}

func toSubscription(sub *stripe.Subscription) subsync.Subscription {
	out := subsync.Subscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerRef = sub.Customer.ID
	}
	if sub.Items == nil {
		return out
	}
	for _, item := range sub.Items.Data {
		if item == nil {
			continue
		}
		si := subsync.SubscriptionItem{ID: item.ID}
		if item.Price != nil {
			si.PriceID = item.Price.ID
		}
		out.Items = append(out.Items, si)
		if out.CurrentPeriodEnd.IsZero() && item.CurrentPeriodEnd > 0 {
			out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}
	return out
}
