package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v83"
)

// stripeAPI is the subset of the Stripe API the provider calls.
type stripeAPI interface {
	RetrieveSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
	ListSubscriptions(ctx context.Context, params *stripe.SubscriptionListParams, limit int) ([]*stripe.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionUpdateParams) (*stripe.Subscription, error)
	CreateCustomer(ctx context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
}

// clientAPI calls Stripe through the v1 services of stripe.Client.
type clientAPI struct {
	client *stripe.Client
}

func (c *clientAPI) RetrieveSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	return c.client.V1Subscriptions.Retrieve(ctx, id, nil)
}

// ListSubscriptions stops paging once limit results are collected. A limit <= 0 reads every page.
func (c *clientAPI) ListSubscriptions(
	ctx context.Context, params *stripe.SubscriptionListParams, limit int,
) ([]*stripe.Subscription, error) {
	var subs []*stripe.Subscription
	for sub, err := range c.client.V1Subscriptions.List(ctx, params) {
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
		if limit > 0 && len(subs) >= limit {
			break
		}
	}
	return subs, nil
}

func (c *clientAPI) UpdateSubscription(
	ctx context.Context, id string, params *stripe.SubscriptionUpdateParams,
) (*stripe.Subscription, error) {
	return c.client.V1Subscriptions.Update(ctx, id, params)
}

func (c *clientAPI) CreateCustomer(ctx context.Context, params *stripe.CustomerCreateParams) (*stripe.Customer, error) {
	return c.client.V1Customers.Create(ctx, params)
}

func (c *clientAPI) CreateCheckoutSession(
	ctx context.Context, params *stripe.CheckoutSessionCreateParams,
) (*stripe.CheckoutSession, error) {
	return c.client.V1CheckoutSessions.Create(ctx, params)
}
