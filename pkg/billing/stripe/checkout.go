package stripe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

// CreateCheckout creates a subscription-mode Checkout Session for a profile.
// A Stripe customer is created on first checkout; the caller persists it when
// CheckoutSession.CreatedCustomer is set, even if the session itself then fails.
func (p *Provider) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	prof := req.Profile
	if prof == nil {
		return nil, subsync.ErrProfileNotFound
	}
	if prof.SubscriptionStatus == subsync.StatusActive {
		return nil, subsync.ErrAlreadySubscribed
	}
	priceID := strings.TrimSpace(req.PriceID)
	if priceID == "" {
		return nil, billing.ErrMissingPrice
	}

	metadata := checkoutMetadata(prof)

	out := &billing.CheckoutSession{CustomerRef: prof.BillingCustomerRef}
	if out.CustomerRef == "" {
		customerRef, err := p.createCustomer(ctx, prof, metadata)
		if err != nil {
			return nil, err
		}
		out.CustomerRef = customerRef
		out.CreatedCustomer = true
	}

	params := &stripe.CheckoutSessionCreateParams{
		Customer: stripe.String(out.CustomerRef),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
		SubscriptionData:    &stripe.CheckoutSessionCreateSubscriptionDataParams{},
	}
	// The webhook resolves the profile from these keys.
	for k, v := range metadata {
		params.AddMetadata(k, v)
		params.SubscriptionData.AddMetadata(k, v)
	}

	start := time.Now()
	session, err := p.api.CreateCheckoutSession(ctx, params)
	p.recordAPICall("/checkout/sessions", start, err)
	if err != nil {
		return out, fmt.Errorf("%w: create checkout session: %v", billing.ErrProviderAPIError, err)
	}

	out.ID = session.ID
	out.URL = session.URL
	return out, nil
}

func (p *Provider) createCustomer(ctx context.Context, prof *subsync.Profile, metadata map[string]string) (string, error) {
	params := &stripe.CustomerCreateParams{}
	if prof.Email != "" {
		params.Email = stripe.String(prof.Email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	start := time.Now()
	cust, err := p.api.CreateCustomer(ctx, params)
	p.recordAPICall("/customers", start, err)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", billing.ErrProviderAPIError, err)
	}
	p.logger.Info("stripe customer created", subsync.F("profile_id", prof.ID), subsync.F("customer_ref", cust.ID))
	return cust.ID, nil
}

func checkoutMetadata(prof *subsync.Profile) map[string]string {
	metadata := map[string]string{metadataUserID: prof.ID}
	if prof.DiscordID != "" {
		metadata[metadataDiscordID] = prof.DiscordID
	}
	if prof.Username != "" {
		metadata[metadataUsername] = prof.Username
	}
	return metadata
}
