package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

func checkoutRequest(prof *subsync.Profile) billing.CheckoutRequest {
	return billing.CheckoutRequest{
		Profile:    prof,
		PriceID:    testPriceMonthly,
		SuccessURL: "https://example.com/dashboard?success=true",
		CancelURL:  "https://example.com/checkout?canceled=true",
	}
}

func TestCreateCheckout_CreatesCustomerOnFirstCheckout(t *testing.T) {
	env := newTestEnv(t)
	env.api.customer = &stripe.Customer{ID: "cus_new"}
	env.api.session = &stripe.CheckoutSession{ID: "cs_123", URL: "https://checkout.stripe.com/c/cs_123"}
	prof := &subsync.Profile{
		ID:                 testUserID,
		Email:              "user@example.com",
		DiscordID:          testDiscordID,
		Username:           "tester",
		SubscriptionStatus: subsync.StatusNone,
	}

	session, err := env.provider.CreateCheckout(context.Background(), checkoutRequest(prof))

	require.NoError(t, err)
	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_123", session.URL)
	assert.Equal(t, "cus_new", session.CustomerRef)
	assert.True(t, session.CreatedCustomer)

	require.Len(t, env.api.customerCalls, 1)
	customer := env.api.customerCalls[0]
	assert.Equal(t, "user@example.com", stripe.StringValue(customer.Email))
	assert.Equal(t, testUserID, customer.Metadata["supabase_user_id"])
	assert.Equal(t, testDiscordID, customer.Metadata["discord_id"])

	require.Len(t, env.api.sessionCalls, 1)
	params := env.api.sessionCalls[0]
	assert.Equal(t, "cus_new", stripe.StringValue(params.Customer))
	assert.Equal(t, "subscription", stripe.StringValue(params.Mode))
	assert.True(t, stripe.BoolValue(params.AllowPromotionCodes))
	assert.Equal(t, testPriceMonthly, stripe.StringValue(params.LineItems[0].Price))
	assert.Equal(t, testUserID, params.Metadata["supabase_user_id"])
	assert.Equal(t, "tester", params.SubscriptionData.Metadata["username"])
}

func TestCreateCheckout_ReusesExistingCustomer(t *testing.T) {
	env := newTestEnv(t)
	env.api.session = &stripe.CheckoutSession{ID: "cs_123", URL: "https://checkout.stripe.com/c/cs_123"}
	prof := &subsync.Profile{ID: testUserID, BillingCustomerRef: testCustomerID, SubscriptionStatus: subsync.StatusCanceled}

	session, err := env.provider.CreateCheckout(context.Background(), checkoutRequest(prof))

	require.NoError(t, err)
	assert.False(t, session.CreatedCustomer)
	assert.Equal(t, testCustomerID, session.CustomerRef)
	assert.Empty(t, env.api.customerCalls)
}

func TestCreateCheckout_Preconditions(t *testing.T) {
	env := newTestEnv(t)

	active := &subsync.Profile{ID: testUserID, SubscriptionStatus: subsync.StatusActive}
	_, err := env.provider.CreateCheckout(context.Background(), checkoutRequest(active))
	assert.ErrorIs(t, err, subsync.ErrAlreadySubscribed)

	req := checkoutRequest(&subsync.Profile{ID: testUserID})
	req.PriceID = " "
	_, err = env.provider.CreateCheckout(context.Background(), req)
	assert.ErrorIs(t, err, billing.ErrMissingPrice)

	_, err = env.provider.CreateCheckout(context.Background(), checkoutRequest(nil))
	assert.ErrorIs(t, err, subsync.ErrProfileNotFound)

	assert.Empty(t, env.api.customerCalls)
	assert.Empty(t, env.api.sessionCalls)
}

func TestCreateCheckout_ProviderError(t *testing.T) {
	env := newTestEnv(t)
	env.api.err = errors.New("api down")

	_, err := env.provider.CreateCheckout(context.Background(), checkoutRequest(&subsync.Profile{ID: testUserID}))

	assert.ErrorIs(t, err, billing.ErrProviderAPIError)
}
