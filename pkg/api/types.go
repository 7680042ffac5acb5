package api

import "time"

// UpdateSubscriptionRequest is the body of POST /api/update-subscription.
type UpdateSubscriptionRequest struct {
	NewPriceID string `json:"newPriceId"`
}

// UpdateSubscriptionResponse reports a completed plan change.
type UpdateSubscriptionResponse struct {
	Success      bool            `json:"success"`
	IsUpgrade    bool            `json:"isUpgrade"`
	Message      string          `json:"message"`
	Subscription SubscriptionRef `json:"subscription"`
}

// SubscriptionRef identifies the updated subscription and its current period end.
type SubscriptionRef struct {
	ID               string    `json:"id"`
	CurrentPeriodEnd time.Time `json:"currentPeriodEnd"`
}

// CheckoutRequest is the body of POST /api/checkout.
type CheckoutRequest struct {
	PriceID string `json:"priceId"`
}

// CheckoutResponse carries the hosted checkout URL.
type CheckoutResponse struct {
	SessionID string `json:"sessionId,omitempty"`
	URL       string `json:"url"`
}

// MembershipRequest is the body of POST /api/check-membership.
type MembershipRequest struct {
	DiscordID string `json:"discord_id"`
}

// MembershipResponse reports guild membership.
type MembershipResponse struct {
	IsMember bool `json:"isMember"`
}

// SubscriptionResponse is the caller's current subscription standing
type SubscriptionResponse struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`           // "none", "pending", "active", "canceled"
	PlanID string `json:"plan_id"`          // Empty when no plan is recorded
	Tier   int    `json:"tier"`             // Plan tier rank, 0 when unranked
	Active bool   `json:"active"`           // Convenience flag for Status == "active"
	HasSub bool   `json:"has_subscription"` // A billing subscription reference is recorded
}

// StatsResponse counts profiles by subscription status.
type StatsResponse struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}
