package subsync

import (
	"context"
	"fmt"
	"strings"
)

const (
	upgradeMessage   = "Subscription upgraded! You have been charged the prorated difference."
	downgradeMessage = "Subscription will be downgraded at the end of your current billing period."
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// Billing is the provider the subscription lives at (required)
	Billing Billing

	// Ranking orders plan ids to classify upgrades and downgrades.
	Ranking PlanRanking

	Logger  Logger
	Metrics Metrics
}

// Validate checks that the configuration is valid
func (c *ResolverConfig) Validate() error {
	if c.Billing == nil {
		return fmt.Errorf("billing is required")
	}
	return nil
}

// Resolver moves a user's active subscription to another plan tier. It never writes
// to the profile store; the subscription.updated webhook reconciles the plan afterwards.
type Resolver struct {
	billing Billing
	ranking PlanRanking
	logger  Logger
	metrics Metrics
}

// NewResolver creates a Resolver.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	r := &Resolver{
		billing: config.Billing,
		ranking: config.Ranking,
		logger:  config.Logger,
		metrics: config.Metrics,
	}
	if r.logger == nil {
		r.logger = &NoopLogger{}
	}
	if r.metrics == nil {
		r.metrics = &NoopMetrics{}
	}
	return r, nil
}

// Ranking returns the plan ranking the resolver classifies with.
func (r *Resolver) Ranking() PlanRanking {
	return r.ranking
}

// ChangePlan switches the caller's subscription to targetPlanID.
// Preconditions are checked in order and each fails with its own sentinel error.
func (r *Resolver) ChangePlan(ctx context.Context, profile *Profile, targetPlanID string) (*PlanChangeResult, error) {
	if profile == nil || profile.BillingCustomerRef == "" {
		r.metrics.RecordPlanChange("no_subscription")
		return nil, ErrNoSubscription
	}

	targetPlanID = strings.TrimSpace(targetPlanID)
	if targetPlanID == "" {
		r.metrics.RecordPlanChange("missing_plan")
		return nil, ErrMissingPlan
	}

	// Ask for two so that "more than one" is distinguishable from "exactly one".
	subs, err := r.billing.ListActiveSubscriptions(ctx, profile.BillingCustomerRef, 2)
	if err != nil {
		r.metrics.RecordPlanChange("provider_error")
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}
	switch {
	case len(subs) == 0:
		r.metrics.RecordPlanChange("no_active_subscription")
		return nil, ErrNoActiveSubscription
	case len(subs) > 1:
		r.metrics.RecordPlanChange("no_active_subscription")
		return nil, fmt.Errorf("%w: customer %s has %d active subscriptions",
			ErrNoActiveSubscription, profile.BillingCustomerRef, len(subs))
	}

	sub := subs[0]
	if len(sub.Items) == 0 {
		r.metrics.RecordPlanChange("no_active_subscription")
		return nil, fmt.Errorf("%w: subscription %s has no items", ErrNoActiveSubscription, sub.ID)
	}
	currentPlanID := sub.Items[0].PriceID
	if currentPlanID == targetPlanID {
		r.metrics.RecordPlanChange("already_on_plan")
		return nil, ErrAlreadyOnPlan
	}

	isUpgrade := r.ranking.IsUpgrade(currentPlanID, targetPlanID)

	updated, err := r.billing.UpdateSubscriptionPrice(ctx, PriceChange{
		SubscriptionID: sub.ID,
		ItemID:         sub.Items[0].ID,
		PriceID:        targetPlanID,
		Prorate:        isUpgrade,
	})
	if err != nil {
		r.metrics.RecordPlanChange("provider_error")
		r.logger.Error("subscription price update failed",
			F("profile_id", profile.ID), F("subscription_id", sub.ID), F("error", err.Error()))
		return nil, fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}

	res := &PlanChangeResult{
		Success:        true,
		IsUpgrade:      isUpgrade,
		SubscriptionID: sub.ID,
	}
	if updated != nil {
		res.SubscriptionID = updated.ID
		res.CurrentPeriodEnd = updated.CurrentPeriodEnd
	}
	if isUpgrade {
		res.Message = upgradeMessage
		r.metrics.RecordPlanChange("upgrade")
	} else {
		res.Message = downgradeMessage
		r.metrics.RecordPlanChange("downgrade")
	}

	r.logger.Info("plan change requested",
		F("profile_id", profile.ID), F("subscription_id", res.SubscriptionID),
		F("from_plan", currentPlanID), F("to_plan", targetPlanID), F("upgrade", isUpgrade))
	return res, nil
}
