package subsync

import "errors"

var (
	// ErrProfileNotFound is returned when no profile matches an id or customer ref
	ErrProfileNotFound = errors.New("profile not found")

	// ErrNoSubscription is returned when the profile has no billing customer
	ErrNoSubscription = errors.New("no subscription found")

	// ErrMissingPlan is returned when a plan change names no target plan
	ErrMissingPlan = errors.New("new price ID is required")

	// ErrNoActiveSubscription is returned when the provider does not report exactly one
	// active subscription for the customer
	ErrNoActiveSubscription = errors.New("no active subscription found")

	// ErrAlreadyOnPlan is returned when the target plan equals the current price
	ErrAlreadyOnPlan = errors.New("already on this plan")

	// ErrAlreadySubscribed is returned when checkout is requested for an active profile
	ErrAlreadySubscribed = errors.New("already subscribed")

	// ErrStorageUnavailable is returned when the profile store cannot be reached
	ErrStorageUnavailable = errors.New("storage unavailable")
)
