package subsync

import "context"

// ProfileStore is the persistence boundary for profiles.
type ProfileStore interface {
	// GetProfile returns the profile with the given id or ErrProfileNotFound.
	GetProfile(ctx context.Context, id string) (*Profile, error)

	// GetProfileByCustomerRef returns the profile owning a billing customer ref
	// or ErrProfileNotFound.
	GetProfileByCustomerRef(ctx context.Context, customerRef string) (*Profile, error)

	// UpdateProfile applies a partial write to one row, scoped by id.
	// Returns ErrProfileNotFound when the row does not exist.
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) error
}

// StatsStore is implemented by stores that can aggregate profiles by status.
type StatsStore interface {
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// Billing is the subset of the billing provider used by the plan change resolver.
type Billing interface {
	// ListActiveSubscriptions returns at most limit active subscriptions for a customer.
	ListActiveSubscriptions(ctx context.Context, customerRef string, limit int) ([]Subscription, error)

	// UpdateSubscriptionPrice moves one subscription item to a new price.
	UpdateSubscriptionPrice(ctx context.Context, change PriceChange) (*Subscription, error)
}

// Notifier delivers role-sync notifications.
type Notifier interface {
	NotifyRoleSync(ctx context.Context, n RoleSync) error
}
