package subsync

import "time"

// Status is the user-facing subscription state stored on a profile.
type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

// ParseStatus maps a stored value to a Status. Empty and unknown values map to StatusNone.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusPending, StatusActive, StatusCanceled:
		return Status(s)
	default:
		return StatusNone
	}
}

// LifetimePlanID is the plan id recorded for one-time payment checkouts.
const LifetimePlanID = "lifetime"

// Profile is one registered user as seen by the reconciliation core.
// Optional references use the empty string for "not set".
type Profile struct {
	ID       string
	Email    string
	Username string

	// DiscordID is used only to route role-sync notifications.
	DiscordID string

	// BillingCustomerRef is set once, on first checkout, and never changed afterward.
	BillingCustomerRef string

	// BillingSubscriptionRef is cleared when the subscription is deleted.
	BillingSubscriptionRef string

	// PlanID is empty when no paid plan is active.
	PlanID string

	SubscriptionStatus Status
	UpdatedAt          time.Time
}

// ProfileUpdate is a partial single-row write. A nil field leaves the column untouched;
// a pointer to "" clears it.
type ProfileUpdate struct {
	SubscriptionStatus     *Status
	PlanID                 *string
	BillingCustomerRef     *string
	BillingSubscriptionRef *string
}

// IsEmpty reports whether the update writes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.SubscriptionStatus == nil && u.PlanID == nil &&
		u.BillingCustomerRef == nil && u.BillingSubscriptionRef == nil
}

// Apply returns a copy of p with the update applied.
func (u ProfileUpdate) Apply(p Profile) Profile {
	if u.SubscriptionStatus != nil {
		p.SubscriptionStatus = *u.SubscriptionStatus
	}
	if u.PlanID != nil {
		p.PlanID = *u.PlanID
	}
	if u.BillingCustomerRef != nil {
		p.BillingCustomerRef = *u.BillingCustomerRef
	}
	if u.BillingSubscriptionRef != nil {
		p.BillingSubscriptionRef = *u.BillingSubscriptionRef
	}
	return p
}

// EventType is the billing provider's event type tag.
type EventType string

const (
	EventCheckoutCompleted    EventType = "checkout.session.completed"
	EventSubscriptionUpdated  EventType = "customer.subscription.updated"
	EventSubscriptionDeleted  EventType = "customer.subscription.deleted"
	EventInvoicePaymentFailed EventType = "invoice.payment_failed"
)

// CheckoutMode distinguishes recurring from one-time checkouts.
type CheckoutMode string

const (
	CheckoutModeSubscription CheckoutMode = "subscription"
	CheckoutModePayment      CheckoutMode = "payment"
)

// Event is a verified billing event translated out of the provider's payload.
type Event struct {
	ID      string
	Type    EventType
	Created time.Time

	// UserID comes from checkout metadata (supabase_user_id).
	UserID string

	CustomerRef     string
	SubscriptionRef string

	// PlanID is the price id of the first subscription item, or LifetimePlanID.
	PlanID string

	Mode CheckoutMode

	// ProviderStatus is the raw subscription status reported by the provider.
	ProviderStatus string

	// DiscordID and Username come from checkout metadata when present.
	DiscordID string
	Username  string
}

// ActionContext tags which event triggered a role-sync notification.
type ActionContext string

const (
	ActionCheckoutCompleted   ActionContext = "checkout_completed"
	ActionSubscriptionUpdated ActionContext = "subscription_updated"
	ActionSubscriptionDeleted ActionContext = "subscription_deleted"
)

// RoleSync is the notification sent to the bot after a status transition.
type RoleSync struct {
	DiscordID     string
	Status        Status
	ActionContext ActionContext
	OldStatus     Status
	Username      string
	CustomerRef   string
}

// Subscription is the provider-neutral view of a billing subscription.
type Subscription struct {
	ID               string
	CustomerRef      string
	Status           string
	Items            []SubscriptionItem
	CurrentPeriodEnd time.Time
}

// SubscriptionItem is one priced line of a subscription.
type SubscriptionItem struct {
	ID      string
	PriceID string
}

// FirstPriceID returns the price of the first item, or "" when there are no items.
func (s *Subscription) FirstPriceID() string {
	if s == nil || len(s.Items) == 0 {
		return ""
	}
	return s.Items[0].PriceID
}

// PriceChange asks the provider to move one subscription item to a new price.
// Prorate selects immediate proration; the billing cycle anchor is never changed.
type PriceChange struct {
	SubscriptionID string
	ItemID         string
	PriceID        string
	Prorate        bool
}

// PlanChangeResult is returned by Resolver.ChangePlan on success.
type PlanChangeResult struct {
	Success          bool      `json:"success"`
	IsUpgrade        bool      `json:"isUpgrade"`
	Message          string    `json:"message"`
	SubscriptionID   string    `json:"-"`
	CurrentPeriodEnd time.Time `json:"-"`
}

// Ack is the acknowledgement returned to the billing provider.
type Ack int

const (
	// AckRejected means the signature did not verify; nothing was processed.
	AckRejected Ack = iota
	// AckProcessed covers applied transitions and benign no-ops alike.
	AckProcessed
)

func (a Ack) String() string {
	if a == AckProcessed {
		return "processed"
	}
	return "rejected"
}
