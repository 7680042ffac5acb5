package subsync

// Reasons a transition writes nothing.
const (
	SkipMissingUserID     = "missing_user_id"
	SkipProfileNotFound   = "profile_not_found"
	SkipObservabilityOnly = "observability_only"
	SkipUnhandledEvent    = "unhandled_event_type"
)

// Transition is the profile write and notification implied by one event.
type Transition struct {
	// ProfileID is the row to write. Empty when the event writes nothing.
	ProfileID string
	Update    ProfileUpdate

	From Status
	To   Status

	// Notification is delivered only after Update has been persisted.
	Notification *RoleSync

	// Suppressed is set when a notification was withheld because the status did not change.
	Suppressed bool

	// Skip names why nothing is written.
	Skip string
}

// Mutates reports whether the transition writes to the profile store.
func (t Transition) Mutates() bool {
	return t.ProfileID != "" && !t.Update.IsEmpty()
}

// Reconcile maps a verified event and the profile it resolved to (nil when none matched)
// onto the next profile write and the notification to send. It performs no I/O.
func Reconcile(prior *Profile, ev Event) Transition {
	switch ev.Type {
	case EventCheckoutCompleted:
		return reconcileCheckout(prior, ev)
	case EventSubscriptionUpdated:
		return reconcileSubscriptionUpdated(prior, ev)
	case EventSubscriptionDeleted:
		return reconcileSubscriptionDeleted(prior, ev)
	case EventInvoicePaymentFailed:
		return Transition{Skip: SkipObservabilityOnly}
	default:
		return Transition{Skip: SkipUnhandledEvent}
	}
}

func reconcileCheckout(prior *Profile, ev Event) Transition {
	if ev.UserID == "" {
		return Transition{Skip: SkipMissingUserID}
	}
	if prior == nil {
		return Transition{Skip: SkipProfileNotFound}
	}

	var subscriptionRef, planID string
	switch ev.Mode {
	case CheckoutModeSubscription:
		subscriptionRef = ev.SubscriptionRef
		planID = ev.PlanID
	case CheckoutModePayment:
		planID = LifetimePlanID
	}

	status := StatusActive
	update := ProfileUpdate{
		SubscriptionStatus:     &status,
		BillingSubscriptionRef: &subscriptionRef,
		PlanID:                 &planID,
	}
	if ev.CustomerRef != "" {
		customerRef := ev.CustomerRef
		update.BillingCustomerRef = &customerRef
	}

	t := Transition{
		ProfileID: prior.ID,
		Update:    update,
		From:      prior.SubscriptionStatus,
		To:        status,
	}

	discordID := firstNonEmpty(ev.DiscordID, prior.DiscordID)
	if discordID != "" {
		t.Notification = &RoleSync{
			DiscordID:     discordID,
			Status:        status,
			ActionContext: ActionCheckoutCompleted,
			OldStatus:     prior.SubscriptionStatus,
			Username:      firstNonEmpty(ev.Username, prior.Username),
			CustomerRef:   ev.CustomerRef,
		}
	}
	return t
}

func reconcileSubscriptionUpdated(prior *Profile, ev Event) Transition {
	if prior == nil {
		return Transition{Skip: SkipProfileNotFound}
	}

	status := StatusCanceled
	if ev.ProviderStatus == string(StatusActive) {
		status = StatusActive
	}
	planID := ev.PlanID

	t := Transition{
		ProfileID: prior.ID,
		Update: ProfileUpdate{
			SubscriptionStatus: &status,
			PlanID:             &planID,
		},
		From: prior.SubscriptionStatus,
		To:   status,
	}

	if prior.DiscordID == "" {
		return t
	}
	if prior.SubscriptionStatus == status {
		t.Suppressed = true
		return t
	}
	t.Notification = &RoleSync{
		DiscordID:     prior.DiscordID,
		Status:        status,
		ActionContext: ActionSubscriptionUpdated,
		OldStatus:     prior.SubscriptionStatus,
		Username:      prior.Username,
		CustomerRef:   ev.CustomerRef,
	}
	return t
}

func reconcileSubscriptionDeleted(prior *Profile, ev Event) Transition {
	if prior == nil {
		return Transition{Skip: SkipProfileNotFound}
	}

	status := StatusCanceled
	cleared := ""
	t := Transition{
		ProfileID: prior.ID,
		Update: ProfileUpdate{
			SubscriptionStatus:     &status,
			BillingSubscriptionRef: &cleared,
		},
		From: prior.SubscriptionStatus,
		To:   status,
	}

	if prior.DiscordID != "" {
		t.Notification = &RoleSync{
			DiscordID:     prior.DiscordID,
			Status:        status,
			ActionContext: ActionSubscriptionDeleted,
			OldStatus:     prior.SubscriptionStatus,
			Username:      prior.Username,
			CustomerRef:   ev.CustomerRef,
		}
	}
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
