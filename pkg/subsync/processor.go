package subsync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	// Store is the profile store (required)
	Store ProfileStore

	// Notifier delivers role-sync notifications. If nil, notifications are dropped.
	Notifier Notifier

	// Logger is optional. If nil, logging is disabled.
	Logger Logger

	// Metrics is optional. If nil, metrics are not recorded.
	Metrics Metrics
}

// Validate checks that the configuration is valid
func (c *ProcessorConfig) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	return nil
}

// Processor applies verified billing events to profiles. It never fails the
// acknowledgement: downstream errors are logged and reported in the Result.
type Processor struct {
	store    ProfileStore
	notifier Notifier
	logger   Logger
	metrics  Metrics
}

// Result describes what processing a single event did.
type Result struct {
	Transition Transition
	Applied    bool
	Notified   bool

	// Err is the downstream failure that was logged, if any.
	Err error
}

// NewProcessor creates a Processor.
func NewProcessor(config ProcessorConfig) (*Processor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	p := &Processor{
		store:    config.Store,
		notifier: config.Notifier,
		logger:   config.Logger,
		metrics:  config.Metrics,
	}
	if p.logger == nil {
		p.logger = &NoopLogger{}
	}
	if p.metrics == nil {
		p.metrics = &NoopMetrics{}
	}
	return p, nil
}

// Process resolves the profile an event refers to, applies the implied transition
// and sends the notification it warrants.
func (p *Processor) Process(ctx context.Context, ev Event) Result {
	prior, err := p.lookup(ctx, ev)
	if err != nil {
		p.logger.Error("profile lookup failed",
			F("event_id", ev.ID), F("event_type", string(ev.Type)), F("error", err.Error()))
		return Result{Err: err}
	}

	t := Reconcile(prior, ev)
	res := Result{Transition: t}

	if !t.Mutates() {
		p.logSkip(ev, prior, t)
		return res
	}

	start := time.Now()
	err = p.store.UpdateProfile(ctx, t.ProfileID, t.Update)
	p.metrics.RecordStorageOperation("update_profile", time.Since(start), err)
	if err != nil {
		p.logger.Error("profile update failed",
			F("event_id", ev.ID), F("event_type", string(ev.Type)),
			F("profile_id", t.ProfileID), F("error", err.Error()))
		res.Err = fmt.Errorf("update profile %s: %w", t.ProfileID, err)
		return res
	}
	res.Applied = true
	p.metrics.RecordTransition(string(ev.Type), t.From, t.To)
	p.logger.Info("profile reconciled",
		F("event_id", ev.ID), F("event_type", string(ev.Type)),
		F("profile_id", t.ProfileID), F("from", string(t.From)), F("to", string(t.To)))

	if t.Suppressed {
		p.metrics.RecordNotification(string(ActionSubscriptionUpdated), "suppressed")
	}
	if t.Notification != nil {
		res.Notified = p.notify(ctx, *t.Notification)
	}
	return res
}

func (p *Processor) lookup(ctx context.Context, ev Event) (*Profile, error) {
	var (
		prof *Profile
		err  error
		op   string
	)
	start := time.Now()
	switch ev.Type {
	case EventCheckoutCompleted:
		if ev.UserID == "" {
			return nil, nil
		}
		op = "get_profile"
		prof, err = p.store.GetProfile(ctx, ev.UserID)
	case EventSubscriptionUpdated, EventSubscriptionDeleted, EventInvoicePaymentFailed:
		if ev.CustomerRef == "" {
			return nil, nil
		}
		op = "get_profile_by_customer"
		prof, err = p.store.GetProfileByCustomerRef(ctx, ev.CustomerRef)
	default:
		return nil, nil
	}
	if errors.Is(err, ErrProfileNotFound) {
		p.metrics.RecordStorageOperation(op, time.Since(start), nil)
		return nil, nil
	}
	p.metrics.RecordStorageOperation(op, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return prof, nil
}

func (p *Processor) notify(ctx context.Context, n RoleSync) bool {
	if p.notifier == nil {
		return false
	}
	if err := p.notifier.NotifyRoleSync(ctx, n); err != nil {
		p.metrics.RecordNotification(string(n.ActionContext), "failed")
		p.logger.Warn("role sync notification failed",
			F("discord_id", n.DiscordID), F("action_context", string(n.ActionContext)),
			F("error", err.Error()))
		return false
	}
	p.metrics.RecordNotification(string(n.ActionContext), "sent")
	return true
}

func (p *Processor) logSkip(ev Event, prior *Profile, t Transition) {
	fields := []Field{F("event_id", ev.ID), F("event_type", string(ev.Type)), F("reason", t.Skip)}
	switch t.Skip {
	case SkipObservabilityOnly:
		if prior != nil {
			fields = append(fields, F("profile_id", prior.ID))
		}
		fields = append(fields, F("customer_ref", ev.CustomerRef))
		p.logger.Warn("invoice payment failed", fields...)
	case SkipProfileNotFound, SkipMissingUserID:
		fields = append(fields, F("user_id", ev.UserID), F("customer_ref", ev.CustomerRef))
		p.logger.Error("no profile for event", fields...)
	default:
		p.logger.Info("unhandled event type", fields...)
	}
}
