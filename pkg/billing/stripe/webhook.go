package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/billing/internal"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

// handleWebhook processes incoming Stripe webhook events
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	internal.SetSecurityHeaders(w)

	if r.Method != http.MethodPost {
		internal.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if p.webhookSecret == "" {
		internal.WriteError(w, http.StatusServiceUnavailable, "webhook not configured")
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxWebhookBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			internal.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			internal.WriteError(w, http.StatusBadRequest, "invalid payload")
			p.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	ack, err := p.ProcessWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if ack == subsync.AckRejected {
		switch {
		case errors.Is(err, billing.ErrMissingWebhookSignature):
			internal.WriteError(w, http.StatusBadRequest, "No signature")
		case errors.Is(err, billing.ErrInvalidWebhookSignature):
			internal.WriteError(w, http.StatusBadRequest, "Invalid signature")
		default:
			internal.WriteError(w, http.StatusServiceUnavailable, "webhook not configured")
		}
		return
	}

	_ = internal.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// ProcessWebhook verifies payload against its Stripe-Signature header, translates the
// event and hands it to the processor. Nothing is read or written before the signature
// verifies. Once it does, the event is acknowledged as processed whatever the outcome.
func (p *Provider) ProcessWebhook(ctx context.Context, payload []byte, signature string) (subsync.Ack, error) {
	startTime := time.Now()

	if p.webhookSecret == "" {
		return subsync.AckRejected, billing.ErrProviderNotConfigured
	}
	if signature == "" {
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		p.logger.Warn("webhook rejected", subsync.F("reason", "missing signature"))
		return subsync.AckRejected, billing.ErrMissingWebhookSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		p.logger.Warn("webhook rejected", subsync.F("reason", "invalid signature"), subsync.F("error", err.Error()))
		return subsync.AckRejected, fmt.Errorf("%w: %v", billing.ErrInvalidWebhookSignature, err)
	}

	eventType := string(event.Type)
	if eventType == "" {
		eventType = "UNKNOWN"
	}

	outcome := billing.WebhookOutcome{
		Provider:       providerName,
		EventID:        event.ID,
		EventType:      eventType,
		EventTimestamp: time.Unix(event.Created, 0).UTC(),
	}

	status := "skipped"
	ev, err := p.translateEvent(ctx, &event)
	if err != nil {
		status = "error"
		outcome.Err = err
		p.metrics.RecordWebhookError(providerName, "translation_failed")
		p.logger.Error("webhook event translation failed",
			subsync.F("event_id", event.ID), subsync.F("event_type", eventType), subsync.F("error", err.Error()))
	} else {
		res := p.processor.Process(ctx, ev)
		outcome.ProfileID = res.Transition.ProfileID
		outcome.PreviousStatus = res.Transition.From
		outcome.NewStatus = res.Transition.To
		outcome.Applied = res.Applied
		outcome.Notified = res.Notified
		outcome.Skip = res.Transition.Skip
		outcome.Err = res.Err
		switch {
		case res.Err != nil:
			status = "error"
			p.metrics.RecordWebhookError(providerName, "processing_error")
		case res.Applied:
			status = "applied"
		}
	}

	p.runCallback(ctx, outcome)

	p.metrics.RecordWebhookEvent(providerName, eventType, status)
	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
	return subsync.AckProcessed, nil
}

func (p *Provider) runCallback(ctx context.Context, outcome billing.WebhookOutcome) {
	if p.webhookCallback == nil {
		return
	}
	if err := p.webhookCallback(ctx, outcome); err != nil {
		p.metrics.RecordWebhookError(providerName, "callback_error")
		p.logger.Warn("webhook callback failed",
			subsync.F("event_id", outcome.EventID), subsync.F("error", err.Error()))
	}
}
