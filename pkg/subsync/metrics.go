package subsync

import "time"

// Metrics defines the interface for tracking reconciliation outcomes.
type Metrics interface {
	// RecordTransition records a persisted status transition for an event type.
	RecordTransition(eventType string, from, to Status)

	// RecordNotification records a role-sync notification outcome.
	// outcome: "sent", "suppressed" or "failed"
	RecordNotification(actionContext, outcome string)

	// RecordPlanChange records a plan change attempt.
	// result: "upgrade", "downgrade" or a precondition/error label
	RecordPlanChange(result string)

	// RecordStorageOperation records the duration and status of a profile store call.
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordTransition(string, Status, Status)             {}
func (n *NoopMetrics) RecordNotification(string, string)                   {}
func (n *NoopMetrics) RecordPlanChange(string)                             {}
func (n *NoopMetrics) RecordStorageOperation(string, time.Duration, error) {}
