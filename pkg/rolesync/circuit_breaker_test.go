package rolesync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBot = errors.New("bot down")

func failing(context.Context) error    { return errBot }
func succeeding(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []BreakerState
	cb := NewBreaker(3, time.Minute, func(s BreakerState) { transitions = append(transitions, s) })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errBot)
		assert.Equal(t, StateClosed, cb.State())
	}
	assert.ErrorIs(t, cb.Execute(ctx, failing), errBot)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, []BreakerState{StateOpen}, transitions)
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewBreaker(1, 30*time.Second, nil)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	assert.Error(t, cb.Execute(ctx, failing))
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(31 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	// A failed trial reopens the circuit.
	assert.ErrorIs(t, cb.Execute(ctx, failing), errBot)
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(31 * time.Second)
	assert.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewBreaker(2, time.Minute, nil)
	ctx := context.Background()

	assert.Error(t, cb.Execute(ctx, failing))
	assert.NoError(t, cb.Execute(ctx, succeeding))
	assert.Error(t, cb.Execute(ctx, failing))

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_CanceledContextDoesNotCount(t *testing.T) {
	cb := NewBreaker(1, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, failing)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}
