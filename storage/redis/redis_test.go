package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// setupTestRedis creates a Redis client for testing
// Requires Redis running on localhost:6379
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use DB 15 for testing
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestStorage(t *testing.T, config Config) *Storage {
	t.Helper()
	s, err := New(setupTestRedis(t), config)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestNew_DefaultPrefix(t *testing.T) {
	s, err := New(redis.NewClient(&redis.Options{Addr: "localhost:6379"}), Config{})
	require.NoError(t, err)
	assert.Equal(t, "subsync:profile:u1", s.profileKey("u1"))
	assert.Equal(t, "subsync:customer:cus_1", s.customerKey("cus_1"))
}

func TestEncodeDecodeProfile(t *testing.T) {
	prof := subsync.Profile{
		ID:                 "u1",
		DiscordID:          "42",
		BillingCustomerRef: "cus_1",
		PlanID:             "price_month",
		SubscriptionStatus: subsync.StatusActive,
		UpdatedAt:          time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	fields := encodeProfile(prof)
	assert.NotContains(t, fields, fieldEmail)
	assert.NotContains(t, fields, fieldSubscriptionRef)

	str := make(map[string]string, len(fields))
	for k, v := range fields {
		str[k] = v.(string)
	}
	got, err := decodeProfile(str)
	require.NoError(t, err)
	assert.Equal(t, prof, *got)
}

func TestDecodeProfile_Corrupt(t *testing.T) {
	_, err := decodeProfile(map[string]string{fieldStatus: "active"})
	assert.Error(t, err)

	_, err = decodeProfile(map[string]string{fieldID: "u1", fieldUpdatedAt: "yesterday"})
	assert.Error(t, err)
}

func TestUpdateArgs(t *testing.T) {
	canceled := subsync.StatusCanceled
	empty := ""

	args := updateArgs(subsync.ProfileUpdate{
		SubscriptionStatus:     &canceled,
		BillingSubscriptionRef: &empty,
	})

	assert.Equal(t, []interface{}{fieldStatus, "canceled", fieldSubscriptionRef, ""}, args)
}

func TestStorage_ProfileLifecycle(t *testing.T) {
	s := newTestStorage(t, DefaultConfig())
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, subsync.ErrProfileNotFound)

	require.NoError(t, s.PutProfile(ctx, subsync.Profile{
		ID:                     "u1",
		BillingCustomerRef:     "cus_1",
		BillingSubscriptionRef: "sub_1",
		PlanID:                 "price_month",
		SubscriptionStatus:     subsync.StatusActive,
	}))

	got, err := s.GetProfileByCustomerRef(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	canceled := subsync.StatusCanceled
	empty := ""
	require.NoError(t, s.UpdateProfile(ctx, "u1", subsync.ProfileUpdate{
		SubscriptionStatus:     &canceled,
		BillingSubscriptionRef: &empty,
	}))

	got, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, subsync.StatusCanceled, got.SubscriptionStatus)
	assert.Empty(t, got.BillingSubscriptionRef)
	assert.Equal(t, "price_month", got.PlanID)
}

func TestStorage_UpdateMovesCustomerIndex(t *testing.T) {
	s := newTestStorage(t, DefaultConfig())
	ctx := context.Background()
	require.NoError(t, s.PutProfile(ctx, subsync.Profile{ID: "u1", BillingCustomerRef: "cus_old"}))

	ref := "cus_new"
	require.NoError(t, s.UpdateProfile(ctx, "u1", subsync.ProfileUpdate{BillingCustomerRef: &ref}))

	_, err := s.GetProfileByCustomerRef(ctx, "cus_old")
	assert.ErrorIs(t, err, subsync.ErrProfileNotFound)
	got, err := s.GetProfileByCustomerRef(ctx, "cus_new")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestStorage_UpdateMissingProfile(t *testing.T) {
	s := newTestStorage(t, DefaultConfig())
	active := subsync.StatusActive

	err := s.UpdateProfile(context.Background(), "ghost", subsync.ProfileUpdate{SubscriptionStatus: &active})

	assert.ErrorIs(t, err, subsync.ErrProfileNotFound)
}

func TestStorage_InvalidateAndTTL(t *testing.T) {
	s := newTestStorage(t, Config{KeyPrefix: "test:", ProfileTTL: time.Minute})
	ctx := context.Background()
	require.NoError(t, s.PutProfile(ctx, subsync.Profile{ID: "u1", BillingCustomerRef: "cus_1"}))

	ttl, err := s.client.TTL(ctx, s.profileKey("u1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, s.Invalidate(ctx, "u1"))

	_, err = s.GetProfile(ctx, "u1")
	assert.ErrorIs(t, err, subsync.ErrProfileNotFound)
	_, err = s.GetProfileByCustomerRef(ctx, "cus_1")
	assert.ErrorIs(t, err, subsync.ErrProfileNotFound)
}
