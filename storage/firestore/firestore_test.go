package firestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

const testProjectID = "test-project"

// setupTestStorage connects to the Firestore emulator named by FIRESTORE_EMULATOR_HOST
// and uses a unique collection per test.
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, testProjectID)
	if err != nil {
		t.Skipf("Firestore emulator not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	collection := fmt.Sprintf("test_profiles_%s_%d", t.Name(), time.Now().UnixNano())
	s, err := New(client, Config{ProfilesCollection: collection})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestProfileUpdates(t *testing.T) {
	canceled := subsync.StatusCanceled
	empty := ""

	updates := profileUpdates(subsync.ProfileUpdate{
		SubscriptionStatus:     &canceled,
		BillingSubscriptionRef: &empty,
	})

	require.Len(t, updates, 3)
	assert.Equal(t, firestore.Update{Path: fieldStatus, Value: "canceled"}, updates[0])
	assert.Equal(t, fieldSubscriptionRef, updates[1].Path)
	assert.Equal(t, firestore.Delete, updates[1].Value)
	assert.Equal(t, fieldUpdatedAt, updates[2].Path)
}

func TestProfileDataRoundTrip(t *testing.T) {
	prof := subsync.Profile{
		ID:                 "u1",
		DiscordID:          "42",
		BillingCustomerRef: "cus_1",
		PlanID:             "price_week",
		SubscriptionStatus: subsync.StatusActive,
	}

	data := profileData(prof)
	assert.NotContains(t, data, fieldEmail)
	delete(data, fieldUpdatedAt)

	assert.Equal(t, prof, *profileFromData("u1", data))
}

func TestStorage_ProfileLifecycle(t *testing.T) {
	s := setupTestStorage(t)
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
	assert.False(t, got.UpdatedAt.IsZero())

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

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[subsync.Status]int{subsync.StatusCanceled: 1}, counts)
}

func TestStorage_UpdateMissingProfile(t *testing.T) {
	s := setupTestStorage(t)
	active := subsync.StatusActive

	err := s.UpdateProfile(context.Background(), "ghost", subsync.ProfileUpdate{SubscriptionStatus: &active})

	assert.ErrorIs(t, err, subsync.ErrProfileNotFound)
}
