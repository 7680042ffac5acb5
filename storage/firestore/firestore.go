// Package firestore provides a Firestore implementation of subsync.ProfileStore.
// Each profile is one document keyed by profile id.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

const (
	fieldEmail           = "email"
	fieldUsername        = "username"
	fieldDiscordID       = "discordId"
	fieldCustomerRef     = "stripeCustomerId"
	fieldSubscriptionRef = "stripeSubscriptionId"
	fieldPlanID          = "planId"
	fieldStatus          = "subscriptionStatus"
	fieldUpdatedAt       = "updatedAt"
)

// Storage implements subsync.ProfileStore using Google Cloud Firestore
type Storage struct {
	client   *firestore.Client
	profiles string
}

var (
	_ subsync.ProfileStore = (*Storage)(nil)
	_ subsync.StatsStore   = (*Storage)(nil)
)

// Config holds Firestore storage configuration
type Config struct {
	// ProfilesCollection is the Firestore collection for profiles
	// Default: "profiles"
	ProfilesCollection string
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}
	if config.ProfilesCollection == "" {
		config.ProfilesCollection = "profiles"
	}
	return &Storage{client: client, profiles: config.ProfilesCollection}, nil
}

// PutProfile writes a full profile document.
func (s *Storage) PutProfile(ctx context.Context, prof subsync.Profile) error {
	if prof.ID == "" {
		return fmt.Errorf("invalid profile: id is required")
	}
	_, err := s.client.Collection(s.profiles).Doc(prof.ID).Set(ctx, profileData(prof))
	if err != nil {
		return fmt.Errorf("failed to put profile: %w", err)
	}
	return nil
}

// GetProfile implements subsync.ProfileStore
func (s *Storage) GetProfile(ctx context.Context, id string) (*subsync.Profile, error) {
	snap, err := s.client.Collection(s.profiles).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, subsync.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if !snap.Exists() {
		return nil, subsync.ErrProfileNotFound
	}
	return profileFromData(snap.Ref.ID, snap.Data()), nil
}

// GetProfileByCustomerRef implements subsync.ProfileStore
func (s *Storage) GetProfileByCustomerRef(ctx context.Context, customerRef string) (*subsync.Profile, error) {
	if customerRef == "" {
		return nil, subsync.ErrProfileNotFound
	}

	iter := s.client.Collection(s.profiles).
		Where(fieldCustomerRef, "==", customerRef).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, subsync.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile by customer: %w", err)
	}
	return profileFromData(snap.Ref.ID, snap.Data()), nil
}

// UpdateProfile implements subsync.ProfileStore. Update fails on a missing document,
// which maps to ErrProfileNotFound; empty values delete the field.
func (s *Storage) UpdateProfile(ctx context.Context, id string, upd subsync.ProfileUpdate) error {
	_, err := s.client.Collection(s.profiles).Doc(id).Update(ctx, profileUpdates(upd))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return subsync.ErrProfileNotFound
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// CountByStatus implements subsync.StatsStore
func (s *Storage) CountByStatus(ctx context.Context) (map[subsync.Status]int, error) {
	iter := s.client.Collection(s.profiles).Select(fieldStatus).Documents(ctx)
	defer iter.Stop()

	counts := make(map[subsync.Status]int)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return counts, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to count profiles: %w", err)
		}
		counts[subsync.ParseStatus(getString(snap.Data(), fieldStatus))]++
	}
}

func profileData(prof subsync.Profile) map[string]interface{} {
	data := map[string]interface{}{
		fieldStatus:    string(subsync.ParseStatus(string(prof.SubscriptionStatus))),
		fieldUpdatedAt: firestore.ServerTimestamp,
	}
	optional := map[string]string{
		fieldEmail:           prof.Email,
		fieldUsername:        prof.Username,
		fieldDiscordID:       prof.DiscordID,
		fieldCustomerRef:     prof.BillingCustomerRef,
		fieldSubscriptionRef: prof.BillingSubscriptionRef,
		fieldPlanID:          prof.PlanID,
	}
	for k, v := range optional {
		if v != "" {
			data[k] = v
		}
	}
	return data
}

func profileUpdates(upd subsync.ProfileUpdate) []firestore.Update {
	updates := make([]firestore.Update, 0, 5)
	set := func(path, value string) {
		if value == "" {
			updates = append(updates, firestore.Update{Path: path, Value: firestore.Delete})
			return
		}
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}

	if upd.SubscriptionStatus != nil {
		set(fieldStatus, string(subsync.ParseStatus(string(*upd.SubscriptionStatus))))
	}
	if upd.PlanID != nil {
		set(fieldPlanID, *upd.PlanID)
	}
	if upd.BillingCustomerRef != nil {
		set(fieldCustomerRef, *upd.BillingCustomerRef)
	}
	if upd.BillingSubscriptionRef != nil {
		set(fieldSubscriptionRef, *upd.BillingSubscriptionRef)
	}
	return append(updates, firestore.Update{Path: fieldUpdatedAt, Value: firestore.ServerTimestamp})
}

func profileFromData(id string, data map[string]interface{}) *subsync.Profile {
	return &subsync.Profile{
		ID:                     id,
		Email:                  getString(data, fieldEmail),
		Username:               getString(data, fieldUsername),
		DiscordID:              getString(data, fieldDiscordID),
		BillingCustomerRef:     getString(data, fieldCustomerRef),
		BillingSubscriptionRef: getString(data, fieldSubscriptionRef),
		PlanID:                 getString(data, fieldPlanID),
		SubscriptionStatus:     subsync.ParseStatus(getString(data, fieldStatus)),
		UpdatedAt:              getTime(data, fieldUpdatedAt),
	}
}

// Helper functions for type conversion
func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getTime(data map[string]interface{}, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}
