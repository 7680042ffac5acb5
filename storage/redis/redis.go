// Package redis provides a Redis implementation of subsync.ProfileStore.
// Profiles are stored as hashes with a string index from billing customer ref to
// profile id. Partial updates run as a Lua script so the index stays consistent.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

const (
	fieldID              = "id"
	fieldEmail           = "email"
	fieldUsername        = "username"
	fieldDiscordID       = "discord_id"
	fieldCustomerRef     = "customer_ref"
	fieldSubscriptionRef = "subscription_ref"
	fieldPlanID          = "plan_id"
	fieldStatus          = "status"
	fieldUpdatedAt       = "updated_at"
)

// Storage implements subsync.ProfileStore using Redis
type Storage struct {
	client  redis.UniversalClient
	config  Config
	scripts map[string]*redis.Script
	now     func() time.Time
}

var _ subsync.ProfileStore = (*Storage)(nil)

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "subsync:")
	KeyPrefix string

	// ProfileTTL is the TTL for profile keys (0 = no expiration)
	// Set it when Redis is used as the hot layer of a tiered store.
	ProfileTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix:  "subsync:",
		ProfileTTL: 0,
	}
}

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "subsync:"
	}

	s := &Storage{
		client:  client,
		config:  config,
		scripts: make(map[string]*redis.Script),
		now:     time.Now,
	}
	s.loadScripts()
	return s, nil
}

// loadScripts loads and compiles Lua scripts for atomic operations
func (s *Storage) loadScripts() {
	// Partial profile update. ARGV: index prefix, updated_at, ttl, then field/value pairs.
	// An empty value deletes the field.
	s.scripts["update"] = redis.NewScript(`
		local key = KEYS[1]
		if redis.call('EXISTS', key) == 0 then
			return 0
		end

		local indexPrefix = ARGV[1]
		local updatedAt = ARGV[2]
		local ttl = tonumber(ARGV[3])

		for i = 4, #ARGV, 2 do
			local field = ARGV[i]
			local value = ARGV[i + 1]

			if field == 'customer_ref' then
				local old = redis.call('HGET', key, 'customer_ref')
				if old and old ~= value then
					redis.call('DEL', indexPrefix .. old)
				end
				if value ~= '' then
					redis.call('SET', indexPrefix .. value, redis.call('HGET', key, 'id'))
					if ttl > 0 then
						redis.call('EXPIRE', indexPrefix .. value, ttl)
					end
				end
			end

			if value == '' then
				redis.call('HDEL', key, field)
			else
				redis.call('HSET', key, field, value)
			end
		end

		redis.call('HSET', key, 'updated_at', updatedAt)
		if ttl > 0 then
			redis.call('EXPIRE', key, ttl)
		end
		return 1
	`)
}

// PutProfile stores a full profile and indexes its customer ref.
func (s *Storage) PutProfile(ctx context.Context, prof subsync.Profile) error {
	if prof.ID == "" {
		return fmt.Errorf("invalid profile: id is required")
	}
	if prof.UpdatedAt.IsZero() {
		prof.UpdatedAt = s.now().UTC()
	}

	key := s.profileKey(prof.ID)
	ttl := s.config.ProfileTTL

	oldRef, err := s.client.HGet(ctx, key, fieldCustomerRef).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to put profile: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encodeProfile(prof))
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if oldRef != "" && oldRef != prof.BillingCustomerRef {
			pipe.Del(ctx, s.customerKey(oldRef))
		}
		if prof.BillingCustomerRef != "" {
			pipe.Set(ctx, s.customerKey(prof.BillingCustomerRef), prof.ID, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put profile: %w", err)
	}
	return nil
}

// GetProfile implements subsync.ProfileStore
func (s *Storage) GetProfile(ctx context.Context, id string) (*subsync.Profile, error) {
	fields, err := s.client.HGetAll(ctx, s.profileKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(fields) == 0 {
		return nil, subsync.ErrProfileNotFound
	}
	return decodeProfile(fields)
}

// GetProfileByCustomerRef implements subsync.ProfileStore
func (s *Storage) GetProfileByCustomerRef(ctx context.Context, customerRef string) (*subsync.Profile, error) {
	if customerRef == "" {
		return nil, subsync.ErrProfileNotFound
	}
	id, err := s.client.Get(ctx, s.customerKey(customerRef)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, subsync.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}

	prof, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	// A stale index entry must not hand out another customer's profile.
	if prof.BillingCustomerRef != customerRef {
		return nil, subsync.ErrProfileNotFound
	}
	return prof, nil
}

// UpdateProfile implements subsync.ProfileStore
func (s *Storage) UpdateProfile(ctx context.Context, id string, upd subsync.ProfileUpdate) error {
	args := []interface{}{
		s.config.KeyPrefix + "customer:",
		s.now().UTC().Format(time.RFC3339Nano),
		int64(s.config.ProfileTTL / time.Second),
	}
	args = append(args, updateArgs(upd)...)

	res, err := s.scripts["update"].Run(ctx, s.client, []string{s.profileKey(id)}, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if res == 0 {
		return subsync.ErrProfileNotFound
	}
	return nil
}

// Invalidate drops a cached profile and its customer index entry.
func (s *Storage) Invalidate(ctx context.Context, id string) error {
	key := s.profileKey(id)
	ref, err := s.client.HGet(ctx, key, fieldCustomerRef).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to invalidate profile: %w", err)
	}

	keys := []string{key}
	if ref != "" {
		keys = append(keys, s.customerKey(ref))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate profile: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) profileKey(id string) string {
	return s.config.KeyPrefix + "profile:" + id
}

func (s *Storage) customerKey(ref string) string {
	return s.config.KeyPrefix + "customer:" + ref
}

// encodeProfile flattens a profile into hash fields, omitting empty values.
func encodeProfile(prof subsync.Profile) map[string]interface{} {
	fields := map[string]interface{}{
		fieldID:        prof.ID,
		fieldStatus:    string(subsync.ParseStatus(string(prof.SubscriptionStatus))),
		fieldUpdatedAt: prof.UpdatedAt.UTC().Format(time.RFC3339Nano),
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
			fields[k] = v
		}
	}
	return fields
}

func decodeProfile(fields map[string]string) (*subsync.Profile, error) {
	prof := &subsync.Profile{
		ID:                     fields[fieldID],
		Email:                  fields[fieldEmail],
		Username:               fields[fieldUsername],
		DiscordID:              fields[fieldDiscordID],
		BillingCustomerRef:     fields[fieldCustomerRef],
		BillingSubscriptionRef: fields[fieldSubscriptionRef],
		PlanID:                 fields[fieldPlanID],
		SubscriptionStatus:     subsync.ParseStatus(fields[fieldStatus]),
	}
	if prof.ID == "" {
		return nil, fmt.Errorf("corrupt profile hash: missing id")
	}
	if ts := fields[fieldUpdatedAt]; ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("corrupt profile hash: %w", err)
		}
		prof.UpdatedAt = t
	}
	return prof, nil
}

// updateArgs renders the set fields of upd as field/value pairs for the update script.
func updateArgs(upd subsync.ProfileUpdate) []interface{} {
	var args []interface{}
	if upd.SubscriptionStatus != nil {
		args = append(args, fieldStatus, string(subsync.ParseStatus(string(*upd.SubscriptionStatus))))
	}
	if upd.PlanID != nil {
		args = append(args, fieldPlanID, *upd.PlanID)
	}
	if upd.BillingCustomerRef != nil {
		args = append(args, fieldCustomerRef, *upd.BillingCustomerRef)
	}
	if upd.BillingSubscriptionRef != nil {
		args = append(args, fieldSubscriptionRef, *upd.BillingSubscriptionRef)
	}
	return args
}
