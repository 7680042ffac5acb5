// Package postgres provides a PostgreSQL implementation of subsync.ProfileStore.
// Profiles live in a single "profiles" table; every update is one row-scoped statement.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

const profileColumns = `id, email, username, discord_id, stripe_customer_id, stripe_subscription_id,
	plan_id, subscription_status, updated_at`

// Storage implements subsync.ProfileStore using PostgreSQL
type Storage struct {
	pool   *pgxpool.Pool
	config Config
	logger subsync.Logger
}

var (
	_ subsync.ProfileStore = (*Storage)(nil)
	_ subsync.StatsStore   = (*Storage)(nil)
)

// Config holds PostgreSQL storage configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// AutoMigrate applies the embedded migrations in New
	AutoMigrate bool

	Logger subsync.Logger
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		AutoMigrate:     true,
	}
}

// New creates a new PostgreSQL storage adapter
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %v", subsync.ErrStorageUnavailable, err)
	}

	s := &Storage{pool: pool, config: config, logger: config.Logger}
	if s.logger == nil {
		s.logger = &subsync.NoopLogger{}
	}

	if config.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the PostgreSQL connection pool
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the PostgreSQL connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// PutProfile inserts or replaces a profile row.
func (s *Storage) PutProfile(ctx context.Context, prof subsync.Profile) error {
	if prof.ID == "" {
		return fmt.Errorf("invalid profile: id is required")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (id, email, username, discord_id, stripe_customer_id,
				stripe_subscription_id, plan_id, subscription_status, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (id) DO UPDATE SET
				email = EXCLUDED.email,
				username = EXCLUDED.username,
				discord_id = EXCLUDED.discord_id,
				stripe_customer_id = EXCLUDED.stripe_customer_id,
				stripe_subscription_id = EXCLUDED.stripe_subscription_id,
				plan_id = EXCLUDED.plan_id,
				subscription_status = EXCLUDED.subscription_status,
				updated_at = EXCLUDED.updated_at`,
		prof.ID,
		nullable(prof.Email),
		nullable(prof.Username),
		nullable(prof.DiscordID),
		nullable(prof.BillingCustomerRef),
		nullable(prof.BillingSubscriptionRef),
		nullable(prof.PlanID),
		nullableStatus(prof.SubscriptionStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to put profile: %w", err)
	}
	return nil
}

// GetProfile implements subsync.ProfileStore
func (s *Storage) GetProfile(ctx context.Context, id string) (*subsync.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	prof, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return prof, nil
}

// GetProfileByCustomerRef implements subsync.ProfileStore
func (s *Storage) GetProfileByCustomerRef(ctx context.Context, customerRef string) (*subsync.Profile, error) {
	if customerRef == "" {
		return nil, subsync.ErrProfileNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE stripe_customer_id = $1`, customerRef)
	prof, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by customer: %w", err)
	}
	return prof, nil
}

// UpdateProfile implements subsync.ProfileStore. Only the fields set on the update
// are written; an empty string writes NULL.
func (s *Storage) UpdateProfile(ctx context.Context, id string, upd subsync.ProfileUpdate) error {
	query, args := buildUpdate(id, upd)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subsync.ErrProfileNotFound
	}
	return nil
}

// CountByStatus implements subsync.StatsStore
func (s *Storage) CountByStatus(ctx context.Context) (map[subsync.Status]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(subscription_status, ''), count(*) FROM profiles GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}
	defer rows.Close()

	counts := make(map[subsync.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[subsync.ParseStatus(status)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}
	return counts, nil
}

// buildUpdate renders a single-row UPDATE for the fields present on upd.
func buildUpdate(id string, upd subsync.ProfileUpdate) (string, []interface{}) {
	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if upd.SubscriptionStatus != nil {
		add("subscription_status", nullableStatus(*upd.SubscriptionStatus))
	}
	if upd.PlanID != nil {
		add("plan_id", nullable(*upd.PlanID))
	}
	if upd.BillingCustomerRef != nil {
		add("stripe_customer_id", nullable(*upd.BillingCustomerRef))
	}
	if upd.BillingSubscriptionRef != nil {
		add("stripe_subscription_id", nullable(*upd.BillingSubscriptionRef))
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := "UPDATE profiles SET " + strings.Join(sets, ", ") + " WHERE id = $" + strconv.Itoa(len(args))
	return query, args
}

func scanProfile(row pgx.Row) (*subsync.Profile, error) {
	var (
		prof                                    subsync.Profile
		email, username, discordID, customerRef *string
		subscriptionRef, planID, status         *string
	)
	err := row.Scan(&prof.ID, &email, &username, &discordID, &customerRef,
		&subscriptionRef, &planID, &status, &prof.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subsync.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	prof.Email = deref(email)
	prof.Username = deref(username)
	prof.DiscordID = deref(discordID)
	prof.BillingCustomerRef = deref(customerRef)
	prof.BillingSubscriptionRef = deref(subscriptionRef)
	prof.PlanID = deref(planID)
	prof.SubscriptionStatus = subsync.ParseStatus(deref(status))
	return &prof, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullableStatus stores StatusNone as NULL.
func nullableStatus(st subsync.Status) *string {
	if st == "" || st == subsync.StatusNone {
		return nil
	}
	s := string(st)
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
