package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

// MembershipChecker reports whether a Discord user belongs to the guild.
type MembershipChecker interface {
	CheckMembership(ctx context.Context, discordID string) (bool, error)
}

// Config holds configuration for the subscription API handler
type Config struct {
	// Store is the profile store (required)
	Store subsync.ProfileStore

	// Resolver performs plan changes (required)
	Resolver *subsync.Resolver

	// GetUserID extracts the authenticated user ID from the request (required)
	// Similar to middleware/http pattern
	GetUserID func(*http.Request) string

	// Checkout opens checkout sessions. If nil, CreateCheckout responds 503.
	Checkout billing.Provider

	// Membership answers guild membership checks. If nil, every user is a member.
	Membership MembershipChecker

	// AdminDiscordIDs lists the Discord ids allowed to read AdminStats
	AdminDiscordIDs []string

	// SiteURL is the public site root used for checkout redirects
	SiteURL string

	// OnError handles errors (auth, internal, etc.)
	// If nil, writes {"error": "..."} with the mapped status code
	OnError func(http.ResponseWriter, *http.Request, error)

	Logger subsync.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.Resolver == nil {
		return fmt.Errorf("resolver is required")
	}
	if c.GetUserID == nil {
		return fmt.Errorf("getUserID is required")
	}
	return nil
}

// NewHandler creates a new subscription API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &subsync.NoopLogger{}
	}

	admins := make(map[string]struct{}, len(config.AdminDiscordIDs))
	for _, id := range config.AdminDiscordIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}

	return &Handler{
		config:  config,
		admins:  admins,
		siteURL: strings.TrimRight(config.SiteURL, "/"),
	}, nil
}

// Helper functions for common UserID extraction patterns

// FromHeader returns a GetUserID function that extracts user ID from a header
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromContext returns a GetUserID function that extracts user ID from request context
// Uses the same context key pattern as middleware/http
func FromContext(key interface{}) func(*http.Request) string {
	return func(r *http.Request) string {
		if userID, ok := r.Context().Value(key).(string); ok {
			return userID
		}
		return ""
	}
}
