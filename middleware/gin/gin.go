// Package gin provides Gin middleware that gates routes on an active subscription
package gin

import (
	"errors"
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// ProfileKey is the Gin context key holding the resolved profile.
const ProfileKey = "subsync.profile"

// UserIDExtractor extracts the user ID from a Gin context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *gongin.Context) string

// Config holds middleware configuration
type Config struct {
	// Store resolves the caller's profile (required)
	Store subsync.ProfileStore

	// GetUserID extracts user ID from context (required)
	GetUserID UserIDExtractor

	// InactiveStatusCode is returned when the caller is not subscribed
	// Default: 402 (Payment Required)
	InactiveStatusCode int

	// OnInactive is called when the caller has no active subscription
	// If nil, responds with InactiveStatusCode and the current status
	OnInactive func(c *gongin.Context, profile *subsync.Profile)

	// OnUnauthorized is called when user is not authenticated or has no profile
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *gongin.Context)

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(c *gongin.Context, err error)
}

// RequireActive creates Gin middleware that aborts unless the caller's profile has an
// active subscription. The profile is stored under ProfileKey for later handlers.
func RequireActive(cfg Config) gongin.HandlerFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Store == nil {
		panic("subsync/gin: Config.Store is required")
	}
	if cfg.GetUserID == nil {
		panic("subsync/gin: Config.GetUserID is required")
	}
	if cfg.InactiveStatusCode == 0 {
		cfg.InactiveStatusCode = http.StatusPaymentRequired
	}

	return func(c *gongin.Context) {
		userID := cfg.GetUserID(c)
		if userID == "" {
			unauthorized(cfg, c)
			return
		}

		prof, err := cfg.Store.GetProfile(c.Request.Context(), userID)
		if errors.Is(err, subsync.ErrProfileNotFound) {
			unauthorized(cfg, c)
			return
		}
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.JSON(http.StatusInternalServerError, gongin.H{"error": "Internal Server Error"})
			}
			c.Abort()
			return
		}

		if prof.SubscriptionStatus != subsync.StatusActive {
			if cfg.OnInactive != nil {
				cfg.OnInactive(c, prof)
			} else {
				c.JSON(cfg.InactiveStatusCode, gongin.H{
					"error":  "Active subscription required",
					"status": string(prof.SubscriptionStatus),
				})
			}
			c.Abort()
			return
		}

		c.Set(ProfileKey, prof)
		c.Next()
	}
}

func unauthorized(cfg Config, c *gongin.Context) {
	if cfg.OnUnauthorized != nil {
		cfg.OnUnauthorized(c)
	} else {
		c.JSON(http.StatusUnauthorized, gongin.H{"error": "Unauthorized"})
	}
	c.Abort()
}

// GetProfile returns the profile stored by RequireActive
func GetProfile(c *gongin.Context) (*subsync.Profile, bool) {
	val, exists := c.Get(ProfileKey)
	if !exists {
		return nil, false
	}
	prof, ok := val.(*subsync.Profile)
	return prof, ok
}

// Convenience extractors for User ID

// FromContext returns a UserIDExtractor that gets user ID from Gin context values
// This is the recommended approach for integrating with auth middleware that sets
// user information via c.Set("UserID", "...") or similar.
//
// Example:
//
//	// In your auth middleware:
//	c.Set("UserID", userID)
//
//	// In subscription middleware config:
//	GetUserID: gin.FromContext("UserID")
func FromContext(key string) UserIDExtractor {
	return func(c *gongin.Context) string {
		if val, exists := c.Get(key); exists {
			if str, ok := val.(string); ok {
				return str
			}
		}
		return ""
	}
}

// FromHeader returns a UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
	}
}
