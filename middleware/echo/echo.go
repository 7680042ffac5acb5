// Package echo provides Echo middleware that gates routes on an active subscription
package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// ProfileKey is the Echo context key holding the resolved profile.
const ProfileKey = "subsync.profile"

// UserIDExtractor extracts the user ID from an Echo context
// Return empty string if user is not authenticated
type UserIDExtractor func(c echo.Context) string

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
	OnInactive func(c echo.Context, profile *subsync.Profile) error

	// OnUnauthorized is called when user is not authenticated or has no profile
	OnUnauthorized func(c echo.Context) error

	// OnError is called when an internal error occurs
	OnError func(c echo.Context, err error) error
}

// RequireActive creates Echo middleware that rejects callers without an active
// subscription and stores the resolved profile under ProfileKey.
func RequireActive(cfg Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		panic("subsync/echo: Config.Store is required")
	}
	if cfg.GetUserID == nil {
		panic("subsync/echo: Config.GetUserID is required")
	}
	if cfg.InactiveStatusCode == 0 {
		cfg.InactiveStatusCode = http.StatusPaymentRequired
	}
	if cfg.OnUnauthorized == nil {
		cfg.OnUnauthorized = defaultUnauthorized
	}
	if cfg.OnError == nil {
		cfg.OnError = defaultError
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := cfg.GetUserID(c)
			if userID == "" {
				return cfg.OnUnauthorized(c)
			}

			prof, err := cfg.Store.GetProfile(c.Request().Context(), userID)
			if errors.Is(err, subsync.ErrProfileNotFound) {
				return cfg.OnUnauthorized(c)
			}
			if err != nil {
				return cfg.OnError(c, err)
			}

			if prof.SubscriptionStatus != subsync.StatusActive {
				if cfg.OnInactive != nil {
					return cfg.OnInactive(c, prof)
				}
				return c.JSON(cfg.InactiveStatusCode, map[string]string{
					"error":  "Active subscription required",
					"status": string(prof.SubscriptionStatus),
				})
			}

			c.Set(ProfileKey, prof)
			return next(c)
		}
	}
}

func defaultUnauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
}

func defaultError(c echo.Context, _ error) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
}

// GetProfile returns the profile stored by RequireActive
func GetProfile(c echo.Context) (*subsync.Profile, bool) {
	prof, ok := c.Get(ProfileKey).(*subsync.Profile)
	return prof, ok
}

// FromContext returns a UserIDExtractor that gets user ID from Echo context values
func FromContext(key string) UserIDExtractor {
	return func(c echo.Context) string {
		if str, ok := c.Get(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns a UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(headerName)
	}
}
