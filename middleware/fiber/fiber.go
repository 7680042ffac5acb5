// Package fiber provides Fiber middleware that gates routes on an active subscription
package fiber

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// ProfileKey is the Fiber locals key holding the resolved profile.
const ProfileKey = "subsync.profile"

// UserIDExtractor extracts the user ID from a Fiber context
// Return empty string if user is not authenticated
type UserIDExtractor func(c *fiber.Ctx) string

// Config holds middleware configuration
type Config struct {
	// Store resolves the caller's profile (required)
	Store subsync.ProfileStore

	// GetUserID extracts user ID from context (required)
	GetUserID UserIDExtractor

	// InactiveStatusCode is returned when the caller is not subscribed
	// Default: 402 (Payment Required)
	InactiveStatusCode int

	OnInactive     func(c *fiber.Ctx, profile *subsync.Profile) error
	OnUnauthorized func(c *fiber.Ctx) error
	OnError        func(c *fiber.Ctx, err error) error
}

// RequireActive creates Fiber middleware that rejects callers without an active
// subscription and stores the resolved profile in c.Locals(ProfileKey).
func RequireActive(cfg Config) fiber.Handler {
	// Validate required configuration at startup (fail fast)
	if cfg.Store == nil {
		panic("subsync/fiber: Config.Store is required")
	}
	if cfg.GetUserID == nil {
		panic("subsync/fiber: Config.GetUserID is required")
	}
	if cfg.InactiveStatusCode == 0 {
		cfg.InactiveStatusCode = fiber.StatusPaymentRequired
	}
	if cfg.OnUnauthorized == nil {
		cfg.OnUnauthorized = defaultUnauthorized
	}
	if cfg.OnError == nil {
		cfg.OnError = defaultError
	}

	return func(c *fiber.Ctx) error {
		userID := cfg.GetUserID(c)
		if userID == "" {
			return cfg.OnUnauthorized(c)
		}

		prof, err := cfg.Store.GetProfile(c.UserContext(), userID)
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
			return c.Status(cfg.InactiveStatusCode).JSON(fiber.Map{
				"error":  "Active subscription required",
				"status": string(prof.SubscriptionStatus),
			})
		}

		c.Locals(ProfileKey, prof)
		return c.Next()
	}
}

func defaultUnauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
}

func defaultError(c *fiber.Ctx, _ error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
}

// GetProfile returns the profile stored by RequireActive
func GetProfile(c *fiber.Ctx) (*subsync.Profile, bool) {
	prof, ok := c.Locals(ProfileKey).(*subsync.Profile)
	return prof, ok
}

// FromLocals returns a UserIDExtractor that gets user ID from c.Locals
func FromLocals(key string) UserIDExtractor {
	return func(c *fiber.Ctx) string {
		if str, ok := c.Locals(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns a UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}
