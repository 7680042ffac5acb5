// Package http provides HTTP middleware that gates handlers on an active subscription
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// UserIDExtractor extracts the user ID from an HTTP request
// Return empty string if user is not authenticated
type UserIDExtractor func(r *http.Request) string

// Config holds middleware configuration
type Config struct {
	// Store resolves the caller's profile (required)
	Store subsync.ProfileStore

	// GetUserID extracts user ID from request (required)
	GetUserID UserIDExtractor

	// OnInactive is called when the caller has no active subscription
	// If nil, returns 402 Payment Required
	OnInactive func(w http.ResponseWriter, r *http.Request, profile *subsync.Profile)

	// OnUnauthorized is called when user is not authenticated or has no profile
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// ContextKey is a type for context keys
type ContextKey string

const (
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "subsync:userID"

	// ProfileKey is the context key for the resolved profile
	ProfileKey ContextKey = "subsync:profile"
)

// RequireActive creates an HTTP middleware that only lets callers with an active
// subscription through. The resolved profile is stored in the request context.
func RequireActive(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := config.GetUserID(r)
			if userID == "" {
				unauthorized(config, w, r)
				return
			}

			prof, err := config.Store.GetProfile(r.Context(), userID)
			if err != nil {
				if errors.Is(err, subsync.ErrProfileNotFound) {
					unauthorized(config, w, r)
					return
				}
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
				return
			}

			if prof.SubscriptionStatus != subsync.StatusActive {
				if config.OnInactive != nil {
					config.OnInactive(w, r, prof)
				} else {
					http.Error(w, "Active subscription required", http.StatusPaymentRequired)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), prof)))
		})
	}
}

// HandlerFunc creates the RequireActive middleware for http.HandlerFunc
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := RequireActive(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			middleware(next).ServeHTTP(w, r)
		}
	}
}

func unauthorized(config Config, w http.ResponseWriter, r *http.Request) {
	if config.OnUnauthorized != nil {
		config.OnUnauthorized(w, r)
		return
	}
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// FromContext returns an UserIDExtractor that gets user ID from request context
func FromContext(key ContextKey) UserIDExtractor {
	return func(r *http.Request) string {
		if userID, ok := r.Context().Value(key).(string); ok {
			return userID
		}
		return ""
	}
}

// FromHeader returns an UserIDExtractor that gets user ID from a header
func FromHeader(headerName string) UserIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// WithUserID adds user ID to request context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithProfile adds the resolved profile to request context
func WithProfile(ctx context.Context, profile *subsync.Profile) context.Context {
	return context.WithValue(ctx, ProfileKey, profile)
}

// ProfileFromContext returns the profile stored by RequireActive, if any
func ProfileFromContext(ctx context.Context) (*subsync.Profile, bool) {
	prof, ok := ctx.Value(ProfileKey).(*subsync.Profile)
	return prof, ok
}
