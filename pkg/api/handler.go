package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mihaimyh/subsync/pkg/billing"
	"github.com/mihaimyh/subsync/pkg/subsync"
)

const (
	maxUserIDLen      = 255
	maxRequestBytes   = 16 * 1024
	requestIDHeader   = "X-Request-ID"
	checkoutSuccess   = "/dashboard?success=true"
	checkoutCancelled = "/checkout?canceled=true"
)

var (
	// ErrUnauthorized is returned when the request carries no user ID
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller may not use an admin endpoint
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidRequest is returned for malformed request bodies
	ErrInvalidRequest = errors.New("invalid request body")

	// ErrMissingDiscordID is returned when a membership check names no user
	ErrMissingDiscordID = errors.New("discord ID is required")

	// ErrCheckoutUnavailable is returned when no billing provider is configured
	ErrCheckoutUnavailable = errors.New("checkout unavailable")

	// ErrStatsUnsupported is returned when the store cannot aggregate profiles
	ErrStatsUnsupported = errors.New("stats not supported by store")
)

// Handler provides the authenticated subscription endpoints
type Handler struct {
	config  Config
	admins  map[string]struct{}
	siteURL string
}

// UpdateSubscription switches the caller's subscription to another plan tier.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := requestID(w, r)

	prof, err := h.callerProfile(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if prof.BillingCustomerRef == "" {
		h.handleError(w, r, subsync.ErrNoSubscription)
		return
	}

	var req UpdateSubscriptionRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	res, err := h.config.Resolver.ChangePlan(ctx, prof, req.NewPriceID)
	if err != nil {
		h.config.Logger.Error("plan change failed",
			subsync.F("request_id", reqID), subsync.F("user_id", prof.ID), subsync.F("error", err))
		h.handleError(w, r, err)
		return
	}

	h.config.Logger.Info("plan changed",
		subsync.F("request_id", reqID),
		subsync.F("user_id", prof.ID),
		subsync.F("subscription_id", res.SubscriptionID),
		subsync.F("is_upgrade", res.IsUpgrade))
	writeJSON(w, http.StatusOK, UpdateSubscriptionResponse{
		Success:   res.Success,
		IsUpgrade: res.IsUpgrade,
		Message:   res.Message,
		Subscription: SubscriptionRef{
			ID:               res.SubscriptionID,
			CurrentPeriodEnd: res.CurrentPeriodEnd.UTC(),
		},
	})
}

// CreateCheckout opens a subscription checkout session for the caller.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := requestID(w, r)

	if h.config.Checkout == nil {
		h.handleError(w, r, ErrCheckoutUnavailable)
		return
	}

	prof, err := h.callerProfile(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if prof.SubscriptionStatus == subsync.StatusActive {
		h.handleError(w, r, subsync.ErrAlreadySubscribed)
		return
	}

	var req CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	session, err := h.config.Checkout.CreateCheckout(ctx, billing.CheckoutRequest{
		Profile:    prof,
		PriceID:    req.PriceID,
		SuccessURL: h.siteURL + checkoutSuccess,
		CancelURL:  h.siteURL + checkoutCancelled,
	})
	// A customer created before a failed session is still recorded, so the next
	// attempt reuses it.
	if session != nil && session.CreatedCustomer {
		ref := session.CustomerRef
		if uerr := h.config.Store.UpdateProfile(ctx, prof.ID, subsync.ProfileUpdate{BillingCustomerRef: &ref}); uerr != nil {
			h.config.Logger.Error("failed to persist billing customer",
				subsync.F("request_id", reqID), subsync.F("user_id", prof.ID), subsync.F("error", uerr))
		}
	}
	if err != nil {
		h.config.Logger.Error("checkout session failed",
			subsync.F("request_id", reqID), subsync.F("user_id", prof.ID), subsync.F("error", err))
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CheckoutResponse{SessionID: session.ID, URL: session.URL})
}

// CheckMembership reports whether a Discord user is in the guild. It never fails
// because of the bot: an unreachable or unconfigured bot counts as membership.
func (h *Handler) CheckMembership(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	var req MembershipRequest
	if err := decodeBody(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}
	discordID := strings.TrimSpace(req.DiscordID)
	if discordID == "" {
		h.handleError(w, r, ErrMissingDiscordID)
		return
	}

	isMember := true
	if h.config.Membership != nil {
		member, err := h.config.Membership.CheckMembership(r.Context(), discordID)
		if err != nil {
			h.config.Logger.Warn("membership check degraded",
				subsync.F("request_id", reqID), subsync.F("discord_id", discordID), subsync.F("error", err))
		}
		isMember = member
	}

	writeJSON(w, http.StatusOK, MembershipResponse{IsMember: isMember})
}

// GetSubscription returns the caller's stored subscription standing.
func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	requestID(w, r)

	prof, err := h.callerProfile(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SubscriptionResponse{
		UserID: prof.ID,
		Status: string(prof.SubscriptionStatus),
		PlanID: prof.PlanID,
		Tier:   h.config.Resolver.Ranking().Tier(prof.PlanID),
		Active: prof.SubscriptionStatus == subsync.StatusActive,
		HasSub: prof.BillingSubscriptionRef != "",
	})
}

// AdminStats counts profiles per subscription status. Only callers whose Discord id
// is listed in Config.AdminDiscordIDs may read it.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	requestID(w, r)

	prof, err := h.callerProfile(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if _, ok := h.admins[prof.DiscordID]; !ok || prof.DiscordID == "" {
		h.handleError(w, r, ErrForbidden)
		return
	}

	stats, ok := h.config.Store.(subsync.StatsStore)
	if !ok {
		h.handleError(w, r, ErrStatsUnsupported)
		return
	}
	counts, err := stats.CountByStatus(r.Context())
	if err != nil {
		h.handleError(w, r, fmt.Errorf("failed to count profiles: %w", err))
		return
	}

	resp := StatsResponse{ByStatus: make(map[string]int, len(counts))}
	for status, n := range counts {
		resp.ByStatus[string(status)] = n
		resp.Total += n
	}
	writeJSON(w, http.StatusOK, resp)
}

// callerProfile resolves the authenticated user's profile.
func (h *Handler) callerProfile(r *http.Request) (*subsync.Profile, error) {
	userID := h.config.GetUserID(r)
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if len(userID) > maxUserIDLen {
		return nil, fmt.Errorf("%w: user ID too long", ErrInvalidRequest)
	}
	return h.config.Store.GetProfile(r.Context(), userID)
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// requestID echoes the caller's X-Request-ID or assigns a new one.
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, id)
	return id
}

// statusForError maps an error to its HTTP status code and client-facing message.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, subsync.ErrProfileNotFound):
		return http.StatusNotFound, "Profile not found"
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request body"
	case errors.Is(err, ErrMissingDiscordID):
		return http.StatusBadRequest, "Discord ID is required"
	case errors.Is(err, subsync.ErrNoSubscription):
		return http.StatusBadRequest, "No subscription found"
	case errors.Is(err, subsync.ErrMissingPlan):
		return http.StatusBadRequest, "New price ID is required"
	case errors.Is(err, subsync.ErrNoActiveSubscription):
		return http.StatusBadRequest, "No active subscription found"
	case errors.Is(err, subsync.ErrAlreadyOnPlan):
		return http.StatusBadRequest, "Already on this plan"
	case errors.Is(err, subsync.ErrAlreadySubscribed):
		return http.StatusBadRequest, "Already subscribed"
	case errors.Is(err, billing.ErrMissingPrice):
		return http.StatusBadRequest, "Price ID is required"
	case errors.Is(err, ErrCheckoutUnavailable):
		return http.StatusServiceUnavailable, "Checkout unavailable"
	case errors.Is(err, ErrStatsUnsupported):
		return http.StatusNotImplemented, "Stats not supported"
	case errors.Is(err, billing.ErrProviderAPIError):
		return http.StatusInternalServerError, "Billing provider error"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// handleError handles errors with appropriate HTTP status codes
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err)
		return
	}

	code, msg := statusForError(err)
	if code >= http.StatusInternalServerError {
		h.config.Logger.Error("request failed",
			subsync.F("path", r.URL.Path), subsync.F("status", code), subsync.F("error", err))
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
