// Package rolesync talks to the Discord bot that owns guild roles: it pushes role-sync
// notifications after subscription transitions and asks about guild membership.
package rolesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

const (
	roleSyncPath        = "/api/role-sync"
	checkMembershipPath = "/api/check-membership"

	defaultTimeout          = 10 * time.Second
	defaultFailureThreshold = 5
	defaultResetTimeout     = 30 * time.Second
	maxResponseBytes        = 64 * 1024
)

var (
	// ErrNotConfigured is returned when the bot URL or shared secret is missing.
	ErrNotConfigured = errors.New("bot api not configured")

	// ErrUnexpectedStatus is returned for non-2xx bot responses.
	ErrUnexpectedStatus = errors.New("unexpected bot api status")
)

// Config configures a Client.
type Config struct {
	// BaseURL is the bot API root, e.g. https://bot.example.com
	BaseURL string

	// Secret is the shared secret sent in every request body.
	Secret string

	// HTTPClient is optional. If nil, a client with a 10s timeout is used.
	HTTPClient *http.Client

	// Breaker is optional. If nil, a breaker opening after 5 consecutive
	// failures for 30s is used.
	Breaker CircuitBreaker

	Logger subsync.Logger
}

// Client is the bot API client. It implements subsync.Notifier.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	breaker    CircuitBreaker
	logger     subsync.Logger
}

var _ subsync.Notifier = (*Client)(nil)

// NewClient creates a bot API client. An unconfigured client is valid: notifications
// fail with ErrNotConfigured and membership checks report every user as a member.
func NewClient(config Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(config.BaseURL), "/"),
		secret:     config.Secret,
		httpClient: config.HTTPClient,
		breaker:    config.Breaker,
		logger:     config.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.logger == nil {
		c.logger = &subsync.NoopLogger{}
	}
	if c.breaker == nil {
		logger := c.logger
		c.breaker = NewBreaker(defaultFailureThreshold, defaultResetTimeout, func(state BreakerState) {
			logger.Warn("bot api circuit breaker state changed", subsync.F("state", string(state)))
		})
	}
	return c
}

// Configured reports whether the bot URL and shared secret are both set.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.secret != ""
}

type roleSyncRequest struct {
	DiscordID          string `json:"discord_id"`
	SubscriptionStatus string `json:"subscription_status"`
	ActionContext      string `json:"action_context"`
	OldStatus          string `json:"old_status,omitempty"`
	Username           string `json:"username,omitempty"`
	StripeCustomerID   string `json:"stripe_customer_id,omitempty"`
	Secret             string `json:"secret"`
}

// NotifyRoleSync implements subsync.Notifier.
func (c *Client) NotifyRoleSync(ctx context.Context, rs subsync.RoleSync) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	body := roleSyncRequest{
		DiscordID:          rs.DiscordID,
		SubscriptionStatus: string(rs.Status),
		ActionContext:      string(rs.ActionContext),
		OldStatus:          string(rs.OldStatus),
		Username:           rs.Username,
		StripeCustomerID:   rs.CustomerRef,
		Secret:             c.secret,
	}
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.post(ctx, roleSyncPath, body, nil)
	})
	if err != nil {
		return fmt.Errorf("role sync for %s: %w", rs.DiscordID, err)
	}
	c.logger.Debug("role sync delivered",
		subsync.F("discord_id", rs.DiscordID), subsync.F("action_context", string(rs.ActionContext)))
	return nil
}

type membershipRequest struct {
	DiscordID string `json:"discord_id"`
	Secret    string `json:"secret"`
}

type membershipResponse struct {
	IsMember *bool `json:"isMember"`
}

// CheckMembership asks the bot whether discordID is in the guild. It degrades to
// true when the bot is unconfigured or the call fails; the error is still returned
// so the caller can log it.
func (c *Client) CheckMembership(ctx context.Context, discordID string) (bool, error) {
	if !c.Configured() {
		return true, ErrNotConfigured
	}

	var resp membershipResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.post(ctx, checkMembershipPath, membershipRequest{DiscordID: discordID, Secret: c.secret}, &resp)
	})
	if err != nil {
		return true, fmt.Errorf("check membership for %s: %w", discordID, err)
	}
	if resp.IsMember == nil {
		return false, nil
	}
	return *resp.IsMember, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
