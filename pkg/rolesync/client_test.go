package rolesync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

const testSecret = "edge-secret"

type botServer struct {
	mu       sync.Mutex
	requests []map[string]any
	paths    []string
	status   int
	response string
}

func newBotServer(t *testing.T) (*botServer, *httptest.Server) {
	t.Helper()
	bot := &botServer{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		bot.mu.Lock()
		bot.requests = append(bot.requests, body)
		bot.paths = append(bot.paths, r.URL.Path)
		status, response := bot.status, bot.response
		bot.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return bot, srv
}

func TestNotifyRoleSync(t *testing.T) {
	bot, srv := newBotServer(t)
	client := NewClient(Config{BaseURL: srv.URL + "/", Secret: testSecret})

	err := client.NotifyRoleSync(context.Background(), subsync.RoleSync{
		DiscordID:     "42",
		Status:        subsync.StatusCanceled,
		ActionContext: subsync.ActionSubscriptionDeleted,
		OldStatus:     subsync.StatusActive,
		Username:      "tester",
		CustomerRef:   "cus_1",
	})

	require.NoError(t, err)
	require.Len(t, bot.requests, 1)
	assert.Equal(t, "/api/role-sync", bot.paths[0])
	assert.Equal(t, map[string]any{
		"discord_id":          "42",
		"subscription_status": "canceled",
		"action_context":      "subscription_deleted",
		"old_status":          "active",
		"username":            "tester",
		"stripe_customer_id":  "cus_1",
		"secret":              testSecret,
	}, bot.requests[0])
}

func TestNotifyRoleSync_OmitsEmptyOptionalFields(t *testing.T) {
	bot, srv := newBotServer(t)
	client := NewClient(Config{BaseURL: srv.URL, Secret: testSecret})

	require.NoError(t, client.NotifyRoleSync(context.Background(), subsync.RoleSync{
		DiscordID:     "42",
		Status:        subsync.StatusActive,
		ActionContext: subsync.ActionCheckoutCompleted,
	}))

	require.Len(t, bot.requests, 1)
	assert.NotContains(t, bot.requests[0], "old_status")
	assert.NotContains(t, bot.requests[0], "username")
	assert.NotContains(t, bot.requests[0], "stripe_customer_id")
}

func TestNotifyRoleSync_NotConfigured(t *testing.T) {
	client := NewClient(Config{})

	err := client.NotifyRoleSync(context.Background(), subsync.RoleSync{DiscordID: "42"})

	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, client.Configured())
}

func TestNotifyRoleSync_ErrorStatus(t *testing.T) {
	bot, srv := newBotServer(t)
	bot.status = http.StatusInternalServerError
	client := NewClient(Config{BaseURL: srv.URL, Secret: testSecret})

	err := client.NotifyRoleSync(context.Background(), subsync.RoleSync{DiscordID: "42"})

	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestNotifyRoleSync_BreakerOpens(t *testing.T) {
	bot, srv := newBotServer(t)
	bot.status = http.StatusBadGateway
	client := NewClient(Config{
		BaseURL: srv.URL,
		Secret:  testSecret,
		Breaker: NewBreaker(2, time.Minute, nil),
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, client.NotifyRoleSync(ctx, subsync.RoleSync{DiscordID: "42"}), ErrUnexpectedStatus)
	}
	assert.ErrorIs(t, client.NotifyRoleSync(ctx, subsync.RoleSync{DiscordID: "42"}), ErrCircuitOpen)
	assert.Len(t, bot.requests, 2)
}

func TestCheckMembership(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		want     bool
		wantErr  bool
	}{
		{"member", http.StatusOK, `{"isMember":true}`, true, false},
		{"not a member", http.StatusOK, `{"isMember":false}`, false, false},
		{"missing field", http.StatusOK, `{}`, false, false},
		{"bot error degrades to member", http.StatusInternalServerError, `{}`, true, true},
		{"bad json degrades to member", http.StatusOK, `not json`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot, srv := newBotServer(t)
			bot.status = tt.status
			bot.response = tt.response
			client := NewClient(Config{BaseURL: srv.URL, Secret: testSecret})

			got, err := client.CheckMembership(context.Background(), "42")

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
			require.Len(t, bot.requests, 1)
			assert.Equal(t, "/api/check-membership", bot.paths[0])
			assert.Equal(t, map[string]any{"discord_id": "42", "secret": testSecret}, bot.requests[0])
		})
	}
}

func TestCheckMembership_NotConfigured(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://bot.internal"})

	got, err := client.CheckMembership(context.Background(), "42")

	assert.True(t, got)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCheckMembership_UnreachableBot(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := NewClient(Config{BaseURL: url, Secret: testSecret})

	got, err := client.CheckMembership(context.Background(), "42")

	assert.True(t, got)
	assert.Error(t, err)
}
