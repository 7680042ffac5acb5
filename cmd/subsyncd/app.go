package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmw "github.com/mihaimyh/subsync/middleware/http"
	"github.com/mihaimyh/subsync/pkg/api"
	"github.com/mihaimyh/subsync/pkg/billing"
	billingprom "github.com/mihaimyh/subsync/pkg/billing/metrics/prometheus"
	"github.com/mihaimyh/subsync/pkg/billing/stripe"
	"github.com/mihaimyh/subsync/pkg/rolesync"
	"github.com/mihaimyh/subsync/pkg/subsync"
	subsyncprom "github.com/mihaimyh/subsync/pkg/subsync/metrics/prometheus"
)

// app holds the wired components behind the HTTP surface.
type app struct {
	cfg      Config
	store    subsync.ProfileStore
	registry *prometheus.Registry
	provider *stripe.Provider
	handler  *api.Handler
}

func newApp(cfg Config, store subsync.ProfileStore, logger subsync.Logger) (*app, error) {
	if logger == nil {
		logger = &subsync.NoopLogger{}
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	syncMetrics := subsyncprom.NewMetrics(registry, cfg.MetricsNamespace)
	billingMetrics := billingprom.NewMetrics(registry, cfg.MetricsNamespace)

	bot := rolesync.NewClient(rolesync.Config{
		BaseURL: cfg.BotAPIURL,
		Secret:  cfg.EdgeSharedSecret,
		Breaker: rolesync.NewBreaker(5, 30*time.Second, func(state rolesync.BreakerState) {
			logger.Warn("bot api circuit breaker changed state", subsync.F("state", string(state)))
		}),
		Logger: logger,
	})
	if !bot.Configured() {
		logger.Warn("bot api not configured, role-sync notifications are disabled")
	}

	processor, err := subsync.NewProcessor(subsync.ProcessorConfig{
		Store:    store,
		Notifier: bot,
		Logger:   logger,
		Metrics:  syncMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	provider, err := stripe.NewProvider(stripe.Config{
		Config: billing.Config{
			Processor: processor,
			Logger:    logger,
			Metrics:   billingMetrics,
		},
		StripeAPIKey:        cfg.StripeSecretKey,
		StripeWebhookSecret: cfg.StripeWebhookSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("stripe provider: %w", err)
	}

	resolver, err := subsync.NewResolver(subsync.ResolverConfig{
		Billing: provider,
		Ranking: subsync.NewPlanRanking(cfg.PlanPrices()...),
		Logger:  logger,
		Metrics: syncMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	handler, err := api.NewHandler(api.Config{
		Store:           store,
		Resolver:        resolver,
		GetUserID:       api.FromHeader(cfg.UserIDHeader),
		Checkout:        provider,
		Membership:      bot,
		AdminDiscordIDs: cfg.AdminDiscordIDs,
		SiteURL:         cfg.SiteURL,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("api handler: %w", err)
	}

	return &app{
		cfg:      cfg,
		store:    store,
		registry: registry,
		provider: provider,
		handler:  handler,
	}, nil
}

// Router returns the HTTP routes served by subsyncd.
func (a *app) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/webhook/stripe", a.provider.WebhookHandler())

		r.Post("/update-subscription", a.handler.UpdateSubscription)
		r.Post("/checkout", a.handler.CreateCheckout)
		r.Post("/check-membership", a.handler.CheckMembership)
		r.Get("/subscription", a.handler.GetSubscription)
		r.Get("/admin/stats", a.handler.AdminStats)

		r.Group(func(r chi.Router) {
			r.Use(httpmw.RequireActive(httpmw.Config{
				Store:     a.store,
				GetUserID: httpmw.FromHeader(a.cfg.UserIDHeader),
			}))
			r.Get("/premium/ping", premiumPing)
		})
	})
	return r
}

// premiumPing answers entitled callers with their plan.
func premiumPing(w http.ResponseWriter, r *http.Request) {
	prof, _ := httpmw.ProfileFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"plan_id": prof.PlanID,
	})
}
