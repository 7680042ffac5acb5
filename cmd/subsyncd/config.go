package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
	backendMemory    = "memory"
	backendPostgres  = "postgres"
	backendFirestore = "firestore"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripePriceWeek     string `env:"STRIPE_PRICE_WEEK"`
	StripePriceMonth    string `env:"STRIPE_PRICE_MONTH"`
	StripePriceYear     string `env:"STRIPE_PRICE_YEAR"`

	SiteURL          string `env:"SITE_URL" envDefault:"http://localhost:3000"`
	BotAPIURL        string `env:"BOT_API_URL"`
	EdgeSharedSecret string `env:"EDGE_SHARED_SECRET"`

	StoreBackend       string        `env:"STORE_BACKEND" envDefault:"memory"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	RedisURL           string        `env:"REDIS_URL"`
	RedisProfileTTL    time.Duration `env:"REDIS_PROFILE_TTL" envDefault:"10m"`
	FirestoreProjectID string        `env:"FIRESTORE_PROJECT_ID"`

	AdminDiscordIDs  []string `env:"ADMIN_DISCORD_IDS" envSeparator:","`
	UserIDHeader     string   `env:"USER_ID_HEADER" envDefault:"X-User-ID"`
	MetricsNamespace string   `env:"METRICS_NAMESPACE" envDefault:"subsync"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// LoadConfig reads an optional .env file and parses the environment into a Config.
func LoadConfig() (Config, error) {
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.StripeSecretKey) == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	if strings.TrimSpace(c.StripeWebhookSecret) == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	switch c.StoreBackend {
	case backendMemory:
	case backendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case backendFirestore:
		if c.FirestoreProjectID == "" {
			return errors.New("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if strings.TrimSpace(c.UserIDHeader) == "" {
		return errors.New("USER_ID_HEADER must not be empty")
	}
	return nil
}

// PlanPrices returns the configured price ids ordered from lowest to highest tier.
func (c *Config) PlanPrices() []string {
	return []string{c.StripePriceWeek, c.StripePriceMonth, c.StripePriceYear}
}
