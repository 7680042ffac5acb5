// Command subsyncd serves the Stripe webhook, plan-change, checkout and membership
// endpoints and keeps stored subscription state in step with the billing provider.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mihaimyh/subsync/pkg/subsync"
	zerologadapter "github.com/mihaimyh/subsync/pkg/subsync/logger/zerolog"
	"github.com/mihaimyh/subsync/storage/firestore"
	"github.com/mihaimyh/subsync/storage/memory"
	"github.com/mihaimyh/subsync/storage/postgres"
	"github.com/mihaimyh/subsync/storage/redis"
	"github.com/mihaimyh/subsync/storage/tiered"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "subsyncd: %v\n", err)
		os.Exit(1)
	}

	zlog := newZerolog(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal().Err(err).Msg("subsyncd stopped")
	}
}

func run(ctx context.Context, cfg Config, zlog zerolog.Logger) error {
	logger := zerologadapter.NewLogger(&zlog)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	app, err := newApp(cfg, store, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			subsync.F("addr", srv.Addr), subsync.F("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", subsync.F("timeout", cfg.ShutdownTimeout.String()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newZerolog(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var zlog zerolog.Logger
	if strings.EqualFold(cfg.LogFormat, "console") {
		zlog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		zlog = zerolog.New(os.Stdout)
	}
	return zlog.Level(level).With().Timestamp().Str("service", "subsyncd").Logger()
}

// openStore builds the profile store selected by STORE_BACKEND. When REDIS_URL is
// set, the store is fronted by a Redis read-through cache.
func openStore(ctx context.Context, cfg Config, logger subsync.Logger) (subsync.ProfileStore, func(), error) {
	var (
		cold    subsync.ProfileStore
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.StoreBackend {
	case backendPostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.ConnectionString = cfg.DatabaseURL
		pgCfg.Logger = logger
		pg, err := postgres.New(ctx, pgCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		cold = pg
	case backendFirestore:
		client, err := gcfirestore.NewClient(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("open firestore: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		fs, err := firestore.New(client, firestore.Config{})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		cold = fs
	default:
		cold = memory.New()
	}

	if cfg.RedisURL == "" {
		return cold, closeAll, nil
	}

	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	hot, err := redis.New(goredis.NewClient(opts), redis.Config{ProfileTTL: cfg.RedisProfileTTL})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = hot.Close() })
	if err := hot.Ping(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	store, err := tiered.New(tiered.Config{
		Hot:  hot,
		Cold: cold,
		ErrorHandler: func(err error) {
			logger.Warn("profile cache out of step", subsync.F("error", err.Error()))
		},
	})
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return store, closeAll, nil
}
