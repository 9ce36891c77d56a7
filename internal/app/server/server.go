// Package server wires configuration, storage, caches and the HTTP router
// into a running process.
package server

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

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"offer-config-engine/internal/api"
	"offer-config-engine/internal/cache"
	"offer-config-engine/internal/config"
	"offer-config-engine/internal/engine"
	"offer-config-engine/internal/jobs"
	"offer-config-engine/internal/listener"
	"offer-config-engine/internal/notify"
	"offer-config-engine/internal/offer"
	"offer-config-engine/internal/storage"
)

func Run(cfg config.Config) error {
	if missing := cfg.ProductionMissing(); len(missing) > 0 {
		return fmt.Errorf("missing production settings: %s", strings.Join(missing, ", "))
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	store, err := storage.New(rootCtx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()
	if cfg.Postgres.Migrate {
		if err := store.Migrate(rootCtx); err != nil {
			return err
		}
	}

	// URL book
	book := engine.NewURLBook(cfg.Offer.DefaultBaseURL, bundleURLs(cfg))
	if err := book.BuildSnapshot(rootCtx, store); err != nil {
		log.Warn().Err(err).Msg("initial bundle url snapshot; serving static config")
	}

	offers, closeCache := newOfferCache(rootCtx, cfg)
	defer closeCache()

	relay, err := newRelay(rootCtx, cfg)
	if err != nil {
		return err
	}

	handler, err := newHandler(cfg, store, book, offers, relay)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Listener (LISTEN/NOTIFY)
	go listener.ListenAndRefresh(rootCtx, store, book, cfg.Backoff())

	// Retention
	sched, err := jobs.Schedule(rootCtx, cfg.Retention.Schedule, jobs.NewCleanup(store, cfg.Retention.RequestDays))
	if err != nil {
		return err
	}
	sched.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("relay", relay.Name()).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-waitForSignal():
		log.Info().Msg("shutdown...")
	case err := <-errCh:
		log.Error().Err(err).Msg("server crashed")
		cancel()
		<-sched.Stop().Done()
		return err
	}

	// Graceful shutdown
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	cancel() // stop background goroutines
	<-sched.Stop().Done()
	return srv.Shutdown(shCtx)
}

func bundleURLs(cfg config.Config) []engine.BundleURL {
	out := make([]engine.BundleURL, 0, len(cfg.Offer.BundleURLs))
	for _, b := range cfg.Offer.BundleURLs {
		out = append(out, engine.BundleURL{BundleID: b.BundleID, BaseURL: b.URL})
	}
	return out
}

// newOfferCache returns the Redis cache when it is configured and reachable,
// else the in-process one.
func newOfferCache(ctx context.Context, cfg config.Config) (cache.OfferCache, func()) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemory(cfg.OfferTTL()), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; using in-memory offer cache")
		_ = client.Close()
		return cache.NewMemory(cfg.OfferTTL()), func() {}
	}
	return cache.NewRedis(client, cfg.OfferTTL()), func() { _ = client.Close() }
}

func newRelay(ctx context.Context, cfg config.Config) (notify.Relay, error) {
	n := cfg.Notifications
	if n.FCMProjectID == "" || n.FCMCredentialsFile == "" {
		log.Warn().Msg("fcm not configured; notifications are logged only")
		return notify.LogRelay{}, nil
	}
	fcm, err := notify.NewFCM(ctx, n.FCMEndpoint, n.FCMProjectID, n.FCMCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("init fcm relay: %w", err)
	}
	return fcm, nil
}

type dataStore interface {
	offer.RecordStore
	notify.TokenStore
	api.BundleURLStore
	api.Pinger
}

func newHandler(cfg config.Config, store dataStore, book *engine.URLBook, offers cache.OfferCache, relay notify.Relay) (http.Handler, error) {
	docs, err := api.NewDocs()
	if err != nil {
		return nil, err
	}
	svc := offer.New(store, offers, engine.NewEngine(book), engine.SystemClock)
	h := api.Handlers{
		Config:        api.NewConfigHandler(svc),
		Notifications: api.NewNotificationHandler(notify.NewService(relay, store)),
		BundleURLs:    api.NewBundleURLHandler(store, book),
		Health:        api.NewHealthHandler(cfg.Server.Environment, store, offers, relay.Name()),
		Docs:          docs,
	}
	return api.Router(h, api.RouterOptions{
		Limiter:     api.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
		AdminAPIKey: cfg.Server.AdminAPIKey,
		Timeout:     cfg.RequestTimeout(),
	}), nil
}

func waitForSignal() <-chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c
}
