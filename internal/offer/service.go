// Package offer runs a config request end to end: classify the install,
// decide the experience, and record the outcome without letting
// persistence failures change the answer.
package offer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"offer-config-engine/internal/apperr"
	"offer-config-engine/internal/attribution"
	"offer-config-engine/internal/cache"
	"offer-config-engine/internal/engine"
	"offer-config-engine/internal/notify"
	"offer-config-engine/internal/observability"
	"offer-config-engine/internal/storage"
)

type RecordStore interface {
	GetByAttributionID(ctx context.Context, id string) (storage.Record, bool, error)
	UpsertRecord(ctx context.Context, r storage.Record) error
	SetMode(ctx context.Context, id string, mode engine.Mode) error
	SetSurfaceURL(ctx context.Context, id, url string, expiresAt int64) error
	StorePushToken(ctx context.Context, t storage.PushToken) error
	LogRequest(ctx context.Context, r storage.RequestLog) (uuid.UUID, error)
}

type Service struct {
	store RecordStore
	cache cache.OfferCache
	eng   *engine.Engine
	clock engine.Clock
}

func New(store RecordStore, offers cache.OfferCache, eng *engine.Engine, clock engine.Clock) *Service {
	if clock == nil {
		clock = engine.SystemClock
	}
	return &Service{store: store, cache: offers, eng: eng, clock: clock}
}

type Outcome struct {
	Decision       engine.Decision
	Classification attribution.Classification
}

// Process validates, classifies and decides. Only validation and
// configuration errors are returned; store and cache failures are logged.
func (s *Service) Process(ctx context.Context, p attribution.Payload, client storage.Client) (Outcome, error) {
	start := time.Now()
	if err := attribution.Validate(p); err != nil {
		return Outcome{}, err
	}
	c, err := attribution.Classify(p)
	if err != nil {
		return Outcome{}, err
	}
	observability.QualityScore.Observe(float64(c.QualityScore))

	s.registerDevice(ctx, p)

	d, err := s.eng.Decide(p, c, s.clock)
	if err != nil {
		observability.Decisions.WithLabelValues("error").Inc()
		s.logRequest(ctx, p, client, c, engine.Decision{}, storage.StatusFailed)
		return Outcome{}, err
	}
	observability.Decisions.WithLabelValues(string(d.Mode())).Inc()

	s.recordDecision(ctx, p, d)
	s.logRequest(ctx, p, client, c, d, storage.StatusProcessed)

	log.Info().
		Str("bundle_id", p.BundleID).
		Str("af_id", p.AttributionID).
		Str("platform", string(p.Platform)).
		Bool("non_organic", c.IsNonOrganic).
		Int("quality_score", c.QualityScore).
		Str("mode", string(d.Mode())).
		Dur("took", time.Since(start)).
		Msg("config decided")
	return Outcome{Decision: d, Classification: c}, nil
}

func (s *Service) registerDevice(ctx context.Context, p attribution.Payload) {
	s.bestEffort("upsert_record", p.AttributionID, s.store.UpsertRecord(ctx, storage.Record{
		AttributionID:     p.AttributionID,
		BundleID:          p.BundleID,
		Platform:          string(p.Platform),
		StoreID:           p.StoreID,
		Locale:            p.Locale,
		FirebaseProjectID: p.FirebaseProjectID,
		IsFirstLaunch:     p.IsFirstLaunch != nil && *p.IsFirstLaunch,
	}))

	if p.PushToken == "" {
		return
	}
	if !notify.LooksLikeFCMToken(p.PushToken) {
		log.Debug().Str("af_id", p.AttributionID).Msg("push token does not look like an FCM token")
	}
	s.bestEffort("store_push_token", p.AttributionID, s.store.StorePushToken(ctx, storage.PushToken{
		AttributionID: p.AttributionID,
		Token:         p.PushToken,
		Platform:      string(p.Platform),
		BundleID:      p.BundleID,
		Active:        true,
	}))
}

func (s *Service) recordDecision(ctx context.Context, p attribution.Payload, d engine.Decision) {
	s.bestEffort("set_mode", p.AttributionID, s.store.SetMode(ctx, p.AttributionID, d.Mode()))
	if !d.ServeRemoteSurface {
		// A previously served URL must not outlive the mode switch.
		if err := s.cache.DeleteOffer(ctx, p.BundleID, p.AttributionID); err != nil {
			log.Warn().Err(err).Str("af_id", p.AttributionID).Msg("offer cache evict failed")
		}
		return
	}
	s.bestEffort("set_surface_url", p.AttributionID, s.store.SetSurfaceURL(ctx, p.AttributionID, d.URL, d.ExpiresAt))

	err := s.cache.SetOffer(ctx, p.BundleID, p.AttributionID, cache.Offer{
		URL:       d.URL,
		ExpiresAt: d.ExpiresAt,
		CreatedAt: s.clock.NowMillis() / 1000,
	})
	if err != nil {
		log.Warn().Err(err).Str("af_id", p.AttributionID).Msg("offer cache write failed")
	}
}

func (s *Service) logRequest(ctx context.Context, p attribution.Payload, client storage.Client,
	c attribution.Classification, d engine.Decision, status storage.RequestStatus) {
	_, err := s.store.LogRequest(ctx, storage.RequestLog{
		AttributionID: p.AttributionID,
		BundleID:      p.BundleID,
		Platform:      string(p.Platform),
		Type:          storage.RequestConfig,
		Status:        status,
		UserAgent:     client.UserAgent,
		IP:            client.IP,
		Metadata: map[string]any{
			"non_organic":   c.IsNonOrganic,
			"quality_score": c.QualityScore,
			"campaign":      c.Campaign,
			"mode":          string(d.Mode()),
			"locale":        p.Locale,
			"install_time":  formatTime(p.InstallTime),
			"click_time":    formatTime(p.ClickTime),
		},
	})
	s.bestEffort("log_request", p.AttributionID, err)
}

// formatTime renders an optional payload timestamp; zero means absent.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (s *Service) bestEffort(op, attributionID string, err error) {
	if err == nil {
		return
	}
	observability.StoreErrors.WithLabelValues(op).Inc()
	log.Warn().Err(err).Str("op", op).Str("af_id", attributionID).Msg("persistence failed; continuing")
}

// Lookup returns the current unexpired surface URL of an install, checking
// the edge cache before the record store.
func (s *Service) Lookup(ctx context.Context, bundleID, attributionID string) (cache.Offer, error) {
	o, ok, err := s.cache.GetOffer(ctx, bundleID, attributionID)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("af_id", attributionID).Msg("offer cache read failed")
	case ok:
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return o, nil
	default:
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	r, found, err := s.store.GetByAttributionID(ctx, attributionID)
	if err != nil {
		return cache.Offer{}, err
	}
	nowSec := s.clock.NowMillis() / 1000
	if !found || r.BundleID != bundleID || r.Mode != engine.ModeRemoteSurface ||
		r.SurfaceURL == "" || r.SurfaceExpiresAt <= nowSec {
		return cache.Offer{}, apperr.New(apperr.NotFound, "No data")
	}

	o = cache.Offer{URL: r.SurfaceURL, ExpiresAt: r.SurfaceExpiresAt, CreatedAt: r.UpdatedAt.Unix()}
	if err := s.cache.SetOffer(ctx, bundleID, attributionID, o); err != nil {
		log.Warn().Err(err).Str("af_id", attributionID).Msg("offer cache backfill failed")
	}
	return o, nil
}
