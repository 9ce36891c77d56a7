package offer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-config-engine/internal/apperr"
	"offer-config-engine/internal/attribution"
	"offer-config-engine/internal/cache"
	"offer-config-engine/internal/engine"
	"offer-config-engine/internal/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	err     error
	records map[string]storage.Record
	tokens  []storage.PushToken
	logs    []storage.RequestLog
}

func newFakeStore() *fakeStore { return &fakeStore{records: map[string]storage.Record{}} }

func (f *fakeStore) GetByAttributionID(_ context.Context, id string) (storage.Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return storage.Record{}, false, f.err
	}
	r, ok := f.records[id]
	return r, ok, nil
}

func (f *fakeStore) UpsertRecord(_ context.Context, r storage.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if old, ok := f.records[r.AttributionID]; ok {
		r.Mode, r.SurfaceURL, r.SurfaceExpiresAt = old.Mode, old.SurfaceURL, old.SurfaceExpiresAt
	} else {
		r.Mode = engine.ModeDefaultExperience
	}
	f.records[r.AttributionID] = r
	return nil
}

func (f *fakeStore) SetMode(_ context.Context, id string, mode engine.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	r := f.records[id]
	r.Mode = mode
	f.records[id] = r
	return nil
}

func (f *fakeStore) SetSurfaceURL(_ context.Context, id, url string, expiresAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	r := f.records[id]
	r.SurfaceURL, r.SurfaceExpiresAt = url, expiresAt
	f.records[id] = r
	return nil
}

func (f *fakeStore) StorePushToken(_ context.Context, t storage.PushToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tokens = append(f.tokens, t)
	return nil
}

func (f *fakeStore) LogRequest(_ context.Context, r storage.RequestLog) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.logs = append(f.logs, r)
	return uuid.New(), nil
}

// The memory cache runs on wall time, so the service clock must too.
var nowMs = time.Now().UnixMilli()

func newService(store RecordStore, offers cache.OfferCache, defaultURL string) *Service {
	eng := engine.NewEngine(engine.NewURLBook(defaultURL, nil))
	return New(store, offers, eng, engine.ClockFunc(func() int64 { return nowMs }))
}

func ptr(b bool) *bool { return &b }

func nonOrganic(id string) attribution.Payload {
	return attribution.Payload{
		AttributionID: id,
		BundleID:      "com.example.app",
		Platform:      attribution.Android,
		Locale:        "en",
		PushToken:     "tok:123",
		Status:        attribution.StatusNonOrganic,
		IsFirstLaunch: ptr(true),
	}
}

func TestProcess_NonOrganicPersistsEverything(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	offers := cache.NewMemory(time.Hour)
	svc := newService(store, offers, "https://offers.example.com/")

	out, err := svc.Process(ctx, nonOrganic("af123"), storage.Client{UserAgent: "sdk/1.0", IP: "10.0.0.1"})
	require.NoError(t, err)
	require.True(t, out.Decision.ServeRemoteSurface)
	assert.Equal(t, nowMs/1000+86400, out.Decision.ExpiresAt)
	assert.Equal(t, 100, out.Classification.QualityScore)

	rec := store.records["af123"]
	assert.Equal(t, engine.ModeRemoteSurface, rec.Mode)
	assert.Equal(t, out.Decision.URL, rec.SurfaceURL)
	assert.Equal(t, out.Decision.ExpiresAt, rec.SurfaceExpiresAt)
	assert.True(t, rec.IsFirstLaunch)

	require.Len(t, store.tokens, 1)
	assert.Equal(t, storage.PushToken{AttributionID: "af123", Token: "tok:123", Platform: "android", BundleID: "com.example.app", Active: true}, store.tokens[0])

	require.Len(t, store.logs, 1)
	assert.Equal(t, storage.StatusProcessed, store.logs[0].Status)
	assert.Equal(t, "10.0.0.1", store.logs[0].IP)
	assert.Equal(t, "remote_surface", store.logs[0].Metadata["mode"])

	cached, ok, err := offers.GetOffer(ctx, "com.example.app", "af123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, out.Decision.URL, cached.URL)
}

func TestProcess_OrganicDefaultExperience(t *testing.T) {
	store := newFakeStore()
	offers := cache.NewMemory(time.Hour)
	svc := newService(store, offers, "https://offers.example.com/")

	p := attribution.Payload{AttributionID: "af124", BundleID: "com.example.app", Platform: attribution.IOS, Status: attribution.StatusOrganic}
	out, err := svc.Process(context.Background(), p, storage.Client{})
	require.NoError(t, err)
	assert.False(t, out.Decision.ServeRemoteSurface)
	assert.False(t, out.Decision.HasURL())
	assert.Equal(t, engine.ModeDefaultExperience, store.records["af124"].Mode)
	assert.Empty(t, store.tokens)
	assert.Equal(t, 0, offers.Len())
}

func TestProcess_ModeTransitions(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, cache.NewMemory(time.Hour), "https://offers.example.com/")
	ctx := context.Background()

	p := nonOrganic("af9")
	_, err := svc.Process(ctx, p, storage.Client{})
	require.NoError(t, err)
	_, err = svc.Process(ctx, p, storage.Client{})
	require.NoError(t, err)
	assert.Equal(t, engine.ModeRemoteSurface, store.records["af9"].Mode)

	p.Status = attribution.StatusOrganic
	_, err = svc.Process(ctx, p, storage.Client{})
	require.NoError(t, err)
	assert.Equal(t, engine.ModeDefaultExperience, store.records["af9"].Mode)
}

func TestProcess_SwitchToDefaultEvictsCachedOffer(t *testing.T) {
	store := newFakeStore()
	offers := cache.NewMemory(time.Hour)
	svc := newService(store, offers, "https://offers.example.com/")
	ctx := context.Background()

	p := nonOrganic("af42")
	_, err := svc.Process(ctx, p, storage.Client{})
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, p.BundleID, "af42")
	require.NoError(t, err)

	p.Status = attribution.StatusOrganic
	_, err = svc.Process(ctx, p, storage.Client{})
	require.NoError(t, err)
	assert.Equal(t, 0, offers.Len())

	_, err = svc.Lookup(ctx, p.BundleID, "af42")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestProcess_StoreFailuresDoNotChangeDecision(t *testing.T) {
	store := newFakeStore()
	store.err = apperr.Wrap(apperr.StoreUnavailable, errors.New("connection refused"), "store")
	svc := newService(store, cache.NewMemory(time.Hour), "https://offers.example.com/")

	out, err := svc.Process(context.Background(), nonOrganic("af1"), storage.Client{})
	require.NoError(t, err)
	assert.True(t, out.Decision.ServeRemoteSurface)
	assert.True(t, out.Decision.HasURL())
}

func TestProcess_Errors(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, cache.NewMemory(time.Hour), "")

	_, err := svc.Process(context.Background(), attribution.Payload{BundleID: "b", Platform: attribution.IOS}, storage.Client{})
	assert.Equal(t, apperr.InvalidPayload, apperr.KindOf(err))
	assert.Empty(t, store.logs)

	_, err = svc.Process(context.Background(), nonOrganic("af1"), storage.Client{})
	assert.Equal(t, apperr.ConfigurationMissing, apperr.KindOf(err))
	require.Len(t, store.logs, 1)
	assert.Equal(t, storage.StatusFailed, store.logs[0].Status)
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	offers := cache.NewMemory(time.Hour)
	svc := newService(store, offers, "https://offers.example.com/")

	_, err := svc.Lookup(ctx, "com.example.app", "nobody")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	// record store fallback, then backfilled into the cache
	store.records["af7"] = storage.Record{
		AttributionID: "af7", BundleID: "com.example.app", Mode: engine.ModeRemoteSurface,
		SurfaceURL: "https://offers.example.com/?af_id=af7", SurfaceExpiresAt: nowMs/1000 + 60,
	}
	o, err := svc.Lookup(ctx, "com.example.app", "af7")
	require.NoError(t, err)
	assert.Equal(t, "https://offers.example.com/?af_id=af7", o.URL)
	assert.Equal(t, 1, offers.Len())

	// wrong bundle
	_, err = svc.Lookup(ctx, "com.other", "af7")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	// expired in the store
	store.records["af8"] = storage.Record{
		AttributionID: "af8", BundleID: "com.example.app", Mode: engine.ModeRemoteSurface,
		SurfaceURL: "https://x/", SurfaceExpiresAt: nowMs / 1000,
	}
	_, err = svc.Lookup(ctx, "com.example.app", "af8")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestLookup_CacheHitSkipsStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	offers := cache.NewMemory(time.Hour)
	svc := newService(store, offers, "https://offers.example.com/")

	_, err := svc.Process(ctx, nonOrganic("af1"), storage.Client{})
	require.NoError(t, err)

	store.err = errors.New("store down")
	o, err := svc.Lookup(ctx, "com.example.app", "af1")
	require.NoError(t, err)
	assert.Contains(t, o.URL, "af_id=af1")
}

func TestBuildSurfaceConfig(t *testing.T) {
	d := engine.Decision{ServeRemoteSurface: true, URL: "https://x/", ExpiresAt: 42}

	android := BuildSurfaceConfig(attribution.Payload{Platform: attribution.Android}, d)
	assert.Equal(t, "notification_icon", android.NotificationSettings.CustomIcon)
	assert.True(t, android.ShowWebView)
	assert.True(t, android.AppSettings.FileUpload)
	assert.Equal(t, int64(42), android.Expires)

	ios := BuildSurfaceConfig(attribution.Payload{Platform: attribution.IOS}, d)
	assert.Empty(t, ios.NotificationSettings.CustomIcon)
}

func TestProcess_LogsAttributionTimes(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, cache.NewMemory(time.Hour), "https://offers.example.com/")

	p := nonOrganic("af77")
	p.InstallTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err := svc.Process(context.Background(), p, storage.Client{})
	require.NoError(t, err)

	require.Len(t, store.logs, 1)
	assert.Equal(t, "2024-05-01T10:00:00Z", store.logs[0].Metadata["install_time"])
	assert.Equal(t, "", store.logs[0].Metadata["click_time"])
}
