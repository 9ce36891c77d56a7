package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	var s Snapshot[map[string]string]
	v, ok := s.Load()
	assert.False(t, ok)
	assert.Nil(t, v)

	s.Store(map[string]string{"a": "1"})
	v, ok = s.Load()
	assert.True(t, ok)
	assert.Equal(t, "1", v["a"])
}

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, time.Hour), mr
}

func TestRedis_SetGet(t *testing.T) {
	ctx := context.Background()
	r, mr := setupRedis(t)
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	_, ok, err := r.GetOffer(ctx, "com.example.app", "af1")
	require.NoError(t, err)
	assert.False(t, ok)

	want := Offer{URL: "https://example.com/?af_id=af1", ExpiresAt: now.Unix() + 86400, CreatedAt: now.Unix()}
	require.NoError(t, r.SetOffer(ctx, "com.example.app", "af1", want))

	assert.True(t, mr.Exists("offer:com.example.app:af1"))
	assert.Equal(t, time.Hour, mr.TTL("offer:com.example.app:af1"))

	got, ok, err := r.GetOffer(ctx, "com.example.app", "af1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestRedis_TTLNeverOutlivesOffer(t *testing.T) {
	ctx := context.Background()
	r, mr := setupRedis(t)
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	require.NoError(t, r.SetOffer(ctx, "b", "a", Offer{URL: "u", ExpiresAt: now.Unix() + 60}))
	assert.Equal(t, time.Minute, mr.TTL("offer:b:a"))

	require.NoError(t, r.SetOffer(ctx, "b", "gone", Offer{URL: "u", ExpiresAt: now.Unix() - 1}))
	assert.False(t, mr.Exists("offer:b:gone"))
}

func TestRedis_StoredExpiryEvicts(t *testing.T) {
	ctx := context.Background()
	r, mr := setupRedis(t)
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	require.NoError(t, r.SetOffer(ctx, "b", "a", Offer{URL: "u", ExpiresAt: now.Unix() + 30}))

	// key TTL has not elapsed in miniredis, but the stored expiry has
	now = now.Add(time.Minute)
	_, ok, err := r.GetOffer(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("offer:b:a"))
}

func TestRedis_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	r, mr := setupRedis(t)
	require.NoError(t, mr.Set("offer:b:a", "{not json"))

	_, ok, err := r.GetOffer(ctx, "b", "a")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("offer:b:a"))
}

func TestRedis_Unavailable(t *testing.T) {
	ctx := context.Background()
	r, mr := setupRedis(t)
	mr.Close()

	_, _, err := r.GetOffer(ctx, "b", "a")
	assert.Error(t, err)
	assert.Error(t, r.Ping(ctx))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(5 * time.Minute)
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	o := Offer{URL: "u", ExpiresAt: now.Unix() + 86400}
	require.NoError(t, m.SetOffer(ctx, "b", "a", o))

	got, ok, err := m.GetOffer(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, o, got)

	now = now.Add(6 * time.Minute)
	_, ok, err = m.GetOffer(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	require.NoError(t, m.SetOffer(ctx, "b", "expired", Offer{URL: "u", ExpiresAt: now.Unix()}))
	assert.Equal(t, 0, m.Len())
	assert.NoError(t, m.Ping(ctx))
}

func TestDeleteOffer(t *testing.T) {
	ctx := context.Background()
	r, mr := setupRedis(t)
	o := Offer{URL: "u", ExpiresAt: time.Now().Unix() + 3600}

	require.NoError(t, r.SetOffer(ctx, "b", "a", o))
	require.NoError(t, r.DeleteOffer(ctx, "b", "a"))
	assert.False(t, mr.Exists("offer:b:a"))
	require.NoError(t, r.DeleteOffer(ctx, "b", "missing"))

	m := NewMemory(time.Hour)
	require.NoError(t, m.SetOffer(ctx, "b", "a", o))
	require.NoError(t, m.DeleteOffer(ctx, "b", "a"))
	_, ok, err := m.GetOffer(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
