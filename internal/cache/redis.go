package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the shared OfferCache. Entries are JSON and carry their own
// expiry, which is checked on read in addition to the key TTL.
type Redis struct {
	client *redis.Client
	maxTTL time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, maxTTL time.Duration) *Redis {
	return &Redis{client: client, maxTTL: maxTTL, now: time.Now}
}

func (r *Redis) GetOffer(ctx context.Context, bundleID, attributionID string) (Offer, bool, error) {
	key := offerKey(bundleID, attributionID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Offer{}, false, nil
	}
	if err != nil {
		return Offer{}, false, fmt.Errorf("get %s: %w", key, err)
	}

	var o Offer
	if err := json.Unmarshal(raw, &o); err != nil {
		_ = r.client.Del(ctx, key).Err()
		return Offer{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	if o.Expired(r.now()) {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return Offer{}, false, fmt.Errorf("evict %s: %w", key, err)
		}
		return Offer{}, false, nil
	}
	return o, true, nil
}

func (r *Redis) SetOffer(ctx context.Context, bundleID, attributionID string, o Offer) error {
	ttl := entryTTL(o, r.now(), r.maxTTL)
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	key := offerKey(bundleID, attributionID)
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) DeleteOffer(ctx context.Context, bundleID, attributionID string) error {
	key := offerKey(bundleID, attributionID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
