// Package cache holds the in-process snapshot container and the edge cache
// that memoizes resolved offer URLs per (bundle, attribution id).
package cache

import (
	"context"
	"fmt"
	"time"
)

// Offer is a resolved remote-surface URL and its expiry in epoch seconds.
type Offer struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires"`
	CreatedAt int64  `json:"created"`
}

// Expired reports whether the offer is past its expiry at now.
func (o Offer) Expired(now time.Time) bool {
	return now.Unix() >= o.ExpiresAt
}

type OfferCache interface {
	GetOffer(ctx context.Context, bundleID, attributionID string) (Offer, bool, error)
	SetOffer(ctx context.Context, bundleID, attributionID string, o Offer) error
	DeleteOffer(ctx context.Context, bundleID, attributionID string) error
	Ping(ctx context.Context) error
}

func offerKey(bundleID, attributionID string) string {
	return fmt.Sprintf("offer:%s:%s", bundleID, attributionID)
}

// entryTTL bounds how long an offer lives in the cache: never past its own
// expiry, never longer than max.
func entryTTL(o Offer, now time.Time, max time.Duration) time.Duration {
	left := time.Unix(o.ExpiresAt, 0).Sub(now)
	if left < max {
		return left
	}
	return max
}
