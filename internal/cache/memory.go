package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	offer    Offer
	deadline time.Time
}

// Memory is the in-process OfferCache used when no Redis address is
// configured, and in tests.
type Memory struct {
	mu     sync.RWMutex
	items  map[string]memEntry
	maxTTL time.Duration
	now    func() time.Time
}

func NewMemory(maxTTL time.Duration) *Memory {
	return &Memory{items: map[string]memEntry{}, maxTTL: maxTTL, now: time.Now}
}

func (m *Memory) GetOffer(_ context.Context, bundleID, attributionID string) (Offer, bool, error) {
	key := offerKey(bundleID, attributionID)
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return Offer{}, false, nil
	}
	now := m.now()
	if !now.Before(e.deadline) || e.offer.Expired(now) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return Offer{}, false, nil
	}
	return e.offer, true, nil
}

func (m *Memory) SetOffer(_ context.Context, bundleID, attributionID string, o Offer) error {
	now := m.now()
	ttl := entryTTL(o, now, m.maxTTL)
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[offerKey(bundleID, attributionID)] = memEntry{offer: o, deadline: now.Add(ttl)}
	return nil
}

func (m *Memory) DeleteOffer(_ context.Context, bundleID, attributionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, offerKey(bundleID, attributionID))
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len is the number of entries held, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
