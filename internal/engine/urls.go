package engine

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"offer-config-engine/internal/cache"
)

type BaseURLResolver interface {
	ResolveBaseURL(bundleID string) (string, bool)
}

// BundleURLSource loads bundle URL overrides, e.g. from Postgres.
type BundleURLSource interface {
	LoadBundleURLs(ctx context.Context) ([]BundleURL, error)
}

type urlSnapshot struct {
	byBundle   map[string]string
	defaultURL string
}

// URLBook resolves base URLs from an immutable snapshot that can be rebuilt
// while requests are being served.
type URLBook struct {
	static     []BundleURL
	defaultURL string
	snap       cache.Snapshot[urlSnapshot]
}

// NewURLBook builds a book from static configuration only.
func NewURLBook(defaultURL string, static []BundleURL) *URLBook {
	b := &URLBook{static: static, defaultURL: strings.TrimSpace(defaultURL)}
	b.snap.Store(b.merge(nil))
	return b
}

// BuildSnapshot reloads overrides from src and swaps them in. Rows from src
// win over static entries for the same bundle.
func (b *URLBook) BuildSnapshot(ctx context.Context, src BundleURLSource) error {
	rows, err := src.LoadBundleURLs(ctx)
	if err != nil {
		return err
	}
	b.snap.Store(b.merge(rows))
	log.Info().Int("static", len(b.static)).Int("stored", len(rows)).Msg("bundle url snapshot rebuilt")
	return nil
}

// merge drops entries whose URL is not absolute, so those bundles fall back
// to the default.
func (b *URLBook) merge(rows []BundleURL) urlSnapshot {
	s := urlSnapshot{byBundle: make(map[string]string, len(b.static)+len(rows))}
	if validBaseURL(b.defaultURL) {
		s.defaultURL = b.defaultURL
	} else if b.defaultURL != "" {
		log.Warn().Str("url", b.defaultURL).Msg("ignoring invalid default offer url")
	}
	for _, set := range [][]BundleURL{b.static, rows} {
		for _, u := range set {
			id, base := strings.TrimSpace(u.BundleID), strings.TrimSpace(u.BaseURL)
			if id == "" || base == "" {
				continue
			}
			if !validBaseURL(base) {
				log.Warn().Str("bundle_id", id).Str("url", base).Msg("ignoring invalid bundle offer url")
				continue
			}
			s.byBundle[id] = base
		}
	}
	return s
}

func validBaseURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ResolveBaseURL returns the bundle's URL, else the default. ok is false
// when neither is configured.
func (b *URLBook) ResolveBaseURL(bundleID string) (string, bool) {
	s, _ := b.snap.Load()
	if u, ok := s.byBundle[bundleID]; ok {
		return u, true
	}
	return s.defaultURL, s.defaultURL != ""
}

func (b *URLBook) Len() int {
	s, _ := b.snap.Load()
	return len(s.byBundle)
}
