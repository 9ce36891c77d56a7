package engine

import (
	"net/url"
	"strconv"

	"offer-config-engine/internal/apperr"
	"offer-config-engine/internal/attribution"
)

// Engine decides between the remote surface and the default experience.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	urls BaseURLResolver
}

func NewEngine(urls BaseURLResolver) *Engine { return &Engine{urls: urls} }

// Decide serves the remote surface to non-organic installs only. The URL is
// valid for URLValidity from clock's current time.
func (e *Engine) Decide(p attribution.Payload, c attribution.Classification, clock Clock) (Decision, error) {
	if !c.IsNonOrganic {
		return Decision{}, nil
	}

	base, ok := e.urls.ResolveBaseURL(p.BundleID)
	if !ok {
		return Decision{}, apperr.New(apperr.ConfigurationMissing, "No offer URL configured for "+p.BundleID)
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Decision{}, apperr.Wrap(apperr.ConfigurationMissing, err, "Invalid offer URL configured for "+p.BundleID)
	}

	nowMs := clock.NowMillis()
	q := u.Query()
	q.Set("af_id", p.AttributionID)
	q.Set("bundle_id", p.BundleID)
	q.Set("os", string(p.Platform))
	q.Set("locale", p.Locale)
	q.Set("campaign", c.Campaign.Campaign)
	q.Set("media_source", c.Campaign.MediaSource)
	q.Set("adset", c.Campaign.Adset)
	q.Set("agency", c.Campaign.Agency)
	q.Set("quality_score", strconv.Itoa(c.QualityScore))
	q.Set("timestamp", strconv.FormatInt(nowMs, 10))
	u.RawQuery = q.Encode()

	return Decision{
		ServeRemoteSurface: true,
		URL:                u.String(),
		ExpiresAt:          floorDiv(nowMs, 1000) + int64(URLValidity.Seconds()),
	}, nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
