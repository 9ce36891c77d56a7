// Package attribution turns SDK attribution reports into an organic /
// non-organic classification with a quality score and campaign metadata.
package attribution

import "offer-config-engine/internal/apperr"

const Unknown = "Unknown"

// CampaignInfo is the normalized campaign metadata of an install. Missing
// string fields are set to Unknown.
type CampaignInfo struct {
	Campaign      string `json:"campaign"`
	MediaSource   string `json:"mediaSource"`
	Adset         string `json:"adset"`
	Agency        string `json:"agency"`
	IsRetargeting bool   `json:"isRetargeting"`
}

type Classification struct {
	IsNonOrganic bool         `json:"isNonOrganic"`
	QualityScore int          `json:"qualityScore"`
	Campaign     CampaignInfo `json:"campaignInfo"`
}

var paidNetworks = map[string]struct{}{
	"Facebook Ads": {}, "Google Ads": {}, "TikTok Ads": {}, "Snapchat Ads": {},
	"Twitter Ads": {}, "LinkedIn Ads": {}, "Unity Ads": {}, "AppLovin": {},
	"IronSource": {}, "Vungle": {}, "AdMob": {}, "AdColony": {},
}

var highQualityNetworks = map[string]struct{}{
	"Facebook Ads": {}, "Google Ads": {}, "TikTok Ads": {},
}

const (
	baseScore        = 50
	nonOrganicBonus  = 30
	firstLaunchBonus = 20
	paidBonus        = 15
	networkBonus     = 10
	retargetPenalty  = 10
)

// Classify has no side effects; the same payload always yields the same result.
func Classify(p Payload) (Classification, error) {
	if p.AttributionID == "" {
		return Classification{}, apperr.New(apperr.InvalidPayload, "AppsFlyer ID is required")
	}
	nonOrganic := IsNonOrganic(p)
	return Classification{
		IsNonOrganic: nonOrganic,
		QualityScore: qualityScore(p, nonOrganic),
		Campaign:     ExtractCampaign(p),
	}, nil
}

// IsNonOrganic applies the attribution rules in order; the first match wins.
func IsNonOrganic(p Payload) bool {
	switch p.Status {
	case StatusNonOrganic:
		return true
	case StatusOrganic:
		return false
	}
	if isTrue(p.IsFirstLaunch) {
		return true
	}
	if isTrue(p.IsPaid) {
		return true
	}
	_, paid := paidNetworks[p.MediaSource]
	return paid
}

func qualityScore(p Payload, nonOrganic bool) int {
	score := baseScore
	if nonOrganic {
		score += nonOrganicBonus
	}
	if isTrue(p.IsFirstLaunch) {
		score += firstLaunchBonus
	}
	if isTrue(p.IsPaid) {
		score += paidBonus
	}
	if _, ok := highQualityNetworks[p.MediaSource]; ok {
		score += networkBonus
	}
	if isTrue(p.IsRetargeting) {
		score -= retargetPenalty
	}
	return min(max(score, 0), 100)
}

func ExtractCampaign(p Payload) CampaignInfo {
	return CampaignInfo{
		Campaign:      orUnknown(p.Campaign),
		MediaSource:   orUnknown(p.MediaSource),
		Adset:         orUnknown(p.Adset),
		Agency:        orUnknown(p.Agency),
		IsRetargeting: isTrue(p.IsRetargeting),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

func isTrue(b *bool) bool { return b != nil && *b }
