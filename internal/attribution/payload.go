package attribution

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"offer-config-engine/internal/apperr"
)

type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

// ParsePlatform accepts the SDK spellings ("Android", "iOS", "android", ...).
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "android":
		return Android, true
	case "ios":
		return IOS, true
	}
	return "", false
}

type Status string

const (
	StatusUnknown    Status = ""
	StatusOrganic    Status = "organic"
	StatusNonOrganic Status = "non_organic"
)

// ParseStatus maps af_status values to a Status. Unrecognised values are
// StatusUnknown, which the classifier treats as a neutral signal.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "organic":
		return StatusOrganic
	case "non-organic", "non_organic", "nonorganic":
		return StatusNonOrganic
	}
	return StatusUnknown
}

// Payload is one install/attribution report from the mobile SDK.
type Payload struct {
	AttributionID     string
	BundleID          string
	Platform          Platform
	StoreID           string
	Locale            string
	PushToken         string
	FirebaseProjectID string

	Status        Status
	IsFirstLaunch *bool
	IsPaid        *bool
	IsRetargeting *bool

	MediaSource string
	Campaign    string
	Adset       string
	Agency      string

	InstallTime time.Time
	ClickTime   time.Time

	// Extra holds the raw JSON of every field not modelled above.
	Extra map[string]string
}

var knownKeys = map[string]struct{}{
	"af_id": {}, "bundle_id": {}, "os": {}, "platform": {}, "store_id": {}, "locale": {},
	"push_token": {}, "firebase_project_id": {}, "af_status": {}, "is_first_launch": {},
	"is_paid": {}, "is_retargeting": {}, "media_source": {}, "campaign": {}, "adset": {},
	"af_adset": {}, "agency": {}, "install_time": {}, "click_time": {},
}

// ParsePayload decodes an SDK request body. Only a body that is not a JSON
// object is rejected; optional fields of the wrong type are ignored.
func ParsePayload(body []byte) (Payload, error) {
	if !gjson.ValidBytes(body) {
		return Payload{}, apperr.New(apperr.InvalidPayload, "Invalid JSON body")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return Payload{}, apperr.New(apperr.InvalidPayload, "Request body must be a JSON object")
	}

	p := Payload{
		AttributionID:     str(doc.Get("af_id")),
		BundleID:          str(doc.Get("bundle_id")),
		StoreID:           str(doc.Get("store_id")),
		Locale:            str(doc.Get("locale")),
		PushToken:         str(doc.Get("push_token")),
		FirebaseProjectID: str(doc.Get("firebase_project_id")),
		Status:            ParseStatus(str(doc.Get("af_status"))),
		IsFirstLaunch:     flag(doc.Get("is_first_launch")),
		IsPaid:            flag(doc.Get("is_paid")),
		IsRetargeting:     flag(doc.Get("is_retargeting")),
		MediaSource:       str(doc.Get("media_source")),
		Campaign:          str(doc.Get("campaign")),
		Adset:             str(doc.Get("adset")),
		Agency:            str(doc.Get("agency")),
		InstallTime:       timestamp(doc.Get("install_time")),
		ClickTime:         timestamp(doc.Get("click_time")),
	}
	if p.Adset == "" {
		p.Adset = str(doc.Get("af_adset"))
	}
	osName := str(doc.Get("os"))
	if osName == "" {
		osName = str(doc.Get("platform"))
	}
	p.Platform, _ = ParsePlatform(osName)

	doc.ForEach(func(key, value gjson.Result) bool {
		if _, ok := knownKeys[key.String()]; !ok {
			if p.Extra == nil {
				p.Extra = map[string]string{}
			}
			p.Extra[key.String()] = value.Raw
		}
		return true
	})
	return p, nil
}

// Validate checks the fields the config endpoint cannot work without.
func Validate(p Payload) error {
	switch {
	case p.AttributionID == "":
		return apperr.New(apperr.InvalidPayload, "AppsFlyer ID is required")
	case p.BundleID == "":
		return apperr.New(apperr.InvalidPayload, "Bundle ID is required")
	case p.Platform == "":
		return apperr.New(apperr.InvalidPayload, "OS must be Android or iOS")
	}
	return nil
}

func str(r gjson.Result) string {
	switch r.Type {
	case gjson.String, gjson.Number:
		return strings.TrimSpace(r.String())
	}
	return ""
}

func flag(r gjson.Result) *bool {
	var v bool
	switch r.Type {
	case gjson.True:
		v = true
	case gjson.False:
		v = false
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(r.Str)) {
		case "true":
			v = true
		case "false":
			v = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &v
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func timestamp(r gjson.Result) time.Time {
	if r.Type != gjson.String {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(r.Str)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
