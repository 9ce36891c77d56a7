package attribution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offer-config-engine/internal/apperr"
)

func TestParsePayload(t *testing.T) {
	body := `{
		"af_id": "1688042316289-7152592750959506765",
		"bundle_id": "com.example.app",
		"os": "Android",
		"store_id": "com.example.app",
		"locale": "en_US",
		"push_token": "tok:abc",
		"firebase_project_id": "8934278530",
		"af_status": "Non-organic",
		"is_first_launch": "true",
		"is_paid": false,
		"is_retargeting": 42,
		"media_source": "Facebook Ads",
		"campaign": "Test Campaign",
		"af_adset": "fallback-adset",
		"install_time": "2023-12-01 10:00:00.000",
		"click_time": "yesterday",
		"af_siteid": "site-9",
		"is_fb": true
	}`
	p, err := ParsePayload([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "1688042316289-7152592750959506765", p.AttributionID)
	assert.Equal(t, "com.example.app", p.BundleID)
	assert.Equal(t, Android, p.Platform)
	assert.Equal(t, "en_US", p.Locale)
	assert.Equal(t, StatusNonOrganic, p.Status)
	require.NotNil(t, p.IsFirstLaunch)
	assert.True(t, *p.IsFirstLaunch)
	require.NotNil(t, p.IsPaid)
	assert.False(t, *p.IsPaid)
	assert.Nil(t, p.IsRetargeting)
	assert.Equal(t, "fallback-adset", p.Adset)
	assert.Equal(t, time.Date(2023, 12, 1, 10, 0, 0, 0, time.UTC), p.InstallTime)
	assert.True(t, p.ClickTime.IsZero())
	assert.Equal(t, `"site-9"`, p.Extra["af_siteid"])
	assert.Equal(t, "true", p.Extra["is_fb"])
	assert.NotContains(t, p.Extra, "af_id")
}

func TestParsePayload_PlatformAndStatusVariants(t *testing.T) {
	p, err := ParsePayload([]byte(`{"af_id":"a","platform":"ios","af_status":"whatever","adset":"x","af_adset":"y"}`))
	require.NoError(t, err)
	assert.Equal(t, IOS, p.Platform)
	assert.Equal(t, StatusUnknown, p.Status)
	assert.Equal(t, "x", p.Adset)

	p, err = ParsePayload([]byte(`{"af_id":"a","os":"Windows"}`))
	require.NoError(t, err)
	assert.Equal(t, Platform(""), p.Platform)
}

func TestParsePayload_Rejects(t *testing.T) {
	for _, body := range []string{`not json`, `[1,2]`, `"str"`} {
		_, err := ParsePayload([]byte(body))
		require.Error(t, err, body)
		assert.Equal(t, apperr.InvalidPayload, apperr.KindOf(err))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Payload
		wantMsg string
	}{
		{"ok", Payload{AttributionID: "a", BundleID: "b", Platform: IOS}, ""},
		{"missing af_id", Payload{BundleID: "b", Platform: IOS}, "AppsFlyer ID is required"},
		{"missing bundle", Payload{AttributionID: "a", Platform: IOS}, "Bundle ID is required"},
		{"missing platform", Payload{AttributionID: "a", BundleID: "b"}, "OS must be Android or iOS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.p)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.InvalidPayload, apperr.KindOf(err))
			assert.Equal(t, tt.wantMsg, apperr.Message(err))
		})
	}
}
