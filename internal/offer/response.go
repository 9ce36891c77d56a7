package offer

import (
	"offer-config-engine/internal/attribution"
	"offer-config-engine/internal/engine"
)

type NotificationSettings struct {
	Enabled      bool   `json:"enabled"`
	CustomIcon   string `json:"customIcon,omitempty"`
	ImageSupport bool   `json:"imageSupport"`
}

type AppSettings struct {
	AllowRotation     bool `json:"allowRotation"`
	SafeAreaSupport   bool `json:"safeAreaSupport"`
	JavascriptEnabled bool `json:"javascriptEnabled"`
	CookieSupport     bool `json:"cookieSupport"`
	SessionSupport    bool `json:"sessionSupport"`
	AutoplayVideo     bool `json:"autoplayVideo"`
	ProtectedContent  bool `json:"protectedContent"`
	FileUpload        bool `json:"fileUpload"`
}

// SurfaceConfig is the client-side configuration sent with a remote-surface URL.
type SurfaceConfig struct {
	URL                  string               `json:"url"`
	Expires              int64                `json:"expires"`
	ShowWebView          bool                 `json:"showWebView"`
	NotificationSettings NotificationSettings `json:"notificationSettings"`
	AppSettings          AppSettings          `json:"appSettings"`
}

func BuildSurfaceConfig(p attribution.Payload, d engine.Decision) SurfaceConfig {
	ns := NotificationSettings{Enabled: true, ImageSupport: true}
	if p.Platform == attribution.Android {
		ns.CustomIcon = "notification_icon"
	}
	return SurfaceConfig{
		URL:                  d.URL,
		Expires:              d.ExpiresAt,
		ShowWebView:          d.ServeRemoteSurface,
		NotificationSettings: ns,
		AppSettings: AppSettings{
			AllowRotation:     true,
			SafeAreaSupport:   true,
			JavascriptEnabled: true,
			CookieSupport:     true,
			SessionSupport:    true,
			AutoplayVideo:     true,
			ProtectedContent:  true,
			FileUpload:        true,
		},
	}
}
