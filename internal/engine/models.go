package engine

import "time"

// URLValidity is how long a remote-surface URL stays valid after a decision.
const URLValidity = 24 * time.Hour

// Decision is the outcome for one payload. URL and ExpiresAt are set
// only when ServeRemoteSurface is true.
type Decision struct {
	ServeRemoteSurface bool
	URL                string
	ExpiresAt          int64 // epoch seconds
}

func (d Decision) HasURL() bool { return d.URL != "" }

// Mode is the persisted per-install experience.
type Mode string

const (
	ModeRemoteSurface     Mode = "remote_surface"
	ModeDefaultExperience Mode = "default_experience"
)

func (d Decision) Mode() Mode {
	if d.ServeRemoteSurface {
		return ModeRemoteSurface
	}
	return ModeDefaultExperience
}

// Clock reports the current time in epoch milliseconds.
type Clock interface {
	NowMillis() int64
}

type ClockFunc func() int64

func (f ClockFunc) NowMillis() int64 { return f() }

type systemClock struct{}

func (systemClock) NowMillis() int64 { return time.Now().UnixMilli() }

var SystemClock Clock = systemClock{}

// BundleURL maps an app bundle to the base URL of its remote surface.
type BundleURL struct {
	BundleID string
	BaseURL  string
}
