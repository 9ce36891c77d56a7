// Package notify delivers push notifications to devices through a
// third-party messaging provider.
package notify

import (
	"context"
	"strings"

	"offer-config-engine/internal/apperr"
)

type Message struct {
	Token    string            `json:"token"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	ImageURL string            `json:"image_url,omitempty"`
	IconURL  string            `json:"icon_url,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// Validate reports the first missing required field.
func (m Message) Validate() error {
	if m.Token == "" || m.Title == "" || m.Body == "" {
		return apperr.New(apperr.InvalidPayload, "Missing required fields: token, title, body")
	}
	return nil
}

// payloadData merges the image and icon URLs into the data map.
func (m Message) payloadData() map[string]string {
	out := make(map[string]string, len(m.Data)+2)
	for k, v := range m.Data {
		out[k] = v
	}
	if m.ImageURL != "" {
		out["image"] = m.ImageURL
	}
	if m.IconURL != "" {
		out["icon"] = m.IconURL
	}
	return out
}

// Result is the provider's verdict for one message. A rejected message is
// not an error; Delivered is false and Reason says why.
type Result struct {
	Delivered bool   `json:"delivered"`
	RelayID   string `json:"relay_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	// Unregistered is set when the provider says the token is gone for good.
	Unregistered bool `json:"-"`
}

type Relay interface {
	Send(ctx context.Context, m Message) (Result, error)
	Name() string
}

// LooksLikeFCMToken mirrors the SDK-side eligibility check: FCM registration
// tokens are long and contain a colon.
func LooksLikeFCMToken(token string) bool {
	return len(token) > 50 && strings.Contains(token, ":")
}
