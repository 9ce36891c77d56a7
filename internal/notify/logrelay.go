package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LogRelay accepts every valid message and only logs it. It is used when
// no FCM credentials are configured.
type LogRelay struct{}

func (LogRelay) Name() string { return "log" }

func (LogRelay) Send(_ context.Context, m Message) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	id := "notification_" + uuid.NewString()
	log.Info().
		Str("relay_id", id).
		Str("token", redactToken(m.Token)).
		Str("title", m.Title).
		Int("data_keys", len(m.payloadData())).
		Msg("notification accepted by log relay")
	return Result{Delivered: true, RelayID: id}, nil
}

func redactToken(t string) string {
	if len(t) <= 20 {
		return t
	}
	return t[:20] + "..."
}
