// Package listener keeps the bundle URL book in step with Postgres through
// LISTEN/NOTIFY.
package listener

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"offer-config-engine/internal/engine"
	"offer-config-engine/internal/storage"
)

const debounce = 200 * time.Millisecond

// ListenAndRefresh rebuilds book from st whenever the bundle_urls trigger
// sends a notification. The connection is re-established with jittered
// backoff after errors; the function returns when ctx is done.
func ListenAndRefresh(ctx context.Context, st *storage.Store, book *engine.URLBook, baseBackoff time.Duration) {
	channel := st.ListenChannel()
	for {
		err := listen(ctx, st, book, channel)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Str("channel", channel).Dur("retry_in", backoff).Msg("listener error")
		if !sleep(ctx, backoff) {
			log.Info().Msg("listener stopped")
			return
		}
	}
}

func listen(ctx context.Context, st *storage.Store, book *engine.URLBook, channel string) error {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for bundle url changes")

	// Changes made while disconnected were missed.
	refresh(ctx, st, book)

	var lastRefresh time.Time
	for {
		ntf, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if time.Since(lastRefresh) < debounce {
			continue
		}
		lastRefresh = time.Now()
		log.Info().Str("channel", ntf.Channel).Str("bundle_id", ntf.Payload).Msg("bundle urls changed; refreshing")
		refresh(ctx, st, book)
	}
}

func refresh(ctx context.Context, src engine.BundleURLSource, book *engine.URLBook) {
	if err := book.BuildSnapshot(ctx, src); err != nil {
		log.Error().Err(err).Msg("refresh bundle url snapshot")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
