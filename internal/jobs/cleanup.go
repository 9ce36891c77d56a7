// Package jobs runs scheduled maintenance against the record store.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type RequestPruner interface {
	DeleteRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleanup deletes request log rows older than the retention window.
type Cleanup struct {
	store     RequestPruner
	retention time.Duration
	now       func() time.Time
}

func NewCleanup(store RequestPruner, retentionDays int) *Cleanup {
	return &Cleanup{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Run performs one pass and returns the number of rows removed.
func (c *Cleanup) Run(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.retention)
	n, err := c.store.DeleteRequestsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("request log cleanup")
	return n, nil
}

// Schedule registers Run on a cron scheduler using a standard five-field
// spec. The caller owns Start and Stop.
func Schedule(ctx context.Context, spec string, c *Cleanup) (*cron.Cron, error) {
	sched := cron.New()
	_, err := sched.AddFunc(spec, func() {
		if _, err := c.Run(ctx); err != nil {
			log.Error().Err(err).Msg("request log cleanup failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	return sched, nil
}
