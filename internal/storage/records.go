package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"offer-config-engine/internal/engine"
)

// Record is the long-lived state of one attributed install.
type Record struct {
	AttributionID     string
	BundleID          string
	Platform          string
	StoreID           string
	Locale            string
	FirebaseProjectID string
	Mode              engine.Mode
	IsFirstLaunch     bool
	SurfaceURL        string
	SurfaceExpiresAt  int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// GetByAttributionID returns ok=false when no record exists.
func (s *Store) GetByAttributionID(ctx context.Context, id string) (Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var r Record
	var mode string
	err := s.db.QueryRowContext(ctx, `
		SELECT af_id, bundle_id, platform, store_id, locale, firebase_project_id,
		       mode, is_first_launch, surface_url, surface_expires_at, created_at, updated_at
		FROM app_records
		WHERE af_id = $1`, id,
	).Scan(&r.AttributionID, &r.BundleID, &r.Platform, &r.StoreID, &r.Locale, &r.FirebaseProjectID,
		&mode, &r.IsFirstLaunch, &r.SurfaceURL, &r.SurfaceExpiresAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, storeErr("get record", err)
	}
	r.Mode = engine.Mode(mode)
	return r, true, nil
}

// UpsertRecord inserts the record in default_experience mode, or refreshes
// the device fields of an existing one. The mode of an existing record is
// left alone; SetMode owns it.
func (s *Store) UpsertRecord(ctx context.Context, r Record) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_records (af_id, bundle_id, platform, store_id, locale, firebase_project_id, mode, is_first_launch)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (af_id) DO UPDATE SET
			bundle_id = EXCLUDED.bundle_id,
			platform = EXCLUDED.platform,
			store_id = EXCLUDED.store_id,
			locale = EXCLUDED.locale,
			firebase_project_id = EXCLUDED.firebase_project_id,
			is_first_launch = EXCLUDED.is_first_launch,
			updated_at = now()`,
		r.AttributionID, r.BundleID, r.Platform, r.StoreID, r.Locale, r.FirebaseProjectID,
		string(engine.ModeDefaultExperience), r.IsFirstLaunch,
	)
	if err != nil {
		return storeErr("upsert record", err)
	}
	return nil
}

func (s *Store) SetMode(ctx context.Context, id string, mode engine.Mode) error {
	return s.update(ctx, "set mode",
		`UPDATE app_records SET mode = $2, updated_at = now() WHERE af_id = $1`, id, string(mode))
}

func (s *Store) SetSurfaceURL(ctx context.Context, id, url string, expiresAt int64) error {
	return s.update(ctx, "set surface url",
		`UPDATE app_records SET surface_url = $2, surface_expires_at = $3, updated_at = now() WHERE af_id = $1`,
		id, url, expiresAt)
}

func (s *Store) update(ctx context.Context, op, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return storeErr(op, err)
	}
	return nil
}
