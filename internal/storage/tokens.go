package storage

import (
	"context"
	"fmt"
)

type PushToken struct {
	AttributionID string
	Token         string
	Platform      string
	BundleID      string
	Active        bool
}

type TokenStats struct {
	Total      int            `json:"total"`
	Active     int            `json:"active"`
	ByPlatform map[string]int `json:"by_platform"`
}

// StorePushToken registers (or re-activates) a token for an install.
func (s *Store) StorePushToken(ctx context.Context, t PushToken) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_tokens (af_id, token, platform, bundle_id, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (af_id, token) DO UPDATE SET
			platform = EXCLUDED.platform,
			bundle_id = EXCLUDED.bundle_id,
			is_active = TRUE,
			updated_at = now()`,
		t.AttributionID, t.Token, t.Platform, t.BundleID,
	)
	if err != nil {
		return storeErr("store push token", err)
	}
	return nil
}

// DeactivatePushToken marks every registration of token inactive.
func (s *Store) DeactivatePushToken(ctx context.Context, token string) error {
	return s.update(ctx, "deactivate push token",
		`UPDATE push_tokens SET is_active = FALSE, updated_at = now() WHERE token = $1`, token)
}

// ActiveTokens returns up to limit active tokens of a bundle, newest first.
func (s *Store) ActiveTokens(ctx context.Context, bundleID string, limit int) ([]PushToken, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT af_id, token, platform, bundle_id
		FROM push_tokens
		WHERE bundle_id = $1 AND is_active
		ORDER BY updated_at DESC
		LIMIT $2`, bundleID, limit)
	if err != nil {
		return nil, storeErr("query push tokens", err)
	}
	defer rows.Close()

	var out []PushToken
	for rows.Next() {
		t := PushToken{Active: true}
		if err := rows.Scan(&t.AttributionID, &t.Token, &t.Platform, &t.BundleID); err != nil {
			return nil, storeErr("scan push token", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate push tokens", err)
	}
	return out, nil
}

func (s *Store) PushTokenStats(ctx context.Context) (TokenStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT platform, COUNT(*), COUNT(*) FILTER (WHERE is_active)
		FROM push_tokens
		GROUP BY platform`)
	if err != nil {
		return TokenStats{}, storeErr("token stats", err)
	}
	defer rows.Close()

	st := TokenStats{ByPlatform: map[string]int{}}
	for rows.Next() {
		var platform string
		var total, active int
		if err := rows.Scan(&platform, &total, &active); err != nil {
			return TokenStats{}, storeErr("scan token stats", fmt.Errorf("%s: %w", platform, err))
		}
		st.Total += total
		st.Active += active
		st.ByPlatform[platform] = active
	}
	if err := rows.Err(); err != nil {
		return TokenStats{}, storeErr("iterate token stats", err)
	}
	return st, nil
}
