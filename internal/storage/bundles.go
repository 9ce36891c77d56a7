package storage

import (
	"context"

	"offer-config-engine/internal/engine"
)

// LoadBundleURLs loads all per-bundle base URL overrides.
func (s *Store) LoadBundleURLs(ctx context.Context) ([]engine.BundleURL, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT bundle_id, base_url FROM bundle_urls ORDER BY bundle_id`)
	if err != nil {
		return nil, storeErr("query bundle urls", err)
	}
	defer rows.Close()

	var out []engine.BundleURL
	for rows.Next() {
		var b engine.BundleURL
		if err := rows.Scan(&b.BundleID, &b.BaseURL); err != nil {
			return nil, storeErr("scan bundle url", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate bundle urls", err)
	}
	return out, nil
}

func (s *Store) PutBundleURL(ctx context.Context, b engine.BundleURL) error {
	return s.update(ctx, "put bundle url", `
		INSERT INTO bundle_urls (bundle_id, base_url) VALUES ($1, $2)
		ON CONFLICT (bundle_id) DO UPDATE SET base_url = EXCLUDED.base_url, updated_at = now()`,
		b.BundleID, b.BaseURL)
}
