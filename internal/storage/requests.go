package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RequestType string

const (
	RequestConfig       RequestType = "config"
	RequestNotification RequestType = "notification"
)

type RequestStatus string

const (
	StatusProcessed RequestStatus = "processed"
	StatusFailed    RequestStatus = "failed"
)

// Client identifies the caller of an API request.
type Client struct {
	UserAgent string
	IP        string
}

// RequestLog is one inbound API request kept for analytics.
type RequestLog struct {
	ID            uuid.UUID
	AttributionID string
	BundleID      string
	Platform      string
	Type          RequestType
	Status        RequestStatus
	UserAgent     string
	IP            string
	Metadata      map[string]any
	CreatedAt     time.Time
}

type RequestStats struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"by_type"`
	ByStatus    map[string]int `json:"by_status"`
	RecentCount int            `json:"recent_count"`
}

// LogRequest stores the request and returns its id. A nil ID is generated.
func (s *Store) LogRequest(ctx context.Context, r RequestLog) (uuid.UUID, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	var meta []byte
	if len(r.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(r.Metadata); err != nil {
			return uuid.Nil, fmt.Errorf("encode request metadata: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, af_id, bundle_id, platform, request_type, status, user_agent, ip_address, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID.String(), r.AttributionID, r.BundleID, r.Platform, string(r.Type), string(r.Status),
		r.UserAgent, r.IP, meta,
	)
	if err != nil {
		return uuid.Nil, storeErr("log request", err)
	}
	return r.ID, nil
}

func (s *Store) RequestStats(ctx context.Context) (RequestStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	st := RequestStats{ByType: map[string]int{}, ByStatus: map[string]int{}}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_type, status, COUNT(*)
		FROM requests
		GROUP BY request_type, status`)
	if err != nil {
		return st, storeErr("request stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ, status string
		var n int
		if err := rows.Scan(&typ, &status, &n); err != nil {
			return st, storeErr("scan request stats", err)
		}
		st.Total += n
		st.ByType[typ] += n
		st.ByStatus[status] += n
	}
	if err := rows.Err(); err != nil {
		return st, storeErr("iterate request stats", err)
	}

	since := s.now().Add(-24 * time.Hour)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE created_at > $1`, since,
	).Scan(&st.RecentCount); err != nil {
		return st, storeErr("recent request count", err)
	}
	return st, nil
}

// DeleteRequestsBefore removes request log rows created before cutoff.
func (s *Store) DeleteRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM requests WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, storeErr("delete old requests", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("delete old requests", err)
	}
	return n, nil
}
