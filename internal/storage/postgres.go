package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"offer-config-engine/internal/apperr"
	"offer-config-engine/internal/config"
)

const queryTimeout = 3 * time.Second

// BundleURLChannel is the NOTIFY channel the bundle_urls trigger publishes
// on. It is fixed by the migration.
const BundleURLChannel = "bundle_urls_changed"

// Store is the Postgres-backed record store. Queries go through database/sql
// on top of the pgx pool; the raw pool is kept for LISTEN/NOTIFY.
type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
	now  func() time.Time
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	dsn := cfg.DSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{
		pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
		now:  time.Now,
	}, nil
}

// NewWithDB wraps an existing *sql.DB. The store has no pgx pool, so it
// cannot be used with the listener.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (s *Store) ListenChannel() string {
	return BundleURLChannel
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}

// storeErr keeps op in the cause; clients only see the generic message.
func storeErr(op string, err error) error {
	return apperr.Wrap(apperr.StoreUnavailable, fmt.Errorf("%s: %w", op, err), "Storage unavailable")
}
