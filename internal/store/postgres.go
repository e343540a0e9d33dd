package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-mx/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	applyPoolConfig(pgxCfg, poolCfg)

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// applyPoolConfig sets pool limits, defaulting to 10 max and 1 min
// connections.
func applyPoolConfig(pgxCfg *pgxpool.Config, poolCfg *PoolConfig) {
	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS mx_cache (
	domain     TEXT PRIMARY KEY,
	provider   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_mx_cache_updated_at ON mx_cache(updated_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetProvider(ctx context.Context, domain string) (string, bool, error) {
	var provider string
	err := s.pool.QueryRow(ctx,
		`SELECT provider FROM mx_cache WHERE domain = $1`, domain,
	).Scan(&provider)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "postgres: get provider")
	}
	return provider, true, nil
}

func (s *PostgresStore) SetProvider(ctx context.Context, domain, provider string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mx_cache (domain, provider, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (domain) DO UPDATE SET provider = EXCLUDED.provider, updated_at = EXCLUDED.updated_at`,
		domain, provider, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set provider")
}

// ListProviders returns the most recently updated entries first. A
// non-positive limit returns everything.
func (s *PostgresStore) ListProviders(ctx context.Context, limit int) ([]model.DomainEntry, error) {
	query := `SELECT domain, provider, updated_at FROM mx_cache ORDER BY updated_at DESC, domain`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list providers")
	}
	defer rows.Close()

	var out []model.DomainEntry
	for rows.Next() {
		var e model.DomainEntry
		if err := rows.Scan(&e.Domain, &e.Provider, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list providers")
}

func (s *PostgresStore) DeleteProvider(ctx context.Context, domain string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM mx_cache WHERE domain = $1`, domain)
	return eris.Wrap(err, "postgres: delete provider")
}
