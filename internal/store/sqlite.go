package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-mx/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS mx_cache (
	domain     TEXT PRIMARY KEY,
	provider   TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mx_cache_updated_at ON mx_cache(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetProvider(ctx context.Context, domain string) (string, bool, error) {
	var provider string
	err := s.db.QueryRowContext(ctx,
		`SELECT provider FROM mx_cache WHERE domain = ?`, domain,
	).Scan(&provider)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: get provider")
	}
	return provider, true, nil
}

func (s *SQLiteStore) SetProvider(ctx context.Context, domain, provider string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mx_cache (domain, provider, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET provider = excluded.provider, updated_at = excluded.updated_at`,
		domain, provider, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrap(err, "sqlite: set provider")
}

// ListProviders returns the most recently updated entries first. A
// non-positive limit returns everything.
func (s *SQLiteStore) ListProviders(ctx context.Context, limit int) ([]model.DomainEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, provider, updated_at FROM mx_cache ORDER BY updated_at DESC, domain LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list providers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.DomainEntry
	for rows.Next() {
		var e model.DomainEntry
		var updated string
		if err := rows.Scan(&e.Domain, &e.Provider, &updated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider")
		}
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list providers")
}

func (s *SQLiteStore) DeleteProvider(ctx context.Context, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM mx_cache WHERE domain = ?`, domain)
	return eris.Wrap(err, "sqlite: delete provider")
}
