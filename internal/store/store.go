// Package store persists domain to provider classifications so they survive
// process restarts. Contact records themselves are never stored.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-mx/internal/model"
)

// Store is the persistent second-tier domain cache.
type Store interface {
	GetProvider(ctx context.Context, domain string) (string, bool, error)
	SetProvider(ctx context.Context, domain, provider string) error
	ListProviders(ctx context.Context, limit int) ([]model.DomainEntry, error)
	DeleteProvider(ctx context.Context, domain string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store named by driver ("sqlite" or "postgres") and
// runs its migration. poolCfg tunes the Postgres pool and may be nil.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		st, err = NewSQLite(dsn)
	case "postgres", "postgresql", "pg":
		st, err = NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
