package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.SetProvider(ctx, "acme.com", "google"))
	p, ok, err := st.GetProvider(ctx, "acme.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "google", p)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	assert.ErrorContains(t, err, "unknown driver")
}

func TestOpen_BadPostgresDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres", "postgres://%zz", nil)
	assert.Error(t, err)
}
