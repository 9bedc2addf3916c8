package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	t.Run("Should create the products table", func(t *testing.T) {
		ctx := t.Context()
		db := openMigratedSQLite(ctx, t, filepath.Join(t.TempDir(), "tables.db"))
		var count int
		err := db.QueryRowContext(
			ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'products'",
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Should enforce non-empty titles", func(t *testing.T) {
		ctx := t.Context()
		db := openMigratedSQLite(ctx, t, filepath.Join(t.TempDir(), "check.db"))
		_, err := db.ExecContext(ctx, "INSERT INTO products (title) VALUES ('  ')")
		require.Error(t, err)
	})

	t.Run("Should be idempotent", func(t *testing.T) {
		ctx := t.Context()
		db := openMigratedSQLite(ctx, t, filepath.Join(t.TempDir(), "idempotent.db"))
		require.NoError(t, ApplyMigrations(ctx, db))
	})

	t.Run("Should rollback migrations", func(t *testing.T) {
		ctx := t.Context()
		db := openMigratedSQLite(ctx, t, filepath.Join(t.TempDir(), "rollback.db"))
		migrator, err := newMigrator(db)
		require.NoError(t, err)
		_, err = migrator.DownTo(ctx, 0)
		require.NoError(t, err)
		var count int
		err = db.QueryRowContext(
			ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'products'",
		).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestBuildDSN(t *testing.T) {
	t.Run("Should build DSN for file path with pragmas", func(t *testing.T) {
		d, inMemory, err := buildDSN(&Config{Path: "/tmp/test.db"})
		require.NoError(t, err)
		assert.False(t, inMemory)
		assert.Contains(t, d, "file:/tmp/test.db")
		assert.Contains(t, d, "journal_mode%28WAL%29")
		assert.Contains(t, d, "busy_timeout%285000%29")
	})

	t.Run("Should build DSN for in-memory shared cache", func(t *testing.T) {
		d, inMemory, err := buildDSN(&Config{Path: ":memory:"})
		require.NoError(t, err)
		assert.True(t, inMemory)
		assert.Contains(t, d, "file::memory:?cache=shared")
	})

	t.Run("Should require a path", func(t *testing.T) {
		_, _, err := buildDSN(&Config{})
		require.Error(t, err)
	})
}

func openMigratedSQLite(ctx context.Context, t *testing.T, dbPath string) *sql.DB {
	t.Helper()
	store, err := NewStore(ctx, &Config{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close(context.Background()))
	})
	require.NoError(t, ApplyMigrations(ctx, store.DB()))
	return store.DB()
}
