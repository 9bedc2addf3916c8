package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/compozy/woodsage/engine/catalog"
)

// startPostgres runs a disposable PostgreSQL container and returns its DSN.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("woodsage"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Terminate(terminateCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %s", err)
		}
	})
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestCatalogRepo_Integration(t *testing.T) {
	ctx := t.Context()
	connStr := startPostgres(ctx, t)
	repo, err := OpenCatalogRepo(ctx, &Config{ConnString: connStr})
	require.NoError(t, err)
	defer repo.Close()

	t.Run("Should keep the identity sequence ahead of seeded ids", func(t *testing.T) {
		for _, e := range catalog.DefaultProducts() {
			require.NoError(t, repo.Upsert(ctx, &e))
		}
		e := catalog.Entity{Title: "Bench Dog", Tags: []string{"bench"}, Link: "https://example.com/dog"}
		id, err := repo.Add(ctx, &e)
		require.NoError(t, err)
		assert.Equal(t, int64(len(catalog.DefaultProducts())+1), id)
	})

	t.Run("Should update, read and delete products", func(t *testing.T) {
		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		got.Tags = append(got.Tags, "tested")
		require.NoError(t, repo.Update(ctx, got))
		again, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Contains(t, again.Tags, "tested")

		require.NoError(t, repo.Delete(ctx, 1))
		_, err = repo.Get(ctx, 1)
		assert.ErrorIs(t, err, catalog.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, 1), catalog.ErrNotFound)
	})

	t.Run("Should apply migrations idempotently", func(t *testing.T) {
		require.NoError(t, ApplyMigrationsWithLock(ctx, connStr))
		list, err := repo.List(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, list)
	})
}
