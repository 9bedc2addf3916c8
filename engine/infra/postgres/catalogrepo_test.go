package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/woodsage/engine/catalog"
)

func newMockRepo(t *testing.T) (*CatalogRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewCatalogRepo(mock), mock
}

func TestCatalogRepo_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("Should insert and return the generated id", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`INSERT INTO products \(title,tags,link\) VALUES \(\$1,\$2,\$3\) RETURNING id`).
			WithArgs("Chisel Set", "Chisels, Hand tools", "https://x").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))
		e := &catalog.Entity{Title: "Chisel Set", Tags: []string{"Chisels", "Hand tools"}, Link: "https://x"}
		id, err := repo.Add(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, int64(12), id)
		assert.Equal(t, int64(12), e.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should insert explicit ids without overwriting", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO products \(id,title,tags,link\) VALUES .* ON CONFLICT \(id\) DO NOTHING`).
			WithArgs(int64(3), "Plane", "Planes", "").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`SELECT setval`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectCommit()
		id, err := repo.Add(ctx, &catalog.Entity{ID: 3, Title: "Plane", Tags: []string{"Planes"}})
		require.NoError(t, err)
		assert.Equal(t, int64(3), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should report a conflict when the id is taken", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`ON CONFLICT \(id\) DO NOTHING`).
			WithArgs(int64(3), "Plane", "", "").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectRollback()
		_, err := repo.Add(ctx, &catalog.Entity{ID: 3, Title: "Plane"})
		assert.ErrorIs(t, err, catalog.ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should map unique violations to conflicts", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`INSERT INTO products`).
			WithArgs("Plane", "", "").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, Message: "products_pkey"})
		_, err := repo.Add(ctx, &catalog.Entity{Title: "Plane"})
		assert.ErrorIs(t, err, catalog.ErrConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should reject invalid entities before touching the database", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		_, err := repo.Add(ctx, &catalog.Entity{Title: "  "})
		assert.ErrorIs(t, err, catalog.ErrInvalidEntity)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCatalogRepo_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("Should upsert explicit ids inside a transaction", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO products \(id,title,tags,link\) VALUES .* ON CONFLICT \(id\) DO UPDATE`).
			WithArgs(int64(3), "Plane", "Planes", "").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`SELECT setval`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
		mock.ExpectCommit()
		require.NoError(t, repo.Upsert(ctx, &catalog.Entity{ID: 3, Title: "Plane", Tags: []string{"Planes"}}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should rollback when the upsert fails", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO products`).
			WithArgs(int64(3), "Plane", "", "").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.CheckViolation, Message: "title"})
		mock.ExpectRollback()
		err := repo.Upsert(ctx, &catalog.Entity{ID: 3, Title: "Plane"})
		require.Error(t, err)
		assert.ErrorIs(t, err, catalog.ErrInvalidEntity)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should require an id", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		err := repo.Upsert(ctx, &catalog.Entity{Title: "Plane"})
		assert.ErrorIs(t, err, catalog.ErrInvalidEntity)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCatalogRepo_Read(t *testing.T) {
	ctx := context.Background()

	t.Run("Should list products ordered by id with parsed tags", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		rows := pgxmock.NewRows(productColumns).
			AddRow(int64(1), "TSO Products", "TSO Products, Festool accessories", "https://tso").
			AddRow(int64(2), "Bits and Bits Company", "Router bits", "https://bits")
		mock.ExpectQuery(`SELECT id, title, tags, link FROM products ORDER BY id`).WillReturnRows(rows)
		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, []string{"TSO Products", "Festool accessories"}, all[0].Tags)
		assert.Equal(t, "Bits and Bits Company", all[1].Title)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should map missing rows to ErrNotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT id, title, tags, link FROM products WHERE id = \$1`).
			WithArgs(int64(9)).
			WillReturnError(pgx.ErrNoRows)
		_, err := repo.Get(ctx, 9)
		assert.ErrorIs(t, err, catalog.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCatalogRepo_Mutations(t *testing.T) {
	ctx := context.Background()

	t.Run("Should report ErrNotFound when update touches no rows", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`UPDATE products SET title = \$1, tags = \$2, link = \$3, updated_at = now\(\) WHERE id = \$4`).
			WithArgs("Ghost", "", "", int64(4)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		err := repo.Update(ctx, &catalog.Entity{ID: 4, Title: "Ghost"})
		assert.ErrorIs(t, err, catalog.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should delete by id", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(`DELETE FROM products WHERE id = \$1`).
			WithArgs(int64(4)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		require.NoError(t, repo.Delete(ctx, 4))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCatalogRepoDSN(t *testing.T) {
	t.Run("Should prefer the connection string", func(t *testing.T) {
		assert.Equal(t, "postgres://a", dsn(&Config{ConnString: " postgres://a "}))
	})

	t.Run("Should synthesize a DSN from fields", func(t *testing.T) {
		got := dsn(&Config{Host: "db", User: "wood", Password: "p@ss", DBName: "catalog"})
		assert.Equal(t, "postgres://wood:p%40ss@db:5432/catalog?sslmode=disable", got)
	})
}
