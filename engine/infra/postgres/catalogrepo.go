package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/compozy/woodsage/engine/catalog"
)

const productsTable = "products"

var productColumns = []string{"id", "title", "tags", "link"}

// DB is the minimal database interface CatalogRepo depends on (pgxpool or pgxmock).
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type productRow struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
	Tags  string `db:"tags"`
	Link  string `db:"link"`
}

func (r productRow) entity() catalog.Entity {
	return catalog.Entity{ID: r.ID, Title: r.Title, Tags: catalog.ParseTags(r.Tags), Link: r.Link}
}

// CatalogRepo implements catalog.Repository backed by a pgx-compatible pool.
type CatalogRepo struct {
	db    DB
	owned *Store
}

func NewCatalogRepo(db DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// OpenCatalogRepo migrates the database under an advisory lock and opens a pool.
func OpenCatalogRepo(ctx context.Context, cfg *Config) (*CatalogRepo, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	if err := ApplyMigrationsWithLock(ctx, dsn(cfg)); err != nil {
		return nil, err
	}
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &CatalogRepo{db: store.Pool(), owned: store}, nil
}

func selectProducts() squirrel.SelectBuilder {
	return squirrel.Select(productColumns...).From(productsTable).PlaceholderFormat(squirrel.Dollar)
}

// Add inserts e. An explicit id that is already taken fails with
// catalog.ErrConflict.
func (r *CatalogRepo) Add(ctx context.Context, e *catalog.Entity) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if e.ID == 0 {
		query, args, err := squirrel.Insert(productsTable).
			Columns("title", "tags", "link").
			Values(e.Title, e.TagString(), e.Link).
			Suffix("RETURNING id").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("postgres: build insert product: %w", err)
		}
		var id int64
		if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return 0, mapWriteError("insert product", err)
		}
		e.ID = id
		return id, nil
	}
	if err := r.writeWithID(ctx, e, "ON CONFLICT (id) DO NOTHING", true); err != nil {
		return 0, err
	}
	return e.ID, nil
}

// Upsert writes e under its explicit id and realigns the identity sequence.
func (r *CatalogRepo) Upsert(ctx context.Context, e *catalog.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == 0 {
		return fmt.Errorf("%w: upsert requires an id", catalog.ErrInvalidEntity)
	}
	return r.writeWithID(ctx, e, "ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, tags = EXCLUDED.tags, "+
		"link = EXCLUDED.link, updated_at = now()", false)
}

func (r *CatalogRepo) writeWithID(ctx context.Context, e *catalog.Entity, onConflict string, mustInsert bool) error {
	return r.withTransaction(ctx, func(tx pgx.Tx) error {
		query, args, err := squirrel.Insert(productsTable).
			Columns(productColumns...).
			Values(e.ID, e.Title, e.TagString(), e.Link).
			Suffix(onConflict).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("postgres: build insert product: %w", err)
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return mapWriteError("insert product", err)
		}
		if mustInsert && tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: id %d", catalog.ErrConflict, e.ID)
		}
		const syncSequence = `SELECT setval(pg_get_serial_sequence('products', 'id'),
			GREATEST((SELECT MAX(id) FROM products), 1))`
		if _, err := tx.Exec(ctx, syncSequence); err != nil {
			return fmt.Errorf("postgres: sync product sequence: %w", err)
		}
		return nil
	})
}

func (r *CatalogRepo) Update(ctx context.Context, e *catalog.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	query, args, err := squirrel.Update(productsTable).
		Set("title", e.Title).
		Set("tags", e.TagString()).
		Set("link", e.Link).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": e.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build update product: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapWriteError("update product", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (r *CatalogRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := squirrel.Delete(productsTable).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("postgres: build delete product: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (r *CatalogRepo) Get(ctx context.Context, id int64) (*catalog.Entity, error) {
	query, args, err := selectProducts().Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get product: %w", err)
	}
	var row productRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get product: %w", err)
	}
	e := row.entity()
	return &e, nil
}

func (r *CatalogRepo) List(ctx context.Context) ([]catalog.Entity, error) {
	query, args, err := selectProducts().OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres: build list products: %w", err)
	}
	var rows []productRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	out := make([]catalog.Entity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entity())
	}
	return out, nil
}

// Close releases the pool when the repository opened it.
func (r *CatalogRepo) Close() error {
	if r.owned == nil {
		return nil
	}
	return r.owned.Close(context.Background())
}

func (r *CatalogRepo) withTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transaction: %w", err)
	}
	return nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.CheckViolation:
			return fmt.Errorf("%w: %s", catalog.ErrInvalidEntity, pgErr.Message)
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", catalog.ErrConflict, pgErr.Message)
		}
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
