package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/compozy/woodsage/engine/catalog"
)

const productsTable = "products"

var productColumns = []string{"id", "title", "tags", "link"}

// CatalogRepo implements catalog.Repository on top of a SQLite *sql.DB.
type CatalogRepo struct {
	db    *sql.DB
	owned *Store
}

// NewCatalogRepo wraps an already migrated database.
func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{db: db} }

// OpenCatalogRepo opens the database at cfg.Path and applies migrations.
func OpenCatalogRepo(ctx context.Context, cfg *Config) (*CatalogRepo, error) {
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, store.DB()); err != nil {
		store.Close(ctx)
		return nil, err
	}
	return &CatalogRepo{db: store.DB(), owned: store}, nil
}

func (r *CatalogRepo) Add(ctx context.Context, e *catalog.Entity) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	builder := squirrel.Insert(productsTable)
	if e.ID == 0 {
		builder = builder.Columns("title", "tags", "link").Values(e.Title, e.TagString(), e.Link)
	} else {
		builder = builder.
			Columns(productColumns...).
			Values(e.ID, e.Title, e.TagString(), e.Link).
			Suffix("ON CONFLICT(id) DO NOTHING")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("sqlite: build insert product: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert product: %w", err)
	}
	if e.ID != 0 {
		inserted, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("sqlite: insert product: %w", err)
		}
		if inserted == 0 {
			return 0, fmt.Errorf("%w: id %d", catalog.ErrConflict, e.ID)
		}
		return e.ID, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: last insert id: %w", err)
	}
	e.ID = id
	return id, nil
}

func (r *CatalogRepo) Upsert(ctx context.Context, e *catalog.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == 0 {
		return fmt.Errorf("%w: upsert requires an id", catalog.ErrInvalidEntity)
	}
	query, args, err := squirrel.Insert(productsTable).
		Columns(productColumns...).
		Values(e.ID, e.Title, e.TagString(), e.Link).
		Suffix("ON CONFLICT(id) DO UPDATE SET title = excluded.title, tags = excluded.tags, " +
			"link = excluded.link, updated_at = CURRENT_TIMESTAMP").
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build upsert product: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: upsert product: %w", err)
	}
	return nil
}

func (r *CatalogRepo) Update(ctx context.Context, e *catalog.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	query, args, err := squirrel.Update(productsTable).
		Set("title", e.Title).
		Set("tags", e.TagString()).
		Set("link", e.Link).
		Set("updated_at", squirrel.Expr("CURRENT_TIMESTAMP")).
		Where(squirrel.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build update product: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: update product: %w", err)
	}
	return expectAffected(res, "update product")
}

func (r *CatalogRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := squirrel.Delete(productsTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sqlite: build delete product: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlite: delete product: %w", err)
	}
	return expectAffected(res, "delete product")
}

func (r *CatalogRepo) Get(ctx context.Context, id int64) (*catalog.Entity, error) {
	query, args, err := squirrel.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build get product: %w", err)
	}
	e, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get product: %w", err)
	}
	return e, nil
}

func (r *CatalogRepo) List(ctx context.Context) ([]catalog.Entity, error) {
	query, args, err := squirrel.Select(productColumns...).From(productsTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build list products: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list products: %w", err)
	}
	defer rows.Close()
	out := make([]catalog.Entity, 0)
	for rows.Next() {
		e, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan product: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter products: %w", err)
	}
	return out, nil
}

// Close releases the database when the repository opened it.
func (r *CatalogRepo) Close() error {
	if r.owned == nil {
		return nil
	}
	return r.owned.Close(context.Background())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*catalog.Entity, error) {
	var (
		e    catalog.Entity
		tags string
	)
	if err := row.Scan(&e.ID, &e.Title, &tags, &e.Link); err != nil {
		return nil, err
	}
	e.Tags = catalog.ParseTags(tags)
	return &e, nil
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected (%s): %w", op, err)
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}
