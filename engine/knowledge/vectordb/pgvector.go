package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

const pgDefaultTable = "woodsage_chunks"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// pgConn is the part of pgxpool.Pool the store talks to; pgxmock satisfies it in tests.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type pgStore struct {
	db        pgConn
	table     string
	dimension int
	opsClass  string
	withIndex bool
	maxTopK   int
}

func newPGStore(ctx context.Context, cfg *Config) (*pgStore, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	store := newPGStoreWithPool(cfg, pool)
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func newPGStoreWithPool(cfg *Config, db pgConn) *pgStore {
	return &pgStore{
		db:        db,
		table:     firstNonEmpty(cfg.Table, cfg.Collection, pgDefaultTable),
		dimension: cfg.Dimension,
		opsClass:  "vector_" + pgDistance(cfg.Metric) + "_ops",
		withIndex: cfg.EnsureIndex,
		maxTopK:   cfg.MaxTopK,
	}
}

// pgDistance maps a configured metric onto a pgvector operator class suffix.
func pgDistance(metric string) string {
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "l2", "euclid", "euclidean":
		return "l2"
	case "dot", "ip":
		return "ip"
	default:
		return "cosine"
	}
}

func (p *pgStore) ident() string {
	return pgx.Identifier{p.table}.Sanitize()
}

func (p *pgStore) ensureSchema(ctx context.Context) error {
	statements := []struct {
		what string
		sql  string
	}{
		{"enable extension", "CREATE EXTENSION IF NOT EXISTS vector"},
		{"create table", fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, embedding vector(%d), "+
				"document TEXT, metadata JSONB, updated_at TIMESTAMPTZ DEFAULT NOW())",
			p.ident(), p.dimension,
		)},
	}
	if p.withIndex {
		statements = append(statements, struct {
			what string
			sql  string
		}{"create index", fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)",
			pgx.Identifier{p.table + "_embedding_idx"}.Sanitize(), p.ident(), p.opsClass,
		)})
	}
	for _, stmt := range statements {
		if _, err := p.db.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("pgvector: %s: %w", stmt.what, err)
		}
	}
	return nil
}

// Upsert writes every record in a single INSERT so the batch lands atomically.
// Later duplicates of an id win, matching the other providers.
func (p *pgStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	latest := make(map[string]int, len(records))
	for i := range records {
		if len(records[i].Embedding) != p.dimension {
			return dimensionError("pgvector", records[i].ID, len(records[i].Embedding), p.dimension)
		}
		latest[records[i].ID] = i
	}
	now := time.Now().UTC()
	insert := psql.Insert(p.ident()).Columns("id", "embedding", "document", "metadata", "updated_at")
	for i := range records {
		rec := &records[i]
		if latest[rec.ID] != i {
			continue
		}
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("pgvector: encode metadata for %q: %w", rec.ID, err)
		}
		insert = insert.Values(rec.ID, pgvector.NewVector(rec.Embedding), rec.Text, meta, now)
	}
	query, args, err := insert.Suffix(
		"ON CONFLICT (id) DO UPDATE SET embedding = excluded.embedding, document = excluded.document, " +
			"metadata = excluded.metadata, updated_at = excluded.updated_at",
	).ToSql()
	if err != nil {
		return fmt.Errorf("pgvector: build upsert: %w", err)
	}
	if _, err := p.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("pgvector: upsert %d records: %w", len(latest), err)
	}
	return nil
}

// metadataPredicates turns equality filters into JSONB lookups in key order.
func metadataPredicates(filters map[string]string) []squirrel.Sqlizer {
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	preds := make([]squirrel.Sqlizer, 0, len(keys))
	for _, key := range keys {
		preds = append(preds, squirrel.Expr("metadata ->> ? = ?", key, filters[key]))
	}
	return preds
}

func (p *pgStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != p.dimension {
		return nil, dimensionError("pgvector", "", len(query), p.dimension)
	}
	vec := pgvector.NewVector(query)
	topK := resolveTopK(opts.TopK, p.maxTopK)
	sel := psql.Select("id", "document", "metadata").
		Column(squirrel.Expr("1 - (embedding <=> ?) AS score", vec)).
		From(p.ident())
	for _, pred := range metadataPredicates(opts.Filters) {
		sel = sel.Where(pred)
	}
	sql, args, err := sel.OrderByClause("embedding <=> ?", vec).Limit(uint64(topK)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgvector: build search: %w", err)
	}
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()
	matches := make([]Match, 0, topK)
	for rows.Next() {
		var (
			m   Match
			raw []byte
		)
		if err := rows.Scan(&m.ID, &m.Text, &raw, &m.Score); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		if opts.belowMinScore(m.Score) {
			continue
		}
		if m.Metadata, err = decodeMetadata(raw); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: search rows: %w", err)
	}
	return matches, nil
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	meta := map[string]any{}
	if len(raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("pgvector: decode metadata: %w", err)
	}
	return meta, nil
}

func (p *pgStore) Fetch(ctx context.Context, id string) (*Record, error) {
	sql, args, err := psql.Select("id", "document", "metadata", "embedding").
		From(p.ident()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("pgvector: build fetch: %w", err)
	}
	var (
		rec Record
		raw []byte
		vec pgvector.Vector
	)
	err = p.db.QueryRow(ctx, sql, args...).Scan(&rec.ID, &rec.Text, &raw, &vec)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("pgvector: fetch %q: %w", id, err)
	}
	if rec.Metadata, err = decodeMetadata(raw); err != nil {
		return nil, err
	}
	rec.Embedding = vec.Slice()
	return &rec, nil
}

func (p *pgStore) Delete(ctx context.Context, filter Filter) error {
	if len(filter.IDs) == 0 && len(filter.Metadata) == 0 {
		return nil
	}
	del := psql.Delete(p.ident())
	if len(filter.IDs) > 0 {
		del = del.Where("id = ANY(?)", filter.IDs)
	}
	for _, pred := range metadataPredicates(filter.Metadata) {
		del = del.Where(pred)
	}
	sql, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("pgvector: build delete: %w", err)
	}
	if _, err := p.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("pgvector: delete: %w", err)
	}
	return nil
}

func (p *pgStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Provider: ProviderPGVector, Dimension: p.dimension}
	sql, args, err := psql.Select("count(*)").From(p.ident()).ToSql()
	if err != nil {
		return Stats{}, fmt.Errorf("pgvector: build stats: %w", err)
	}
	if err := p.db.QueryRow(ctx, sql, args...).Scan(&stats.TotalCount); err != nil {
		return Stats{}, fmt.Errorf("pgvector: stats: %w", err)
	}
	return stats, nil
}

func (p *pgStore) Close(context.Context) error {
	p.db.Close()
	return nil
}
