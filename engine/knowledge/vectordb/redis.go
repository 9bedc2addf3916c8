package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/compozy/woodsage/engine/infra/cache"
)

// redisStore keeps one Redis vector set (VADD/VSIM, Redis 8+). Each element
// carries a JSON attribute document: the chunk text, the full metadata map
// and one flat "f_<key>" string per metadata entry so VSIM FILTER can see it.
type redisStore struct {
	client    *redis.Client
	setKey    string
	dimension int
	maxTopK   int
}

const (
	redisDefaultMaxTopK   = 1000
	redisDefaultVectorKey = "woodsage_vectors"
	redisFilterPrefix     = "f_"
)

type redisAttrs struct {
	Text string         `json:"text"`
	Meta map[string]any `json:"meta"`
}

func newRedisStore(ctx context.Context, cfg *Config) (*redisStore, error) {
	client, err := cache.Connect(ctx, &cache.Config{
		URL:       cfg.DSN,
		Password:  cfg.APIKey,
		RESP3:     true,
		Component: "vector_store",
	})
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	maxTopK := cfg.MaxTopK
	if maxTopK <= 0 {
		maxTopK = redisDefaultMaxTopK
	}
	return &redisStore{
		client:    client,
		setKey:    determineRedisKey(cfg),
		dimension: cfg.Dimension,
		maxTopK:   maxTopK,
	}, nil
}

// determineRedisKey picks the first usable name out of collection, table and id.
func determineRedisKey(cfg *Config) string {
	for _, candidate := range []string{cfg.Collection, cfg.Table, cfg.ID} {
		if key := redisIdent(candidate, ":-_"); key != "" {
			return key
		}
	}
	return redisDefaultVectorKey
}

// redisIdent lowercases raw and replaces every rune outside [a-z0-9] and extra
// with '_'. Leading and trailing separators are dropped.
func redisIdent(raw, extra string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', strings.ContainsRune(extra, r):
			return r
		default:
			return '_'
		}
	}, strings.ToLower(strings.TrimSpace(raw)))
	return strings.Trim(mapped, "_"+extra)
}

func filterField(key string) string {
	name := redisIdent(key, "")
	if name == "" {
		name = "unknown"
	}
	return redisFilterPrefix + name
}

func (r *redisStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for i := range records {
		rec := &records[i]
		if len(rec.Embedding) != r.dimension {
			return dimensionError("redis", rec.ID, len(rec.Embedding), r.dimension)
		}
		pipe.VAdd(ctx, r.setKey, rec.ID, &redis.VectorValues{Val: widen(rec.Embedding)})
		pipe.VSetAttr(ctx, r.setKey, rec.ID, encodeRedisAttrs(rec))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: upsert %d records: %w", len(records), err)
	}
	return nil
}

func encodeRedisAttrs(rec *Record) map[string]any {
	meta := cloneMap(rec.Metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	doc := map[string]any{"text": rec.Text, "meta": meta}
	for key, value := range rec.Metadata {
		doc[filterField(key)] = fmt.Sprint(value)
	}
	return doc
}

func decodeRedisAttrs(payload string) (redisAttrs, error) {
	var attrs redisAttrs
	if strings.TrimSpace(payload) != "" {
		if err := json.Unmarshal([]byte(payload), &attrs); err != nil {
			return redisAttrs{}, err
		}
	}
	if attrs.Meta == nil {
		attrs.Meta = map[string]any{}
	}
	return attrs, nil
}

// buildRedisFilter renders an AND of equality checks in key order.
func buildRedisFilter(filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	escape := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf(`.%s == "%s"`, filterField(key), escape.Replace(filters[key])))
	}
	return strings.Join(parts, " && ")
}

func (r *redisStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != r.dimension {
		return nil, dimensionError("redis", "", len(query), r.dimension)
	}
	args := &redis.VSimArgs{
		Count:  int64(resolveTopK(opts.TopK, r.maxTopK)),
		Filter: buildRedisFilter(opts.Filters),
	}
	hits, err := r.client.VSimWithArgsWithScores(ctx, r.setKey, &redis.VectorValues{Val: widen(query)}, args).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: similarity search: %w", err)
	}
	hits = slices.DeleteFunc(hits, func(h redis.VectorScore) bool {
		return opts.belowMinScore(h.Score)
	})
	if len(hits) == 0 {
		return nil, nil
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(hits))
	for i, hit := range hits {
		cmds[i] = pipe.VGetAttr(ctx, r.setKey, hit.Name)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: fetch attributes: %w", err)
	}
	matches := make([]Match, 0, len(hits))
	for i, hit := range hits {
		payload, err := cmds[i].Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: read attributes for %q: %w", hit.Name, err)
		}
		attrs, err := decodeRedisAttrs(payload)
		if err != nil {
			return nil, fmt.Errorf("redis: parse attributes for %q: %w", hit.Name, err)
		}
		matches = append(matches, Match{ID: hit.Name, Score: hit.Score, Text: attrs.Text, Metadata: attrs.Meta})
	}
	return rankMatches(matches, 0), nil
}

func (r *redisStore) Fetch(ctx context.Context, id string) (*Record, error) {
	payload, err := r.client.VGetAttr(ctx, r.setKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: fetch attributes for %q: %w", id, err)
	}
	attrs, err := decodeRedisAttrs(payload)
	if err != nil {
		return nil, fmt.Errorf("redis: parse attributes for %q: %w", id, err)
	}
	raw, err := r.client.VEmb(ctx, r.setKey, id, false).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: fetch embedding for %q: %w", id, err)
	}
	embedding, err := parseEmbedding(raw)
	if err != nil {
		return nil, fmt.Errorf("redis: decode embedding for %q: %w", id, err)
	}
	return &Record{ID: id, Text: attrs.Text, Embedding: embedding, Metadata: attrs.Meta}, nil
}

// parseEmbedding accepts doubles (RESP3) or bulk strings (RESP2).
func parseEmbedding(values []any) ([]float32, error) {
	out := make([]float32, len(values))
	for i, v := range values {
		switch typed := v.(type) {
		case float64:
			out[i] = float32(typed)
		case string:
			f, err := strconv.ParseFloat(typed, 32)
			if err != nil {
				return nil, err
			}
			out[i] = float32(f)
		default:
			return nil, fmt.Errorf("unexpected component type %T", v)
		}
	}
	return out, nil
}

func (r *redisStore) Delete(ctx context.Context, filter Filter) error {
	targets := make([]string, 0, len(filter.IDs))
	for _, id := range filter.IDs {
		if id = strings.TrimSpace(id); id != "" {
			targets = append(targets, id)
		}
	}
	if len(filter.Metadata) > 0 {
		ids, err := r.idsMatching(ctx, filter.Metadata)
		if err != nil {
			return err
		}
		targets = append(targets, ids...)
	}
	slices.Sort(targets)
	targets = slices.Compact(targets)
	if len(targets) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, id := range targets {
		pipe.VRem(ctx, r.setKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete %d vectors: %w", len(targets), err)
	}
	return nil
}

// idsMatching enumerates the whole set through a filtered VSIM. Vector sets
// have no attribute scan, so the query vector is an arbitrary unit vector.
func (r *redisStore) idsMatching(ctx context.Context, metadata map[string]string) ([]string, error) {
	total, err := r.client.VCard(ctx, r.setKey).Result()
	if errors.Is(err, redis.Nil) || (err == nil && total == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: vcard: %w", err)
	}
	axis := make([]float64, r.dimension)
	if len(axis) > 0 {
		axis[0] = 1
	}
	names, err := r.client.VSimWithArgs(ctx, r.setKey, &redis.VectorValues{Val: axis}, &redis.VSimArgs{
		Count:  total,
		Filter: buildRedisFilter(metadata),
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: metadata filter query: %w", err)
	}
	return names, nil
}

func (r *redisStore) Stats(ctx context.Context) (Stats, error) {
	total, err := r.client.VCard(ctx, r.setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("redis: vcard: %w", err)
	}
	return Stats{Provider: ProviderRedis, Dimension: r.dimension, TotalCount: total}, nil
}

func (r *redisStore) Close(context.Context) error {
	return r.client.Close()
}

func widen(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
