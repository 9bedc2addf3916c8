package vectordb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	qdrantDefaultTimeout = 10 * time.Second
	qdrantIDField        = "record_id"
	qdrantTextField      = "text"
)

// qdrantNamespace seeds deterministic point UUIDs; qdrant only accepts UUIDs or integers.
var qdrantNamespace = uuid.MustParse("5b0d2f64-8f43-4c3a-9a3e-57f1f1e0c0de")

type qdrantStore struct {
	client     *resty.Client
	collection string
	dimension  int
	metric     string
	maxTopK    int
}

type qdrantPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload"`
}

type qdrantError struct {
	Status any     `json:"status"`
	Time   float64 `json:"time"`
}

func newQdrantStore(ctx context.Context, cfg *Config) (*qdrantStore, error) {
	collection := firstNonEmpty(cfg.Collection, cfg.Table, cfg.ID)
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.DSN, "/")).
		SetTimeout(qdrantDefaultTimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("api-key", cfg.APIKey)
	}
	store := &qdrantStore{
		client:     client,
		collection: collection,
		dimension:  cfg.Dimension,
		metric:     chooseMetric(cfg.Metric),
		maxTopK:    cfg.MaxTopK,
	}
	if cfg.EnsureIndex {
		if err := store.ensureCollection(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func chooseMetric(metric string) string {
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "euclid", "euclidean", "l2":
		return "Euclid"
	case "dot", "dotproduct":
		return "Dot"
	default:
		return "Cosine"
	}
}

// qdrantPointID maps an arbitrary record id onto a stable UUID.
func qdrantPointID(id string) string {
	return uuid.NewSHA1(qdrantNamespace, []byte(id)).String()
}

func (q *qdrantStore) collectionPath(suffix string) string {
	return "/collections/" + q.collection + suffix
}

func (q *qdrantStore) ensureCollection(ctx context.Context) error {
	status, err := q.do(ctx, http.MethodGet, q.collectionPath(""), nil, nil)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{"size": q.dimension, "distance": q.metric},
	}
	_, err = q.do(ctx, http.MethodPut, q.collectionPath(""), body, nil)
	return err
}

func buildQdrantFilter(filters map[string]string) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	must := make([]any, 0, len(filters))
	for key, val := range filters {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": val},
		})
	}
	return map[string]any{"must": must}
}

// splitPayload separates the stored id and text from user metadata.
func splitPayload(point qdrantPoint) (id string, text string, metadata map[string]any) {
	metadata = cloneMap(point.Payload)
	if metadata == nil {
		metadata = make(map[string]any)
	}
	id = fmt.Sprint(point.ID)
	if raw, ok := metadata[qdrantIDField].(string); ok {
		id = raw
		delete(metadata, qdrantIDField)
	}
	if raw, ok := metadata[qdrantTextField].(string); ok {
		text = raw
		delete(metadata, qdrantTextField)
	}
	return id, text, metadata
}

func (q *qdrantStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]any, 0, len(records))
	for i := range records {
		rec := records[i]
		if len(rec.Embedding) != q.dimension {
			return dimensionError("qdrant", rec.ID, len(rec.Embedding), q.dimension)
		}
		payload := cloneMap(rec.Metadata)
		if payload == nil {
			payload = make(map[string]any)
		}
		payload[qdrantIDField] = rec.ID
		payload[qdrantTextField] = rec.Text
		points = append(points, map[string]any{
			"id":      qdrantPointID(rec.ID),
			"vector":  rec.Embedding,
			"payload": payload,
		})
	}
	_, err := q.do(ctx, http.MethodPut, q.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
	return err
}

func (q *qdrantStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]Match, error) {
	if len(query) != q.dimension {
		return nil, dimensionError("qdrant", "", len(query), q.dimension)
	}
	request := map[string]any{
		"vector":       query,
		"limit":        resolveTopK(opts.TopK, q.maxTopK),
		"with_payload": true,
	}
	if filter := buildQdrantFilter(opts.Filters); filter != nil {
		request["filter"] = filter
	}
	var response struct {
		Result []qdrantPoint `json:"result"`
	}
	if _, err := q.do(ctx, http.MethodPost, q.collectionPath("/points/search"), request, &response); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(response.Result))
	for _, point := range response.Result {
		if opts.belowMinScore(point.Score) {
			continue
		}
		id, text, metadata := splitPayload(point)
		matches = append(matches, Match{ID: id, Score: point.Score, Text: text, Metadata: metadata})
	}
	return rankMatches(matches, 0), nil
}

func (q *qdrantStore) Fetch(ctx context.Context, id string) (*Record, error) {
	var response struct {
		Result qdrantPoint `json:"result"`
	}
	status, err := q.do(ctx, http.MethodGet, q.collectionPath("/points/"+qdrantPointID(id)), nil, &response)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	recID, text, metadata := splitPayload(response.Result)
	return &Record{ID: recID, Text: text, Embedding: response.Result.Vector, Metadata: metadata}, nil
}

func (q *qdrantStore) Delete(ctx context.Context, filter Filter) error {
	request := map[string]any{}
	if len(filter.IDs) > 0 {
		ids := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			ids[i] = qdrantPointID(id)
		}
		request["points"] = ids
	} else if f := buildQdrantFilter(filter.Metadata); f != nil {
		request["filter"] = f
	}
	if len(request) == 0 {
		return nil
	}
	_, err := q.do(ctx, http.MethodPost, q.collectionPath("/points/delete?wait=true"), request, nil)
	return err
}

func (q *qdrantStore) Stats(ctx context.Context) (Stats, error) {
	var response struct {
		Result struct {
			PointsCount int64 `json:"points_count"`
		} `json:"result"`
	}
	if _, err := q.do(ctx, http.MethodGet, q.collectionPath(""), nil, &response); err != nil {
		return Stats{}, err
	}
	return Stats{Provider: ProviderQdrant, Dimension: q.dimension, TotalCount: response.Result.PointsCount}, nil
}

func (q *qdrantStore) Close(context.Context) error {
	return nil
}

var errQdrantStatus = errors.New("qdrant: unexpected status")

func (q *qdrantStore) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var apiErr qdrantError
	req := q.client.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return 0, fmt.Errorf("qdrant: request failed: %w", err)
	}
	if resp.IsError() {
		detail := fmt.Sprint(apiErr.Status)
		if apiErr.Status == nil {
			detail = strings.TrimSpace(resp.String())
		}
		return resp.StatusCode(), fmt.Errorf("%w %d: %s", errQdrantStatus, resp.StatusCode(), detail)
	}
	return resp.StatusCode(), nil
}
