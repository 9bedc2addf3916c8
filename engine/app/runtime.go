package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/compozy/woodsage/engine/answer"
	"github.com/compozy/woodsage/engine/catalog"
	"github.com/compozy/woodsage/engine/infra/postgres"
	"github.com/compozy/woodsage/engine/infra/sqlite"
	"github.com/compozy/woodsage/engine/knowledge/chunk"
	"github.com/compozy/woodsage/engine/knowledge/embedder"
	"github.com/compozy/woodsage/engine/knowledge/ingest"
	"github.com/compozy/woodsage/engine/knowledge/retriever"
	"github.com/compozy/woodsage/engine/knowledge/vectordb"
	"github.com/compozy/woodsage/engine/llm"
	llmadapter "github.com/compozy/woodsage/engine/llm/adapter"
	"github.com/compozy/woodsage/engine/llm/keywords"
	"github.com/compozy/woodsage/pkg/config"
	"github.com/compozy/woodsage/pkg/logger"
)

// ErrModelsDisabled is returned by model-backed operations of an offline runtime.
var ErrModelsDisabled = errors.New("language and embedding models are not configured for this command")

const (
	indexID       = "woodsage"
	tokenEncoding = "cl100k_base"
)

// Runtime owns every long-lived component. Build it once with New and release it with Close.
type Runtime struct {
	Config    *config.Config
	Vectors   *vectordb.Manager
	Index     vectordb.Store
	Chunker   *chunk.Chunker
	Truncator embedder.Truncator
	Catalog   *catalog.Service

	// Model-backed components are nil for offline runtimes.
	Embedder    *embedder.Client
	Retriever   *retriever.Service
	LLM         *llm.Service
	Keywords    *keywords.Extractor
	Synthesizer *answer.Synthesizer

	repo         catalog.Repository
	releaseIndex func(context.Context) error
}

type options struct {
	offline   bool
	embedder  embedder.Embedder
	llmClient llmadapter.Client
	repo      catalog.Repository
	fs        afero.Fs
	truncator embedder.Truncator
}

type Option func(*options)

// Offline skips the embedding and language model clients.
func Offline() Option {
	return func(o *options) { o.offline = true }
}

func WithEmbedder(e embedder.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

func WithLLMClient(c llmadapter.Client) Option {
	return func(o *options) { o.llmClient = c }
}

func WithCatalogRepository(r catalog.Repository) Option {
	return func(o *options) { o.repo = r }
}

func WithTruncator(t embedder.Truncator) Option {
	return func(o *options) { o.truncator = t }
}

// WithFs backs the filesystem vector provider.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// New wires the runtime from cfg. Partially built components are closed on error.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (rt *Runtime, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	rt = &Runtime{Config: cfg, Vectors: vectordb.NewManager()}
	defer func() {
		if err != nil {
			err = errors.Join(err, rt.Close(ctx))
			rt = nil
		}
	}()
	if rt.Chunker, err = chunk.New(cfg.Chunking.MaxRunes); err != nil {
		return rt, err
	}
	rt.Truncator = o.truncator
	if rt.Truncator == nil {
		rt.Truncator = buildTruncator(ctx)
	}
	if err = rt.openIndex(ctx, o.fs); err != nil {
		return rt, err
	}
	if err = rt.openCatalog(ctx, o.repo); err != nil {
		return rt, err
	}
	if !o.offline {
		if err = rt.buildModels(o); err != nil {
			return rt, err
		}
	}
	catalogOpts := []catalog.ServiceOption{
		catalog.WithMatcher(catalog.NewMatcher(cfg.Matching.Threshold, cfg.Matching.TopK)),
	}
	if rt.Embedder != nil {
		catalogOpts = append(catalogOpts, catalog.WithIndex(rt.Embedder, rt.Index))
	}
	if rt.Catalog, err = catalog.NewService(rt.repo, catalogOpts...); err != nil {
		return rt, err
	}
	if rt.LLM != nil {
		if err = rt.buildSynthesizer(); err != nil {
			return rt, err
		}
	}
	if cfg.Catalog.Seed {
		if err = rt.seedIfEmpty(ctx); err != nil {
			return rt, err
		}
	}
	logger.FromContext(ctx).Debug("runtime ready",
		"vector_provider", cfg.Vector.Provider,
		"catalog_driver", cfg.Catalog.Driver,
		"offline", o.offline,
	)
	return rt, nil
}

func buildTruncator(ctx context.Context) embedder.Truncator {
	t, err := embedder.NewTruncator(tokenEncoding)
	if err != nil {
		logger.FromContext(ctx).Warn("token encoding unavailable; counting runes", "error", err)
	}
	return t
}

func (r *Runtime) openIndex(ctx context.Context, fs afero.Fs) error {
	vc := r.Config.Vector
	store, release, err := r.Vectors.AcquireShared(ctx, &vectordb.Config{
		ID:          indexID,
		Provider:    vectordb.Provider(vc.Provider),
		DSN:         vc.DSN.Value(),
		APIKey:      vc.APIKey.Value(),
		Path:        vc.Path,
		Collection:  vc.Collection,
		Metric:      vc.Metric,
		Dimension:   r.Config.Embedding.Dimension,
		EnsureIndex: vc.EnsureIndex,
		Fs:          fs,
	})
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	r.Index = store
	r.releaseIndex = release
	return nil
}

func (r *Runtime) openCatalog(ctx context.Context, injected catalog.Repository) error {
	if injected != nil {
		r.repo = injected
		return nil
	}
	cc := r.Config.Catalog
	var err error
	switch cc.Driver {
	case "memory":
		r.repo = catalog.NewMemoryRepository()
	case "postgres":
		r.repo, err = postgres.OpenCatalogRepo(ctx, &postgres.Config{
			ConnString: cc.DSN.Value(),
			MaxConns:   cc.MaxConns,
		})
	default:
		r.repo, err = sqlite.OpenCatalogRepo(ctx, &sqlite.Config{Path: cc.Path})
	}
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	return nil
}

func (r *Runtime) buildModels(o *options) error {
	ec := r.Config.Embedding
	emb := o.embedder
	if emb == nil {
		adapter, err := embedder.New(&embedder.Config{
			ID:        indexID,
			Provider:  embedder.Provider(ec.Provider),
			Model:     ec.Model,
			APIKey:    ec.APIKey.Value(),
			BaseURL:   ec.BaseURL,
			Dimension: ec.Dimension,
			BatchSize: ec.BatchSize,
		})
		if err != nil {
			return fmt.Errorf("build embedder: %w", err)
		}
		if err := adapter.EnableCache(ec.CacheSize); err != nil {
			return fmt.Errorf("enable embedding cache: %w", err)
		}
		emb = adapter
	}
	policy := embedder.DefaultRetryPolicy(ec.MaxAttempts, ec.BackoffBase)
	policy.AttemptTimeout = ec.AttemptTimeout
	r.Embedder = embedder.NewClient(emb,
		embedder.WithTruncator(r.Truncator, ec.MaxTokens),
		embedder.WithRetryPolicy(policy),
	)
	var err error
	r.Retriever, err = retriever.NewService(r.Embedder, r.Index, retriever.Options{
		TopK:     r.Config.Retrieval.TopK,
		MinScore: r.Config.Retrieval.MinScore,
	})
	if err != nil {
		return err
	}
	lc := r.Config.LLM
	client := o.llmClient
	if client == nil {
		client, err = llmadapter.NewClient(&llmadapter.ProviderConfig{
			Provider:    lc.Provider,
			Model:       lc.Model,
			APIKey:      lc.APIKey.Value(),
			BaseURL:     lc.BaseURL,
			Temperature: lc.Temperature,
		}, llmadapter.Limits{MaxConcurrency: lc.MaxConcurrency, RequestsPerMinute: lc.RequestsPerMinute})
		if err != nil {
			return fmt.Errorf("build llm client: %w", err)
		}
	}
	r.LLM = llm.NewService(client,
		llm.WithModel(lc.Provider, lc.Model),
		llm.WithTimeout(lc.Timeout),
		llm.WithTemperature(lc.Temperature),
		llm.WithRecorder(providerRecorder()),
	)
	r.Keywords = keywords.NewExtractor(r.LLM)
	return nil
}

func (r *Runtime) buildSynthesizer() error {
	videos := make(map[string]string, len(r.Config.Videos))
	for _, v := range r.Config.Videos {
		videos[v.Title] = v.URL
	}
	var err error
	r.Synthesizer, err = answer.NewSynthesizer(answer.Dependencies{
		Retriever: r.Retriever,
		Completer: r.LLM,
		Extractor: r.Keywords,
		Catalog:   r.Catalog,
		Truncator: r.Truncator,
	}, answer.Options{
		TopK:             r.Config.Retrieval.TopK,
		MaxContextTokens: r.Config.Synthesis.MaxContextTokens,
		Videos:           videos,
	})
	return err
}

func (r *Runtime) seedIfEmpty(ctx context.Context) error {
	existing, err := r.Catalog.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	_, err = r.SeedCatalog(ctx)
	return err
}

// SeedCatalog upserts the configured seed file or the built-in products.
func (r *Runtime) SeedCatalog(ctx context.Context) (int, error) {
	var entities []catalog.Entity
	if path := r.Config.Catalog.SeedFile; path != "" {
		loaded, err := catalog.LoadSeedFile(path)
		if err != nil {
			return 0, err
		}
		entities = loaded
	}
	n, err := r.Catalog.Seed(ctx, entities)
	if err != nil {
		return 0, fmt.Errorf("seed catalog: %w", err)
	}
	return n, nil
}

// Ingest chunks, embeds and indexes docs.
func (r *Runtime) Ingest(ctx context.Context, docs []chunk.Document, opts ingest.Options) (*ingest.Result, error) {
	if r.Embedder == nil {
		return nil, ErrModelsDisabled
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = r.Config.Ingest.Concurrency
	}
	if opts.Strategy == "" {
		opts.Strategy = ingest.Strategy(r.Config.Ingest.Strategy)
	}
	p, err := ingest.NewPipeline(r.Chunker, r.Embedder, r.Index, opts)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, docs)
}

// Answer runs the synthesis machine for query.
func (r *Runtime) Answer(ctx context.Context, query string) (*answer.Result, error) {
	if r.Synthesizer == nil {
		return nil, ErrModelsDisabled
	}
	return r.Synthesizer.Answer(ctx, query)
}

// Close releases the index, the catalog and the model clients.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.LLM != nil {
		errs = append(errs, r.LLM.Close())
	}
	if r.releaseIndex != nil {
		errs = append(errs, r.releaseIndex(ctx))
	}
	if r.Vectors != nil {
		errs = append(errs, r.Vectors.CloseAll(ctx))
	}
	if r.repo != nil {
		errs = append(errs, r.repo.Close())
	}
	return errors.Join(errs...)
}
