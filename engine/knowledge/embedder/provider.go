package embedder

import (
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

func newProviderEmbedder(cfg *Config) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("openai client: %w", err)
		}
		e, err := embeddings.NewEmbedder(client,
			embeddings.WithBatchSize(cfg.BatchSize),
			embeddings.WithStripNewLines(cfg.StripNewLines),
		)
		if err != nil {
			return nil, fmt.Errorf("openai embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("provider %q is not supported", cfg.Provider)
	}
}
