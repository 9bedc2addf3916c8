package llmadapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ProviderConfig selects and authenticates the chat model.
type ProviderConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
}

// LangChainAdapter adapts langchaingo to our Client interface
type LangChainAdapter struct {
	model    llms.Model
	provider ProviderConfig
	parser   *ErrorParser
}

// NewLangChainAdapter builds the provider model from config.
func NewLangChainAdapter(config *ProviderConfig) (*LangChainAdapter, error) {
	if config == nil {
		return nil, fmt.Errorf("provider config must not be nil")
	}
	model, err := createModel(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}
	return NewLangChainAdapterWithModel(model, config), nil
}

// NewLangChainAdapterWithModel wraps an existing model.
func NewLangChainAdapterWithModel(model llms.Model, config *ProviderConfig) *LangChainAdapter {
	cfg := ProviderConfig{}
	if config != nil {
		cfg = *config
	}
	return &LangChainAdapter{model: model, provider: cfg, parser: NewErrorParser(cfg.Provider)}
}

func createModel(config *ProviderConfig) (llms.Model, error) {
	switch strings.ToLower(config.Provider) {
	case "", "openai":
		opts := []openai.Option{openai.WithModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}

// GenerateContent implements Client interface
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	messages := a.convertMessages(req)
	options := a.buildCallOptions(req)
	response, err := a.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if llmErr := a.parser.ParseError(err); llmErr != nil {
			return nil, llmErr
		}
		return nil, fmt.Errorf("langchain GenerateContent failed: %w", err)
	}
	return a.convertResponse(response)
}

func (a *LangChainAdapter) Close() error { return nil }

func (a *LangChainAdapter) convertMessages(req *CompletionRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, msg := range req.Messages {
		messages = append(messages, llms.TextParts(mapMessageRole(msg.Role), msg.Content))
	}
	return messages
}

func mapMessageRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func (a *LangChainAdapter) buildCallOptions(req *CompletionRequest) []llms.CallOption {
	var options []llms.CallOption
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = a.provider.Temperature
	}
	if temperature > 0 {
		options = append(options, llms.WithTemperature(temperature))
	}
	if req.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.MaxTokens))
	}
	return options
}

func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*Completion, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, NewErrorWithCode(ErrCodeEmptyResponse, "empty response from LLM", a.provider.Provider, nil)
	}
	return &Completion{Content: resp.Choices[0].Content}, nil
}
