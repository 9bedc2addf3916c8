package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type stubModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *stubModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, m.err
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChainAdapter_GenerateContent(t *testing.T) {
	t.Run("Should send system and user messages", func(t *testing.T) {
		model := &stubModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "draft"}}}}
		adapter := NewLangChainAdapterWithModel(model, &ProviderConfig{Provider: "openai", Temperature: 0.2})
		resp, err := adapter.GenerateContent(t.Context(), &CompletionRequest{
			System:   "You are Jason Bent",
			Messages: []Message{{Role: RoleUser, Content: "How do I flatten a board?"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "draft", resp.Content)
		require.Len(t, model.messages, 2)
		assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
		assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
		assert.InDelta(t, 0.2, model.opts.Temperature, 1e-9)
	})

	t.Run("Should classify provider errors", func(t *testing.T) {
		model := &stubModel{err: errors.New("API returned unexpected status code: 429: Rate limit reached")}
		adapter := NewLangChainAdapterWithModel(model, &ProviderConfig{Provider: "openai"})
		_, err := adapter.GenerateContent(t.Context(), &CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})
		llmErr, ok := IsLLMError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeRateLimit, llmErr.Code)
		assert.True(t, llmErr.Retryable())
	})

	t.Run("Should reject empty responses", func(t *testing.T) {
		adapter := NewLangChainAdapterWithModel(&stubModel{resp: &llms.ContentResponse{}}, nil)
		_, err := adapter.GenerateContent(t.Context(), &CompletionRequest{})
		llmErr, ok := IsLLMError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeEmptyResponse, llmErr.Code)
	})

	t.Run("Should return the context error when canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		adapter := NewLangChainAdapterWithModel(&stubModel{err: errors.New("request canceled")}, nil)
		_, err := adapter.GenerateContent(ctx, &CompletionRequest{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := NewLangChainAdapter(&ProviderConfig{Provider: "carrier-pigeon"})
		require.Error(t, err)
	})
}

func TestErrorParser(t *testing.T) {
	parser := NewErrorParser("openai")
	cases := []struct {
		msg  string
		code ErrorCode
	}{
		{"status code: 503 service unavailable", ErrCodeUnavailable},
		{"invalid api key provided", ErrCodeUnauthorized},
		{"insufficient_quota", ErrCodeQuotaExceeded},
		{"context deadline exceeded", ErrCodeTimeout},
		{"dial tcp: connection refused", ErrCodeConnectionRefused},
		{"API returned unexpected status code: 429: insufficient_quota", ErrCodeQuotaExceeded},
		{"API returned unexpected status code: 429: slow down", ErrCodeRateLimit},
		{"The model `gpt-9` does not exist", ErrCodeInvalidModel},
	}
	for _, tc := range cases {
		t.Run("Should classify "+tc.msg, func(t *testing.T) {
			got := parser.ParseError(errors.New(tc.msg))
			require.NotNil(t, got)
			assert.Equal(t, tc.code, got.Code)
		})
	}
	t.Run("Should classify wrapped transport errors by type", func(t *testing.T) {
		got := parser.ParseError(fmt.Errorf("call: %w", context.DeadlineExceeded))
		require.NotNil(t, got)
		assert.Equal(t, ErrCodeTimeout, got.Code)
		assert.True(t, got.Retryable())
	})
	t.Run("Should not read status codes out of unrelated numbers", func(t *testing.T) {
		assert.Nil(t, parser.ParseError(errors.New("input of 4000 runes was trimmed")))
	})
	t.Run("Should return nil for unknown errors", func(t *testing.T) {
		assert.Nil(t, parser.ParseError(errors.New("something odd")))
	})
}
