package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	llmadapter "github.com/compozy/woodsage/engine/llm/adapter"
	providermetrics "github.com/compozy/woodsage/engine/llm/provider/metrics"
	"github.com/compozy/woodsage/pkg/logger"
)

// Completer produces one completion for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Service implements Completer over an adapter client with a per-call timeout.
type Service struct {
	client llmadapter.Client
	config *Config
}

func NewService(client llmadapter.Client, opts ...Option) *Service {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Recorder == nil {
		cfg.Recorder = providermetrics.Nop()
	}
	return &Service{client: client, config: cfg}
}

// Complete fails with ErrCompletionUnavailable unless the caller's context ended first.
func (s *Service) Complete(ctx context.Context, system, user string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	start := time.Now()
	resp, err := s.client.GenerateContent(callCtx, &llmadapter.CompletionRequest{
		System:      system,
		Messages:    []llmadapter.Message{{Role: llmadapter.RoleUser, Content: user}},
		Temperature: s.config.Temperature,
	})
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		s.recordFailure(ctx, err, elapsed)
		return "", fmt.Errorf("%w: %w", ErrCompletionUnavailable, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		err := llmadapter.NewErrorWithCode(llmadapter.ErrCodeEmptyResponse, "blank completion", s.config.Provider, nil)
		s.recordFailure(ctx, err, elapsed)
		return "", fmt.Errorf("%w: %w", ErrCompletionUnavailable, err)
	}
	s.config.Recorder.RecordRequest(ctx, s.config.Provider, s.config.Model, elapsed, "success")
	logger.FromContext(ctx).Debug("completion finished", "model", s.config.Model, "duration", elapsed)
	return text, nil
}

func (s *Service) Close() error {
	return s.client.Close()
}

func (s *Service) recordFailure(ctx context.Context, err error, elapsed time.Duration) {
	code := string(llmadapter.ErrCodeInternal)
	if llmErr, ok := llmadapter.IsLLMError(err); ok {
		code = string(llmErr.Code)
	} else if errors.Is(err, context.DeadlineExceeded) {
		code = string(llmadapter.ErrCodeTimeout)
	}
	s.config.Recorder.RecordRequest(ctx, s.config.Provider, s.config.Model, elapsed, "error")
	s.config.Recorder.RecordError(ctx, s.config.Provider, s.config.Model, code)
	logger.FromContext(ctx).Warn("completion failed", "model", s.config.Model, "code", code, "error", err)
}
