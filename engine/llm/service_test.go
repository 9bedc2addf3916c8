package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmadapter "github.com/compozy/woodsage/engine/llm/adapter"
)

type fakeClient struct {
	content string
	err     error
	block   bool
	req     *llmadapter.CompletionRequest
}

func (f *fakeClient) GenerateContent(ctx context.Context, req *llmadapter.CompletionRequest) (*llmadapter.Completion, error) {
	f.req = req
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llmadapter.Completion{Content: f.content}, nil
}

func (f *fakeClient) Close() error { return nil }

type recordedError struct{ code string }

type spyRecorder struct {
	outcomes []string
	errors   []recordedError
}

func (s *spyRecorder) RecordRequest(_ context.Context, _, _ string, _ time.Duration, outcome string) {
	s.outcomes = append(s.outcomes, outcome)
}

func (s *spyRecorder) RecordError(_ context.Context, _, _, code string) {
	s.errors = append(s.errors, recordedError{code: code})
}

func TestService_Complete(t *testing.T) {
	t.Run("Should send the system prompt and trimmed user text", func(t *testing.T) {
		client := &fakeClient{content: "  Use a jointer first.  "}
		rec := &spyRecorder{}
		svc := NewService(client, WithModel("openai", "gpt-4o"), WithRecorder(rec), WithTemperature(0.3))
		out, err := svc.Complete(t.Context(), "persona", "question")
		require.NoError(t, err)
		assert.Equal(t, "Use a jointer first.", out)
		assert.Equal(t, "persona", client.req.System)
		assert.Equal(t, "question", client.req.Messages[0].Content)
		assert.InDelta(t, 0.3, client.req.Temperature, 1e-9)
		assert.Equal(t, []string{"success"}, rec.outcomes)
	})

	t.Run("Should wrap provider failures as ErrCompletionUnavailable", func(t *testing.T) {
		rec := &spyRecorder{}
		cause := llmadapter.NewErrorWithCode(llmadapter.ErrCodeUnauthorized, "bad key", "openai", nil)
		svc := NewService(&fakeClient{err: cause}, WithRecorder(rec))
		_, err := svc.Complete(t.Context(), "s", "u")
		require.ErrorIs(t, err, ErrCompletionUnavailable)
		assert.ErrorIs(t, err, cause)
		require.Len(t, rec.errors, 1)
		assert.Equal(t, "UNAUTHORIZED", rec.errors[0].code)
	})

	t.Run("Should treat blank output as unavailable", func(t *testing.T) {
		svc := NewService(&fakeClient{content: "   "})
		_, err := svc.Complete(t.Context(), "s", "u")
		assert.ErrorIs(t, err, ErrCompletionUnavailable)
	})

	t.Run("Should time out slow calls", func(t *testing.T) {
		rec := &spyRecorder{}
		svc := NewService(&fakeClient{block: true}, WithTimeout(5*time.Millisecond), WithRecorder(rec))
		_, err := svc.Complete(t.Context(), "s", "u")
		require.ErrorIs(t, err, ErrCompletionUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, "TIMEOUT", rec.errors[0].code)
	})

	t.Run("Should return the caller's cancellation untouched", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		svc := NewService(&fakeClient{err: errors.New("aborted")})
		_, err := svc.Complete(ctx, "s", "u")
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrCompletionUnavailable)
	})
}
