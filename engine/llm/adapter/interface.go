package llmadapter

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// CompletionRequest is one chat completion. Zero Temperature defers to the
// provider configuration and zero MaxTokens leaves the reply unbounded.
type CompletionRequest struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type Completion struct {
	Content string
}

// Client produces completions. Implementations must be safe for concurrent use.
type Client interface {
	GenerateContent(ctx context.Context, req *CompletionRequest) (*Completion, error)
	Close() error
}
