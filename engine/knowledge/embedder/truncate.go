package embedder

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

// Truncator bounds text to a model budget.
type Truncator interface {
	Truncate(text string, limit int) string
	Count(text string) int
}

// TokenTruncator counts BPE tokens with a tiktoken encoding.
type TokenTruncator struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTokenTruncator loads the named encoding. Loading may fetch BPE ranks on first use.
func NewTokenTruncator(encoding string) (*TokenTruncator, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &TokenTruncator{enc: enc}, nil
}

func (t *TokenTruncator) Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text
	}
	return t.enc.Decode(tokens[:limit])
}

func (t *TokenTruncator) Count(text string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// RuneTruncator treats each rune as a token.
type RuneTruncator struct{}

func (RuneTruncator) Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

func (RuneTruncator) Count(text string) int {
	return utf8.RuneCountInString(text)
}

// NewTruncator prefers tiktoken and degrades to rune counting when the encoding cannot load.
func NewTruncator(encoding string) (Truncator, error) {
	tt, err := NewTokenTruncator(encoding)
	if err != nil {
		return RuneTruncator{}, err
	}
	return tt, nil
}
