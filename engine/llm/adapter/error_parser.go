package llmadapter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// statusPattern finds HTTP status codes in langchaingo and net/http error text,
// e.g. "API returned unexpected status code: 429" or "HTTP 503".
var statusPattern = regexp.MustCompile(`(?i)(?:status(?: code)?:?|http)\s*([1-5]\d{2})\b`)

type messageRule struct {
	code     ErrorCode
	status   int
	patterns []string
}

// Order matters: quota before rate limit, since OpenAI reports exhausted
// credit as a 429 with insufficient_quota.
var messageRules = []messageRule{
	{code: ErrCodeQuotaExceeded, patterns: []string{"insufficient_quota", "exceeded your current quota"}},
	{status: http.StatusTooManyRequests, patterns: []string{
		"rate limit", "rate_limit", "too many requests", "requests per minute", "tokens per minute",
	}},
	{status: http.StatusServiceUnavailable, patterns: []string{
		"service unavailable", "temporarily unavailable", "overloaded", "server_error", "try again later",
	}},
	{status: http.StatusUnauthorized, patterns: []string{
		"invalid api key", "invalid_api_key", "incorrect api key", "unauthorized", "authentication",
	}},
	{code: ErrCodeInvalidModel, patterns: []string{"model_not_found", "model not found", "does not exist"}},
	{code: ErrCodeContentPolicy, patterns: []string{"content_policy", "content policy", "content_filter"}},
	{code: ErrCodeTimeout, patterns: []string{"timeout", "timed out", "deadline exceeded"}},
	{code: ErrCodeConnectionReset, patterns: []string{"connection reset", "broken pipe", "unexpected eof"}},
	{code: ErrCodeConnectionRefused, patterns: []string{"connection refused", "no such host", "network is unreachable"}},
}

// ErrorParser classifies raw completion and embedding errors so callers can
// decide whether to retry.
type ErrorParser struct {
	provider string
}

func NewErrorParser(provider string) *ErrorParser {
	return &ErrorParser{provider: provider}
}

// ParseError returns nil when err cannot be classified.
func (p *ErrorParser) ParseError(err error) *Error {
	if err == nil {
		return nil
	}
	if llmErr, ok := IsLLMError(err); ok {
		return llmErr
	}
	msg := err.Error()
	if code := p.typedCode(err); code != "" {
		return NewErrorWithCode(code, msg, p.provider, err)
	}
	lower := strings.ToLower(msg)
	quota := matchRule(messageRules[0], lower)
	if status := statusFromMessage(msg); status > 0 && !quota {
		return NewError(status, msg, p.provider, err)
	}
	for _, rule := range messageRules {
		if !matchRule(rule, lower) {
			continue
		}
		if rule.code != "" {
			return NewErrorWithCode(rule.code, msg, p.provider, err)
		}
		return NewError(rule.status, msg, p.provider, err)
	}
	return nil
}

// typedCode classifies transport errors without looking at their text.
func (p *ErrorParser) typedCode(err error) ErrorCode {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrCodeTimeout
	case errors.Is(err, syscall.ECONNRESET):
		return ErrCodeConnectionReset
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrCodeConnectionRefused
	}
	return ""
}

func statusFromMessage(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}

func matchRule(rule messageRule, lower string) bool {
	for _, pattern := range rule.patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
