package llmadapter

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies provider failures.
type ErrorCode string

const (
	ErrCodeRateLimit         ErrorCode = "RATE_LIMIT"
	ErrCodeUnavailable       ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidModel      ErrorCode = "INVALID_MODEL"
	ErrCodeContentPolicy     ErrorCode = "CONTENT_POLICY"
	ErrCodeQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeConnectionReset   ErrorCode = "CONNECTION_RESET"
	ErrCodeConnectionRefused ErrorCode = "CONNECTION_REFUSED"
	ErrCodeEmptyResponse     ErrorCode = "EMPTY_RESPONSE"
	ErrCodeInternal          ErrorCode = "INTERNAL"
)

// Error is a classified provider failure.
type Error struct {
	Code       ErrorCode
	StatusCode int
	Message    string
	Provider   string
	Err        error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeUnavailable, ErrCodeTimeout, ErrCodeConnectionReset:
		return true
	default:
		return false
	}
}

// NewError classifies by HTTP status code.
func NewError(statusCode int, message, provider string, err error) *Error {
	return &Error{
		Code:       codeForStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
		Provider:   provider,
		Err:        err,
	}
}

func NewErrorWithCode(code ErrorCode, message, provider string, err error) *Error {
	return &Error{Code: code, Message: message, Provider: provider, Err: err}
}

// IsLLMError extracts a classified error from err's chain.
func IsLLMError(err error) (*Error, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrCodeUnauthorized
	case http.StatusBadRequest:
		return ErrCodeBadRequest
	case http.StatusNotFound:
		return ErrCodeInvalidModel
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return ErrCodeUnavailable
	case http.StatusGatewayTimeout:
		return ErrCodeTimeout
	default:
		return ErrCodeInternal
	}
}
