package helpers

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrTimeout = errors.New("operation timed out")
	// ErrUnavailable marks a model or storage dependency that did not answer.
	ErrUnavailable = errors.New("service unavailable")
)

// CliError is what every command returns to the user. Code is stable and
// scripts may match on it; Message and Details are for people.
type CliError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *CliError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewCliError(code, message string, details ...string) *CliError {
	err := &CliError{Code: code, Message: message}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

type TimeoutError struct {
	Operation string
	Duration  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s timed out after %s", e.Operation, e.Duration)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// UnavailableError names the dependency that failed.
type UnavailableError struct {
	Dependency string
	Cause      error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Cause)
	}
	return fmt.Sprintf("%s unavailable", e.Dependency)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Cause }

func NewTimeoutError(operation, duration string) error {
	return &TimeoutError{Operation: operation, Duration: duration}
}

func NewUnavailableError(dependency string, cause error) error {
	return &UnavailableError{Dependency: dependency, Cause: cause}
}

func hasCode(err error, codes ...string) bool {
	var cliErr *CliError
	if !errors.As(err, &cliErr) {
		return false
	}
	for _, code := range codes {
		if cliErr.Code == code {
			return true
		}
	}
	return false
}

func IsTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) ||
		hasCode(err, "OPERATION_TIMEOUT")
}

func IsUnavailableError(err error) bool {
	return errors.Is(err, ErrUnavailable) || hasCode(err, "SERVICE_UNAVAILABLE", "MODELS_DISABLED")
}
