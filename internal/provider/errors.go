package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/agentrun-io/agentrun/internal/core"
)

// ErrProviderUnavailable is returned by the registry when a provider is
// unknown or not configured.
var ErrProviderUnavailable = errors.New("provider unavailable")

// Error describes a failure returned by a provider backend. It carries the
// shared core.ErrorKind taxonomy so the pipeline can make the retry decision
// without inspecting provider-specific details.
type Error struct {
	Provider string
	Kind     core.ErrorKind
	Status   int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		msg = "provider error"
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s %s (%d): %s", e.Provider, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether retrying the call may succeed.
func (e *Error) Retryable() bool { return e.Kind.Retriable() }

// newError builds a provider Error, deriving the kind from the HTTP status
// when the caller has nothing more specific.
func newError(providerName string, status int, cause error) *Error {
	return &Error{
		Provider: providerName,
		Kind:     kindFromStatus(status, cause),
		Status:   status,
		Cause:    cause,
	}
}

// kindFromStatus maps an HTTP status (or context error) onto the taxonomy.
func kindFromStatus(status int, cause error) core.ErrorKind {
	if cause != nil &&
		(errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled)) {
		return core.KindTimeout
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.KindAuthFailure
	case status == http.StatusTooManyRequests:
		return core.KindRateLimited
	case status == http.StatusBadRequest ||
		status == http.StatusNotFound ||
		status == http.StatusUnprocessableEntity:
		return core.KindInvalidRequest
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return core.KindTimeout
	default:
		return core.KindUpstreamError
	}
}

// AsError returns the first *Error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var pe *Error
	ok := errors.As(err, &pe)
	return pe, ok
}
