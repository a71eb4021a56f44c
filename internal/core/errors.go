package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies job and schedule failures into a small set of
// categories that drive the retry decision.
type ErrorKind string

const (
	// KindUnknownAgent indicates a submission named an unregistered agent.
	KindUnknownAgent ErrorKind = "UnknownAgent"
	// KindInvalidPayload indicates the agent rejected the payload shape.
	KindInvalidPayload ErrorKind = "InvalidPayload"
	// KindAgentCrashed indicates the agent panicked during execution.
	KindAgentCrashed ErrorKind = "AgentCrashed"
	// KindAuthFailure indicates the provider rejected our credentials.
	KindAuthFailure ErrorKind = "AuthFailure"
	// KindInvalidRequest indicates the provider rejected the request shape.
	KindInvalidRequest ErrorKind = "InvalidRequest"
	// KindRateLimited indicates the provider is throttling requests.
	KindRateLimited ErrorKind = "RateLimited"
	// KindTimeout indicates a provider or store call exceeded its deadline.
	KindTimeout ErrorKind = "Timeout"
	// KindUpstreamError indicates a transient provider-side failure.
	KindUpstreamError ErrorKind = "UpstreamError"
	// KindQueueFull indicates the ready queue rejected a submission.
	KindQueueFull ErrorKind = "QueueFull"
	// KindInvalidCron indicates a schedule carries an unusable expression or zone.
	KindInvalidCron ErrorKind = "InvalidCron"
)

// Retriable reports whether the pipeline may retry a failure of this kind.
// Only provider-side transient conditions qualify; everything else is
// terminal for the job.
func (k ErrorKind) Retriable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindUpstreamError:
		return true
	default:
		return false
	}
}

// JobError pairs a failure reason with its kind so the pipeline can decide
// disposition without string matching.
type JobError struct {
	Kind   ErrorKind
	Reason string
	Cause  error
}

// NewJobError builds a JobError with the given kind and reason.
func NewJobError(kind ErrorKind, reason string) *JobError {
	return &JobError{Kind: kind, Reason: reason}
}

// WrapJobError builds a JobError around an underlying cause.
func WrapJobError(kind ErrorKind, cause error) *JobError {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return &JobError{Kind: kind, Reason: reason, Cause: cause}
}

func (e *JobError) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *JobError) Unwrap() error { return e.Cause }

// Retriable reports whether the error's kind permits a retry.
func (e *JobError) Retriable() bool { return e.Kind.Retriable() }

// KindOf extracts the ErrorKind from err's chain. Unclassified errors map to
// KindUpstreamError, matching the retriable-by-default treatment of opaque
// provider failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	return KindUpstreamError
}

// ParseKind recovers an ErrorKind from a persisted failure reason of the form
// "Kind: detail". Used by operational tooling; returns false when the prefix
// is not a known kind.
func ParseKind(reason string) (ErrorKind, bool) {
	head, _, _ := strings.Cut(reason, ":")
	k := ErrorKind(strings.TrimSpace(head))
	switch k {
	case KindUnknownAgent, KindInvalidPayload, KindAgentCrashed, KindAuthFailure,
		KindInvalidRequest, KindRateLimited, KindTimeout, KindUpstreamError,
		KindQueueFull, KindInvalidCron:
		return k, true
	default:
		return "", false
	}
}
