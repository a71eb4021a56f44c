package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindRetriable(t *testing.T) {
	retriable := []ErrorKind{KindRateLimited, KindTimeout, KindUpstreamError}
	for _, k := range retriable {
		assert.True(t, k.Retriable(), "%s should be retriable", k)
	}

	terminal := []ErrorKind{
		KindUnknownAgent, KindInvalidPayload, KindAgentCrashed,
		KindAuthFailure, KindInvalidRequest, KindQueueFull, KindInvalidCron,
	}
	for _, k := range terminal {
		assert.False(t, k.Retriable(), "%s should be terminal", k)
	}
}

func TestJobErrorFormat(t *testing.T) {
	err := NewJobError(KindUnknownAgent, `agent "nope" is not registered`)
	assert.Equal(t, `UnknownAgent: agent "nope" is not registered`, err.Error())

	bare := &JobError{Kind: KindQueueFull}
	assert.Equal(t, "QueueFull", bare.Error())
}

func TestWrapJobErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapJobError(KindUpstreamError, cause)

	assert.Equal(t, "UpstreamError: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retriable())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindAuthFailure, KindOf(NewJobError(KindAuthFailure, "bad key")))

	// Wrapped JobErrors are still found.
	wrapped := fmt.Errorf("execute: %w", NewJobError(KindRateLimited, "slow down"))
	assert.Equal(t, KindRateLimited, KindOf(wrapped))

	// Opaque errors default to the retriable upstream category.
	assert.Equal(t, KindUpstreamError, KindOf(errors.New("mystery")))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("RateLimited: too many requests")
	assert.True(t, ok)
	assert.Equal(t, KindRateLimited, k)

	k, ok = ParseKind("QueueFull")
	assert.True(t, ok)
	assert.Equal(t, KindQueueFull, k)

	_, ok = ParseKind("SomethingElse: detail")
	assert.False(t, ok)

	_, ok = ParseKind("")
	assert.False(t, ok)
}
