package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun-io/agentrun/internal/core"
	"github.com/agentrun-io/agentrun/internal/provider"
)

type fakeAgent struct {
	name        string
	validateErr error
	result      *Result
	execErr     error
	panicWith   any
}

func (f *fakeAgent) Name() string        { return f.name }
func (f *fakeAgent) Description() string { return "fake" }

func (f *fakeAgent) ValidatePayload(json.RawMessage) error { return f.validateErr }

func (f *fakeAgent) Execute(context.Context, json.RawMessage) (*Result, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.result, f.execErr
}

func newTestRuntime(t *testing.T, agents ...Agent) *Runtime {
	t.Helper()
	reg := NewRegistry()
	for _, a := range agents {
		reg.Register(a)
	}
	return NewRuntime(RuntimeOptions{Registry: reg})
}

func TestRuntimeExecuteUnknownAgent(t *testing.T) {
	rt := newTestRuntime(t)

	res, err := rt.Execute(context.Background(), "missing", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.Equal(t, core.KindUnknownAgent, core.KindOf(err))
	assert.False(t, core.KindOf(err).Retriable())
	require.NotNil(t, res)
	assert.False(t, res.Success)
}

func TestRuntimeExecuteInvalidPayload(t *testing.T) {
	rt := newTestRuntime(t, &fakeAgent{name: "a", validateErr: errors.New("missing field")})

	res, err := rt.Execute(context.Background(), "a", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.Equal(t, core.KindInvalidPayload, core.KindOf(err))
	require.NotNil(t, res)
	assert.Contains(t, res.Error, "missing field")
}

func TestRuntimeExecutePanicBecomesAgentCrashed(t *testing.T) {
	rt := newTestRuntime(t, &fakeAgent{name: "a", panicWith: "boom"})

	res, err := rt.Execute(context.Background(), "a", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.Equal(t, core.KindAgentCrashed, core.KindOf(err))
	assert.False(t, core.KindOf(err).Retriable())
	require.NotNil(t, res)
	assert.Contains(t, res.Error, "boom")
}

func TestRuntimeExecuteProviderErrorKeepsKind(t *testing.T) {
	provErr := &provider.Error{Provider: "openai", Kind: core.KindRateLimited, Status: 429, Message: "slow down"}
	rt := newTestRuntime(t, &fakeAgent{name: "a", execErr: provErr})

	res, err := rt.Execute(context.Background(), "a", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.Equal(t, core.KindRateLimited, core.KindOf(err))
	assert.True(t, core.KindOf(err).Retriable())
	require.NotNil(t, res)
	assert.False(t, res.Success)
}

func TestRuntimeExecuteUnclassifiedErrorDefaultsToUpstream(t *testing.T) {
	rt := newTestRuntime(t, &fakeAgent{name: "a", execErr: errors.New("socket reset")})

	_, err := rt.Execute(context.Background(), "a", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.Equal(t, core.KindUpstreamError, core.KindOf(err))
}

func TestRuntimeExecuteDomainFailureResult(t *testing.T) {
	rt := newTestRuntime(t, &fakeAgent{name: "a", result: Fail("nothing matched")})

	res, err := rt.Execute(context.Background(), "a", json.RawMessage(`{}`))

	require.Error(t, err)
	assert.Equal(t, core.KindUpstreamError, core.KindOf(err))
	require.NotNil(t, res)
	assert.Equal(t, "nothing matched", res.Error)
}

func TestRuntimeExecuteSuccessAttachesDuration(t *testing.T) {
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	calls := 0
	rt := NewRuntime(RuntimeOptions{
		Registry: NewRegistry(),
		Now: func() time.Time {
			calls++
			return base.Add(time.Duration(calls-1) * 250 * time.Millisecond)
		},
	})
	rt.Registry().Register(&fakeAgent{name: "a", result: Succeed("ok")})

	res, err := rt.Execute(context.Background(), "a", json.RawMessage(`{}`))

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Output)
	assert.Equal(t, int64(250), res.Metadata["duration_ms"])
	assert.Equal(t, "a", res.Metadata["agent"])
}

func TestRegistryRegisterAndNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeAgent{name: "zeta"})
	reg.Register(&fakeAgent{name: "alpha"})
	reg.Register(nil)
	reg.Register(&fakeAgent{name: ""})

	assert.Equal(t, []string{"alpha", "zeta"}, reg.Names())
	assert.True(t, reg.Has("alpha"))
	assert.False(t, reg.Has("missing"))
}
