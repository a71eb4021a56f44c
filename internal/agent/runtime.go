package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentrun-io/agentrun/internal/core"
	"github.com/agentrun-io/agentrun/internal/provider"
)

// Runtime wraps agent execution with payload validation, timing, and panic
// containment. The pipeline never calls agents directly.
type Runtime struct {
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

// RuntimeOptions configures a Runtime.
type RuntimeOptions struct {
	Registry *Registry
	Logger   *slog.Logger
	// Now is overridable in tests.
	Now func() time.Time
}

// NewRuntime creates a Runtime over the given registry.
func NewRuntime(opts RuntimeOptions) *Runtime {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Runtime{registry: registry, logger: opts.Logger, now: now}
}

// Registry returns the runtime's agent registry.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// Has reports whether name resolves to a registered agent.
func (rt *Runtime) Has(name string) bool { return rt.registry.Has(name) }

// Execute resolves the agent by name and runs it. The returned Result always
// carries a duration_ms metadata entry. Failures are reported both in the
// Result and as a classified error so the pipeline can decide disposition:
//   - validation failures carry core.KindInvalidPayload (never retried)
//   - panics carry core.KindAgentCrashed (never retried)
//   - provider failures keep the provider's kind
func (rt *Runtime) Execute(ctx context.Context, name string, payload json.RawMessage) (*Result, error) {
	a, ok := rt.registry.Get(name)
	if !ok {
		reason := fmt.Sprintf("agent %q is not registered", name)
		return Fail(reason), core.NewJobError(core.KindUnknownAgent, reason)
	}

	if err := a.ValidatePayload(payload); err != nil {
		reason := fmt.Sprintf("payload validation failed: %v", err)
		if rt.logger != nil {
			rt.logger.DebugContext(ctx, "agent payload rejected", "agent", name, "error", err)
		}
		return Fail(reason), core.NewJobError(core.KindInvalidPayload, reason)
	}

	start := rt.now()
	result, execErr := rt.executeGuarded(ctx, a, payload)
	elapsed := rt.now().Sub(start)

	if result == nil {
		result = Fail("agent returned no result")
	}
	result.WithMeta("duration_ms", elapsed.Milliseconds()).WithMeta("agent", name)

	if execErr != nil {
		result.Success = false
		if result.Error == "" {
			result.Error = execErr.Error()
		}
		return result, rt.classify(execErr)
	}
	if !result.Success {
		// Domain failure reported by the agent itself; treated as upstream so
		// the pipeline's retry budget applies.
		return result, core.NewJobError(core.KindUpstreamError, result.Error)
	}
	return result, nil
}

// executeGuarded converts a panicking agent into an error instead of taking
// the worker down. Crashes indicate a bug, not a transient condition.
func (rt *Runtime) executeGuarded(
	ctx context.Context,
	a Agent,
	payload json.RawMessage,
) (result *Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reason := fmt.Sprintf("agent %s panicked: %v", a.Name(), rec)
			if rt.logger != nil {
				rt.logger.ErrorContext(ctx, "agent crashed", "agent", a.Name(), "panic", rec)
			}
			result = Fail(reason)
			err = core.NewJobError(core.KindAgentCrashed, reason)
		}
	}()
	return a.Execute(ctx, payload)
}

// classify normalizes execution errors into the shared taxonomy. Provider
// errors keep their kind; anything already classified passes through;
// unclassified errors default to UpstreamError.
func (rt *Runtime) classify(err error) error {
	var je *core.JobError
	if errors.As(err, &je) {
		return err
	}
	if pe, ok := provider.AsError(err); ok {
		return &core.JobError{Kind: pe.Kind, Reason: pe.Error(), Cause: err}
	}
	return core.WrapJobError(core.KindUpstreamError, err)
}
