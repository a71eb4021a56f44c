// Package agent defines the agent contract, the process-wide agent registry,
// and the runtime wrapper the pipeline executes jobs through.
package agent

import (
	"context"
	"encoding/json"
)

// Agent is a named unit of work that consumes a typed payload and produces
// text output, typically by composing a prompt and calling a provider.
type Agent interface {
	// Name is the stable identifier jobs reference.
	Name() string

	// Description is a human-readable summary.
	Description() string

	// ValidatePayload checks the payload against the agent's declared schema
	// before execution. A non-nil error means the payload is rejected and the
	// job fails without retry.
	ValidatePayload(payload json.RawMessage) error

	// Execute runs the agent. Implementations return a failed Result (not an
	// error) for domain failures; an error return is treated as a provider or
	// infrastructure failure and classified by the runtime.
	Execute(ctx context.Context, payload json.RawMessage) (*Result, error)
}

// Result is the tagged outcome of one agent execution.
type Result struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Succeed builds a successful Result.
func Succeed(output string) *Result {
	return &Result{Success: true, Output: output}
}

// Fail builds a failed Result with the given reason.
func Fail(reason string) *Result {
	return &Result{Success: false, Error: reason}
}

// WithMeta attaches a metadata entry, allocating the map on first use.
func (r *Result) WithMeta(key string, value any) *Result {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any, 4)
	}
	r.Metadata[key] = value
	return r
}
