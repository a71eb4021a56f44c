package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentrun-io/agentrun/internal/agent"
)

type echoPayload struct {
	Message string `json:"message"`
}

// EchoAgent returns its input message unchanged. Useful for verifying queue,
// worker, and store plumbing without touching a provider.
type EchoAgent struct{}

// NewEchoAgent creates the echo agent.
func NewEchoAgent() *EchoAgent { return &EchoAgent{} }

func (a *EchoAgent) Name() string        { return "echo" }
func (a *EchoAgent) Description() string { return "Returns the input message unchanged" }

func (a *EchoAgent) ValidatePayload(payload json.RawMessage) error {
	var p echoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if p.Message == "" {
		return errors.New("message is required")
	}
	return nil
}

func (a *EchoAgent) Execute(_ context.Context, payload json.RawMessage) (*agent.Result, error) {
	var p echoPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return agent.Succeed(p.Message), nil
}
