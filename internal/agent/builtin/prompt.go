package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentrun-io/agentrun/internal/agent"
	"github.com/agentrun-io/agentrun/internal/provider"
)

type promptPayload struct {
	Prompt         string  `json:"prompt"`
	System         string  `json:"system,omitempty"`
	Provider       string  `json:"provider,omitempty"`
	Model          string  `json:"model,omitempty"`
	Temperature    float32 `json:"temperature,omitempty"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
}

// PromptAgent forwards a free-form prompt to an LLM provider and returns the
// completion text.
type PromptAgent struct {
	providers *provider.Registry
}

// NewPromptAgent creates the prompt agent over the given provider registry.
func NewPromptAgent(providers *provider.Registry) *PromptAgent {
	return &PromptAgent{providers: providers}
}

func (a *PromptAgent) Name() string        { return "prompt" }
func (a *PromptAgent) Description() string { return "Sends a free-form prompt to an LLM provider" }

func (a *PromptAgent) ValidatePayload(payload json.RawMessage) error {
	var p promptPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if p.Prompt == "" {
		return errors.New("prompt is required")
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("temperature %v out of range [0, 2]", p.Temperature)
	}
	return nil
}

func (a *PromptAgent) Execute(ctx context.Context, payload json.RawMessage) (*agent.Result, error) {
	var p promptPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	handle, err := resolveHandle(a.providers, p.Provider)
	if err != nil {
		return nil, err
	}

	out, err := handle.Query(ctx, provider.QueryRequest{
		Prompt:            p.Prompt,
		SystemInstruction: p.System,
		Model:             p.Model,
		Temperature:       p.Temperature,
		MaxTokens:         p.MaxTokens,
		Timeout:           time.Duration(p.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return agent.Succeed(out).WithMeta("provider", handle.Name()), nil
}

// resolveHandle looks up the named provider, or the registry default when the
// payload names none.
func resolveHandle(providers *provider.Registry, name string) (provider.Handle, error) {
	if providers == nil {
		return nil, provider.ErrProviderUnavailable
	}
	if name == "" {
		return providers.Default()
	}
	return providers.Get(name)
}
