package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentrun-io/agentrun/internal/agent"
	"github.com/agentrun-io/agentrun/internal/provider"
)

const summarizeSystem = "You are a summarization assistant. Produce a concise, " +
	"faithful summary of the provided text. Respond with the summary only."

type summarizePayload struct {
	Text     string `json:"text"`
	MaxWords int    `json:"max_words,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// SummarizeAgent condenses input text through an LLM provider.
type SummarizeAgent struct {
	providers *provider.Registry
}

// NewSummarizeAgent creates the summarize agent over the given provider registry.
func NewSummarizeAgent(providers *provider.Registry) *SummarizeAgent {
	return &SummarizeAgent{providers: providers}
}

func (a *SummarizeAgent) Name() string        { return "summarize" }
func (a *SummarizeAgent) Description() string { return "Summarizes text via an LLM provider" }

func (a *SummarizeAgent) ValidatePayload(payload json.RawMessage) error {
	var p summarizePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if p.Text == "" {
		return errors.New("text is required")
	}
	if p.MaxWords < 0 {
		return errors.New("max_words must not be negative")
	}
	return nil
}

func (a *SummarizeAgent) Execute(ctx context.Context, payload json.RawMessage) (*agent.Result, error) {
	var p summarizePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	handle, err := resolveHandle(a.providers, p.Provider)
	if err != nil {
		return nil, err
	}

	prompt := p.Text
	if p.MaxWords > 0 {
		prompt = fmt.Sprintf("Summarize the following text in at most %d words:\n\n%s", p.MaxWords, p.Text)
	}

	out, err := handle.Query(ctx, provider.QueryRequest{
		Prompt:            prompt,
		SystemInstruction: summarizeSystem,
		Model:             p.Model,
	})
	if err != nil {
		return nil, err
	}
	return agent.Succeed(out).WithMeta("provider", handle.Name()), nil
}
