package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/agentrun-io/agentrun/internal/agent"
)

type extractPayload struct {
	Data       json.RawMessage `json:"data"`
	Expression string          `json:"expression"`
}

// ExtractAgent evaluates a JMESPath expression against a JSON document and
// returns the matched value as JSON. Runs entirely locally.
type ExtractAgent struct{}

// NewExtractAgent creates the extract agent.
func NewExtractAgent() *ExtractAgent { return &ExtractAgent{} }

func (a *ExtractAgent) Name() string        { return "extract" }
func (a *ExtractAgent) Description() string { return "Extracts data from JSON via a JMESPath expression" }

func (a *ExtractAgent) ValidatePayload(payload json.RawMessage) error {
	var p extractPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if len(p.Data) == 0 {
		return errors.New("data is required")
	}
	if p.Expression == "" {
		return errors.New("expression is required")
	}
	if _, err := jmespath.Compile(p.Expression); err != nil {
		return fmt.Errorf("compile expression: %w", err)
	}
	return nil
}

func (a *ExtractAgent) Execute(_ context.Context, payload json.RawMessage) (*agent.Result, error) {
	var p extractPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var doc any
	if err := json.Unmarshal(p.Data, &doc); err != nil {
		return agent.Fail(fmt.Sprintf("data is not valid JSON: %v", err)), nil
	}

	matched, err := jmespath.Search(p.Expression, doc)
	if err != nil {
		return agent.Fail(fmt.Sprintf("evaluate expression: %v", err)), nil
	}

	out, err := json.Marshal(matched)
	if err != nil {
		return nil, fmt.Errorf("encode match: %w", err)
	}
	return agent.Succeed(string(out)).WithMeta("matched", matched != nil), nil
}
