package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Completion caps are required by the Messages API; this default applies when
// a query does not set MaxTokens.
const anthropicDefaultMaxTokens = 4096

// messagesClient captures the subset of the Anthropic SDK used by the handle.
// Satisfied by *sdk.MessageService; tests substitute a fake.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// anthropicHandle implements Handle over the Claude Messages API.
type anthropicHandle struct {
	msg          messagesClient
	defaultModel string
}

func newAnthropicHandle(cfg Config) (*anthropicHandle, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: anthropic has no api key", ErrProviderUnavailable)
	}
	if cfg.DefaultModel == "" {
		return nil, fmt.Errorf("%w: anthropic has no default model", ErrProviderUnavailable)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := sdk.NewClient(opts...)
	return &anthropicHandle{msg: &client.Messages, defaultModel: cfg.DefaultModel}, nil
}

func (h *anthropicHandle) Name() string { return NameAnthropic }

// Query issues a single non-streaming Messages.New request.
func (h *anthropicHandle) Query(ctx context.Context, req QueryRequest) (string, error) {
	if req.Prompt == "" {
		return "", &Error{Provider: NameAnthropic, Kind: kindFromStatus(400, nil), Message: "prompt is required"}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	modelID := req.Model
	if modelID == "" {
		modelID = h.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemInstruction != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemInstruction}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}

	msg, err := h.msg.New(ctx, params)
	if err != nil {
		return "", h.classify(err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

// classify maps Anthropic SDK errors onto the shared taxonomy.
func (h *anthropicHandle) classify(err error) *Error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return newError(NameAnthropic, apiErr.StatusCode, err)
	}
	return newError(NameAnthropic, 0, err)
}
