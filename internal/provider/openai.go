package provider

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// chatClient captures the subset of the go-openai client the handle uses, so
// tests can substitute a fake.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// openAIHandle implements Handle over the OpenAI chat completions API. With a
// custom base URL it also serves the OpenAI-compatible providers (deepseek,
// llama, google).
type openAIHandle struct {
	name         string
	chat         chatClient
	defaultModel string
}

// newOpenAIHandle builds a handle for the named provider from its config.
func newOpenAIHandle(name string, cfg Config) (*openAIHandle, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: %s has no api key", ErrProviderUnavailable, name)
	}
	if cfg.DefaultModel == "" {
		return nil, fmt.Errorf("%w: %s has no default model", ErrProviderUnavailable, name)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAIHandle{
		name:         name,
		chat:         openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (h *openAIHandle) Name() string { return h.name }

// Query issues a single chat completion request.
func (h *openAIHandle) Query(ctx context.Context, req QueryRequest) (string, error) {
	if req.Prompt == "" {
		return "", &Error{Provider: h.name, Kind: kindFromStatus(400, nil), Message: "prompt is required"}
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

	var messages []openai.ChatCompletionMessage
	if req.SystemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := h.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", h.classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Provider: h.name, Kind: kindFromStatus(502, nil), Message: "empty completion response"}
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps go-openai errors onto the shared taxonomy.
func (h *openAIHandle) classify(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := newError(h.name, apiErr.HTTPStatusCode, err)
		e.Message = apiErr.Message
		return e
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newError(h.name, reqErr.HTTPStatusCode, err)
	}
	return newError(h.name, 0, err)
}
