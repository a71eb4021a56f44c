package provider

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun-io/agentrun/internal/core"
)

// fakeChatClient records the last request and returns a canned response.
type fakeChatClient struct {
	lastReq openai.ChatCompletionRequest
	resp    openai.ChatCompletionResponse
	err     error
}

func (f *fakeChatClient) CreateChatCompletion(
	_ context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func chatResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestNewOpenAIHandleRequiresConfig(t *testing.T) {
	_, err := newOpenAIHandle(NameOpenAI, Config{DefaultModel: "gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	_, err = newOpenAIHandle(NameOpenAI, Config{APIKey: "sk-test"})
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	h, err := newOpenAIHandle(NameDeepSeek, Config{
		APIKey:       "sk-test",
		DefaultModel: "deepseek-chat",
		BaseURL:      "https://api.deepseek.com/v1",
	})
	require.NoError(t, err)
	assert.Equal(t, NameDeepSeek, h.Name())
}

func TestOpenAIQueryBuildsMessages(t *testing.T) {
	chat := &fakeChatClient{resp: chatResponse("pong")}
	h := &openAIHandle{name: NameOpenAI, chat: chat, defaultModel: "gpt-4o-mini"}

	out, err := h.Query(context.Background(), QueryRequest{
		Prompt:            "ping",
		SystemInstruction: "be terse",
		Temperature:       0.3,
		MaxTokens:         64,
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	// Falls back to the configured default model.
	assert.Equal(t, "gpt-4o-mini", chat.lastReq.Model)
	require.Len(t, chat.lastReq.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, chat.lastReq.Messages[0].Role)
	assert.Equal(t, "be terse", chat.lastReq.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, chat.lastReq.Messages[1].Role)
	assert.Equal(t, "ping", chat.lastReq.Messages[1].Content)
	assert.InDelta(t, 0.3, chat.lastReq.Temperature, 0.001)
	assert.Equal(t, 64, chat.lastReq.MaxTokens)
}

func TestOpenAIQueryModelOverride(t *testing.T) {
	chat := &fakeChatClient{resp: chatResponse("ok")}
	h := &openAIHandle{name: NameOpenAI, chat: chat, defaultModel: "gpt-4o-mini"}

	_, err := h.Query(context.Background(), QueryRequest{Prompt: "hi", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", chat.lastReq.Model)
}

func TestOpenAIQueryRejectsEmptyPrompt(t *testing.T) {
	h := &openAIHandle{name: NameOpenAI, chat: &fakeChatClient{}, defaultModel: "gpt-4o-mini"}

	_, err := h.Query(context.Background(), QueryRequest{})
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindInvalidRequest, pe.Kind)
}

func TestOpenAIQueryClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want core.ErrorKind
	}{
		{
			name: "rate limited",
			err:  &openai.APIError{HTTPStatusCode: 429, Message: "tokens exhausted"},
			want: core.KindRateLimited,
		},
		{
			name: "bad key",
			err:  &openai.APIError{HTTPStatusCode: 401, Message: "invalid api key"},
			want: core.KindAuthFailure,
		},
		{
			name: "request error",
			err:  &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("unavailable")},
			want: core.KindUpstreamError,
		},
		{
			name: "transport failure",
			err:  errors.New("dial tcp: connection refused"),
			want: core.KindUpstreamError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeChatClient{err: tt.err}
			h := &openAIHandle{name: NameOpenAI, chat: chat, defaultModel: "gpt-4o-mini"}

			_, err := h.Query(context.Background(), QueryRequest{Prompt: "hi"})
			pe, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, NameOpenAI, pe.Provider)
		})
	}
}

func TestOpenAIQueryEmptyChoices(t *testing.T) {
	chat := &fakeChatClient{resp: openai.ChatCompletionResponse{}}
	h := &openAIHandle{name: NameOpenAI, chat: chat, defaultModel: "gpt-4o-mini"}

	_, err := h.Query(context.Background(), QueryRequest{Prompt: "hi"})
	pe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, core.KindUpstreamError, pe.Kind)
}
