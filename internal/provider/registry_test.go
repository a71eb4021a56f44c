package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryForTest(configs map[string]Config, defaultName string) *Registry {
	return NewRegistry(RegistryOptions{
		Configs:         configs,
		DefaultProvider: defaultName,
		Now:             func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
}

func TestRegistryGetUnknownProvider(t *testing.T) {
	r := registryForTest(nil, "")

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRegistryGetUnconfiguredProvider(t *testing.T) {
	r := registryForTest(map[string]Config{
		NameOpenAI: {DefaultModel: "gpt-4o-mini"},
	}, "")

	_, err := r.Get(NameOpenAI)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	h := r.Health()[NameOpenAI]
	assert.Equal(t, "error", h.Status)
	assert.NotEmpty(t, h.LastError)
}

func TestRegistryGetCachesHandle(t *testing.T) {
	r := registryForTest(map[string]Config{
		NameOpenAI: {APIKey: "sk-test", DefaultModel: "gpt-4o-mini"},
	}, "")

	first, err := r.Get(NameOpenAI)
	require.NoError(t, err)
	second, err := r.Get(NameOpenAI)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, NameOpenAI, first.Name())
}

func TestRegistryDefault(t *testing.T) {
	r := registryForTest(map[string]Config{
		NameOpenAI: {APIKey: "sk-test", DefaultModel: "gpt-4o-mini"},
	}, NameOpenAI)

	h, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, NameOpenAI, h.Name())

	none := registryForTest(nil, "")
	_, err = none.Default()
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRegistryCompatProvidersNeedBaseURL(t *testing.T) {
	r := registryForTest(map[string]Config{
		// deepseek and google carry well-known endpoints; llama does not.
		NameDeepSeek: {APIKey: "sk-1", DefaultModel: "deepseek-chat"},
		NameLlama:    {APIKey: "sk-2", DefaultModel: "llama3"},
	}, "")

	_, err := r.Get(NameDeepSeek)
	require.NoError(t, err)

	_, err = r.Get(NameLlama)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRegistryAvailable(t *testing.T) {
	r := registryForTest(map[string]Config{
		NameOpenAI:    {APIKey: "sk-test", DefaultModel: "gpt-4o-mini"},
		NameAnthropic: {DefaultModel: "claude-sonnet-4-20250514"},
		NameDeepSeek:  {APIKey: "sk-ds", DefaultModel: "deepseek-chat"},
	}, "")

	assert.Equal(t, []string{NameDeepSeek, NameOpenAI}, r.Available())
}

func TestRegistryHealthTracksQueries(t *testing.T) {
	r := registryForTest(map[string]Config{
		NameOpenAI: {APIKey: "sk-test", DefaultModel: "gpt-4o-mini"},
	}, "")

	assert.Equal(t, "ok", r.Health()[NameOpenAI].Status)

	h, err := r.Get(NameOpenAI)
	require.NoError(t, err)
	tracked, ok := h.(*healthTrackingHandle)
	require.True(t, ok)

	// Route a failing query through the wrapper without touching the network.
	tracked.inner = &stubHandle{name: NameOpenAI, err: errors.New("boom")}
	_, err = tracked.Query(context.Background(), QueryRequest{Prompt: "hi"})
	require.Error(t, err)

	got := r.Health()[NameOpenAI]
	assert.Equal(t, "error", got.Status)
	assert.Equal(t, "boom", got.LastError)
	assert.False(t, got.CheckedAt.IsZero())

	tracked.inner = &stubHandle{name: NameOpenAI, out: "pong"}
	out, err := tracked.Query(context.Background(), QueryRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Equal(t, "ok", r.Health()[NameOpenAI].Status)
}

// stubHandle is a minimal Handle for wrapper tests.
type stubHandle struct {
	name string
	out  string
	err  error
}

func (s *stubHandle) Name() string { return s.name }

func (s *stubHandle) Query(context.Context, QueryRequest) (string, error) {
	return s.out, s.err
}
