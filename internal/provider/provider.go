// Package provider exposes pluggable text-generation backends behind a single
// query contract. Handles are constructed lazily from configuration and
// selected by name through the Registry.
package provider

import (
	"context"
	"time"
)

// Known provider names. Anthropic uses its official SDK; the rest speak the
// OpenAI-compatible chat completions protocol, differing only in base URL.
const (
	NameOpenAI    = "openai"
	NameAnthropic = "anthropic"
	NameGoogle    = "google"
	NameDeepSeek  = "deepseek"
	NameLlama     = "llama"
)

// DefaultQueryTimeout bounds a single provider call when the request does not
// carry its own deadline.
const DefaultQueryTimeout = 300 * time.Second

// QueryRequest describes one text-generation call.
type QueryRequest struct {
	Prompt            string
	SystemInstruction string
	// Model overrides the provider's configured default model.
	Model       string
	Temperature float32
	MaxTokens   int
	// Timeout bounds the call; zero means DefaultQueryTimeout.
	Timeout time.Duration
}

// Handle is a constructed provider backend. One request per call; retries are
// the caller's decision.
type Handle interface {
	// Name returns the provider name the handle was registered under.
	Name() string

	// Query issues a single generation request and returns the text response.
	// Failures are *provider.Error values carrying the shared taxonomy.
	Query(ctx context.Context, req QueryRequest) (string, error)
}

// Config holds the environment-sourced settings for one provider.
type Config struct {
	APIKey       string
	DefaultModel string
	// BaseURL overrides the API endpoint; required for the OpenAI-compatible
	// providers that are not OpenAI itself.
	BaseURL string
}

// Configured reports whether the provider has enough configuration to build
// a handle.
func (c Config) Configured() bool {
	return c.APIKey != ""
}

// Health describes the last observed state of one provider handle.
type Health struct {
	Status    string    `json:"status"` // "ok", "error", or "unconfigured"
	LastError string    `json:"last_error,omitempty"`
	CheckedAt time.Time `json:"checked_at,omitempty"`
}
