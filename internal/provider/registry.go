package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Default base URLs for providers that speak the OpenAI-compatible protocol
// at a well-known endpoint. Overridable per provider via config.
var compatBaseURLs = map[string]string{
	NameDeepSeek: "https://api.deepseek.com/v1",
	NameGoogle:   "https://generativelanguage.googleapis.com/v1beta/openai",
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Configs maps provider name to its settings. Unlisted names are unknown.
	Configs map[string]Config
	// DefaultProvider names the handle Default returns.
	DefaultProvider string
	Logger          *slog.Logger
	// now is overridable in tests.
	Now func() time.Time
}

// Registry maps provider names to lazily-constructed handles and tracks
// per-provider health. Safe for concurrent use.
type Registry struct {
	configs     map[string]Config
	defaultName string
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	handles map[string]Handle
	health  map[string]Health
}

// NewRegistry creates a Registry. Handles are not constructed until first use.
func NewRegistry(opts RegistryOptions) *Registry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	configs := make(map[string]Config, len(opts.Configs))
	health := make(map[string]Health, len(opts.Configs))
	for name, cfg := range opts.Configs {
		configs[name] = cfg
		status := "unconfigured"
		if cfg.Configured() {
			status = "ok"
		}
		health[name] = Health{Status: status}
	}
	return &Registry{
		configs:     configs,
		defaultName: opts.DefaultProvider,
		logger:      opts.Logger,
		now:         now,
		handles:     make(map[string]Handle, len(opts.Configs)),
		health:      health,
	}
}

// Get returns the handle for the named provider, constructing it on first
// use. Unknown or misconfigured providers yield ErrProviderUnavailable.
func (r *Registry) Get(name string) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(name)
}

// Default returns the handle for the configured default provider.
func (r *Registry) Default() (Handle, error) {
	if r.defaultName == "" {
		return nil, fmt.Errorf("%w: no default provider configured", ErrProviderUnavailable)
	}
	return r.Get(r.defaultName)
}

// Available returns the sorted names of providers with usable configuration.
func (r *Registry) Available() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.configs))
	for name, cfg := range r.configs {
		if cfg.Configured() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Health returns a snapshot of per-provider health.
func (r *Registry) Health() map[string]Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Health, len(r.health))
	for name, h := range r.health {
		out[name] = h
	}
	return out
}

func (r *Registry) getLocked(name string) (Handle, error) {
	if h, ok := r.handles[name]; ok {
		return h, nil
	}

	cfg, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrProviderUnavailable, name)
	}

	handle, err := r.build(name, cfg)
	if err != nil {
		r.health[name] = Health{Status: "error", LastError: err.Error(), CheckedAt: r.now()}
		return nil, err
	}

	wrapped := &healthTrackingHandle{inner: handle, registry: r}
	r.handles[name] = wrapped
	if r.logger != nil {
		r.logger.Debug("provider handle constructed", "provider", name)
	}
	return wrapped, nil
}

func (r *Registry) build(name string, cfg Config) (Handle, error) {
	if name == NameAnthropic {
		return newAnthropicHandle(cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = compatBaseURLs[name]
	}
	if name != NameOpenAI && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s requires a base url", ErrProviderUnavailable, name)
	}
	return newOpenAIHandle(name, cfg)
}

// recordResult updates health bookkeeping after a query.
func (r *Registry) recordResult(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := Health{Status: "ok", CheckedAt: r.now()}
	if err != nil {
		h.Status = "error"
		h.LastError = err.Error()
	}
	r.health[name] = h
}

// healthTrackingHandle decorates a Handle so every query updates the
// registry's health view.
type healthTrackingHandle struct {
	inner    Handle
	registry *Registry
}

func (h *healthTrackingHandle) Name() string { return h.inner.Name() }

func (h *healthTrackingHandle) Query(ctx context.Context, req QueryRequest) (string, error) {
	out, err := h.inner.Query(ctx, req)
	h.registry.recordResult(h.inner.Name(), err)
	return out, err
}
