package config

import (
	"github.com/agentrun-io/agentrun/internal/provider"
)

// ProviderSettings holds one provider's credentials and model selection.
type ProviderSettings struct {
	APIKey       string `env:"API_KEY"`
	DefaultModel string `env:"DEFAULT_MODEL"`
	// BaseURL overrides the provider's default endpoint; required for
	// OpenAI-compatible providers without a well-known one.
	BaseURL string `env:"BASE_URL"`
}

// ProvidersConfig holds all LLM provider settings.
type ProvidersConfig struct {
	// Default names the provider used when a payload does not pick one.
	Default string `env:"DEFAULT_LLM_PROVIDER" envDefault:"openai"`

	OpenAI    ProviderSettings `envPrefix:"OPENAI_"`
	Anthropic ProviderSettings `envPrefix:"ANTHROPIC_"`
	Google    ProviderSettings `envPrefix:"GOOGLE_"`
	DeepSeek  ProviderSettings `envPrefix:"DEEPSEEK_"`
	Llama     ProviderSettings `envPrefix:"LLAMA_"`
}

// Configs converts the settings into the provider registry's input.
func (c ProvidersConfig) Configs() map[string]provider.Config {
	return map[string]provider.Config{
		provider.NameOpenAI:    toProviderConfig(c.OpenAI),
		provider.NameAnthropic: toProviderConfig(c.Anthropic),
		provider.NameGoogle:    toProviderConfig(c.Google),
		provider.NameDeepSeek:  toProviderConfig(c.DeepSeek),
		provider.NameLlama:     toProviderConfig(c.Llama),
	}
}

func toProviderConfig(s ProviderSettings) provider.Config {
	return provider.Config{
		APIKey:       s.APIKey,
		DefaultModel: s.DefaultModel,
		BaseURL:      s.BaseURL,
	}
}
