package config

import "strings"

// ObservabilityConfig contains logging and metrics configuration.
type ObservabilityConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat is json or text.
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StatsDEnabled bool   `env:"STATSD_ENABLED" envDefault:"false"`
	StatsDAddress string `env:"STATSD_ADDRESS" envDefault:"localhost:8125"`
	StatsDPrefix  string `env:"STATSD_PREFIX"  envDefault:"agentrun"`
}

// Sanitize normalizes log settings to known values.
func (c *ObservabilityConfig) Sanitize() {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		c.LogFormat = "json"
	}
}
