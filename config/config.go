// Package config defines the application configuration, loaded from
// environment variables with github.com/caarlos0/env. See the individual
// files for the available variables:
//   - database.go: postgres and redis configuration
//   - services.go: service modes, pipeline and scheduler tunables
//   - providers.go: LLM provider credentials
//   - observability.go: logging and statsd
package config

type AppConfig struct {
	// IsDev enables development conveniences (text logs, debug level).
	IsDev bool `env:"DEV" envDefault:"false"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Services is the comma-delimited list of service modes to run.
	Services string `env:"SERVICES" envDefault:"pipeline,scheduler"`

	Pipeline  PipelineConfig
	Scheduler SchedulerConfig `envPrefix:"SCHEDULER_"`

	Providers ProvidersConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to values loaded from env.
func (c *AppConfig) Sanitize() {
	c.Observability.Sanitize()
}

// EnabledServices parses and validates the Services field.
func (c *AppConfig) EnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsPipelineEnabled reports whether the job pipeline should run.
func (c *AppConfig) IsPipelineEnabled() bool {
	services, err := c.EnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModePipeline]
}

// IsSchedulerEnabled reports whether the cron scheduler should run.
func (c *AppConfig) IsSchedulerEnabled() bool {
	services, err := c.EnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeScheduler]
}
