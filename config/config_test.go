package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfigDefaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.True(t, cfg.Postgres.RunMigrationsOnStart)
	assert.Equal(t, "pipeline,scheduler", cfg.Services)
	assert.True(t, cfg.IsPipelineEnabled())
	assert.True(t, cfg.IsSchedulerEnabled())
	assert.Equal(t, 5, cfg.Pipeline.MaxConcurrentJobs)
	assert.Equal(t, 1000, cfg.Pipeline.MaxQueueSize)
	assert.Equal(t, 2.0, cfg.Pipeline.RetryDelayBase)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.RetryDelayCap)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.CheckInterval)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Tolerance)
	assert.Equal(t, "openai", cfg.Providers.Default)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.False(t, cfg.Redis.EventsEnabled)
}

func TestAppConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "15432")
	t.Setenv("MAX_CONCURRENT_JOBS", "12")
	t.Setenv("SCHEDULER_TOLERANCE", "45s")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_DEFAULT_MODEL", "gpt-4o-mini")
	t.Setenv("SERVICES", "pipeline")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Contains(t, cfg.Postgres.DSN(), "db.internal:15432")
	assert.Equal(t, 12, cfg.Pipeline.MaxConcurrentJobs)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.Tolerance)
	assert.True(t, cfg.IsPipelineEnabled())
	assert.False(t, cfg.IsSchedulerEnabled())

	configs := cfg.Providers.Configs()
	assert.Equal(t, "sk-test", configs["openai"].APIKey)
	assert.Equal(t, "gpt-4o-mini", configs["openai"].DefaultModel)
}

func TestParseServices(t *testing.T) {
	got, err := ParseServices("pipeline, scheduler")
	require.NoError(t, err)
	assert.True(t, got[ServiceModePipeline])
	assert.True(t, got[ServiceModeScheduler])

	_, err = ParseServices("")
	assert.Error(t, err)

	_, err = ParseServices("pipeline,http")
	assert.Error(t, err)
}

func TestPipelineConfigToCoreAppliesGuardrails(t *testing.T) {
	c := PipelineConfig{MaxConcurrentJobs: -1, RetryDelayBase: 0.5}
	cfg := c.ToCore()

	assert.Equal(t, 5, cfg.MaxConcurrentJobs)
	assert.Equal(t, 2.0, cfg.RetryDelayBase)
}

func TestObservabilitySanitize(t *testing.T) {
	c := ObservabilityConfig{LogLevel: "LOUD", LogFormat: "xml"}
	c.Sanitize()
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
}
