package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentrun-io/agentrun/internal/core"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModePipeline runs the job execution pipeline.
	ServiceModePipeline ServiceMode = "pipeline"
	// ServiceModeScheduler runs the cron scheduler sweep.
	ServiceModeScheduler ServiceMode = "scheduler"
)

// ParseServices parses a comma-delimited list of service names. All names
// must be valid and at least one must be present.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		mode := ServiceMode(name)
		switch mode {
		case ServiceModePipeline, ServiceModeScheduler:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: pipeline, scheduler)", name)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one service must be specified")
	}
	return services, nil
}

// PipelineConfig carries the pipeline tunables as environment variables.
type PipelineConfig struct {
	MaxConcurrentJobs int           `env:"MAX_CONCURRENT_JOBS" envDefault:"5"`
	MaxQueueSize      int           `env:"MAX_QUEUE_SIZE"      envDefault:"1000"`
	RetryDelayBase    float64       `env:"RETRY_DELAY_BASE"    envDefault:"2.0"`
	RetryDelayCap     time.Duration `env:"RETRY_DELAY_CAP"     envDefault:"10m"`
	PromotionInterval time.Duration `env:"PROMOTION_INTERVAL"  envDefault:"5s"`
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL"    envDefault:"1m"`
	MetricsRetention  int           `env:"METRICS_RETENTION"   envDefault:"1000"`
}

// ToCore converts to the core configuration, applying its guardrails.
func (c PipelineConfig) ToCore() core.PipelineConfig {
	cfg := core.PipelineConfig{
		MaxConcurrentJobs: c.MaxConcurrentJobs,
		MaxQueueSize:      c.MaxQueueSize,
		RetryDelayBase:    c.RetryDelayBase,
		RetryDelayCap:     c.RetryDelayCap,
		PromotionInterval: c.PromotionInterval,
		CleanupInterval:   c.CleanupInterval,
		MetricsRetention:  c.MetricsRetention,
	}
	cfg.Sanitize()
	return cfg
}

// SchedulerConfig carries the scheduler tunables as environment variables.
type SchedulerConfig struct {
	CheckInterval time.Duration `env:"CHECK_INTERVAL" envDefault:"30s"`
	Tolerance     time.Duration `env:"TOLERANCE"      envDefault:"30s"`
	BatchSize     int           `env:"BATCH_SIZE"     envDefault:"50"`
}

// ToCore converts to the core configuration, applying its guardrails.
func (c SchedulerConfig) ToCore() core.SchedulerConfig {
	cfg := core.SchedulerConfig{
		CheckInterval: c.CheckInterval,
		Tolerance:     c.Tolerance,
		BatchSize:     c.BatchSize,
	}
	cfg.Sanitize()
	return cfg
}
