package core

import "time"

// PipelineConfig holds tunables for the job pipeline.
type PipelineConfig struct {
	MaxConcurrentJobs int           `json:"max_concurrent_jobs"`
	MaxQueueSize      int           `json:"max_queue_size"`
	RetryDelayBase    float64       `json:"retry_delay_base"`
	RetryDelayCap     time.Duration `json:"retry_delay_cap"`
	PromotionInterval time.Duration `json:"promotion_interval"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
	// MetricsRetention bounds the per-job metadata map.
	MetricsRetention int `json:"metrics_retention"`
}

// DefaultPipelineConfig returns a PipelineConfig with the documented defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxConcurrentJobs: 5,
		MaxQueueSize:      1000,
		RetryDelayBase:    2.0,
		RetryDelayCap:     10 * time.Minute,
		PromotionInterval: 5 * time.Second,
		CleanupInterval:   time.Minute,
		MetricsRetention:  1000,
	}
}

// Sanitize clamps out-of-range pipeline values to their defaults.
func (c *PipelineConfig) Sanitize() {
	def := DefaultPipelineConfig()
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.RetryDelayBase <= 1.0 {
		c.RetryDelayBase = def.RetryDelayBase
	}
	if c.RetryDelayCap <= 0 {
		c.RetryDelayCap = def.RetryDelayCap
	}
	if c.PromotionInterval <= 0 {
		c.PromotionInterval = def.PromotionInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	if c.MetricsRetention <= 0 {
		c.MetricsRetention = def.MetricsRetention
	}
}

// SchedulerConfig holds tunables for the cron scheduler sweep.
type SchedulerConfig struct {
	CheckInterval time.Duration `json:"check_interval"`
	// Tolerance is the lookahead window: a schedule due within it is
	// considered eligible for this sweep.
	Tolerance time.Duration `json:"tolerance"`
	BatchSize int           `json:"batch_size"`
}

// DefaultSchedulerConfig returns a SchedulerConfig with the documented defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CheckInterval: 30 * time.Second,
		Tolerance:     30 * time.Second,
		BatchSize:     50,
	}
}

// Sanitize clamps out-of-range scheduler values to their defaults.
func (c *SchedulerConfig) Sanitize() {
	def := DefaultSchedulerConfig()
	if c.CheckInterval <= 0 {
		c.CheckInterval = def.CheckInterval
	}
	if c.Tolerance < 0 {
		c.Tolerance = def.Tolerance
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
}
