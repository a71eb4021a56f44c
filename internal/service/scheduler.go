package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentrun-io/agentrun/internal/core"
	"github.com/agentrun-io/agentrun/internal/data"
	"github.com/agentrun-io/agentrun/internal/domain/model"
	"github.com/agentrun-io/agentrun/internal/observability/statsd"
)

// SchedulerService performs the periodic sweep that turns due schedules into
// jobs. Safe under concurrent replicas: the conditional next_run update in
// Claim decides which instance fires each schedule.
type SchedulerService struct {
	schedules    core.ScheduleRepository
	jobs         core.JobRepository
	submitter    core.JobSubmitter
	cfg          core.SchedulerConfig
	timeProvider data.TimeProvider
	stats        statsd.Sink
	logger       *slog.Logger
}

// SchedulerServiceOptions holds the dependencies for creating a SchedulerService.
type SchedulerServiceOptions struct {
	Schedules    core.ScheduleRepository
	Jobs         core.JobRepository
	Submitter    core.JobSubmitter
	Config       *core.SchedulerConfig
	TimeProvider data.TimeProvider
	Stats        statsd.Sink
	Logger       *slog.Logger
}

// NewSchedulerService creates a new SchedulerService with the given dependencies.
func NewSchedulerService(opts SchedulerServiceOptions) *SchedulerService {
	if opts.Config == nil {
		defaultCfg := core.DefaultSchedulerConfig()
		opts.Config = &defaultCfg
	}
	cfg := *opts.Config
	cfg.Sanitize()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SchedulerService{
		schedules:    opts.Schedules,
		jobs:         opts.Jobs,
		submitter:    opts.Submitter,
		cfg:          cfg,
		timeProvider: timeProviderOrDefault(opts.TimeProvider),
		stats:        opts.Stats,
		logger:       opts.Logger,
	}
}

// Config returns the sanitized sweep configuration.
func (s *SchedulerService) Config() core.SchedulerConfig { return s.cfg }

// Sweep selects due schedules and fires each one it can claim. Returns the
// number of jobs manufactured.
//
// Algorithm per schedule:
//  1. re-verify the stored next_run is within the tolerance window
//  2. compute the following firing in the schedule's timezone; an unparsable
//     expression disables the schedule instead of wedging the sweep
//  3. claim by conditional update on next_run; losing the claim means another
//     replica fired it
//  4. create the job row, hand it to the pipeline, bump counters
func (s *SchedulerService) Sweep(ctx context.Context) int {
	now := s.timeProvider.Now()
	horizon := now.Add(s.cfg.Tolerance)

	due, err := s.schedules.SelectDue(ctx, horizon, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("select due schedules failed", "error", err)
		return 0
	}

	fired := 0
	for _, sched := range due {
		if ctx.Err() != nil {
			break
		}
		if s.fire(ctx, sched, now) {
			fired++
		}
	}
	if fired > 0 && s.stats != nil {
		s.stats.Count("scheduler.fired", int64(fired), nil)
	}
	return fired
}

func (s *SchedulerService) fire(ctx context.Context, sched *model.Schedule, now time.Time) bool {
	if sched.NextRun == nil {
		return false
	}
	target := *sched.NextRun
	if now.Before(target.Add(-s.cfg.Tolerance)) {
		return false
	}

	after := now
	if target.After(after) {
		after = target
	}
	next, err := computeNextRun(sched.CronExpression, sched.Timezone, after)
	if err != nil {
		reason := core.WrapJobError(core.KindInvalidCron, err).Error()
		if derr := s.schedules.Disable(ctx, sched.ID, reason); derr != nil {
			s.logger.Error("disable schedule failed", "schedule_id", sched.ID, "error", derr)
		} else {
			s.logger.Warn("schedule disabled", "schedule_id", sched.ID, "reason", reason)
		}
		return false
	}

	claimed, err := s.schedules.Claim(ctx, core.ClaimParams{
		ID:           sched.ID,
		ExpectedNext: target,
		LastRun:      now,
		NextRun:      next,
	})
	if err != nil {
		s.logger.Error("claim schedule failed", "schedule_id", sched.ID, "error", err)
		return false
	}
	if !claimed {
		// Another replica advanced next_run first.
		return false
	}

	job, err := s.jobs.Create(ctx, scheduledJobRequest(sched))
	if err != nil {
		s.logger.Error("create scheduled job failed", "schedule_id", sched.ID, "error", err)
		s.countFiring(ctx, sched.ID, false)
		return false
	}

	accepted := s.submitter.Submit(ctx, core.SubmitRequest{
		JobID:      job.ID,
		UserID:     job.UserID,
		AgentName:  job.AgentName,
		Payload:    job.Payload,
		Priority:   job.Priority,
		MaxRetries: job.MaxRetries,
	})
	s.countFiring(ctx, sched.ID, accepted)

	s.logger.Info("schedule fired", "schedule_id", sched.ID, "job_id", job.ID,
		"accepted", accepted, "next_run", next.Format(time.RFC3339))
	return accepted
}

func (s *SchedulerService) countFiring(ctx context.Context, scheduleID string, success bool) {
	if err := s.schedules.IncrementCounters(ctx, scheduleID, success); err != nil {
		s.logger.Error("increment schedule counters failed", "schedule_id", scheduleID, "error", err)
	}
}
