package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agentrun-io/agentrun/internal/core"
	"github.com/agentrun-io/agentrun/internal/data"
	"github.com/agentrun-io/agentrun/internal/domain/model"
)

// ScheduleService implements the schedule CRUD operations and owns next_run
// computation for the create, update and enable/disable paths. The sweep-time
// claim lives in SchedulerService.
type ScheduleService struct {
	schedules    core.ScheduleRepository
	jobs         core.JobRepository
	submitter    core.JobSubmitter
	timeProvider data.TimeProvider
	logger       *slog.Logger
}

// ScheduleServiceOptions holds the dependencies for creating a ScheduleService.
type ScheduleServiceOptions struct {
	Schedules    core.ScheduleRepository
	Jobs         core.JobRepository
	Submitter    core.JobSubmitter
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// NewScheduleService creates a new ScheduleService with the given dependencies.
func NewScheduleService(opts ScheduleServiceOptions) *ScheduleService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ScheduleService{
		schedules:    opts.Schedules,
		jobs:         opts.Jobs,
		submitter:    opts.Submitter,
		timeProvider: timeProviderOrDefault(opts.TimeProvider),
		logger:       opts.Logger,
	}
}

// CreateSchedule validates the request, computes the first firing and
// persists the schedule.
func (s *ScheduleService) CreateSchedule(ctx context.Context, req *model.CreateScheduleRequest) (*model.Schedule, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate schedule request: %w", err)
	}
	if err := validateCron(req.CronExpression, req.Timezone); err != nil {
		return nil, core.WrapJobError(core.KindInvalidCron, err)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	sched := &model.Schedule{
		UserID:         req.UserID,
		CronExpression: req.CronExpression,
		Timezone:       req.Timezone,
		Enabled:        enabled,
		AgentConfig:    req.AgentConfig,
	}
	if enabled {
		next, err := computeNextRun(req.CronExpression, req.Timezone, s.timeProvider.Now())
		if err != nil {
			return nil, core.WrapJobError(core.KindInvalidCron, err)
		}
		sched.NextRun = &next
	}

	created, err := s.schedules.Create(ctx, sched)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	s.logger.Info("schedule created", "schedule_id", created.ID,
		"cron", created.CronExpression, "enabled", created.Enabled)
	return created, nil
}

// GetSchedule returns the schedule scoped to the user.
func (s *ScheduleService) GetSchedule(ctx context.Context, id, userID string) (*model.Schedule, error) {
	return s.schedules.GetByID(ctx, id, userID)
}

// ListSchedules returns a page of the user's schedules.
func (s *ScheduleService) ListSchedules(ctx context.Context, opts model.ScheduleListOptions) ([]*model.Schedule, error) {
	return s.schedules.List(ctx, opts)
}

// UpdateSchedule applies a partial update and recomputes next_run whenever
// the cron expression, timezone or enabled flag changed. Disabling clears
// next_run so the sweep never selects the schedule.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, id, userID string, req *model.UpdateScheduleRequest) (*model.Schedule, error) {
	if req.Empty() {
		return s.schedules.GetByID(ctx, id, userID)
	}
	if req.AgentConfig != nil {
		if err := req.AgentConfig.Validate(); err != nil {
			return nil, fmt.Errorf("validate agent config: %w", err)
		}
	}
	if req.CronExpression != nil || req.Timezone != nil {
		// Validate against the merged expression and zone.
		current, err := s.schedules.GetByID(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		expr, tz := current.CronExpression, current.Timezone
		if req.CronExpression != nil {
			expr = *req.CronExpression
		}
		if req.Timezone != nil {
			tz = *req.Timezone
		}
		if err := validateCron(expr, tz); err != nil {
			return nil, core.WrapJobError(core.KindInvalidCron, err)
		}
	}

	updated, err := s.schedules.Update(ctx, id, userID, req)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	if updated.Enabled {
		next, nerr := computeNextRun(updated.CronExpression, updated.Timezone, s.timeProvider.Now())
		if nerr != nil {
			return nil, core.WrapJobError(core.KindInvalidCron, nerr)
		}
		if err := s.schedules.UpdateNextRun(ctx, id, &next); err != nil {
			return nil, fmt.Errorf("update next run: %w", err)
		}
		updated.NextRun = &next
	} else if updated.NextRun != nil {
		if err := s.schedules.UpdateNextRun(ctx, id, nil); err != nil {
			return nil, fmt.Errorf("clear next run: %w", err)
		}
		updated.NextRun = nil
	}

	s.logger.Info("schedule updated", "schedule_id", id, "enabled", updated.Enabled)
	return updated, nil
}

// DeleteSchedule removes the schedule; its jobs cascade at the store level.
func (s *ScheduleService) DeleteSchedule(ctx context.Context, id, userID string) error {
	return s.schedules.Delete(ctx, id, userID)
}

// RunNow manufactures one job from the schedule immediately, outside the cron
// cadence. Counters and next_run are untouched.
func (s *ScheduleService) RunNow(ctx context.Context, id, userID string) (*model.Job, error) {
	sched, err := s.schedules.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	job, err := s.jobs.Create(ctx, scheduledJobRequest(sched))
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.submitter.Submit(ctx, core.SubmitRequest{
		JobID:      job.ID,
		UserID:     job.UserID,
		AgentName:  job.AgentName,
		Payload:    job.Payload,
		Priority:   job.Priority,
		MaxRetries: job.MaxRetries,
	})
	s.logger.Info("schedule fired manually", "schedule_id", id, "job_id", job.ID)
	return job, nil
}

// scheduledJobRequest builds the job row a schedule firing manufactures.
// Priority and MaxRetries pass through as-is; the store defaults nil values.
func scheduledJobRequest(sched *model.Schedule) *model.CreateJobRequest {
	scheduleID := sched.ID
	return &model.CreateJobRequest{
		UserID:     sched.UserID,
		AgentName:  sched.AgentConfig.AgentName,
		Payload:    sched.AgentConfig.JobData,
		Priority:   sched.AgentConfig.Priority,
		Origin:     model.JobOriginScheduled,
		ScheduleID: &scheduleID,
		MaxRetries: sched.AgentConfig.MaxRetries,
	}
}
