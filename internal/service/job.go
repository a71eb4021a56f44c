// Package service provides the business logic services for the agentrun job
// system.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentrun-io/agentrun/internal/core"
	"github.com/agentrun-io/agentrun/internal/data"
	"github.com/agentrun-io/agentrun/internal/domain/model"
)

// ErrJobStillRunning is returned when a delete targets a running job.
var ErrJobStillRunning = errors.New("job is still running")

// JobService implements the job operations: submission, lookup, listing and
// deletion, all scoped to the requesting user.
type JobService struct {
	jobs      core.JobRepository
	submitter core.JobSubmitter
	logger    *slog.Logger
}

// JobServiceOptions holds the dependencies for creating a JobService.
type JobServiceOptions struct {
	Jobs      core.JobRepository
	Submitter core.JobSubmitter
	Logger    *slog.Logger
}

// NewJobService creates a new JobService with the given dependencies.
func NewJobService(opts JobServiceOptions) *JobService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &JobService{jobs: opts.Jobs, submitter: opts.Submitter, logger: opts.Logger}
}

// SubmitJob validates the request, persists the job row and hands the task to
// the pipeline. Absent priority and max-retries default in the store layer,
// so an explicit zero survives. When the pipeline fails the row (unknown
// agent) the returned job carries the failed status; when the queue is full
// the row stays pending and a QueueFull error tells the caller to retry.
func (s *JobService) SubmitJob(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate job request: %w", err)
	}

	job, err := s.jobs.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	accepted := s.submitter.Submit(ctx, core.SubmitRequest{
		JobID:      job.ID,
		UserID:     job.UserID,
		AgentName:  job.AgentName,
		Payload:    job.Payload,
		Priority:   job.Priority,
		MaxRetries: job.MaxRetries,
	})
	if !accepted {
		// Unknown agent: the pipeline failed the row, reload so the caller
		// sees the terminal state and reason. Full queue: the row is left
		// pending and the caller may resubmit.
		if failed, getErr := s.jobs.GetByID(ctx, job.ID, job.UserID); getErr == nil &&
			failed.Status == model.JobStatusFailed {
			return failed, nil
		}
		return job, core.NewJobError(core.KindQueueFull, "pipeline queue is full, retry later")
	}

	s.logger.Info("job submitted", "job_id", job.ID, "agent", job.AgentName, "user_id", job.UserID)
	return job, nil
}

// GetJob returns the job scoped to the user.
func (s *JobService) GetJob(ctx context.Context, id, userID string) (*model.Job, error) {
	return s.jobs.GetByID(ctx, id, userID)
}

// ListJobs returns a page of the user's jobs, newest first.
func (s *JobService) ListJobs(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	if opts.UserID == "" {
		return nil, errors.New("user id is required")
	}
	return s.jobs.List(ctx, opts)
}

// DeleteJob removes the job. Running jobs cannot be deleted; the pipeline
// still holds their task.
func (s *JobService) DeleteJob(ctx context.Context, id, userID string) error {
	job, err := s.jobs.GetByID(ctx, id, userID)
	if err != nil {
		return err
	}
	if job.Status == model.JobStatusRunning {
		return ErrJobStillRunning
	}
	return s.jobs.Delete(ctx, id, userID)
}

// timeProviderOrDefault returns tp, or the real clock when nil.
func timeProviderOrDefault(tp data.TimeProvider) data.TimeProvider {
	if tp == nil {
		return &data.RealTimeProvider{}
	}
	return tp
}
