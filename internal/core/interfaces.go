// Package core provides the interfaces and shared configuration for the
// agentrun job system. Repositories are implemented in internal/data; the
// pipeline and scheduler consume them through these contracts.
package core

import (
	"context"
	"time"

	"github.com/agentrun-io/agentrun/internal/domain/model"
)

// JobRepository defines the store operations the core consumes for jobs.
//
// UpdateStatus is last-writer-wins: the pipeline is the sole writer in normal
// operation, so no optimistic concurrency is applied on the job side.
type JobRepository interface {
	// Create inserts a new job row and returns it with store-assigned fields.
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)

	// GetByID returns the job, scoped to userID when non-empty. A job owned by
	// a different user is reported as model.ErrJobNotFound.
	GetByID(ctx context.Context, id, userID string) (*model.Job, error)

	// List returns a page of the user's jobs, newest first.
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)

	// UpdateStatus writes the job status and dependent columns (updated_at,
	// completed_at/failed_at, result, error, metadata).
	UpdateStatus(ctx context.Context, id string, upd model.JobStatusUpdate) error

	// Delete removes the job, scoped to userID when non-empty.
	Delete(ctx context.Context, id, userID string) error
}

// StuckJobRepository surfaces jobs abandoned in running status, for
// operational tooling. Separate from JobRepository so the pipeline cannot
// reach jobs it did not enqueue.
type StuckJobRepository interface {
	// ListStuckRunning returns jobs in running status whose last update is
	// older than the cutoff.
	ListStuckRunning(ctx context.Context, olderThan time.Time, limit int) ([]*model.Job, error)

	// RequeueRunning flips a running job back to pending. Returns false when
	// the job was not in running status.
	RequeueRunning(ctx context.Context, id string) (bool, error)
}

// ScheduleRepository defines the store operations the core consumes for
// schedules. Claim is the single place optimistic concurrency is exposed.
type ScheduleRepository interface {
	Create(ctx context.Context, s *model.Schedule) (*model.Schedule, error)
	GetByID(ctx context.Context, id, userID string) (*model.Schedule, error)
	List(ctx context.Context, opts model.ScheduleListOptions) ([]*model.Schedule, error)

	// Update applies the non-nil fields and returns the updated row.
	// next_run/last_run/last_error are owned by the scheduler and are written
	// through UpdateNextRun / Claim / Disable, not here.
	Update(ctx context.Context, id, userID string, req *model.UpdateScheduleRequest) (*model.Schedule, error)

	// Delete removes the schedule; its jobs cascade at the store level.
	Delete(ctx context.Context, id, userID string) error

	// SelectDue returns enabled schedules with a non-null next_run at or
	// before the horizon.
	SelectDue(ctx context.Context, horizon time.Time, limit int) ([]*model.Schedule, error)

	// Claim atomically acquires the right to fire the schedule at
	// expectedNext: UPDATE ... SET last_run, next_run WHERE id AND
	// next_run = expectedNext. Returns false when another instance won.
	Claim(ctx context.Context, p ClaimParams) (bool, error)

	// UpdateNextRun overwrites next_run (enable/recompute paths).
	UpdateNextRun(ctx context.Context, id string, nextRun *time.Time) error

	// Disable turns the schedule off, nulls next_run and records the reason.
	Disable(ctx context.Context, id string, reason string) error

	// IncrementCounters bumps total and success/failure execution counters.
	IncrementCounters(ctx context.Context, id string, success bool) error
}

// ClaimParams carries the conditional update that acquires a firing.
type ClaimParams struct {
	ID           string
	ExpectedNext time.Time
	LastRun      time.Time
	NextRun      time.Time
}

// JobSubmitter is the pipeline entry point the scheduler and services use.
// Submit returns false when nothing was enqueued (unknown agent or full
// queue); the job row disposition is described by the returned error, if any.
type JobSubmitter interface {
	Submit(ctx context.Context, req SubmitRequest) bool
}

// SubmitRequest describes one task handed to the pipeline.
type SubmitRequest struct {
	JobID       string
	UserID      string
	AgentName   string
	Payload     []byte
	Priority    int
	MaxRetries  int
	ScheduledAt time.Time // zero means now
}

// EventPublisher fans job status transitions out to external observers.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, ev JobEvent)
}

// JobEvent describes one observable job status transition.
type JobEvent struct {
	JobID     string          `json:"job_id"`
	UserID    string          `json:"user_id"`
	AgentName string          `json:"agent_name"`
	Status    model.JobStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	At        time.Time       `json:"at"`
}
