// Package data implements the store adapter over PostgreSQL using the pgx
// stdlib bridge. Repositories expose only the operations the core consumes.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentrun-io/agentrun/internal/domain/model"
)

// JobRepo provides database operations for job rows.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// JobRepoOptions configures a JobRepo.
type JobRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewJobRepo creates a JobRepo with the given database connection.
func NewJobRepo(db *sql.DB, opts JobRepoOptions) *JobRepo {
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &JobRepo{DB: db, timeProvider: tp, logger: opts.Logger}
}

const jobColumns = `
  id,
  user_id,
  agent_name,
  payload,
  status,
  priority,
  origin,
  schedule_id,
  result,
  error,
  metadata,
  max_retries,
  created_at,
  updated_at,
  completed_at,
  failed_at
`

// Create inserts a new job row. When req.ID is empty a UUID is assigned.
// Nil Priority and MaxRetries take the model defaults; an explicit zero is
// stored as-is. The initial status is always pending.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	origin := req.Origin
	if origin == "" {
		origin = model.JobOriginManual
	}
	priority := model.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	maxRetries := model.DefaultMaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}
	now := r.timeProvider.Now().UTC()

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO jobs (
			id, user_id, agent_name, payload, status, priority, origin,
			schedule_id, max_retries, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, $8, $9, $9)
		RETURNING `+jobColumns,
		id, req.UserID, req.AgentName, []byte(req.Payload), priority,
		origin, req.ScheduleID, maxRetries, now)

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", classifyPgError(err))
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "job created",
			"id", job.ID, "agent", job.AgentName, "origin", job.Origin)
	}
	return job, nil
}

// GetByID returns the job. When userID is non-empty the lookup is scoped to
// that owner; a job owned by anyone else is reported as not found.
func (r *JobRepo) GetByID(ctx context.Context, id, userID string) (*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	args := []any{id}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	job, err := scanJob(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns a page of the user's jobs ordered newest first, with optional
// status and agent filters.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	if opts.UserID == "" {
		return nil, errors.New("user id is required")
	}

	var (
		clauses = []string{"user_id = $1"}
		args    = []any{opts.UserID}
	)
	if opts.Status != "" {
		args = append(args, opts.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if opts.AgentName != "" {
		args = append(args, opts.AgentName)
		clauses = append(clauses, fmt.Sprintf("agent_name = $%d", len(args)))
	}

	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		jobColumns, strings.Join(clauses, " AND "), len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate jobs: %w", rowsErr)
	}
	return jobs, nil
}

// UpdateStatus writes the job status and dependent columns. Last-writer-wins:
// the pipeline is the sole writer in normal operation. completed_at and
// failed_at are set only on the matching terminal transition.
func (r *JobRepo) UpdateStatus(ctx context.Context, id string, upd model.JobStatusUpdate) error {
	if !upd.Status.Valid() {
		return fmt.Errorf("invalid job status: %q", upd.Status)
	}
	now := r.timeProvider.Now().UTC()

	clauses := []string{"status = $2", "updated_at = $3"}
	args := []any{id, upd.Status, now}

	switch upd.Status {
	case model.JobStatusCompleted:
		args = append(args, now)
		clauses = append(clauses, fmt.Sprintf("completed_at = $%d", len(args)))
		if upd.Result != nil {
			args = append(args, *upd.Result)
			clauses = append(clauses, fmt.Sprintf("result = $%d", len(args)))
		}
	case model.JobStatusFailed:
		args = append(args, now)
		clauses = append(clauses, fmt.Sprintf("failed_at = $%d", len(args)))
		if upd.Error != nil {
			args = append(args, *upd.Error)
			clauses = append(clauses, fmt.Sprintf("error = $%d", len(args)))
		}
	case model.JobStatusPending, model.JobStatusRunning:
		// no dependent columns
	}
	if upd.Metadata != nil {
		args = append(args, []byte(upd.Metadata))
		clauses = append(clauses, fmt.Sprintf("metadata = $%d", len(args)))
	}

	query := "UPDATE jobs SET " + strings.Join(clauses, ", ") + " WHERE id = $1"
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s status: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %s status: rows affected: %w", id, err)
	}
	if affected == 0 {
		return model.ErrJobNotFound
	}
	return nil
}

// Delete removes the job, scoped to userID when non-empty.
func (r *JobRepo) Delete(ctx context.Context, id, userID string) error {
	query := `DELETE FROM jobs WHERE id = $1`
	args := []any{id}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job %s: rows affected: %w", id, err)
	}
	if affected == 0 {
		return model.ErrJobNotFound
	}
	return nil
}

// ListStuckRunning returns jobs left in running status whose last update is
// older than the cutoff. Used by operational tooling after an unclean stop.
func (r *JobRepo) ListStuckRunning(ctx context.Context, olderThan time.Time, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = 'running' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list stuck jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan stuck job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate stuck jobs: %w", rowsErr)
	}
	return jobs, nil
}

// RequeueRunning flips a running job back to pending so it can be
// resubmitted. Only running jobs qualify; the conditional predicate keeps a
// concurrent worker's terminal write from being overwritten.
func (r *JobRepo) RequeueRunning(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs SET status = 'pending', updated_at = $2
		WHERE id = $1 AND status = 'running'`, id, now)
	if err != nil {
		return false, fmt.Errorf("requeue job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("requeue job %s: rows affected: %w", id, err)
	}
	return affected > 0, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scanner.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job      model.Job
		payload  []byte
		metadata []byte
	)
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.AgentName,
		&payload,
		&job.Status,
		&job.Priority,
		&job.Origin,
		&job.ScheduleID,
		&job.Result,
		&job.Error,
		&metadata,
		&job.MaxRetries,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
		&job.FailedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Payload = json.RawMessage(payload)
	if len(metadata) > 0 {
		job.Metadata = json.RawMessage(metadata)
	}
	return &job, nil
}
