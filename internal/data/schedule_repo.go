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
	"github.com/jackc/pgx/v5"

	"github.com/agentrun-io/agentrun/internal/core"
	"github.com/agentrun-io/agentrun/internal/data/pgxutil"
	"github.com/agentrun-io/agentrun/internal/domain/model"
)

// ScheduleRepo provides database operations for schedule rows. The claim
// update is the only place it exposes optimistic concurrency.
type ScheduleRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// ScheduleRepoOptions configures a ScheduleRepo.
type ScheduleRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewScheduleRepo creates a ScheduleRepo with the given database connection.
func NewScheduleRepo(db *sql.DB, opts ScheduleRepoOptions) *ScheduleRepo {
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &ScheduleRepo{DB: db, timeProvider: tp, logger: opts.Logger}
}

const scheduleColumns = `
  id,
  user_id,
  cron_expression,
  timezone,
  enabled,
  agent_config,
  next_run,
  last_run,
  last_error,
  created_at,
  updated_at,
  total_executions,
  successful_executions,
  failed_executions
`

// Create inserts a new schedule row. The caller (service layer) has already
// validated the cron expression and computed next_run.
func (r *ScheduleRepo) Create(ctx context.Context, s *model.Schedule) (*model.Schedule, error) {
	if s == nil {
		return nil, errors.New("schedule is required")
	}
	cfg, err := json.Marshal(s.AgentConfig)
	if err != nil {
		return nil, fmt.Errorf("marshal agent config: %w", err)
	}

	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	tz := s.Timezone
	if tz == "" {
		tz = "UTC"
	}
	now := r.timeProvider.Now().UTC()

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO schedules (
			id, user_id, cron_expression, timezone, enabled, agent_config,
			next_run, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+scheduleColumns,
		id, s.UserID, s.CronExpression, tz, s.Enabled, cfg, toNullTime(s.NextRun), now)

	created, err := scanSchedule(row)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", classifyPgError(err))
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "schedule created",
			"id", created.ID, "cron", created.CronExpression, "enabled", created.Enabled)
	}
	return created, nil
}

// GetByID returns the schedule, scoped to userID when non-empty.
func (r *ScheduleRepo) GetByID(ctx context.Context, id, userID string) (*model.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	args := []any{id}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	s, err := scanSchedule(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return s, nil
}

// List returns a page of the user's schedules ordered by creation time.
func (r *ScheduleRepo) List(ctx context.Context, opts model.ScheduleListOptions) ([]*model.Schedule, error) {
	if opts.UserID == "" {
		return nil, errors.New("user id is required")
	}

	clauses := []string{"user_id = $1"}
	args := []any{opts.UserID}
	if opts.Enabled != nil {
		args = append(args, *opts.Enabled)
		clauses = append(clauses, fmt.Sprintf("enabled = $%d", len(args)))
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
		SELECT %s FROM schedules
		WHERE %s
		ORDER BY created_at ASC
		LIMIT $%d OFFSET $%d`,
		scheduleColumns, strings.Join(clauses, " AND "), len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schedules []*model.Schedule
	for rows.Next() {
		s, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan schedule: %w", scanErr)
		}
		schedules = append(schedules, s)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate schedules: %w", rowsErr)
	}
	return schedules, nil
}

// scheduleUpdate carries the pre-marshaled column writes for Update.
type scheduleUpdate struct {
	clauses []string
	args    []any
}

func (u *scheduleUpdate) add(column string, value any) {
	u.args = append(u.args, value)
	u.clauses = append(u.clauses, fmt.Sprintf("%s = $%d", column, len(u.args)))
}

// Update applies the non-nil fields of req and returns the updated row.
// next_run recomputation on enable/disable and cron changes is the service
// layer's responsibility; this method writes only the requested columns.
func (r *ScheduleRepo) Update(
	ctx context.Context,
	id, userID string,
	req *model.UpdateScheduleRequest,
) (*model.Schedule, error) {
	if req == nil || req.Empty() {
		return r.GetByID(ctx, id, userID)
	}

	u := &scheduleUpdate{args: []any{id}}
	if req.CronExpression != nil {
		u.add("cron_expression", *req.CronExpression)
	}
	if req.Timezone != nil {
		u.add("timezone", *req.Timezone)
	}
	if req.Enabled != nil {
		u.add("enabled", *req.Enabled)
	}
	if req.AgentConfig != nil {
		cfg, err := json.Marshal(req.AgentConfig)
		if err != nil {
			return nil, fmt.Errorf("marshal agent config: %w", err)
		}
		u.add("agent_config", cfg)
	}
	u.add("updated_at", r.timeProvider.Now().UTC())

	query := "UPDATE schedules SET " + strings.Join(u.clauses, ", ") + " WHERE id = $1"
	if userID != "" {
		u.args = append(u.args, userID)
		query += fmt.Sprintf(" AND user_id = $%d", len(u.args))
	}
	query += " RETURNING " + scheduleColumns

	s, err := scanSchedule(r.DB.QueryRowContext(ctx, query, u.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("update schedule %s: %w", id, err)
	}
	return s, nil
}

// Delete removes the schedule. Its jobs cascade through the schedule_id
// foreign key.
func (r *ScheduleRepo) Delete(ctx context.Context, id, userID string) error {
	query := `DELETE FROM schedules WHERE id = $1`
	args := []any{id}
	if userID != "" {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schedule %s: rows affected: %w", id, err)
	}
	if affected == 0 {
		return model.ErrScheduleNotFound
	}
	return nil
}

// SelectDue returns enabled schedules whose next_run is at or before the
// horizon, oldest first. Uses the pgx bridge to leverage CollectRows.
func (r *ScheduleRepo) SelectDue(ctx context.Context, horizon time.Time, limit int) ([]*model.Schedule, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = TRUE
		  AND next_run IS NOT NULL
		  AND next_run <= $1
		ORDER BY next_run ASC
		LIMIT $2`

	var schedules []*model.Schedule
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, query, horizon.UTC(), limit)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectRows(rows, rowToSchedule)
		if collectErr != nil {
			return collectErr
		}
		schedules = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("select due schedules: %w", err)
	}
	return schedules, nil
}

// Claim atomically acquires the right to fire the schedule at the stored
// next_run. The conditional predicate guarantees that of N instances racing
// the same (id, next_run) tuple, exactly one observes an affected row.
func (r *ScheduleRepo) Claim(ctx context.Context, p core.ClaimParams) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE schedules
		   SET last_run = $3, next_run = $4, updated_at = $5
		 WHERE id = $1 AND next_run = $2`,
		p.ID, p.ExpectedNext.UTC(), p.LastRun.UTC(), p.NextRun.UTC(),
		r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim schedule %s: %w", p.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim schedule %s: rows affected: %w", p.ID, err)
	}
	return affected > 0, nil
}

// UpdateNextRun overwrites next_run. A nil nextRun clears it.
func (r *ScheduleRepo) UpdateNextRun(ctx context.Context, id string, nextRun *time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE schedules SET next_run = $2, updated_at = $3 WHERE id = $1`,
		id, toNullTime(nextRun), r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("update schedule %s next_run: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule %s next_run: rows affected: %w", id, err)
	}
	if affected == 0 {
		return model.ErrScheduleNotFound
	}
	return nil
}

// Disable turns the schedule off, clears next_run and records the reason.
// Used when a cron expression or timezone turns out to be unusable.
func (r *ScheduleRepo) Disable(ctx context.Context, id string, reason string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE schedules
		   SET enabled = FALSE, next_run = NULL, last_error = $2, updated_at = $3
		 WHERE id = $1`,
		id, reason, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("disable schedule %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disable schedule %s: rows affected: %w", id, err)
	}
	if affected == 0 {
		return model.ErrScheduleNotFound
	}
	return nil
}

// IncrementCounters bumps the execution counters after a scheduled job
// reaches a terminal status.
func (r *ScheduleRepo) IncrementCounters(ctx context.Context, id string, success bool) error {
	column := "failed_executions"
	if success {
		column = "successful_executions"
	}
	_, err := r.DB.ExecContext(ctx, fmt.Sprintf(`
		UPDATE schedules
		   SET total_executions = total_executions + 1,
		       %s = %s + 1,
		       updated_at = $2
		 WHERE id = $1`, column, column),
		id, r.timeProvider.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment schedule %s counters: %w", id, err)
	}
	return nil
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func scanSchedule(row rowScanner) (*model.Schedule, error) {
	var (
		s         model.Schedule
		cfg       []byte
		nextRun   sql.NullTime
		lastRun   sql.NullTime
		lastError sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.CronExpression,
		&s.Timezone,
		&s.Enabled,
		&cfg,
		&nextRun,
		&lastRun,
		&lastError,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.TotalExecutions,
		&s.SuccessfulExecutions,
		&s.FailedExecutions,
	)
	if err != nil {
		return nil, err
	}
	return hydrateSchedule(&s, cfg, nextRun, lastRun, lastError)
}

// rowToSchedule adapts pgx.CollectRows to the shared hydration path.
func rowToSchedule(row pgx.CollectableRow) (*model.Schedule, error) {
	var (
		s         model.Schedule
		cfg       []byte
		nextRun   sql.NullTime
		lastRun   sql.NullTime
		lastError sql.NullString
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.CronExpression,
		&s.Timezone,
		&s.Enabled,
		&cfg,
		&nextRun,
		&lastRun,
		&lastError,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.TotalExecutions,
		&s.SuccessfulExecutions,
		&s.FailedExecutions,
	)
	if err != nil {
		return nil, err
	}
	return hydrateSchedule(&s, cfg, nextRun, lastRun, lastError)
}

func hydrateSchedule(
	s *model.Schedule,
	cfg []byte,
	nextRun, lastRun sql.NullTime,
	lastError sql.NullString,
) (*model.Schedule, error) {
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &s.AgentConfig); err != nil {
			return nil, fmt.Errorf("unmarshal agent config: %w", err)
		}
	}
	if nextRun.Valid {
		t := nextRun.Time.UTC()
		s.NextRun = &t
	}
	if lastRun.Valid {
		t := lastRun.Time.UTC()
		s.LastRun = &t
	}
	if lastError.Valid {
		s.LastError = &lastError.String
	}
	return s, nil
}
