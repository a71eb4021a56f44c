package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrScheduleNotFound is returned when a schedule does not exist or is owned
// by another user.
var ErrScheduleNotFound = errors.New("schedule not found")

// AgentConfig is embedded in a schedule and describes the job each firing
// manufactures. Priority and MaxRetries follow the CreateJobRequest
// convention: nil means "apply the default", a set zero is honored.
type AgentConfig struct {
	AgentName  string          `json:"agent_name"`
	JobData    json.RawMessage `json:"job_data"`
	Priority   *int            `json:"priority,omitempty"`
	MaxRetries *int            `json:"max_retries,omitempty"`
}

// Validate validates the embedded agent configuration.
func (c *AgentConfig) Validate() error {
	if strings.TrimSpace(c.AgentName) == "" {
		return errors.New("agent name is required")
	}
	if len(c.JobData) == 0 {
		return errors.New("job data is required")
	}
	if c.Priority != nil && (*c.Priority < 0 || *c.Priority > MaxPriority) {
		return fmt.Errorf("priority must be between 0 and %d", MaxPriority)
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	return nil
}

// Schedule is a cron rule that manufactures jobs.
type Schedule struct {
	ID             string      `json:"id"                  db:"id"`
	UserID         string      `json:"user_id"             db:"user_id"`
	CronExpression string      `json:"cron_expression"     db:"cron_expression"`
	Timezone       string      `json:"timezone"            db:"timezone"`
	Enabled        bool        `json:"enabled"             db:"enabled"`
	AgentConfig    AgentConfig `json:"agent_config"        db:"agent_config"`
	NextRun        *time.Time  `json:"next_run,omitempty"  db:"next_run"`
	LastRun        *time.Time  `json:"last_run,omitempty"  db:"last_run"`
	LastError      *string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt      time.Time   `json:"created_at"          db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"          db:"updated_at"`

	TotalExecutions      int `json:"total_executions"      db:"total_executions"`
	SuccessfulExecutions int `json:"successful_executions" db:"successful_executions"`
	FailedExecutions     int `json:"failed_executions"     db:"failed_executions"`
}

// CreateScheduleRequest represents a request to create a new schedule.
type CreateScheduleRequest struct {
	UserID         string      `json:"user_id"`
	CronExpression string      `json:"cron_expression"`
	Timezone       string      `json:"timezone,omitempty"`
	Enabled        *bool       `json:"enabled,omitempty"`
	AgentConfig    AgentConfig `json:"agent_config"`
}

// Validate validates the CreateScheduleRequest fields. Cron expression syntax
// is validated by the service layer, which owns the parser.
func (r *CreateScheduleRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user id is required")
	}
	if strings.TrimSpace(r.CronExpression) == "" {
		return errors.New("cron expression is required")
	}
	return r.AgentConfig.Validate()
}

// UpdateScheduleRequest carries a partial schedule update. Nil fields are
// left unchanged.
type UpdateScheduleRequest struct {
	CronExpression *string      `json:"cron_expression,omitempty"`
	Timezone       *string      `json:"timezone,omitempty"`
	Enabled        *bool        `json:"enabled,omitempty"`
	AgentConfig    *AgentConfig `json:"agent_config,omitempty"`
}

// Empty reports whether the update changes nothing.
func (r *UpdateScheduleRequest) Empty() bool {
	return r.CronExpression == nil && r.Timezone == nil && r.Enabled == nil &&
		r.AgentConfig == nil
}

// ScheduleListOptions paginates schedule listings for one user.
type ScheduleListOptions struct {
	UserID  string
	Enabled *bool
	Limit   int
	Offset  int
}
