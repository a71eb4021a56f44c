// Package model defines the core data types shared across the agentrun job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

// JobOrigin records how a job entered the system.
type JobOrigin string

const (
	// JobStatusPending indicates a job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job has failed to complete.
	JobStatusFailed JobStatus = "failed"

	// JobOriginManual marks jobs submitted directly by a user.
	JobOriginManual JobOrigin = "manual"
	// JobOriginScheduled marks jobs manufactured by a schedule firing.
	JobOriginScheduled JobOrigin = "scheduled"
)

const (
	// DefaultPriority is applied when a submission does not specify one.
	DefaultPriority = 5
	// MaxPriority is the highest accepted job priority.
	MaxPriority = 10
	// DefaultMaxRetries bounds retry attempts when unspecified.
	DefaultMaxRetries = 3
)

// ErrJobNotFound is returned when a job does not exist or is owned by another user.
var ErrJobNotFound = errors.New("job not found")

// Valid returns true if the JobStatus is one of the known states.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid returns true if the JobOrigin is one of the known origins.
func (o JobOrigin) Valid() bool {
	return o == JobOriginManual || o == JobOriginScheduled
}

// UnmarshalText implements encoding.TextUnmarshaler for JobStatus to allow env
// and query-parameter parsing.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", v)
	}
	*s = v
	return nil
}

// Job represents one execution attempt of an agent for a user.
type Job struct {
	ID          string          `json:"id"                     db:"id"`
	UserID      string          `json:"user_id"                db:"user_id"`
	AgentName   string          `json:"agent_name"             db:"agent_name"`
	Payload     json.RawMessage `json:"payload"                db:"payload"`
	Status      JobStatus       `json:"status"                 db:"status"`
	Priority    int             `json:"priority"               db:"priority"`
	Origin      JobOrigin       `json:"origin"                 db:"origin"`
	ScheduleID  *string         `json:"schedule_id,omitempty"  db:"schedule_id"`
	Result      *string         `json:"result,omitempty"       db:"result"`
	Error       *string         `json:"error,omitempty"        db:"error"`
	Metadata    json.RawMessage `json:"metadata,omitempty"     db:"metadata"`
	MaxRetries  int             `json:"max_retries"            db:"max_retries"`
	CreatedAt   time.Time       `json:"created_at"             db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"             db:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt    *time.Time      `json:"failed_at,omitempty"    db:"failed_at"`
}

// CreateJobRequest represents a request to create a new job row. Priority and
// MaxRetries are pointers so an explicit zero (priority 0, no retries) is
// distinguishable from an absent value; nil means "apply the default".
type CreateJobRequest struct {
	ID         string          `json:"id,omitempty"`
	UserID     string          `json:"user_id"`
	AgentName  string          `json:"agent_name"`
	Payload    json.RawMessage `json:"payload"`
	Priority   *int            `json:"priority,omitempty"`
	Origin     JobOrigin       `json:"origin,omitempty"`
	ScheduleID *string         `json:"schedule_id,omitempty"`
	MaxRetries *int            `json:"max_retries,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user id is required")
	}
	if strings.TrimSpace(r.AgentName) == "" {
		return errors.New("agent name is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if r.Priority != nil && (*r.Priority < 0 || *r.Priority > MaxPriority) {
		return fmt.Errorf("priority must be between 0 and %d", MaxPriority)
	}
	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	if r.Origin != "" && !r.Origin.Valid() {
		return fmt.Errorf("invalid job origin: %q", r.Origin)
	}
	if r.Origin == JobOriginScheduled && (r.ScheduleID == nil || *r.ScheduleID == "") {
		return errors.New("scheduled jobs require a schedule id")
	}
	return nil
}

// JobListOptions filters and paginates job listings for one user.
type JobListOptions struct {
	UserID    string
	Status    JobStatus
	AgentName string
	Limit     int
	Offset    int
}

// JobStatusUpdate carries a status write to the store. Result and Error are
// applied only when the target status makes them meaningful.
type JobStatusUpdate struct {
	Status JobStatus
	Result *string
	Error  *string
	// Metadata replaces the job metadata when non-nil.
	Metadata json.RawMessage
}
