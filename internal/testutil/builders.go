package testutil

import (
	"encoding/json"

	"github.com/agentrun-io/agentrun/internal/domain/model"
)

// JobRequestBuilder builds CreateJobRequest values with sensible defaults.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a builder preloaded with a valid echo job. Priority
// and MaxRetries are left unset so the store defaults apply.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			UserID:    "user-1",
			AgentName: "echo",
			Payload:   json.RawMessage(`{"message": "hello"}`),
		},
	}
}

// WithID sets an explicit job id.
func (b *JobRequestBuilder) WithID(id string) *JobRequestBuilder {
	b.req.ID = id
	return b
}

// WithUser sets the owning user.
func (b *JobRequestBuilder) WithUser(userID string) *JobRequestBuilder {
	b.req.UserID = userID
	return b
}

// WithAgent sets the agent name.
func (b *JobRequestBuilder) WithAgent(name string) *JobRequestBuilder {
	b.req.AgentName = name
	return b
}

// WithPayloadString sets the payload from a JSON string.
func (b *JobRequestBuilder) WithPayloadString(payload string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithPriority sets the priority.
func (b *JobRequestBuilder) WithPriority(priority int) *JobRequestBuilder {
	b.req.Priority = &priority
	return b
}

// WithOrigin sets the origin and, for scheduled jobs, the schedule id.
func (b *JobRequestBuilder) WithOrigin(origin model.JobOrigin, scheduleID string) *JobRequestBuilder {
	b.req.Origin = origin
	if scheduleID != "" {
		b.req.ScheduleID = &scheduleID
	}
	return b
}

// WithMaxRetries sets the retry budget.
func (b *JobRequestBuilder) WithMaxRetries(n int) *JobRequestBuilder {
	b.req.MaxRetries = &n
	return b
}

// Build returns the constructed request.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// ScheduleBuilder builds Schedule values with sensible defaults.
type ScheduleBuilder struct {
	s *model.Schedule
}

// NewSchedule creates a builder preloaded with an hourly echo schedule.
func NewSchedule() *ScheduleBuilder {
	return &ScheduleBuilder{
		s: &model.Schedule{
			UserID:         "user-1",
			CronExpression: "0 * * * *",
			Timezone:       "UTC",
			Enabled:        true,
			AgentConfig: model.AgentConfig{
				AgentName: "echo",
				JobData:   json.RawMessage(`{"message": "tick"}`),
			},
		},
	}
}

// WithID sets an explicit schedule id.
func (b *ScheduleBuilder) WithID(id string) *ScheduleBuilder {
	b.s.ID = id
	return b
}

// WithUser sets the owning user.
func (b *ScheduleBuilder) WithUser(userID string) *ScheduleBuilder {
	b.s.UserID = userID
	return b
}

// WithCron sets the cron expression.
func (b *ScheduleBuilder) WithCron(expr string) *ScheduleBuilder {
	b.s.CronExpression = expr
	return b
}

// WithTimezone sets the IANA timezone.
func (b *ScheduleBuilder) WithTimezone(tz string) *ScheduleBuilder {
	b.s.Timezone = tz
	return b
}

// WithEnabled sets the enabled flag.
func (b *ScheduleBuilder) WithEnabled(enabled bool) *ScheduleBuilder {
	b.s.Enabled = enabled
	return b
}

// WithAgent sets the agent the schedule fires.
func (b *ScheduleBuilder) WithAgent(name string, jobData string) *ScheduleBuilder {
	b.s.AgentConfig.AgentName = name
	b.s.AgentConfig.JobData = json.RawMessage(jobData)
	return b
}

// Build returns the constructed schedule.
func (b *ScheduleBuilder) Build() *model.Schedule {
	return b.s
}
