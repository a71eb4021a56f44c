package model

import (
	"encoding/json"
	"time"
)

// JobTask is the transient in-memory record carried through the pipeline. It
// is never persisted; the job row it mirrors is owned by the store.
type JobTask struct {
	JobID       string
	UserID      string
	AgentName   string
	Payload     json.RawMessage
	Priority    int
	MaxRetries  int
	RetryCount  int
	CreatedAt   time.Time
	ScheduledAt time.Time
}

// Ready reports whether the task is runnable at the given instant. Tasks with
// a future ScheduledAt live in the delayed set until promotion.
func (t *JobTask) Ready(now time.Time) bool {
	return !t.ScheduledAt.After(now)
}
