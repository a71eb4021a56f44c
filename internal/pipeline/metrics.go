package pipeline

import (
	"sync"
	"time"

	"github.com/agentrun-io/agentrun/internal/domain/model"
)

// JobMetric is the in-memory execution record kept per job for Status
// queries. Bounded by the retention limit; oldest finished entries evict
// first.
type JobMetric struct {
	JobID      string          `json:"job_id"`
	AgentName  string          `json:"agent_name"`
	Status     model.JobStatus `json:"status"`
	Attempts   int             `json:"attempts"`
	Duration   time.Duration   `json:"duration"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	FinishedAt time.Time       `json:"finished_at,omitzero"`
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Retried   uint64 `json:"retried"`
	Rejected  uint64 `json:"rejected"`
	Tracked   int    `json:"tracked_jobs"`
}

// metrics tracks pipeline counters and a bounded per-job execution map.
// Safe for concurrent use.
type metrics struct {
	mu        sync.Mutex
	retention int

	submitted uint64
	completed uint64
	failed    uint64
	retried   uint64
	rejected  uint64

	jobs map[string]*JobMetric
	// finished holds job IDs in completion order for eviction.
	finished []string
}

func newMetrics(retention int) *metrics {
	return &metrics{retention: retention, jobs: make(map[string]*JobMetric)}
}

func (m *metrics) recordSubmitted(t *model.JobTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted++
	m.jobs[t.JobID] = &JobMetric{
		JobID:      t.JobID,
		AgentName:  t.AgentName,
		Status:     model.JobStatusPending,
		EnqueuedAt: t.CreatedAt,
	}
}

func (m *metrics) recordRunning(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if jm, ok := m.jobs[jobID]; ok {
		jm.Status = model.JobStatusRunning
		jm.Attempts++
	}
}

func (m *metrics) recordRetried(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried++
	// Status stays running while the task backs off.
}

func (m *metrics) recordFinished(jobID string, status model.JobStatus, duration time.Duration, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == model.JobStatusCompleted {
		m.completed++
	} else {
		m.failed++
	}
	jm, ok := m.jobs[jobID]
	if !ok {
		return
	}
	jm.Status = status
	jm.Duration = duration
	jm.FinishedAt = at
	m.finished = append(m.finished, jobID)
}

func (m *metrics) recordRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected++
}

// evict enforces the retention bound. Called from the pipeline cleanup tick;
// the map may exceed the limit between ticks.
func (m *metrics) evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
}

// evictLocked drops finished entries oldest-first until the map fits the
// retention limit. In-flight entries are never evicted.
func (m *metrics) evictLocked() {
	for len(m.jobs) > m.retention && len(m.finished) > 0 {
		id := m.finished[0]
		m.finished = m.finished[1:]
		delete(m.jobs, id)
	}
}

// job returns a copy of the tracked metric for jobID.
func (m *metrics) job(jobID string) (JobMetric, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jm, ok := m.jobs[jobID]
	if !ok {
		return JobMetric{}, false
	}
	return *jm, true
}

// snapshot returns the current counters.
func (m *metrics) snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Submitted: m.submitted,
		Completed: m.completed,
		Failed:    m.failed,
		Retried:   m.retried,
		Rejected:  m.rejected,
		Tracked:   len(m.jobs),
	}
}
