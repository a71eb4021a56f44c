// Package pipeline executes submitted jobs: a bounded priority queue feeds a
// fixed worker pool, a delayed heap holds future and backing-off tasks, and
// every status transition is written through to the job store.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/agentrun-io/agentrun/internal/agent"
	"github.com/agentrun-io/agentrun/internal/core"
	"github.com/agentrun-io/agentrun/internal/domain/model"
	"github.com/agentrun-io/agentrun/internal/observability/statsd"
)

// ErrStopTimeout is returned by Stop when workers do not drain in time.
var ErrStopTimeout = errors.New("pipeline stop timed out")

// Options configures a Pipeline.
type Options struct {
	Config  core.PipelineConfig
	Runtime *agent.Runtime
	Jobs    core.JobRepository
	Events  core.EventPublisher
	Stats   statsd.Sink
	Logger  *slog.Logger
	// Now is overridable in tests.
	Now func() time.Time
}

// Pipeline is the job execution engine. It satisfies core.JobSubmitter.
type Pipeline struct {
	cfg     core.PipelineConfig
	runtime *agent.Runtime
	jobs    core.JobRepository
	events  core.EventPublisher
	stats   statsd.Sink
	logger  *slog.Logger
	now     func() time.Time

	ready   *readyQueue
	delayed *delayedQueue
	metrics *metrics

	// active holds the in-flight task per job id. Each worker writes only
	// its own key, so len(active) never exceeds the worker count.
	activeMu sync.Mutex
	active   map[string]*model.JobTask

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ core.JobSubmitter = (*Pipeline)(nil)

// New creates a Pipeline. Call Start to launch workers.
func New(opts Options) *Pipeline {
	cfg := opts.Config
	cfg.Sanitize()
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		cfg:     cfg,
		runtime: opts.Runtime,
		jobs:    opts.Jobs,
		events:  opts.Events,
		stats:   opts.Stats,
		logger:  opts.Logger,
		now:     now,
		ready:   newReadyQueue(cfg.MaxQueueSize),
		delayed: newDelayedQueue(),
		metrics: newMetrics(cfg.MetricsRetention),
		active:  make(map[string]*model.JobTask),
	}
}

// Submit admits one task. An unknown agent fails the job row immediately and
// returns false. A full ready queue returns false without touching the row,
// so the caller may retry the submission. A future ScheduledAt parks the
// task in the delayed set.
func (p *Pipeline) Submit(ctx context.Context, req core.SubmitRequest) bool {
	if !p.runtime.Has(req.AgentName) {
		p.rejectJob(ctx, req.JobID, core.NewJobError(core.KindUnknownAgent, "agent "+req.AgentName+" is not registered"))
		return false
	}

	now := p.now()
	task := &model.JobTask{
		JobID:       req.JobID,
		UserID:      req.UserID,
		AgentName:   req.AgentName,
		Payload:     req.Payload,
		Priority:    clampPriority(req.Priority),
		MaxRetries:  req.MaxRetries,
		CreatedAt:   now,
		ScheduledAt: req.ScheduledAt,
	}
	if task.ScheduledAt.IsZero() {
		task.ScheduledAt = now
	}
	if task.MaxRetries < 0 {
		task.MaxRetries = 0
	}

	if !task.Ready(now) {
		p.metrics.recordSubmitted(task)
		p.delayed.Push(task)
		p.count("jobs.submitted", map[string]string{"agent": task.AgentName, "delayed": "true"})
		return true
	}

	if !p.ready.Push(task) {
		p.metrics.recordRejected()
		p.count("jobs.rejected", map[string]string{"kind": string(core.KindQueueFull)})
		if p.logger != nil {
			p.logger.Warn("submission rejected, ready queue full", "job_id", req.JobID)
		}
		return false
	}
	p.metrics.recordSubmitted(task)
	p.count("jobs.submitted", map[string]string{"agent": task.AgentName})
	return true
}

// Start launches the worker pool and the promotion and cleanup loops.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.cfg.MaxConcurrentJobs; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx)
	}
	p.wg.Add(2)
	go p.runPromotion(ctx)
	go p.runCleanup(ctx)

	if p.logger != nil {
		p.logger.Info("pipeline started",
			"workers", p.cfg.MaxConcurrentJobs,
			"max_queue_size", p.cfg.MaxQueueSize)
	}
}

// Stop signals all loops and waits up to timeout for in-flight work to
// finish. Queued tasks are abandoned; their job rows stay pending or running
// for operational requeue.
func (p *Pipeline) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if p.logger != nil {
			p.logger.Info("pipeline stopped")
		}
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// Status reports counters, queue depths and the in-flight task count.
func (p *Pipeline) Status() Status {
	p.activeMu.Lock()
	active := len(p.active)
	p.activeMu.Unlock()
	return Status{
		Stats:        p.metrics.snapshot(),
		ReadyDepth:   p.ready.Len(),
		DelayedDepth: p.delayed.Len(),
		Active:       active,
		Workers:      p.cfg.MaxConcurrentJobs,
	}
}

// Status is the pipeline health snapshot.
type Status struct {
	Stats        Stats `json:"stats"`
	ReadyDepth   int   `json:"ready_depth"`
	DelayedDepth int   `json:"delayed_depth"`
	Active       int   `json:"active"`
	Workers      int   `json:"workers"`
}

// JobStatus returns the tracked execution metric for jobID, if retained.
func (p *Pipeline) JobStatus(jobID string) (JobMetric, bool) {
	return p.metrics.job(jobID)
}

func (p *Pipeline) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		task, ok := p.ready.Pop(ctx)
		if !ok {
			return
		}
		p.execute(ctx, task)
	}
}

// execute runs one attempt of the task and persists the outcome.
func (p *Pipeline) execute(ctx context.Context, task *model.JobTask) {
	p.activeMu.Lock()
	p.active[task.JobID] = task
	p.activeMu.Unlock()
	defer func() {
		p.activeMu.Lock()
		delete(p.active, task.JobID)
		p.activeMu.Unlock()
	}()

	p.metrics.recordRunning(task.JobID)
	if err := p.jobs.UpdateStatus(ctx, task.JobID, model.JobStatusUpdate{Status: model.JobStatusRunning}); err != nil {
		// Retries have already marked the row running; anything else is logged
		// and execution proceeds so the job is not silently lost.
		if p.logger != nil && task.RetryCount == 0 {
			p.logger.Warn("mark running failed", "job_id", task.JobID, "error", err)
		}
	}
	p.publish(ctx, task, model.JobStatusRunning, "")

	started := p.now()
	result, execErr := p.runtime.Execute(ctx, task.AgentName, task.Payload)
	duration := p.now().Sub(started)

	if execErr != nil {
		p.handleFailure(ctx, task, result, execErr, duration)
		return
	}

	upd := model.JobStatusUpdate{
		Status:   model.JobStatusCompleted,
		Result:   &result.Output,
		Metadata: marshalMeta(result.Metadata),
	}
	if err := p.jobs.UpdateStatus(ctx, task.JobID, upd); err != nil && p.logger != nil {
		p.logger.Error("persist completion failed", "job_id", task.JobID, "error", err)
	}
	p.metrics.recordFinished(task.JobID, model.JobStatusCompleted, duration, p.now())
	p.publish(ctx, task, model.JobStatusCompleted, "")
	p.count("jobs.completed", map[string]string{"agent": task.AgentName})
	p.timing("job.duration", duration, map[string]string{"agent": task.AgentName, "status": "completed"})

	if p.logger != nil {
		p.logger.Info("job completed", "job_id", task.JobID, "agent", task.AgentName,
			"duration_ms", duration.Milliseconds(), "attempts", task.RetryCount+1)
	}
}

// handleFailure decides between retry and terminal failure. Retried tasks
// keep their running status in the store and re-enter through the delayed
// heap after an exponential backoff.
func (p *Pipeline) handleFailure(ctx context.Context, task *model.JobTask, result *agent.Result, execErr error, duration time.Duration) {
	kind := core.KindOf(execErr)

	if kind.Retriable() && task.RetryCount < task.MaxRetries {
		task.RetryCount++
		delay := p.retryDelay(task.RetryCount)
		task.ScheduledAt = p.now().Add(delay)
		p.delayed.Push(task)
		p.metrics.recordRetried(task.JobID)
		p.count("jobs.retried", map[string]string{"agent": task.AgentName, "kind": string(kind)})
		if p.logger != nil {
			p.logger.Warn("job retry scheduled", "job_id", task.JobID, "agent", task.AgentName,
				"kind", string(kind), "retry", task.RetryCount, "max_retries", task.MaxRetries,
				"delay", delay.String())
		}
		return
	}

	reason := execErr.Error()
	upd := model.JobStatusUpdate{
		Status: model.JobStatusFailed,
		Error:  &reason,
	}
	if result != nil {
		upd.Metadata = marshalMeta(result.Metadata)
	}
	if err := p.jobs.UpdateStatus(ctx, task.JobID, upd); err != nil && p.logger != nil {
		p.logger.Error("persist failure failed", "job_id", task.JobID, "error", err)
	}
	p.metrics.recordFinished(task.JobID, model.JobStatusFailed, duration, p.now())
	p.publish(ctx, task, model.JobStatusFailed, reason)
	p.count("jobs.failed", map[string]string{"agent": task.AgentName, "kind": string(kind)})
	p.timing("job.duration", duration, map[string]string{"agent": task.AgentName, "status": "failed"})

	if p.logger != nil {
		p.logger.Error("job failed", "job_id", task.JobID, "agent", task.AgentName,
			"kind", string(kind), "attempts", task.RetryCount+1, "error", reason)
	}
}

// retryDelay computes base^attempt seconds, capped. The comparison happens in
// float seconds so large exponents cannot overflow the Duration conversion.
func (p *Pipeline) retryDelay(attempt int) time.Duration {
	secs := math.Pow(p.cfg.RetryDelayBase, float64(attempt))
	if secs >= p.cfg.RetryDelayCap.Seconds() {
		return p.cfg.RetryDelayCap
	}
	return time.Duration(secs * float64(time.Second))
}

// runPromotion moves due delayed tasks onto the ready queue.
func (p *Pipeline) runPromotion(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PromotionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.promote()
		}
	}
}

// promote drains the runnable prefix of the delayed heap. A full ready queue
// re-parks the task one promotion interval out rather than failing it.
func (p *Pipeline) promote() {
	now := p.now()
	for _, task := range p.delayed.PopReady(now) {
		if p.ready.Push(task) {
			continue
		}
		task.ScheduledAt = now.Add(p.cfg.PromotionInterval)
		p.delayed.Push(task)
		if p.logger != nil {
			p.logger.Warn("promotion deferred, ready queue full", "job_id", task.JobID)
		}
	}
}

// runCleanup evicts stale job metrics and emits depth gauges on each tick.
func (p *Pipeline) runCleanup(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.metrics.evict()
			if p.stats != nil {
				p.stats.Gauge("queue.ready_depth", float64(p.ready.Len()), nil)
				p.stats.Gauge("queue.delayed_depth", float64(p.delayed.Len()), nil)
				p.activeMu.Lock()
				active := len(p.active)
				p.activeMu.Unlock()
				p.stats.Gauge("jobs.active", float64(active), nil)
			}
		}
	}
}

// rejectJob fails the job row for a submission that never entered the queue.
func (p *Pipeline) rejectJob(ctx context.Context, jobID string, jerr *core.JobError) {
	p.metrics.recordRejected()
	reason := jerr.Error()
	upd := model.JobStatusUpdate{Status: model.JobStatusFailed, Error: &reason}
	if err := p.jobs.UpdateStatus(ctx, jobID, upd); err != nil && p.logger != nil {
		p.logger.Error("persist rejection failed", "job_id", jobID, "error", err)
	}
	p.count("jobs.rejected", map[string]string{"kind": string(jerr.Kind)})
	if p.logger != nil {
		p.logger.Warn("job rejected", "job_id", jobID, "kind", string(jerr.Kind), "error", reason)
	}
}

func (p *Pipeline) publish(ctx context.Context, task *model.JobTask, status model.JobStatus, errMsg string) {
	if p.events == nil {
		return
	}
	p.events.PublishJobEvent(ctx, core.JobEvent{
		JobID:     task.JobID,
		UserID:    task.UserID,
		AgentName: task.AgentName,
		Status:    status,
		Error:     errMsg,
		At:        p.now(),
	})
}

func (p *Pipeline) count(name string, tags map[string]string) {
	if p.stats != nil {
		p.stats.Count(name, 1, tags)
	}
}

func (p *Pipeline) timing(name string, d time.Duration, tags map[string]string) {
	if p.stats != nil {
		p.stats.Timing(name, d, tags)
	}
}

func clampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > model.MaxPriority {
		return model.MaxPriority
	}
	return p
}

func marshalMeta(meta map[string]any) json.RawMessage {
	if len(meta) == 0 {
		return nil
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return raw
}
