package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun-io/agentrun/internal/agent"
	"github.com/agentrun-io/agentrun/internal/core"
	"github.com/agentrun-io/agentrun/internal/domain/model"
	"github.com/agentrun-io/agentrun/internal/provider"
)

// recordingJobRepo captures status writes; the other repository methods are
// not exercised by the pipeline.
type recordingJobRepo struct {
	mu      sync.Mutex
	updates map[string][]model.JobStatusUpdate
}

func newRecordingJobRepo() *recordingJobRepo {
	return &recordingJobRepo{updates: make(map[string][]model.JobStatusUpdate)}
}

func (r *recordingJobRepo) Create(context.Context, *model.CreateJobRequest) (*model.Job, error) {
	return nil, errors.New("not implemented")
}

func (r *recordingJobRepo) GetByID(context.Context, string, string) (*model.Job, error) {
	return nil, model.ErrJobNotFound
}

func (r *recordingJobRepo) List(context.Context, model.JobListOptions) ([]*model.Job, error) {
	return nil, nil
}

func (r *recordingJobRepo) UpdateStatus(_ context.Context, id string, upd model.JobStatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates[id] = append(r.updates[id], upd)
	return nil
}

func (r *recordingJobRepo) Delete(context.Context, string, string) error { return nil }

func (r *recordingJobRepo) lastUpdate(id string) (model.JobStatusUpdate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ups := r.updates[id]
	if len(ups) == 0 {
		return model.JobStatusUpdate{}, false
	}
	return ups[len(ups)-1], true
}

type stubAgent struct {
	name    string
	execute func(ctx context.Context, payload json.RawMessage) (*agent.Result, error)
}

func (s *stubAgent) Name() string                        { return s.name }
func (s *stubAgent) Description() string                 { return "stub" }
func (s *stubAgent) ValidatePayload(json.RawMessage) error { return nil }

func (s *stubAgent) Execute(ctx context.Context, payload json.RawMessage) (*agent.Result, error) {
	return s.execute(ctx, payload)
}

func newTestPipeline(t *testing.T, cfg core.PipelineConfig, repo core.JobRepository, agents ...agent.Agent) *Pipeline {
	t.Helper()
	reg := agent.NewRegistry()
	for _, a := range agents {
		reg.Register(a)
	}
	return New(Options{
		Config:  cfg,
		Runtime: agent.NewRuntime(agent.RuntimeOptions{Registry: reg}),
		Jobs:    repo,
	})
}

func submitReq(jobID, agentName string) core.SubmitRequest {
	return core.SubmitRequest{
		JobID:      jobID,
		UserID:     "u1",
		AgentName:  agentName,
		Payload:    []byte(`{}`),
		Priority:   model.DefaultPriority,
		MaxRetries: 2,
	}
}

func TestPipelineSubmitUnknownAgentFailsJob(t *testing.T) {
	repo := newRecordingJobRepo()
	p := newTestPipeline(t, core.DefaultPipelineConfig(), repo)

	ok := p.Submit(context.Background(), submitReq("j1", "missing"))

	assert.False(t, ok)
	upd, found := repo.lastUpdate("j1")
	require.True(t, found)
	assert.Equal(t, model.JobStatusFailed, upd.Status)
	require.NotNil(t, upd.Error)
	kind, parsed := core.ParseKind(*upd.Error)
	require.True(t, parsed)
	assert.Equal(t, core.KindUnknownAgent, kind)
	assert.Equal(t, uint64(1), p.Status().Stats.Rejected)
}

func TestPipelineSubmitQueueFullLeavesRowUntouched(t *testing.T) {
	repo := newRecordingJobRepo()
	cfg := core.DefaultPipelineConfig()
	cfg.MaxQueueSize = 1
	ok := &stubAgent{name: "ok", execute: func(context.Context, json.RawMessage) (*agent.Result, error) {
		return agent.Succeed("done"), nil
	}}
	p := newTestPipeline(t, cfg, repo, ok)

	assert.True(t, p.Submit(context.Background(), submitReq("j1", "ok")))
	assert.False(t, p.Submit(context.Background(), submitReq("j2", "ok")))

	// The rejected row stays as the caller left it so the submission can be
	// retried; only the rejection counter moves.
	_, found := repo.lastUpdate("j2")
	assert.False(t, found)
	assert.Equal(t, uint64(1), p.Status().Stats.Rejected)
}

func TestPipelineStatusTracksActiveJobs(t *testing.T) {
	repo := newRecordingJobRepo()
	started := make(chan struct{})
	release := make(chan struct{})
	slow := &stubAgent{name: "slow", execute: func(ctx context.Context, _ json.RawMessage) (*agent.Result, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return agent.Succeed("done"), nil
	}}
	cfg := core.DefaultPipelineConfig()
	cfg.MaxConcurrentJobs = 1
	p := newTestPipeline(t, cfg, repo, slow)
	p.Start()
	defer func() { require.NoError(t, p.Stop(5*time.Second)) }()

	require.True(t, p.Submit(context.Background(), submitReq("j1", "slow")))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the task")
	}
	assert.Equal(t, 1, p.Status().Active)

	close(release)
	assert.Eventually(t, func() bool {
		return p.Status().Active == 0
	}, 5*time.Second, 10*time.Millisecond)
	upd, found := repo.lastUpdate("j1")
	require.True(t, found)
	assert.Equal(t, model.JobStatusCompleted, upd.Status)
}

func TestPipelineSubmitFutureTaskGoesDelayed(t *testing.T) {
	repo := newRecordingJobRepo()
	ok := &stubAgent{name: "ok", execute: func(context.Context, json.RawMessage) (*agent.Result, error) {
		return agent.Succeed("done"), nil
	}}
	p := newTestPipeline(t, core.DefaultPipelineConfig(), repo, ok)

	req := submitReq("j1", "ok")
	req.ScheduledAt = time.Now().Add(time.Hour)
	assert.True(t, p.Submit(context.Background(), req))

	st := p.Status()
	assert.Equal(t, 1, st.DelayedDepth)
	assert.Equal(t, 0, st.ReadyDepth)
}

func TestPipelineExecutesJobToCompletion(t *testing.T) {
	repo := newRecordingJobRepo()
	ok := &stubAgent{name: "ok", execute: func(context.Context, json.RawMessage) (*agent.Result, error) {
		return agent.Succeed("all good"), nil
	}}
	p := newTestPipeline(t, core.DefaultPipelineConfig(), repo, ok)
	p.Start()
	defer func() { require.NoError(t, p.Stop(5*time.Second)) }()

	require.True(t, p.Submit(context.Background(), submitReq("j1", "ok")))

	assert.Eventually(t, func() bool {
		upd, found := repo.lastUpdate("j1")
		return found && upd.Status == model.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	upd, _ := repo.lastUpdate("j1")
	require.NotNil(t, upd.Result)
	assert.Equal(t, "all good", *upd.Result)

	jm, found := p.JobStatus("j1")
	require.True(t, found)
	assert.Equal(t, model.JobStatusCompleted, jm.Status)
}

func TestPipelineNonRetriableFailureIsTerminal(t *testing.T) {
	repo := newRecordingJobRepo()
	calls := 0
	bad := &stubAgent{name: "bad", execute: func(context.Context, json.RawMessage) (*agent.Result, error) {
		calls++
		return nil, &provider.Error{Provider: "openai", Kind: core.KindAuthFailure, Status: 401, Message: "bad key"}
	}}
	p := newTestPipeline(t, core.DefaultPipelineConfig(), repo, bad)
	p.Start()
	defer func() { require.NoError(t, p.Stop(5*time.Second)) }()

	require.True(t, p.Submit(context.Background(), submitReq("j1", "bad")))

	assert.Eventually(t, func() bool {
		upd, found := repo.lastUpdate("j1")
		return found && upd.Status == model.JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, calls, "non-retriable failures must not retry")
	upd, _ := repo.lastUpdate("j1")
	require.NotNil(t, upd.Error)
	kind, _ := core.ParseKind(*upd.Error)
	assert.Equal(t, core.KindAuthFailure, kind)
}

func TestHandleFailureSchedulesRetryWithBackoff(t *testing.T) {
	repo := newRecordingJobRepo()
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	cfg := core.DefaultPipelineConfig()
	p := New(Options{
		Config:  cfg,
		Runtime: agent.NewRuntime(agent.RuntimeOptions{}),
		Jobs:    repo,
		Now:     func() time.Time { return now },
	})

	tk := &model.JobTask{JobID: "j1", AgentName: "x", MaxRetries: 3, CreatedAt: now, ScheduledAt: now}
	err := core.NewJobError(core.KindRateLimited, "throttled")

	p.handleFailure(context.Background(), tk, nil, err, time.Second)

	assert.Equal(t, 1, tk.RetryCount)
	// base 2.0, first retry: 2^1 seconds.
	assert.Equal(t, now.Add(2*time.Second), tk.ScheduledAt)
	assert.Equal(t, 1, p.delayed.Len())
	// The job row keeps its running status during backoff.
	_, wrote := repo.lastUpdate("j1")
	assert.False(t, wrote)

	p.handleFailure(context.Background(), tk, nil, err, time.Second)
	assert.Equal(t, 2, tk.RetryCount)
	assert.Equal(t, now.Add(4*time.Second), tk.ScheduledAt)
}

func TestHandleFailureExhaustedRetriesFailsJob(t *testing.T) {
	repo := newRecordingJobRepo()
	p := newTestPipeline(t, core.DefaultPipelineConfig(), repo)

	tk := &model.JobTask{JobID: "j1", AgentName: "x", MaxRetries: 1, RetryCount: 1}
	err := core.NewJobError(core.KindTimeout, "deadline exceeded")

	p.handleFailure(context.Background(), tk, nil, err, time.Second)

	upd, found := repo.lastUpdate("j1")
	require.True(t, found)
	assert.Equal(t, model.JobStatusFailed, upd.Status)
	assert.Equal(t, 0, p.delayed.Len())
}

func TestRetryDelayCapped(t *testing.T) {
	cfg := core.DefaultPipelineConfig()
	p := New(Options{Config: cfg, Runtime: agent.NewRuntime(agent.RuntimeOptions{}), Jobs: newRecordingJobRepo()})

	assert.Equal(t, 2*time.Second, p.retryDelay(1))
	assert.Equal(t, 4*time.Second, p.retryDelay(2))
	assert.Equal(t, 8*time.Second, p.retryDelay(3))
	// 2^60 seconds overflows any practical window; the cap applies.
	assert.Equal(t, cfg.RetryDelayCap, p.retryDelay(60))
}

func TestPromoteMovesDueTasksToReady(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	p := New(Options{
		Config:  core.DefaultPipelineConfig(),
		Runtime: agent.NewRuntime(agent.RuntimeOptions{}),
		Jobs:    newRecordingJobRepo(),
		Now:     func() time.Time { return now },
	})

	due := &model.JobTask{JobID: "due", ScheduledAt: now.Add(-time.Second), CreatedAt: now}
	future := &model.JobTask{JobID: "future", ScheduledAt: now.Add(time.Hour), CreatedAt: now}
	p.delayed.Push(due)
	p.delayed.Push(future)

	p.promote()

	assert.Equal(t, 1, p.ready.Len())
	assert.Equal(t, 1, p.delayed.Len())
}

func TestPipelineStopIsIdempotent(t *testing.T) {
	p := newTestPipeline(t, core.DefaultPipelineConfig(), newRecordingJobRepo())
	p.Start()
	require.NoError(t, p.Stop(5*time.Second))
	require.NoError(t, p.Stop(5*time.Second))
}
