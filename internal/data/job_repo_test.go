package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentrun-io/agentrun/internal/domain/model"
	"github.com/agentrun-io/agentrun/internal/testutil"
)

func jobRepoForTest(t *testing.T, tp TimeProvider) *JobRepo {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db := testutil.SetupTestDB(t)
	return NewJobRepo(db, JobRepoOptions{TimeProvider: tp})
}

func TestJobRepoCreateAssignsDefaults(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := jobRepoForTest(t, NewFakeTimeProvider(now))
	ctx := context.Background()

	job, err := repo.Create(ctx, testutil.NewJobRequest().Build())
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, "echo", job.AgentName)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, model.JobOriginManual, job.Origin)
	assert.Equal(t, model.DefaultPriority, job.Priority)
	assert.Equal(t, model.DefaultMaxRetries, job.MaxRetries)
	assert.JSONEq(t, `{"message": "hello"}`, string(job.Payload))
	assert.True(t, job.CreatedAt.Equal(now))
	assert.Nil(t, job.CompletedAt)
	assert.Nil(t, job.FailedAt)
}

func TestJobRepoCreateStoresExplicitZeroes(t *testing.T) {
	repo := jobRepoForTest(t, nil)
	ctx := context.Background()

	job, err := repo.Create(ctx, testutil.NewJobRequest().
		WithPriority(0).WithMaxRetries(0).Build())
	require.NoError(t, err)

	// Zero is a deliberate choice, not an absent value; no default applies.
	assert.Equal(t, 0, job.Priority)
	assert.Equal(t, 0, job.MaxRetries)
}

func TestJobRepoCreateRejectsDuplicateID(t *testing.T) {
	repo := jobRepoForTest(t, nil)
	ctx := context.Background()

	req := testutil.NewJobRequest().WithID("job-dup").Build()
	_, err := repo.Create(ctx, req)
	require.NoError(t, err)

	_, err = repo.Create(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestJobRepoCreateRejectsInvalidRequest(t *testing.T) {
	repo := jobRepoForTest(t, nil)

	_, err := repo.Create(context.Background(),
		testutil.NewJobRequest().WithAgent("").Build())
	assert.Error(t, err)
}

func TestJobRepoGetByIDScopesToUser(t *testing.T) {
	repo := jobRepoForTest(t, nil)
	ctx := context.Background()

	created, err := repo.Create(ctx, testutil.NewJobRequest().WithUser("alice").Build())
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// Another user's lookup must not reveal the job exists.
	_, err = repo.GetByID(ctx, created.ID, "bob")
	assert.ErrorIs(t, err, model.ErrJobNotFound)

	// Unscoped lookup (internal callers) still finds it.
	got, err = repo.GetByID(ctx, created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
}

func TestJobRepoListFiltersAndOrders(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tp := NewFakeTimeProvider(base)
	repo := jobRepoForTest(t, tp)
	ctx := context.Background()

	for i, agent := range []string{"echo", "prompt", "echo"} {
		tp.Set(base.Add(time.Duration(i) * time.Minute))
		_, err := repo.Create(ctx, testutil.NewJobRequest().
			WithUser("alice").WithAgent(agent).Build())
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, testutil.NewJobRequest().WithUser("bob").Build())
	require.NoError(t, err)

	jobs, err := repo.List(ctx, model.JobListOptions{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	// Newest first.
	assert.True(t, jobs[0].CreatedAt.After(jobs[1].CreatedAt))
	assert.True(t, jobs[1].CreatedAt.After(jobs[2].CreatedAt))

	echoJobs, err := repo.List(ctx, model.JobListOptions{UserID: "alice", AgentName: "echo"})
	require.NoError(t, err)
	assert.Len(t, echoJobs, 2)

	pending, err := repo.List(ctx, model.JobListOptions{
		UserID: "alice",
		Status: model.JobStatusPending,
	})
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	_, err = repo.List(ctx, model.JobListOptions{})
	assert.Error(t, err)
}

func TestJobRepoUpdateStatusCompleted(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tp := NewFakeTimeProvider(now)
	repo := jobRepoForTest(t, tp)
	ctx := context.Background()

	created, err := repo.Create(ctx, testutil.NewJobRequest().Build())
	require.NoError(t, err)

	finished := now.Add(2 * time.Second)
	tp.Set(finished)
	result := `{"echoed": "hello"}`
	err = repo.UpdateStatus(ctx, created.ID, model.JobStatusUpdate{
		Status:   model.JobStatusCompleted,
		Result:   &result,
		Metadata: []byte(`{"duration_ms": 12}`),
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.JSONEq(t, result, *got.Result)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(finished))
	assert.Nil(t, got.FailedAt)
	assert.JSONEq(t, `{"duration_ms": 12}`, string(got.Metadata))
}

func TestJobRepoUpdateStatusFailed(t *testing.T) {
	repo := jobRepoForTest(t, nil)
	ctx := context.Background()

	created, err := repo.Create(ctx, testutil.NewJobRequest().Build())
	require.NoError(t, err)

	msg := "UpstreamError: provider unavailable"
	err = repo.UpdateStatus(ctx, created.ID, model.JobStatusUpdate{
		Status: model.JobStatusFailed,
		Error:  &msg,
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, msg, *got.Error)
	assert.NotNil(t, got.FailedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestJobRepoUpdateStatusGuards(t *testing.T) {
	repo := jobRepoForTest(t, nil)
	ctx := context.Background()

	err := repo.UpdateStatus(ctx, "missing", model.JobStatusUpdate{
		Status: model.JobStatusRunning,
	})
	assert.ErrorIs(t, err, model.ErrJobNotFound)

	err = repo.UpdateStatus(ctx, "missing", model.JobStatusUpdate{Status: "bogus"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrJobNotFound)
}

func TestJobRepoDeleteScopesToUser(t *testing.T) {
	repo := jobRepoForTest(t, nil)
	ctx := context.Background()

	created, err := repo.Create(ctx, testutil.NewJobRequest().WithUser("alice").Build())
	require.NoError(t, err)

	err = repo.Delete(ctx, created.ID, "bob")
	assert.ErrorIs(t, err, model.ErrJobNotFound)

	err = repo.Delete(ctx, created.ID, "alice")
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, created.ID, "")
	assert.ErrorIs(t, err, model.ErrJobNotFound)
}

func TestJobRepoStuckRunningRoundTrip(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tp := NewFakeTimeProvider(base)
	repo := jobRepoForTest(t, tp)
	ctx := context.Background()

	stale, err := repo.Create(ctx, testutil.NewJobRequest().Build())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, stale.ID,
		model.JobStatusUpdate{Status: model.JobStatusRunning}))

	// A fresh running job inside the cutoff must not be reported.
	tp.Set(base.Add(time.Hour))
	fresh, err := repo.Create(ctx, testutil.NewJobRequest().Build())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, fresh.ID,
		model.JobStatusUpdate{Status: model.JobStatusRunning}))

	stuck, err := repo.ListStuckRunning(ctx, base.Add(30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, stale.ID, stuck[0].ID)

	requeued, err := repo.RequeueRunning(ctx, stale.ID)
	require.NoError(t, err)
	assert.True(t, requeued)

	got, err := repo.GetByID(ctx, stale.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)

	// A second requeue finds no running row.
	requeued, err = repo.RequeueRunning(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, requeued)
}
