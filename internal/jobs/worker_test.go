package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-insights-go/internal/apperr"
	"interview-insights-go/internal/jobs"
	"interview-insights-go/internal/logger"
	"interview-insights-go/internal/store"
	"interview-insights-go/internal/store/storetest"
	"interview-insights-go/internal/types"
)

type funcHandler struct {
	typ string
	run func(jc *jobs.JobContext) (any, error)
}

func (h funcHandler) Type() string                         { return h.typ }
func (h funcHandler) Run(jc *jobs.JobContext) (any, error) { return h.run(jc) }

type echoPayload struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
}

func setup(t *testing.T, policy jobs.RetryPolicy) (*store.Store, *jobs.GormQueue, *jobs.Registry, *jobs.Worker) {
	t.Helper()
	s := storetest.New(t)
	q := jobs.NewGormQueue(s.JobRuns(), policy)
	reg := jobs.NewRegistry()
	w := jobs.NewWorker(s.JobRuns(), reg, jobs.WorkerOptions{Policy: policy}, logger.Discard())
	return s, q, reg, w
}

func TestSubmitValidatesPayload(t *testing.T) {
	_, q, _, _ := setup(t, jobs.RetryPolicy{MaxAttempts: 2})
	_, err := q.Submit(context.Background(), "echo", echoPayload{ProjectID: "nope"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = q.Submit(context.Background(), "", echoPayload{})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestWorkerRunsJobAndStoresResult(t *testing.T) {
	ctx := context.Background()
	_, q, reg, w := setup(t, jobs.RetryPolicy{MaxAttempts: 2})
	reg.Register(funcHandler{typ: "echo", run: func(jc *jobs.JobContext) (any, error) {
		var p echoPayload
		if err := jc.Decode(&p); err != nil {
			return nil, err
		}
		require.NoError(t, jc.SaveState("halfway", map[string]string{"step": "one"}))
		return map[string]string{"project_id": p.ProjectID}, nil
	}})

	projectID := uuid.NewString()
	h, err := q.Submit(ctx, "echo", echoPayload{ProjectID: projectID})
	require.NoError(t, err)

	ran, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	job, err := q.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobSucceeded, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "halfway", job.Stage)
	assert.JSONEq(t, `{"project_id":"`+projectID+`"}`, string(job.Result))

	ran, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestWorkerRetriesThenDies(t *testing.T) {
	ctx := context.Background()
	_, q, reg, w := setup(t, jobs.RetryPolicy{MaxAttempts: 2})
	calls := 0
	reg.Register(funcHandler{typ: "flaky", run: func(jc *jobs.JobContext) (any, error) {
		calls++
		return nil, apperr.E(apperr.KindTransientUpstream, "test", errors.New("upstream 503"))
	}})

	h, err := q.Submit(ctx, "flaky", map[string]string{"k": "v"})
	require.NoError(t, err)

	_, err = w.RunOnce(ctx)
	require.NoError(t, err)
	job, err := q.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.Error, "upstream 503")

	_, err = w.RunOnce(ctx)
	require.NoError(t, err)
	job, err = q.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobDead, job.Status)
	assert.Equal(t, 2, calls)
}

func TestWorkerValidationErrorIsDeadImmediately(t *testing.T) {
	ctx := context.Background()
	_, q, reg, w := setup(t, jobs.RetryPolicy{MaxAttempts: 5})
	reg.Register(funcHandler{typ: "strict", run: func(jc *jobs.JobContext) (any, error) {
		var p echoPayload
		return nil, jc.Decode(&p)
	}})

	h, err := q.Submit(ctx, "strict", map[string]string{"project_id": "not-a-uuid"})
	require.NoError(t, err)
	_, err = w.RunOnce(ctx)
	require.NoError(t, err)

	job, err := q.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobDead, job.Status)
}

func TestWorkerRecoversPanics(t *testing.T) {
	ctx := context.Background()
	_, q, reg, w := setup(t, jobs.RetryPolicy{MaxAttempts: 1})
	reg.Register(funcHandler{typ: "boom", run: func(jc *jobs.JobContext) (any, error) {
		panic("nil map")
	}})
	h, err := q.Submit(ctx, "boom", map[string]string{})
	require.NoError(t, err)

	_, err = w.RunOnce(ctx)
	require.NoError(t, err)
	job, err := q.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobDead, job.Status)
	assert.Contains(t, job.Error, "panic")
}

func TestRetryPolicyDelay(t *testing.T) {
	p := jobs.RetryPolicy{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
}
