package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/dompet/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ExportRunJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1))
	ctx := context.Background()

	var seen atomic.Value
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		seen.Store(job.(*jobs.ExportRunJob).RunID)
		return nil
	}))

	job := &jobs.ExportRunJob{UserID: "u1", RunID: "run-1"}
	require.NoError(t, q.PublishExportRun(ctx, job))
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, 3, job.MaxRetries)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Empty(t, done.Error)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, "run-1", seen.Load())

	require.NoError(t, q.Close())
}

func TestQueue_RetriesThenFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1), WithBackoff(time.Millisecond))
	ctx := context.Background()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		calls.Add(1)
		return errors.New("warehouse unavailable")
	}))

	job := &jobs.ExportRunJob{UserID: "u1", RunID: "run-1", MaxRetries: 2}
	require.NoError(t, q.PublishExportRun(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, 2, failed.RetryCount)
	assert.Equal(t, "warehouse unavailable", failed.Error)
	assert.Equal(t, int32(3), calls.Load())

	require.NoError(t, q.Close())
}

func TestQueue_StopCancelsPendingRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewStore()
	q := NewQueue(4, store, WithWorkers(1), WithBackoff(time.Hour))
	ctx := context.Background()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		return errors.New("boom")
	}))

	job := &jobs.ExportRunJob{UserID: "u1", RunID: "run-1"}
	require.NoError(t, q.PublishExportRun(ctx, job))
	waitForStatus(t, store, job.JobID, jobs.JobStatusRetrying)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))
	require.NoError(t, q.Stop(stopCtx))
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, nil)
	require.NoError(t, q.Close())

	err := q.PublishExportRun(context.Background(), &jobs.ExportRunJob{RunID: "r"})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), ErrQueueClosed)
}
