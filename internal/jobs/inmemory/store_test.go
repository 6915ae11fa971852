package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/dompet/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.ExportRunJob{JobID: "j1", UserID: "u1", RunID: "r1", Status: jobs.JobStatusPending}
	require.NoError(t, s.SaveJob(ctx, job))

	job.Status = jobs.JobStatusFailed
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status)

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	assert.Error(t, s.SaveJob(ctx, &jobs.ExportRunJob{}))
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, j := range []*jobs.ExportRunJob{
		{JobID: "a", UserID: "u1", RunID: "r1", Status: jobs.JobStatusCompleted},
		{JobID: "b", UserID: "u1", RunID: "r2", Status: jobs.JobStatusPending},
		{JobID: "c", UserID: "u2", RunID: "r3", Status: jobs.JobStatusPending},
	} {
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveJob(ctx, j))
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all", jobs.JobFilter{}, []string{"a", "b", "c"}},
		{"by user", jobs.JobFilter{UserID: "u1"}, []string{"a", "b"}},
		{"by run", jobs.JobFilter{RunID: "r3"}, []string{"c"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusPending}, []string{"b", "c"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"a", "b"}},
		{"offset", jobs.JobFilter{Offset: 1, Limit: 1}, []string{"b"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.SaveJob(ctx, &jobs.ExportRunJob{JobID: "j1"}))

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"))
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.NotNil(t, got.CompletedAt)

	assert.ErrorIs(t, s.UpdateJobStatus(ctx, "nope", jobs.JobStatusRunning, ""), jobs.ErrJobNotFound)
}
