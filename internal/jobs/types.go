package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by JobStore lookups for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExportRun exports a finished analysis run to the analytics
	// warehouse and mirrors its suggestions.
	JobTypeExportRun JobType = "export_run"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ExportRunJob asks a worker to export one analysis run.
type ExportRunJob struct {
	JobID  string    `json:"job_id"`
	UserID string    `json:"user_id"`
	RunID  string    `json:"run_id"`
	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ExportRunJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ExportRunJob) GetType() JobType {
	return JobTypeExportRun
}

// GetStatus implements the Job interface.
func (j *ExportRunJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishExportRun(ctx context.Context, job *ExportRunJob) error
	Close() error
}

// Consumer runs a handler for every job it receives.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExportRunJob) error
	GetJob(ctx context.Context, jobID string) (*ExportRunJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExportRunJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID string
	RunID  string
	Status JobStatus
	Limit  int
	Offset int
}
