package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/rfm-segmentation/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRFMAnalysis represents an RFM segmentation of one transaction source.
	JobTypeRFMAnalysis JobType = "rfm_analysis"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// AnalysisJob represents a job to segment the customers of one source.
type AnalysisJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// SourceURI is a local path, gs:// object or bq:// table of transactions.
	SourceURI string `json:"source_uri"`

	// OutputURI is where the table is written: a local path, a gs:// object
	// or a bq:// table. Empty means the configured default destination.
	OutputURI string `json:"output_uri,omitempty"`

	// Format is the output format for file and object destinations.
	Format string `json:"format,omitempty"`

	// RunID is the analysis run that produced the result.
	RunID string `json:"run_id,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// CustomerCount is the number of customers scored.
	CustomerCount int `json:"customer_count"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *AnalysisJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *AnalysisJob) GetType() JobType {
	return JobTypeRFMAnalysis
}

// GetStatus implements the Job interface.
func (j *AnalysisJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishAnalysis publishes an RFM analysis job.
	PublishAnalysis(ctx context.Context, job *AnalysisJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job. Errors that belong to the
// domain error taxonomy fail the job at once; any other error is retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *AnalysisJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*AnalysisJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*AnalysisJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// SourceURI filters jobs by source.
	SourceURI string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// ErrJobNotFound is returned by stores for unknown job IDs.
type ErrJobNotFound struct {
	JobID string
}

func (e *ErrJobNotFound) Error() string {
	return "job not found: " + e.JobID
}

// PermanentError marks a job error that no retry can fix, such as a bad
// output URI or format.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// IsRetryable reports whether a failed job may succeed when run again.
func IsRetryable(err error) bool {
	var permanent *PermanentError
	return !errors.As(err, &permanent) && !domain.IsFatal(err)
}
