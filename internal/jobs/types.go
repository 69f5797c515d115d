package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeImportDeclaration runs the extraction pipeline for one declaration.
	JobTypeImportDeclaration JobType = "import_declaration"
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

// ErrJobNotFound is returned by JobStore lookups.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// ImportDeclarationJob carries one declaration through phase two of the import.
// The document either lives in blob storage (DocumentURI) or is passed inline.
type ImportDeclarationJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	DeclarationID string `json:"declaration_id"`
	AccountID     string `json:"account_id"`
	TaxYear       int    `json:"ano"`
	Filename      string `json:"nome_arquivo,omitempty"`
	DocumentURI   string `json:"document_uri,omitempty"`
	Document      []byte `json:"-"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Outcome is the rendered declaration status once the import ran.
	Outcome string `json:"outcome,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ImportDeclarationJob) GetID() string        { return j.JobID }
func (j *ImportDeclarationJob) GetType() JobType     { return JobTypeImportDeclaration }
func (j *ImportDeclarationJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	PublishImport(ctx context.Context, job *ImportDeclarationJob) error
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops accepting jobs, drains what is buffered and waits for
	// in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state for the jobs endpoints.
type JobStore interface {
	SaveJob(ctx context.Context, job *ImportDeclarationJob) error
	GetJob(ctx context.Context, jobID string) (*ImportDeclarationJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportDeclarationJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	AccountID     string
	DeclarationID string
	Status        JobStatus

	Limit  int
	Offset int
}
