package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// JobStore persists ingestion jobs. It is the only synchronisation point
// between workers: every state change is a single atomic conditional
// update, so independent processes can share one store.
type JobStore interface {
	// CreateJob inserts the pending job for (documentID, stage).
	// Returns domain.ErrConflict if a job for that pair already exists,
	// domain.ErrPriorStageIncomplete if the previous stage's job has not
	// completed, and domain.ErrNotFound if the document does not exist.
	CreateJob(ctx context.Context, documentID string, stage domain.Stage) (*domain.Job, error)

	// ClaimNext atomically leases one eligible job to req.WorkerID and
	// increments its attempts. Eligible means pending and past NotBefore,
	// or claimed with an expired lease. Returns nil and no error when
	// nothing is eligible.
	ClaimNext(ctx context.Context, req domain.ClaimRequest) (*domain.Job, error)

	// ExtendLease pushes the lease forward. Returns domain.ErrLeaseLost if
	// the worker no longer holds the job.
	ExtendLease(ctx context.Context, jobID, workerID string, lease time.Duration) error

	// Complete marks the job successful. Completing a completed job is a
	// no-op. Returns domain.ErrLeaseLost if another worker holds the job.
	// An empty workerID skips the ownership check.
	Complete(ctx context.Context, jobID, workerID string) (*domain.Job, error)

	// Fail records message and applies decision: a retry returns the job to
	// pending until now+Delay, a terminal decision marks it failed.
	// Returns domain.ErrLeaseLost if another worker holds the job.
	Fail(ctx context.Context, jobID, workerID, message string, decision domain.RetryDecision) (*domain.Job, error)

	// Release returns a claimed job to pending without counting a failure.
	Release(ctx context.Context, jobID, workerID string) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// ListJobs returns a document's jobs in stage order.
	ListJobs(ctx context.Context, documentID string) ([]domain.Job, error)

	// DeleteJobs removes all of a document's jobs.
	DeleteJobs(ctx context.Context, documentID string) error

	// CountJobs returns job counts grouped by stage and status.
	CountJobs(ctx context.Context) ([]domain.JobCount, error)

	// ListStalled returns terminal jobs whose follow-up never happened.
	ListStalled(ctx context.Context, limit int) ([]domain.StalledJob, error)
}
