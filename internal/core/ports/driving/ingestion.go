package driving

import (
	"context"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// IngestionService is the entry point into the pipeline for the rest of
// the platform: registration, enqueueing, status and operator actions.
type IngestionService interface {
	// Register records a document and starts its pipeline. Registering an
	// existing (bucket, key) returns the existing document with created
	// false. A changed checksum on an existing document resets it.
	Register(ctx context.Context, reg domain.Registration) (doc *domain.Document, created bool, err error)

	// Enqueue creates the job for a stage of a document. The pipeline is
	// started with the first stage.
	Enqueue(ctx context.Context, documentID string, stage domain.Stage) (*domain.Job, error)

	// Get returns a document.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// Status returns a document with its jobs, artifacts and chunk count.
	Status(ctx context.Context, documentID string) (*domain.DocumentReport, error)

	// List returns documents matching filter.
	List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)

	// Reset clears a FAILED or INDEXED document's jobs, returns it to
	// REGISTERED and enqueues the first stage.
	Reset(ctx context.Context, documentID string) (*domain.Document, error)

	// Delete removes a document, its children and its vectors.
	Delete(ctx context.Context, documentID string) error

	// Stats returns job counts by stage and status.
	Stats(ctx context.Context) ([]domain.JobCount, error)

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error
}

// Dispatcher runs the claim/execute/advance loop.
type Dispatcher interface {
	// Start runs the loop until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop signals the loop to exit and waits for in-flight jobs.
	Stop()

	// IsRunning reports whether the loop is active.
	IsRunning() bool
}
