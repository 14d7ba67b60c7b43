package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driving"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService registers documents and exposes pipeline state.
type IngestionService struct {
	docs      driven.DocumentStore
	jobs      driven.JobStore
	artifacts driven.ArtifactStore
	chunks    driven.ChunkStore
	objects   driven.ObjectStore
	vectors   driven.VectorIndex
	rerun     *rerunner
	log       *slog.Logger
}

// NewIngestionService creates an ingestion service. objects and vectors
// may be nil; Delete then leaves stored artifacts and vectors in place.
func NewIngestionService(
	docs driven.DocumentStore,
	jobs driven.JobStore,
	artifacts driven.ArtifactStore,
	chunks driven.ChunkStore,
	objects driven.ObjectStore,
	vectors driven.VectorIndex,
) *IngestionService {
	log := logger.With("component", "ingestion")
	return &IngestionService{
		docs:      docs,
		jobs:      jobs,
		artifacts: artifacts,
		chunks:    chunks,
		objects:   objects,
		vectors:   vectors,
		rerun:     &rerunner{docs: docs, jobs: jobs, lifecycle: NewLifecycle(docs), log: log},
		log:       log,
	}
}

// Register records a document and enqueues its first stage.
func (s *IngestionService) Register(
	ctx context.Context, reg domain.Registration,
) (*domain.Document, bool, error) {
	if err := reg.Validate(); err != nil {
		return nil, false, err
	}

	fileType, err := resolveFileType(reg)
	if err != nil {
		return nil, false, err
	}

	doc, created, err := s.docs.RegisterDocument(ctx, &domain.Document{
		TenantID: reg.TenantID,
		Bucket:   reg.Bucket,
		Key:      reg.Key,
		URL:      reg.URL,
		FileType: fileType,
		Checksum: reg.Checksum,
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.Info("document registered", "document", doc.ID, "location", doc.Location(), "file_type", doc.FileType)
		// A concurrent re-registration may already have enqueued it.
		if _, err := s.Enqueue(ctx, doc.ID, domain.FirstStage()); err != nil && !errors.Is(err, domain.ErrConflict) {
			return doc, true, err
		}
		return doc, true, nil
	}

	doc, err = s.reregister(ctx, doc, reg.Checksum)
	return doc, false, err
}

// reregister handles a registration of an existing (bucket, key). New
// content resets a finished document and is recorded as pending for one
// mid-pipeline; a document that never got its first job is enqueued.
func (s *IngestionService) reregister(
	ctx context.Context, doc *domain.Document, checksum string,
) (*domain.Document, error) {
	changed := checksum != "" && checksum != doc.Checksum

	switch {
	case changed && doc.Status.IsTerminal():
		if err := s.docs.UpdateChecksum(ctx, doc.ID, checksum); err != nil {
			return nil, err
		}
		if doc.PendingChecksum != "" {
			if err := s.docs.SetPendingChecksum(ctx, doc.ID, ""); err != nil {
				return nil, err
			}
		}
		s.log.Info("document content changed", "document", doc.ID, "status", doc.Status)
		return s.Reset(ctx, doc.ID)

	case changed && doc.Status == domain.DocumentRegistered:
		// No stage has read the object yet.
		if err := s.docs.UpdateChecksum(ctx, doc.ID, checksum); err != nil {
			return nil, err
		}
		doc.Checksum = checksum
		s.log.Info("document content changed", "document", doc.ID, "status", doc.Status)

	case doc.Status == domain.DocumentProcessing && checksum != "" && checksum != doc.PendingChecksum &&
		(changed || doc.PendingChecksum != ""):
		return s.deferRerun(ctx, doc, checksum)
	}

	if doc.Status == domain.DocumentRegistered {
		if _, err := s.Enqueue(ctx, doc.ID, domain.FirstStage()); err != nil && !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
	}
	return doc, nil
}

// deferRerun records checksum on a document mid-pipeline. The running
// stages may have read the old content, so the checksum is applied and the
// pipeline rerun once the document is INDEXED or FAILED.
func (s *IngestionService) deferRerun(
	ctx context.Context, doc *domain.Document, checksum string,
) (*domain.Document, error) {
	if err := s.docs.SetPendingChecksum(ctx, doc.ID, checksum); err != nil {
		return nil, err
	}
	s.log.Info("document content changed mid-pipeline, rerun deferred", "document", doc.ID, "checksum", checksum)

	// The run may have finished before the pending checksum was stored.
	if _, err := s.rerun.applyPending(ctx, doc.ID); err != nil {
		return nil, err
	}
	return s.docs.GetDocument(ctx, doc.ID)
}

// resolveFileType parses the declared type, or infers it from the key.
func resolveFileType(reg domain.Registration) (domain.FileType, error) {
	if reg.FileType != "" {
		return domain.ParseFileType(reg.FileType)
	}
	return domain.FileTypeFromKey(reg.Key)
}

// Enqueue creates the job for a stage of a document.
func (s *IngestionService) Enqueue(ctx context.Context, documentID string, stage domain.Stage) (*domain.Job, error) {
	job, err := s.jobs.CreateJob(ctx, documentID, stage)
	if err != nil {
		return nil, err
	}
	s.log.Debug("job enqueued", "job", job.ID, "document", documentID, "stage", stage)
	return job, nil
}

// Get returns a document.
func (s *IngestionService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docs.GetDocument(ctx, documentID)
}

// Status returns a document with its jobs, artifacts and chunk count.
func (s *IngestionService) Status(ctx context.Context, documentID string) (*domain.DocumentReport, error) {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	jobs, err := s.jobs.ListJobs(ctx, documentID)
	if err != nil {
		return nil, err
	}

	artifacts, err := s.artifacts.ListArtifacts(ctx, documentID)
	if err != nil {
		return nil, err
	}

	count, err := s.chunks.CountChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return &domain.DocumentReport{
		Document:   *doc,
		Jobs:       jobs,
		Artifacts:  artifacts,
		ChunkCount: count,
	}, nil
}

// List returns documents matching filter.
func (s *IngestionService) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidInput, filter.Status)
	}
	return s.docs.ListDocuments(ctx, filter)
}

// Reset clears a finished document's jobs, returns it to REGISTERED and
// enqueues the first stage.
func (s *IngestionService) Reset(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.rerun.reset(ctx, documentID)
}

// Delete removes a document with its children, stored artifacts and vectors.
func (s *IngestionService) Delete(ctx context.Context, documentID string) error {
	var artifacts []domain.Artifact
	if s.objects != nil {
		var err error
		if artifacts, err = s.artifacts.ListArtifacts(ctx, documentID); err != nil {
			return err
		}
	}

	if err := s.docs.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	s.log.Info("document deleted", "document", documentID)

	for _, a := range artifacts {
		bucket, key, err := domain.ParseObjectURL(a.URL)
		if err != nil {
			continue
		}
		if err := s.objects.Delete(ctx, bucket, key); err != nil {
			s.log.Warn("deleting artifact object failed", "document", documentID, "url", a.URL, "error", err)
		}
	}

	if s.vectors != nil {
		if err := s.vectors.DeleteDocument(ctx, documentID); err != nil {
			return fmt.Errorf("removing vectors for %s: %w", documentID, err)
		}
	}
	return nil
}

// Stats returns job counts by stage and status.
func (s *IngestionService) Stats(ctx context.Context) ([]domain.JobCount, error) {
	return s.jobs.CountJobs(ctx)
}

// Ping checks the backing store is reachable.
func (s *IngestionService) Ping(ctx context.Context) error {
	return s.docs.Ping(ctx)
}
