package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// rerunner returns finished documents to the start of the pipeline. It is
// shared by explicit resets, changed-content registrations and the
// dispatcher's pending reruns.
type rerunner struct {
	docs      driven.DocumentStore
	jobs      driven.JobStore
	lifecycle *Lifecycle
	log       *slog.Logger
}

// reset clears a finished document's jobs, returns it to REGISTERED and
// enqueues the first stage.
func (r *rerunner) reset(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := r.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: document %s is %s", domain.ErrInvalidTransition, documentID, doc.Status)
	}

	// Jobs go first while the document is terminal, so no worker or
	// reconcile pass acts on them.
	if err := r.jobs.DeleteJobs(ctx, documentID); err != nil {
		return nil, err
	}

	reset, err := r.lifecycle.Reset(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
		return nil, err
	}
	if err != nil {
		// A concurrent reset won; make sure its first job survived our delete.
		if enqErr := r.enqueueFirst(ctx, documentID); enqErr != nil {
			return nil, enqErr
		}
		return nil, err
	}

	if err := r.enqueueFirst(ctx, documentID); err != nil {
		return nil, err
	}

	r.log.Info("document reset", "document", documentID)
	return reset, nil
}

// applyPending reruns a finished document that holds a pending checksum.
// It reports whether this call started the rerun.
func (r *rerunner) applyPending(ctx context.Context, documentID string) (bool, error) {
	doc, err := r.docs.GetDocument(ctx, documentID)
	if err != nil {
		return false, err
	}
	if doc.PendingChecksum == "" || !doc.Status.IsTerminal() {
		return false, nil
	}

	if err := r.jobs.DeleteJobs(ctx, documentID); err != nil {
		return false, err
	}

	applied, err := r.docs.ApplyPendingChecksum(ctx, documentID)
	if err != nil {
		return false, err
	}
	if !applied {
		// Another caller applied it, and may have lost its first job to our delete.
		current, err := r.docs.GetDocument(ctx, documentID)
		if err != nil {
			return false, err
		}
		if current.Status == domain.DocumentRegistered {
			return false, r.enqueueFirst(ctx, documentID)
		}
		return false, nil
	}

	if err := r.enqueueFirst(ctx, documentID); err != nil {
		return true, err
	}
	r.log.Info("document rerun for changed content", "document", documentID, "checksum", doc.PendingChecksum)
	return true, nil
}

// enqueueFirst creates the first stage job unless it already exists.
func (r *rerunner) enqueueFirst(ctx context.Context, documentID string) error {
	if _, err := r.jobs.CreateJob(ctx, documentID, domain.FirstStage()); err != nil &&
		!errors.Is(err, domain.ErrConflict) {
		return err
	}
	return nil
}
