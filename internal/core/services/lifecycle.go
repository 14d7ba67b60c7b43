package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// Lifecycle owns document status. Status only changes in response to job
// events, or through an explicit reset. Every change is a compare-and-set
// on the stored status, so replaying an event is harmless.
type Lifecycle struct {
	docs driven.DocumentStore
	log  *slog.Logger
}

// NewLifecycle creates the document state machine.
func NewLifecycle(docs driven.DocumentStore) *Lifecycle {
	return &Lifecycle{
		docs: docs,
		log:  logger.With("component", "lifecycle"),
	}
}

// OnClaimed moves a REGISTERED document to PROCESSING.
func (l *Lifecycle) OnClaimed(ctx context.Context, documentID string) error {
	_, err := l.transition(ctx, documentID, domain.DocumentProcessing, "", domain.DocumentRegistered)
	return err
}

// OnIndexed marks the document INDEXED after its index job succeeded.
func (l *Lifecycle) OnIndexed(ctx context.Context, documentID string) error {
	// A crash between claim and the PROCESSING write leaves the document
	// REGISTERED; pass through PROCESSING first.
	if err := l.OnClaimed(ctx, documentID); err != nil {
		return err
	}
	_, err := l.transition(ctx, documentID, domain.DocumentIndexed, "", domain.DocumentProcessing)
	return err
}

// OnFailed marks the document FAILED, keeping the failing stage's error.
func (l *Lifecycle) OnFailed(ctx context.Context, documentID, message string) error {
	_, err := l.transition(ctx, documentID, domain.DocumentFailed, message,
		domain.DocumentRegistered, domain.DocumentProcessing)
	return err
}

// Reset returns an INDEXED or FAILED document to REGISTERED.
func (l *Lifecycle) Reset(ctx context.Context, documentID string) (*domain.Document, error) {
	moved, err := l.transition(ctx, documentID, domain.DocumentRegistered, "",
		domain.DocumentIndexed, domain.DocumentFailed)
	if err != nil {
		return nil, err
	}

	doc, err := l.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, fmt.Errorf("%w: document %s is %s", domain.ErrInvalidTransition, documentID, doc.Status)
	}
	return doc, nil
}

// transition applies to if the current status is one of from. It reports
// whether the row changed; a non-matching status is not an error.
func (l *Lifecycle) transition(
	ctx context.Context, documentID string, to domain.DocumentStatus, message string, from ...domain.DocumentStatus,
) (bool, error) {
	for _, f := range from {
		if !domain.CanTransition(f, to) {
			return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, f, to)
		}
	}

	moved, err := l.docs.TransitionDocument(ctx, documentID, from, to, message)
	if err != nil {
		return false, fmt.Errorf("document %s to %s: %w", documentID, to, err)
	}
	if moved {
		l.log.Info("document status changed", "document", documentID, "status", to)
	}
	return moved, nil
}
