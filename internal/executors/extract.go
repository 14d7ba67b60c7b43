package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// Ensure Extract implements the interface.
var _ driven.StageExecutor = (*Extract)(nil)

// Extract reads the source object, converts it to text with the
// extractor for its file type and stores the text as an artifact.
type Extract struct {
	objects    driven.ObjectStore
	extractors driven.ExtractorRegistry
	policy     domain.ArtifactPolicy
	now        func() time.Time
}

// NewExtract creates the extract stage executor.
func NewExtract(objects driven.ObjectStore, extractors driven.ExtractorRegistry, policy domain.ArtifactPolicy) *Extract {
	if !policy.IsValid() {
		policy = domain.ArtifactOverwrite
	}
	return &Extract{objects: objects, extractors: extractors, policy: policy, now: time.Now}
}

// Stage returns the stage this executor implements.
func (e *Extract) Stage() domain.Stage { return domain.StageExtract }

// Execute runs the extract stage.
func (e *Extract) Execute(ctx context.Context, in *domain.StageInput) (*domain.StageResult, error) {
	doc := &in.Document

	extractor, err := e.extractors.Get(doc.FileType)
	if err != nil {
		return nil, domain.Permanent(err)
	}

	data, err := e.objects.Get(ctx, doc.Bucket, doc.Key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Permanent(fmt.Errorf("source object %s: %w", doc.URL, err))
	}
	if err != nil {
		return nil, fmt.Errorf("reading source object %s: %w", doc.URL, err)
	}

	extraction, err := extractor.Extract(ctx, doc, data)
	if err != nil {
		return nil, err
	}

	key := ArtifactKey(doc.ID, extraction.ArtifactType, e.policy, e.now())
	url, err := e.objects.Put(ctx, doc.Bucket, key, []byte(extraction.Text))
	if err != nil {
		return nil, fmt.Errorf("writing %s artifact: %w", extraction.ArtifactType, err)
	}

	logger.Debug("extracted text",
		"document", doc.ID, "file_type", doc.FileType, "artifact_type", extraction.ArtifactType,
		"bytes_in", len(data), "chars_out", len([]rune(extraction.Text)))

	return &domain.StageResult{
		Artifacts: []domain.Artifact{{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Type:       extraction.ArtifactType,
			URL:        url,
			CreatedAt:  e.now(),
		}},
	}, nil
}

// ArtifactDir is the top-level key prefix, inside each bucket, under which
// stage artifacts are written.
const ArtifactDir = "artifacts"

// ArtifactKey returns the object key for a document's artifact, relative
// to the document's bucket. Overwrite keeps one object per type;
// keep-history adds a timestamp so earlier versions survive.
func ArtifactKey(documentID string, t domain.ArtifactType, policy domain.ArtifactPolicy, at time.Time) string {
	if policy == domain.ArtifactKeepHistory {
		return fmt.Sprintf("%s/%s/%s-%d.txt", ArtifactDir, documentID, t, at.UnixNano())
	}
	return fmt.Sprintf("%s/%s/%s.txt", ArtifactDir, documentID, t)
}

// ArtifactPrefix is the key prefix holding every artifact of a document.
func ArtifactPrefix(documentID string) string {
	return ArtifactDir + "/" + documentID + "/"
}
