package executors

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// Ensure Chunk implements the interface.
var _ driven.StageExecutor = (*Chunk)(nil)

// textArtifactTypes lists the artifact types the chunk stage reads, in
// order of preference.
var textArtifactTypes = []domain.ArtifactType{
	domain.ArtifactTranscript,
	domain.ArtifactSlidesText,
	domain.ArtifactExtractedText,
}

// Chunk reads the extracted text artifact and splits it with the
// post-processor pipeline.
type Chunk struct {
	objects  driven.ObjectStore
	pipeline driven.PostProcessorPipeline
}

// NewChunk creates the chunk stage executor.
func NewChunk(objects driven.ObjectStore, pipeline driven.PostProcessorPipeline) *Chunk {
	return &Chunk{objects: objects, pipeline: pipeline}
}

// Stage returns the stage this executor implements.
func (c *Chunk) Stage() domain.Stage { return domain.StageChunk }

// Execute runs the chunk stage. The result always carries a non-nil
// chunk set so an empty text clears earlier chunks.
func (c *Chunk) Execute(ctx context.Context, in *domain.StageInput) (*domain.StageResult, error) {
	artifact, ok := domain.FindArtifact(in.Artifacts, textArtifactTypes...)
	if !ok {
		return nil, domain.Permanent(fmt.Errorf("%w: document %s has no text artifact",
			domain.ErrPriorStageIncomplete, in.Document.ID))
	}

	bucket, key, err := domain.ParseObjectURL(artifact.URL)
	if err != nil {
		return nil, domain.Permanent(err)
	}
	data, err := c.objects.Get(ctx, bucket, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Permanent(fmt.Errorf("%w: artifact %s is missing", domain.ErrPriorStageIncomplete, artifact.URL))
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", artifact.URL, err)
	}

	src := &domain.ChunkSource{
		Document:     &in.Document,
		ArtifactType: artifact.Type,
		Text:         string(data),
	}
	chunks, err := c.pipeline.Process(ctx, src)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	if err := domain.ValidateChunkSet(in.Document.ID, chunks); err != nil {
		return nil, domain.Permanent(err)
	}

	logger.Debug("chunked artifact", "document", in.Document.ID, "artifact_type", artifact.Type, "chunks", len(chunks))
	return &domain.StageResult{Chunks: chunks}, nil
}
