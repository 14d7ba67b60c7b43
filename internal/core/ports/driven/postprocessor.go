package driven

import (
	"context"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// PostProcessor turns artifact text into chunks.
// PostProcessors are chained in a pipeline (e.g., chunking, normalisation).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes the source text and returns chunks.
	// If the processor creates chunks (e.g., chunker), it receives nil and returns new chunks.
	// If the processor modifies chunks, it receives and returns chunks.
	Process(ctx context.Context, src *domain.ChunkSource, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the source through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, src *domain.ChunkSource) ([]domain.Chunk, error)
}
