package executors

import (
	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// Deps holds the adapters the stage executors need.
type Deps struct {
	Objects    driven.ObjectStore
	Extractors driven.ExtractorRegistry
	Pipeline   driven.PostProcessorPipeline
	Embedder   driven.EmbeddingService
	Vectors    driven.VectorIndex

	// ArtifactPolicy selects stable or versioned artifact object keys.
	ArtifactPolicy domain.ArtifactPolicy
}

// New builds the executor set for all four stages.
func New(deps Deps) *driven.StageExecutors {
	return &driven.StageExecutors{
		Extract: NewExtract(deps.Objects, deps.Extractors, deps.ArtifactPolicy),
		Chunk:   NewChunk(deps.Objects, deps.Pipeline),
		Embed:   NewEmbed(deps.Embedder),
		Index:   NewIndex(deps.Vectors),
	}
}
