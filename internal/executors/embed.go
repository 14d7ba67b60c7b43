package executors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// Ensure Embed implements the interface.
var _ driven.StageExecutor = (*Embed)(nil)

// Embed computes a vector for every chunk. Chunks that already hold a
// vector of the right size, from an earlier interrupted attempt, are not
// sent to the provider again.
type Embed struct {
	embedder driven.EmbeddingService
}

// NewEmbed creates the embed stage executor.
func NewEmbed(embedder driven.EmbeddingService) *Embed {
	return &Embed{embedder: embedder}
}

// Stage returns the stage this executor implements.
func (e *Embed) Stage() domain.Stage { return domain.StageEmbed }

// Execute runs the embed stage. Embeddings are returned in chunk order.
func (e *Embed) Execute(ctx context.Context, in *domain.StageInput) (*domain.StageResult, error) {
	dims := e.embedder.Dimensions()
	embeddings := make([][]float32, len(in.Chunks))

	var (
		pending []int
		texts   []string
	)
	for i, c := range in.Chunks {
		if len(c.Embedding) == dims {
			embeddings[i] = c.Embedding
			continue
		}
		pending = append(pending, i)
		texts = append(texts, c.Content)
	}

	if len(texts) > 0 {
		vectors, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, domain.Transientf("%w: %s returned %d embeddings for %d chunks",
				domain.ErrEmbeddingUnavailable, e.embedder.ModelName(), len(vectors), len(texts))
		}
		for j, i := range pending {
			if len(vectors[j]) != dims {
				return nil, domain.Permanent(fmt.Errorf("%w: %s returned %d dimensions, expected %d",
					domain.ErrInvalidInput, e.embedder.ModelName(), len(vectors[j]), dims))
			}
			embeddings[i] = vectors[j]
		}
	}

	logger.Debug("embedded chunks", "document", in.Document.ID, "model", e.embedder.ModelName(),
		"chunks", len(in.Chunks), "computed", len(texts))
	return &domain.StageResult{Embeddings: embeddings}, nil
}
