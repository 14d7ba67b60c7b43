package executors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.StageExecutor = (*Index)(nil)

// Index writes chunk vectors to the vector index under stable ids and
// removes vectors left over from a longer, earlier chunk set.
type Index struct {
	vectors driven.VectorIndex
}

// NewIndex creates the index stage executor.
func NewIndex(vectors driven.VectorIndex) *Index {
	return &Index{vectors: vectors}
}

// Stage returns the stage this executor implements.
func (x *Index) Stage() domain.Stage { return domain.StageIndex }

// Execute runs the index stage. Re-running it writes the same ids, so a
// retry after a partial write converges.
func (x *Index) Execute(ctx context.Context, in *domain.StageInput) (*domain.StageResult, error) {
	records := make([]driven.VectorRecord, len(in.Chunks))
	for i := range in.Chunks {
		c := in.Chunks[i]
		c.DocumentID = in.Document.ID
		if len(c.Embedding) == 0 {
			return nil, domain.Permanent(fmt.Errorf("%w: chunk %d of document %s has no embedding",
				domain.ErrPriorStageIncomplete, c.Index, in.Document.ID))
		}
		records[i] = driven.VectorRecord{
			ID:         c.VectorID(),
			DocumentID: in.Document.ID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Embedding:  c.Embedding,
		}
	}

	if len(records) > 0 {
		if err := x.vectors.Upsert(ctx, records); err != nil {
			return nil, fmt.Errorf("upserting vectors: %w", err)
		}
	}
	if err := x.vectors.Prune(ctx, in.Document.ID, len(records)); err != nil {
		return nil, fmt.Errorf("pruning stale vectors: %w", err)
	}

	logger.Debug("indexed chunks", "document", in.Document.ID, "vectors", len(records))
	return &domain.StageResult{Indexed: len(records)}, nil
}
