package domain

import (
	"fmt"
	"time"
)

// Chunk is a retrieval unit derived from a document's artifacts.
// (DocumentID, Index) is unique and indices are dense from zero.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	Metadata   Metadata
	Embedding  []float32
	CreatedAt  time.Time
}

// VectorID returns the stable identifier used in vector indexes.
func (c *Chunk) VectorID() string {
	return fmt.Sprintf("%s#%d", c.DocumentID, c.Index)
}

// ValidateChunkSet checks that chunks belong to one document and that their
// indices are exactly 0..n-1 in order.
func ValidateChunkSet(documentID string, chunks []Chunk) error {
	for i := range chunks {
		if chunks[i].DocumentID != "" && chunks[i].DocumentID != documentID {
			return fmt.Errorf("%w: chunk %d belongs to document %s", ErrInvalidInput, i, chunks[i].DocumentID)
		}
		if chunks[i].Index != i {
			return fmt.Errorf("%w: chunk index %d at position %d, indices must be dense and zero-based",
				ErrInvalidInput, chunks[i].Index, i)
		}
		if err := chunks[i].Metadata.Validate(); err != nil {
			return fmt.Errorf("chunk %d metadata: %w", i, err)
		}
	}
	return nil
}
