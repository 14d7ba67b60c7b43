package driven

import "context"

// VectorIndex stores chunk vectors for retrieval.
type VectorIndex interface {
	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []VectorRecord) error

	// DeleteDocument removes every vector belonging to a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Prune removes a document's vectors with chunk index >= keep, left
	// over from a previous, longer chunk set.
	Prune(ctx context.Context, documentID string, keep int) error

	// Search finds the k nearest neighbours to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorRecord is one chunk vector.
type VectorRecord struct {
	// ID is stable across re-runs: <document id>#<chunk index>.
	ID string

	DocumentID string
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ID is the matched record.
	ID string

	DocumentID string
	ChunkIndex int

	// Similarity is the cosine similarity score.
	Similarity float64
}
