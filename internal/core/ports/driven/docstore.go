package driven

import (
	"context"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// DocumentStore persists documents.
type DocumentStore interface {
	// RegisterDocument inserts doc unless (Bucket, Key) already exists.
	// Returns the stored document and whether it was created.
	RegisterDocument(ctx context.Context, doc *domain.Document) (*domain.Document, bool, error)

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByLocation retrieves a document by bucket and key.
	GetDocumentByLocation(ctx context.Context, bucket, key string) (*domain.Document, error)

	// ListDocuments returns documents matching filter, newest first.
	ListDocuments(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, error)

	// DeleteDocument removes a document with its artifacts, chunks and jobs.
	DeleteDocument(ctx context.Context, id string) error

	// TransitionDocument moves the status to 'to' only if the current status
	// is one of 'from'. lastError replaces the stored error message.
	// Returns false without error when the current status did not match.
	TransitionDocument(
		ctx context.Context, id string, from []domain.DocumentStatus, to domain.DocumentStatus, lastError string,
	) (bool, error)

	// UpdateChecksum records a new content checksum.
	UpdateChecksum(ctx context.Context, id, checksum string) error

	// SetPendingChecksum records a checksum to apply after the current
	// pipeline run. An empty checksum clears it.
	SetPendingChecksum(ctx context.Context, id, checksum string) error

	// ApplyPendingChecksum replaces the checksum with the pending one and
	// returns the document to REGISTERED, if it is INDEXED or FAILED.
	// Reports whether a value was applied; concurrent callers see true at
	// most once.
	ApplyPendingChecksum(ctx context.Context, id string) (bool, error)

	// ListPendingReruns returns the IDs of INDEXED or FAILED documents that
	// still hold a pending checksum. limit <= 0 means no limit.
	ListPendingReruns(ctx context.Context, limit int) ([]string, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

// ArtifactStore persists stage artifacts.
type ArtifactStore interface {
	// WriteArtifact upserts by (DocumentID, Type) under the overwrite
	// policy, or appends a new version under keep-history.
	WriteArtifact(ctx context.Context, artifact *domain.Artifact) (*domain.Artifact, error)

	// ListArtifacts returns the newest artifact of each type for a document.
	ListArtifacts(ctx context.Context, documentID string) ([]domain.Artifact, error)
}

// ChunkStore persists chunks.
type ChunkStore interface {
	// ReplaceChunks deletes the document's chunks and inserts chunks in one
	// transaction. Readers see either the old set or the new set.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks returns a document's chunks ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// CountChunks returns the number of chunks for a document.
	CountChunks(ctx context.Context, documentID string) (int, error)

	// SaveEmbeddings stores embeddings[i] on the chunk with index i.
	// Returns domain.ErrConflict if the chunk set no longer has
	// len(embeddings) chunks.
	SaveEmbeddings(ctx context.Context, documentID string, embeddings [][]float32) error
}
