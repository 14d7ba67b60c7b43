package driven

import (
	"context"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// TextExtractor turns the bytes of one family of file types into text.
type TextExtractor interface {
	// FileTypes returns the file types this extractor handles.
	FileTypes() []domain.FileType

	// Extract produces text from the document's bytes. Malformed input
	// should be reported with domain.Permanent.
	Extract(ctx context.Context, doc *domain.Document, data []byte) (*domain.Extraction, error)
}

// ExtractorRegistry selects the extractor for a file type.
type ExtractorRegistry interface {
	// Register adds an extractor for every file type it reports.
	Register(e TextExtractor)

	// Get returns the extractor for a file type.
	// Returns domain.ErrUnsupportedType if none is registered.
	Get(ft domain.FileType) (TextExtractor, error)

	// FileTypes lists every supported file type.
	FileTypes() []domain.FileType
}
