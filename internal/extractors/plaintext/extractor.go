package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeText}
}

// Extract decodes the bytes as UTF-8 text.
func (e *Extractor) Extract(_ context.Context, doc *domain.Document, data []byte) (*domain.Extraction, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	return &domain.Extraction{
		ArtifactType: domain.ArtifactExtractedText,
		Text:         Decode(data),
	}, nil
}

// Decode turns raw bytes into clean text: a UTF-8 byte order mark is
// dropped, invalid sequences are replaced and line endings become \n.
func Decode(data []byte) string {
	text := strings.TrimPrefix(string(data), "\uFEFF")
	text = strings.ToValidUTF8(text, "�")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
