// Package pdf extracts text from PDF documents with poppler's pdftotext.
package pdf

import (
	"context"
	"runtime"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/extractors/command"
	"github.com/custodia-labs/rag-platform/internal/extractors/plaintext"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// DefaultCommand is the converter used when none is configured.
const DefaultCommand = "pdftotext"

// Extractor handles PDF documents.
type Extractor struct {
	tool *command.Tool
}

// New creates a PDF extractor that runs the given converter as
// <cmd> -layout -q <file> -.
func New(cmd string) *Extractor {
	return NewWithRunner(cmd, nil)
}

// NewWithRunner creates a PDF extractor with a custom command runner.
func NewWithRunner(cmd string, runner command.Runner) *Extractor {
	if cmd == "" {
		cmd = DefaultCommand
	}
	return &Extractor{tool: &command.Tool{
		Name:   cmd,
		Args:   []string{"-layout", "-q", "{file}", "-"},
		Runner: runner,
	}}
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypePDF}
}

// Extract converts the PDF and returns its text.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document, data []byte) (*domain.Extraction, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	out, err := e.tool.RunOnBytes(ctx, data, ".pdf")
	if err != nil {
		return nil, err
	}

	return &domain.Extraction{
		ArtifactType: domain.ArtifactExtractedText,
		Text:         cleanPages(plaintext.Decode(out)),
	}, nil
}

// CheckAvailable verifies the converter can be found on PATH.
func (e *Extractor) CheckAvailable() error {
	return command.CheckAvailable(e.tool.Name)
}

// InstallInstructions returns platform-specific install instructions.
func InstallInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return "Install poppler for pdftotext: brew install poppler"
	case "linux":
		return "Install poppler-utils for pdftotext: apt install poppler-utils (or dnf install poppler-utils)"
	default:
		return "Install poppler (pdftotext) and ensure it is on PATH"
	}
}
