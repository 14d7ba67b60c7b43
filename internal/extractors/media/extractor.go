// Package media produces transcripts for audio and video documents by
// running a configured transcription command.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/extractors/command"
	"github.com/custodia-labs/rag-platform/internal/extractors/plaintext"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// ErrTranscriptionDisabled is returned when no transcribe command is set.
var ErrTranscriptionDisabled = errors.New("media transcription is disabled")

// Extractor handles mp4, mov, mp3 and wav documents.
type Extractor struct {
	tool *command.Tool
}

// New creates a media extractor. cmdline is split on whitespace; the
// media file path replaces "{file}" or is appended. An empty cmdline
// disables transcription.
func New(cmdline string) *Extractor {
	return NewWithRunner(cmdline, nil)
}

// NewWithRunner creates a media extractor with a custom command runner.
func NewWithRunner(cmdline string, runner command.Runner) *Extractor {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return &Extractor{}
	}
	return &Extractor{tool: &command.Tool{Name: fields[0], Args: fields[1:], Runner: runner}}
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeMP4, domain.FileTypeMOV, domain.FileTypeMP3, domain.FileTypeWAV}
}

// Enabled reports whether a transcription command is configured.
func (e *Extractor) Enabled() bool {
	return e.tool != nil
}

// Extract runs the transcriber and returns its stdout as a transcript.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document, data []byte) (*domain.Extraction, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}
	if e.tool == nil {
		return nil, domain.Permanent(fmt.Errorf("%w: cannot transcribe %s (set extraction.transcribe_command)",
			ErrTranscriptionDisabled, doc.Key))
	}

	out, err := e.tool.RunOnBytes(ctx, data, "."+doc.FileType.String())
	if err != nil {
		return nil, err
	}

	return &domain.Extraction{
		ArtifactType: domain.ArtifactTranscript,
		Text:         strings.TrimSpace(plaintext.Decode(out)),
	}, nil
}
