// Package chunker provides a fixed-size text chunking processor.
package chunker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Metadata keys set on every chunk.
const (
	MetaStart        = "start"
	MetaEnd          = "end"
	MetaArtifactType = "artifact_type"
	MetaChars        = "chars"
)

// Processor splits artifact text into fixed-size, overlapping chunks.
// Sizes and offsets count characters (runes), not bytes.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Overlap must leave the window room to advance.
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the source text into chunks with dense indices from zero.
// Input chunks are ignored; this processor creates new chunks.
func (p *Processor) Process(ctx context.Context, src *domain.ChunkSource, _ []domain.Chunk) ([]domain.Chunk, error) {
	if src == nil || src.Document == nil {
		return nil, fmt.Errorf("%w: chunk source is nil", domain.ErrInvalidInput)
	}
	if src.Text == "" {
		return nil, nil
	}

	text := []rune(src.Text)
	step := p.chunkSize - p.overlap
	chunks := make([]domain.Chunk, 0, len(text)/step+1)

	for start := 0; start < len(text); start += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+p.chunkSize, len(text))
		content := string(text[start:end])

		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: src.Document.ID,
			Index:      len(chunks),
			Content:    content,
			Metadata: domain.Metadata{
				MetaStart:        domain.IntValue(start),
				MetaEnd:          domain.IntValue(end),
				MetaArtifactType: domain.StringValue(src.ArtifactType.String()),
				MetaChars:        domain.IntValue(end - start),
			},
		})

		if end == len(text) {
			break
		}
	}

	return chunks, nil
}
