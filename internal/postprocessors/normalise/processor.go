// Package normalise provides a processor that tidies chunk whitespace and
// drops chunks with no content.
package normalise

import (
	"context"
	"strings"
	"unicode"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// MetaChars is the chunk metadata key holding the content length.
const MetaChars = "chars"

// Processor collapses whitespace runs inside each chunk, removes blank
// chunks and renumbers the remainder densely. Line structure is kept:
// runs containing a newline collapse to a single newline.
type Processor struct{}

// New creates a new normalise processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "normalise"
}

// Process rewrites chunk contents. Offsets set by earlier processors are
// left untouched; the chars count follows the new content.
func (p *Processor) Process(_ context.Context, _ *domain.ChunkSource, chunks []domain.Chunk) ([]domain.Chunk, error) {
	out := chunks[:0]
	for _, c := range chunks {
		c.Content = collapse(c.Content)
		if c.Content == "" {
			continue
		}
		c.Index = len(out)
		if c.Metadata != nil {
			c.Metadata[MetaChars] = domain.IntValue(len([]rune(c.Content)))
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pending := rune(0)
	for _, r := range s {
		if unicode.IsSpace(r) {
			if r == '\n' || pending == 0 {
				pending = r
				if pending != '\n' {
					pending = ' '
				}
			}
			continue
		}
		if pending != 0 && b.Len() > 0 {
			b.WriteRune(pending)
		}
		pending = 0
		b.WriteRune(r)
	}
	return b.String()
}
