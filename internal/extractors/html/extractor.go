package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/extractors/plaintext"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeHTML}
}

// Extract returns the readable text of the page. The <title>, when
// present, becomes the first line.
func (e *Extractor) Extract(_ context.Context, doc *domain.Document, data []byte) (*domain.Extraction, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	page := plaintext.Decode(data)
	text := Strip(page)
	if title := Title(page); title != "" && !strings.HasPrefix(text, title) {
		text = title + "\n" + text
	}

	return &domain.Extraction{
		ArtifactType: domain.ArtifactExtractedText,
		Text:         strings.TrimSpace(text),
	}, nil
}

// Pre-compiled regular expressions for HTML parsing.
var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	droppedBlocks = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg|template)(\s[^>]*)?>.*?</(script|style|noscript|head|svg|template)>`)
	comments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTags     = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|li|ul|ol|tr|td|th|blockquote|pre|table|section|article|header|footer|nav|main)(\s[^>]*)?>`)
	lineBreaks    = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	allTags       = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t\x{00A0}]+`)
)

// Title returns the decoded contents of the <title> tag, if any.
func Title(content string) string {
	matches := titleTag.FindStringSubmatch(content)
	if len(matches) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(matches[1]))
}

// Strip removes markup and non-content elements and returns one line per
// block of text.
func Strip(content string) string {
	content = droppedBlocks.ReplaceAllString(content, "")
	content = comments.ReplaceAllString(content, "")
	content = blockTags.ReplaceAllString(content, "\n")
	content = lineBreaks.ReplaceAllString(content, "\n")
	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
