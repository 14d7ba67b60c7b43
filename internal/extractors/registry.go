package extractors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/extractors/html"
	"github.com/custodia-labs/rag-platform/internal/extractors/markdown"
	"github.com/custodia-labs/rag-platform/internal/extractors/media"
	"github.com/custodia-labs/rag-platform/internal/extractors/office"
	"github.com/custodia-labs/rag-platform/internal/extractors/pdf"
	"github.com/custodia-labs/rag-platform/internal/extractors/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps file types to extractors. Later registrations replace
// earlier ones for the same file type.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.FileType]driven.TextExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[domain.FileType]driven.TextExtractor)}
}

// Register adds an extractor for every file type it reports.
func (r *Registry) Register(e driven.TextExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ft := range e.FileTypes() {
		r.extractors[ft] = e
	}
}

// Get returns the extractor for a file type.
func (r *Registry) Get(ft domain.FileType) (driven.TextExtractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[ft]
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for file type %q", domain.ErrUnsupportedType, ft)
	}
	return e, nil
}

// FileTypes lists every supported file type, sorted.
func (r *Registry) FileTypes() []domain.FileType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]domain.FileType, 0, len(r.extractors))
	for ft := range r.extractors {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// RegisterDefaults registers the built-in extractors, configured from
// the extraction settings.
func RegisterDefaults(r *Registry, cfg domain.ExtractionSettings) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(office.New())
	r.Register(pdf.New(cfg.PDFCommand))
	r.Register(media.New(cfg.TranscribeCommand))
}

// NewDefaultRegistry returns a registry holding the built-in extractors.
func NewDefaultRegistry(cfg domain.ExtractionSettings) *Registry {
	r := NewRegistry()
	RegisterDefaults(r, cfg)
	return r
}
