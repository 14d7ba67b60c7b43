package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined chunks.
type mockProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, _ *domain.ChunkSource, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		return m.chunks, nil
	}
	return chunks, nil
}

func testSource() *domain.ChunkSource {
	return &domain.ChunkSource{
		Document:     &domain.Document{ID: "test-doc"},
		ArtifactType: domain.ArtifactExtractedText,
		Text:         "test content",
	}
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.Len() != 0 {
		t.Errorf("expected 0 processors, got %d", p.Len())
	}
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	p.Add(&mockProcessor{name: "test"})

	if p.Len() != 1 {
		t.Errorf("expected 1 processor, got %d", p.Len())
	}
}

func TestPipeline_Process_NilSource(t *testing.T) {
	p := NewPipeline()

	_, err := p.Process(context.Background(), nil)
	if err == nil {
		t.Error("expected error for nil source")
	}
}

func TestPipeline_Process_EmptyPipeline(t *testing.T) {
	p := NewPipeline()
	src := testSource()

	chunks, err := p.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected nil chunks from empty pipeline, got %v", chunks)
	}
}

func TestPipeline_Process_SingleProcessor(t *testing.T) {
	expectedChunks := []domain.Chunk{
		{ID: "chunk-1", Content: "test"},
	}

	p := NewPipeline(&mockProcessor{
		name:   "chunker",
		chunks: expectedChunks,
	})

	src := testSource()

	chunks, err := p.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != len(expectedChunks) {
		t.Errorf("expected %d chunks, got %d", len(expectedChunks), len(chunks))
	}
}

func TestPipeline_Process_MultipleProcessors(t *testing.T) {
	firstChunks := []domain.Chunk{
		{ID: "chunk-1", Content: "first"},
	}
	secondChunks := []domain.Chunk{
		{ID: "chunk-1", Content: "modified"},
		{ID: "chunk-2", Content: "added"},
	}

	p := NewPipeline(
		&mockProcessor{name: "first", chunks: firstChunks},
		&mockProcessor{name: "second", chunks: secondChunks},
	)

	src := testSource()

	chunks, err := p.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != len(secondChunks) {
		t.Errorf("expected %d chunks, got %d", len(secondChunks), len(chunks))
	}
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	expectedErr := errors.New("processor failed")

	p := NewPipeline(&mockProcessor{
		name: "failing",
		err:  expectedErr,
	})

	src := testSource()

	_, err := p.Process(context.Background(), src)
	if err == nil {
		t.Error("expected error from failing processor")
	}
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}

func TestPipeline_Process_PassthroughProcessor(t *testing.T) {
	initialChunks := []domain.Chunk{
		{ID: "chunk-1", Content: "test"},
	}

	p := NewPipeline(
		&mockProcessor{name: "chunker", chunks: initialChunks},
		&mockProcessor{name: "passthrough"}, // Returns received chunks unchanged
	)

	src := testSource()

	chunks, err := p.Process(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != len(initialChunks) {
		t.Errorf("expected %d chunks, got %d", len(initialChunks), len(chunks))
	}
}

func TestPipeline_Process_StampsDocumentID(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "chunker", chunks: []domain.Chunk{{Content: "a"}, {Content: "b", DocumentID: "other"}}})

	chunks, err := p.Process(context.Background(), testSource())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range chunks {
		if c.DocumentID != "test-doc" {
			t.Errorf("expected DocumentID test-doc, got %q", c.DocumentID)
		}
	}
}

func TestPipeline_Names(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "chunker"}, &mockProcessor{name: "normalise"})
	names := p.Names()
	if len(names) != 2 || names[0] != "chunker" || names[1] != "normalise" {
		t.Errorf("unexpected names: %v", names)
	}
}
