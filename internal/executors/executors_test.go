package executors

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/rag-platform/internal/adapters/driven/embedding/hashing"
	"github.com/custodia-labs/rag-platform/internal/adapters/driven/storage/memory"
	boltindex "github.com/custodia-labs/rag-platform/internal/adapters/driven/vector/bolt"
	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/extractors"
	"github.com/custodia-labs/rag-platform/internal/postprocessors"
)

// mockEmbedder counts the texts it is asked to embed.
type mockEmbedder struct {
	mu    sync.Mutex
	dims  int
	calls [][]string
	err   error
	short bool
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, texts)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = make([]float32, m.dims)
		out[i][0] = float32(len(t))
	}
	if m.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int            { return m.dims }
func (m *mockEmbedder) ModelName() string          { return "mock" }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error               { return nil }

// mockVectors records index calls.
type mockVectors struct {
	upserted []driven.VectorRecord
	pruned   map[string]int
	err      error
}

func (m *mockVectors) Upsert(_ context.Context, records []driven.VectorRecord) error {
	if m.err != nil {
		return m.err
	}
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockVectors) DeleteDocument(ctx context.Context, documentID string) error {
	return m.Prune(ctx, documentID, 0)
}

func (m *mockVectors) Prune(_ context.Context, documentID string, keep int) error {
	if m.pruned == nil {
		m.pruned = make(map[string]int)
	}
	m.pruned[documentID] = keep
	return nil
}

func (m *mockVectors) Search(context.Context, []float32, int) ([]driven.VectorHit, error) {
	return nil, nil
}

func (m *mockVectors) Close() error { return nil }

func testDocument(key string) domain.Document {
	ft, _ := domain.FileTypeFromKey(key)
	return domain.Document{
		ID:       "doc-1",
		Bucket:   "demo-bucket",
		Key:      key,
		URL:      domain.ObjectURL("demo-bucket", key),
		FileType: ft,
		Status:   domain.DocumentProcessing,
	}
}

func newExtract(objects driven.ObjectStore) *Extract {
	return NewExtract(objects, extractors.NewDefaultRegistry(domain.ExtractionSettings{}), domain.ArtifactOverwrite)
}

func TestArtifactKey(t *testing.T) {
	at := time.Unix(0, 42)
	assert.Equal(t, "artifacts/doc-1/extracted_text.txt",
		ArtifactKey("doc-1", domain.ArtifactExtractedText, domain.ArtifactOverwrite, at))
	assert.Equal(t, "artifacts/doc-1/transcript-42.txt",
		ArtifactKey("doc-1", domain.ArtifactTranscript, domain.ArtifactKeepHistory, at))
	assert.True(t, strings.HasPrefix(ArtifactKey("doc-1", domain.ArtifactSlidesText, domain.ArtifactOverwrite, at),
		ArtifactPrefix("doc-1")))
}

func TestExtract_WritesArtifact(t *testing.T) {
	ctx := context.Background()
	objects := memory.NewObjectStore()
	_, err := objects.Put(ctx, "demo-bucket", "notes/readme.md", []byte("# Title\n\nBody text."))
	require.NoError(t, err)

	result, err := newExtract(objects).Execute(ctx, &domain.StageInput{Document: testDocument("notes/readme.md")})
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 1)

	artifact := result.Artifacts[0]
	assert.Equal(t, domain.ArtifactExtractedText, artifact.Type)
	assert.Equal(t, "doc-1", artifact.DocumentID)
	assert.Equal(t, "s3://demo-bucket/artifacts/doc-1/extracted_text.txt", artifact.URL)
	assert.NotEmpty(t, artifact.ID)

	text, err := objects.Get(ctx, "demo-bucket", "artifacts/doc-1/extracted_text.txt")
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nBody text.", string(text))
}

func TestExtract_RerunOverwrites(t *testing.T) {
	ctx := context.Background()
	objects := memory.NewObjectStore()
	_, _ = objects.Put(ctx, "demo-bucket", "a.txt", []byte("v1"))
	exec := newExtract(objects)
	in := &domain.StageInput{Document: testDocument("a.txt")}

	_, err := exec.Execute(ctx, in)
	require.NoError(t, err)
	_, _ = objects.Put(ctx, "demo-bucket", "a.txt", []byte("v2"))
	_, err = exec.Execute(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"s3://demo-bucket/a.txt",
		"s3://demo-bucket/artifacts/doc-1/extracted_text.txt",
	}, objects.URLs())
	text, _ := objects.Get(ctx, "demo-bucket", "artifacts/doc-1/extracted_text.txt")
	assert.Equal(t, "v2", string(text))
}

func TestExtract_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing source object is permanent", func(t *testing.T) {
		_, err := newExtract(memory.NewObjectStore()).Execute(ctx, &domain.StageInput{Document: testDocument("gone.txt")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.True(t, domain.IsPermanent(err))
	})

	t.Run("unsupported type is permanent", func(t *testing.T) {
		doc := testDocument("a.txt")
		doc.FileType = "zip"
		_, err := newExtract(memory.NewObjectStore()).Execute(ctx, &domain.StageInput{Document: doc})
		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
		assert.True(t, domain.IsPermanent(err))
	})

	t.Run("malformed document is permanent", func(t *testing.T) {
		objects := memory.NewObjectStore()
		_, _ = objects.Put(ctx, "demo-bucket", "deck.pptx", []byte("not a zip"))
		_, err := newExtract(objects).Execute(ctx, &domain.StageInput{Document: testDocument("deck.pptx")})
		assert.True(t, domain.IsPermanent(err))
	})

	t.Run("media without transcriber is permanent", func(t *testing.T) {
		objects := memory.NewObjectStore()
		_, _ = objects.Put(ctx, "demo-bucket", "talk.mp3", []byte("ID3"))
		_, err := newExtract(objects).Execute(ctx, &domain.StageInput{Document: testDocument("talk.mp3")})
		assert.True(t, domain.IsPermanent(err))
	})

	t.Run("cancelled read is not permanent", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := newExtract(memory.NewObjectStore()).Execute(cctx, &domain.StageInput{Document: testDocument("a.txt")})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, domain.IsPermanent(err))
	})
}

func newChunk(t *testing.T, objects driven.ObjectStore, size, overlap int) *Chunk {
	t.Helper()
	pipeline, err := postprocessors.NewDefaultPipeline(domain.PipelineConfig{
		Processors:       []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{"chunker": {"chunk_size": size, "overlap": overlap}},
	})
	require.NoError(t, err)
	return NewChunk(objects, pipeline)
}

func TestChunk_SplitsArtifact(t *testing.T) {
	ctx := context.Background()
	objects := memory.NewObjectStore()
	url, _ := objects.Put(ctx, "demo-bucket", "artifacts/doc-1/extracted_text.txt", []byte("0123456789ABCDEFGHIJ"))

	in := &domain.StageInput{
		Document:  testDocument("a.txt"),
		Artifacts: []domain.Artifact{{Type: domain.ArtifactExtractedText, URL: url}},
	}
	result, err := newChunk(t, objects, 10, 0).Execute(ctx, in)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 2)

	assert.Equal(t, "0123456789", result.Chunks[0].Content)
	assert.Equal(t, 1, result.Chunks[1].Index)
	assert.Equal(t, "doc-1", result.Chunks[1].DocumentID)
	start, _ := result.Chunks[1].Metadata["start"].Number()
	assert.Equal(t, float64(10), start)
	at, _ := result.Chunks[1].Metadata["artifact_type"].Str()
	assert.Equal(t, "extracted_text", at)
}

func TestChunk_PrefersTranscript(t *testing.T) {
	ctx := context.Background()
	objects := memory.NewObjectStore()
	textURL, _ := objects.Put(ctx, "b", "artifacts/doc-1/extracted_text.txt", []byte("extracted"))
	transcriptURL, _ := objects.Put(ctx, "b", "artifacts/doc-1/transcript.txt", []byte("spoken"))

	in := &domain.StageInput{
		Document: testDocument("a.mp4"),
		Artifacts: []domain.Artifact{
			{Type: domain.ArtifactExtractedText, URL: textURL},
			{Type: domain.ArtifactTranscript, URL: transcriptURL},
		},
	}
	result, err := newChunk(t, objects, 100, 0).Execute(ctx, in)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "spoken", result.Chunks[0].Content)
}

func TestChunk_EmptyTextClearsChunks(t *testing.T) {
	ctx := context.Background()
	objects := memory.NewObjectStore()
	url, _ := objects.Put(ctx, "b", "artifacts/doc-1/extracted_text.txt", nil)

	result, err := newChunk(t, objects, 100, 0).Execute(ctx, &domain.StageInput{
		Document:  testDocument("a.txt"),
		Artifacts: []domain.Artifact{{Type: domain.ArtifactExtractedText, URL: url}},
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Chunks)
	assert.Empty(t, result.Chunks)
}

func TestChunk_MissingArtifact(t *testing.T) {
	ctx := context.Background()
	exec := newChunk(t, memory.NewObjectStore(), 100, 0)

	_, err := exec.Execute(ctx, &domain.StageInput{Document: testDocument("a.txt")})
	assert.ErrorIs(t, err, domain.ErrPriorStageIncomplete)
	assert.True(t, domain.IsPermanent(err))

	_, err = exec.Execute(ctx, &domain.StageInput{
		Document:  testDocument("a.txt"),
		Artifacts: []domain.Artifact{{Type: domain.ArtifactExtractedText, URL: "s3://b/artifacts/doc-1/extracted_text.txt"}},
	})
	assert.ErrorIs(t, err, domain.ErrPriorStageIncomplete)
}

func chunksOf(contents ...string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(contents))
	for i, c := range contents {
		chunks[i] = domain.Chunk{ID: c, DocumentID: "doc-1", Index: i, Content: c}
	}
	return chunks
}

func TestEmbed_ComputesInOrder(t *testing.T) {
	embedder := &mockEmbedder{dims: 3}
	in := &domain.StageInput{Document: testDocument("a.txt"), Chunks: chunksOf("a", "bb", "ccc")}

	result, err := NewEmbed(embedder).Execute(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, result.Embeddings, 3)
	for i, v := range result.Embeddings {
		assert.Len(t, v, 3)
		assert.Equal(t, float32(i+1), v[0])
	}
}

func TestEmbed_SkipsChunksAlreadyEmbedded(t *testing.T) {
	embedder := &mockEmbedder{dims: 2}
	chunks := chunksOf("a", "bb", "ccc")
	chunks[0].Embedding = []float32{9, 9}
	chunks[2].Embedding = []float32{1} // wrong size, recomputed

	result, err := NewEmbed(embedder).Execute(context.Background(), &domain.StageInput{Document: testDocument("a.txt"), Chunks: chunks})
	require.NoError(t, err)
	require.Len(t, embedder.calls, 1)
	assert.Equal(t, []string{"bb", "ccc"}, embedder.calls[0])
	assert.Equal(t, []float32{9, 9}, result.Embeddings[0])
	assert.Equal(t, float32(3), result.Embeddings[2][0])
}

func TestEmbed_NoChunks(t *testing.T) {
	embedder := &mockEmbedder{dims: 2}
	result, err := NewEmbed(embedder).Execute(context.Background(), &domain.StageInput{Document: testDocument("a.txt")})
	require.NoError(t, err)
	assert.NotNil(t, result.Embeddings)
	assert.Empty(t, embedder.calls)
}

func TestEmbed_Failures(t *testing.T) {
	ctx := context.Background()
	in := &domain.StageInput{Document: testDocument("a.txt"), Chunks: chunksOf("a", "b")}

	unavailable := domain.Transient(domain.ErrEmbeddingUnavailable)
	_, err := NewEmbed(&mockEmbedder{dims: 2, err: unavailable}).Execute(ctx, in)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.False(t, domain.IsPermanent(err))

	_, err = NewEmbed(&mockEmbedder{dims: 2, short: true}).Execute(ctx, in)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.False(t, domain.IsPermanent(err))
}

func TestIndex_UpsertsAndPrunes(t *testing.T) {
	vectors := &mockVectors{}
	chunks := chunksOf("a", "b")
	chunks[0].Embedding = []float32{1, 0}
	chunks[1].Embedding = []float32{0, 1}

	result, err := NewIndex(vectors).Execute(context.Background(), &domain.StageInput{Document: testDocument("a.txt"), Chunks: chunks})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Indexed)

	require.Len(t, vectors.upserted, 2)
	assert.Equal(t, "doc-1#0", vectors.upserted[0].ID)
	assert.Equal(t, "doc-1#1", vectors.upserted[1].ID)
	assert.Equal(t, 1, vectors.upserted[1].ChunkIndex)
	assert.Equal(t, 2, vectors.pruned["doc-1"])
}

func TestIndex_EmptyChunkSetPrunesEverything(t *testing.T) {
	vectors := &mockVectors{}
	result, err := NewIndex(vectors).Execute(context.Background(), &domain.StageInput{Document: testDocument("a.txt")})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Indexed)
	assert.Empty(t, vectors.upserted)
	assert.Equal(t, 0, vectors.pruned["doc-1"])
}

func TestIndex_Failures(t *testing.T) {
	ctx := context.Background()

	_, err := NewIndex(&mockVectors{}).Execute(ctx, &domain.StageInput{Document: testDocument("a.txt"), Chunks: chunksOf("a")})
	assert.ErrorIs(t, err, domain.ErrPriorStageIncomplete)
	assert.True(t, domain.IsPermanent(err))

	chunks := chunksOf("a")
	chunks[0].Embedding = []float32{1}
	down := domain.Transient(domain.ErrVectorIndexUnavailable)
	_, err = NewIndex(&mockVectors{err: down}).Execute(ctx, &domain.StageInput{Document: testDocument("a.txt"), Chunks: chunks})
	assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	assert.False(t, domain.IsPermanent(err))
}

// TestStages_EndToEnd runs all four executors over real adapters, feeding
// each stage's output into the next the way the dispatcher does.
func TestStages_EndToEnd(t *testing.T) {
	ctx := context.Background()
	objects := memory.NewObjectStore()
	_, err := objects.Put(ctx, "demo-bucket", "docs/guide.html",
		[]byte("<html><body><h1>Guide</h1><p>"+strings.Repeat("retrieval pipelines ", 40)+"</p></body></html>"))
	require.NoError(t, err)

	vectors, err := boltindex.Open(filepath.Join(t.TempDir(), "vectors.db"), hashing.DefaultDimensions)
	require.NoError(t, err)
	defer vectors.Close()

	pipeline, err := postprocessors.NewDefaultPipeline(domain.PipelineConfig{
		Processors:       []string{"chunker", "normalise"},
		ProcessorConfigs: map[string]map[string]any{"chunker": {"chunk_size": 200, "overlap": 20}},
	})
	require.NoError(t, err)

	set := New(Deps{
		Objects:    objects,
		Extractors: extractors.NewDefaultRegistry(domain.ExtractionSettings{}),
		Pipeline:   pipeline,
		Embedder:   hashing.NewEmbeddingService(0),
		Vectors:    vectors,
	})
	require.NoError(t, set.Validate())

	in := &domain.StageInput{Document: testDocument("docs/guide.html")}

	extracted, err := set.Extract.Execute(ctx, in)
	require.NoError(t, err)
	in.Artifacts = extracted.Artifacts

	chunked, err := set.Chunk.Execute(ctx, in)
	require.NoError(t, err)
	require.Greater(t, len(chunked.Chunks), 1)
	in.Chunks = chunked.Chunks

	embedded, err := set.Embed.Execute(ctx, in)
	require.NoError(t, err)
	for i := range in.Chunks {
		in.Chunks[i].Embedding = embedded.Embeddings[i]
	}

	indexed, err := set.Index.Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, len(in.Chunks), indexed.Indexed)

	count, err := vectors.Count()
	require.NoError(t, err)
	assert.Equal(t, len(in.Chunks), count)

	// A shorter re-run leaves no stale vectors behind.
	in.Chunks = in.Chunks[:1]
	_, err = set.Index.Execute(ctx, in)
	require.NoError(t, err)
	count, err = vectors.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hits, err := vectors.Search(ctx, in.Chunks[0].Embedding, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-1#0", hits[0].ID)
}

func TestNew_ValidatesAllStages(t *testing.T) {
	set := New(Deps{})
	assert.NoError(t, set.Validate())

	for _, stage := range domain.Stages() {
		exec, err := set.For(stage)
		require.NoError(t, err)
		assert.Equal(t, stage, exec.Stage())
	}
	assert.False(t, errors.Is(set.Validate(), domain.ErrNotImplemented))
}
