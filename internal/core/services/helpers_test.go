package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/rag-platform/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// testClock is a manually advanced clock for lease tests.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T, opts ...sqlite.Option) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeExecutor is a stage executor whose behaviour a test can replace.
type fakeExecutor struct {
	stage domain.Stage

	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, in *domain.StageInput) (*domain.StageResult, error)
}

func (f *fakeExecutor) Stage() domain.Stage { return f.stage }

func (f *fakeExecutor) Execute(ctx context.Context, in *domain.StageInput) (*domain.StageResult, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, in)
}

func (f *fakeExecutor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeExecutor) set(fn func(ctx context.Context, in *domain.StageInput) (*domain.StageResult, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
}

// fakeExecutors returns executors producing one extracted_text artifact,
// five chunks, one embedding per chunk and an index count.
func fakeExecutors() (driven.StageExecutors, map[domain.Stage]*fakeExecutor) {
	extract := &fakeExecutor{stage: domain.StageExtract}
	extract.fn = func(_ context.Context, in *domain.StageInput) (*domain.StageResult, error) {
		return &domain.StageResult{Artifacts: []domain.Artifact{{
			Type: domain.ArtifactExtractedText,
			URL:  domain.ObjectURL(in.Document.Bucket, "artifacts/"+in.Document.ID+"/extracted_text.txt"),
		}}}, nil
	}

	chunk := &fakeExecutor{stage: domain.StageChunk}
	chunk.fn = func(_ context.Context, in *domain.StageInput) (*domain.StageResult, error) {
		if _, ok := domain.FindArtifact(in.Artifacts, domain.ArtifactExtractedText); !ok {
			return nil, domain.Permanentf("no extracted text for %s", in.Document.ID)
		}
		chunks := make([]domain.Chunk, 5)
		for i := range chunks {
			chunks[i] = domain.Chunk{Index: i, Content: fmt.Sprintf("chunk %d", i)}
		}
		return &domain.StageResult{Chunks: chunks}, nil
	}

	embed := &fakeExecutor{stage: domain.StageEmbed}
	embed.fn = func(_ context.Context, in *domain.StageInput) (*domain.StageResult, error) {
		vectors := make([][]float32, len(in.Chunks))
		for i := range vectors {
			vectors[i] = []float32{float32(i), 1}
		}
		return &domain.StageResult{Embeddings: vectors}, nil
	}

	index := &fakeExecutor{stage: domain.StageIndex}
	index.fn = func(_ context.Context, in *domain.StageInput) (*domain.StageResult, error) {
		for _, c := range in.Chunks {
			if len(c.Embedding) == 0 {
				return nil, domain.Permanentf("chunk %d has no embedding", c.Index)
			}
		}
		return &domain.StageResult{Indexed: len(in.Chunks)}, nil
	}

	byStage := map[domain.Stage]*fakeExecutor{
		domain.StageExtract: extract,
		domain.StageChunk:   chunk,
		domain.StageEmbed:   embed,
		domain.StageIndex:   index,
	}
	return driven.StageExecutors{Extract: extract, Chunk: chunk, Embed: embed, Index: index}, byStage
}

// noDelayRetry retries immediately so tests can drain failures.
func noDelayRetry(maxAttempts int) domain.RetryPolicy {
	return domain.RetryPolicy{MaxAttempts: maxAttempts}
}

// newTestDispatcher wires a dispatcher to store with fake executors.
func newTestDispatcher(
	t *testing.T, store *sqlite.Store, cfg DispatcherConfig,
) (*Dispatcher, map[domain.Stage]*fakeExecutor) {
	t.Helper()
	executors, fakes := fakeExecutors()
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = noDelayRetry(5)
	}
	if cfg.Lease == 0 {
		cfg.Lease = time.Minute
	}
	d, err := NewDispatcher(cfg, store.JobStore(), store.DocumentStore(), store.ArtifactStore(), store.ChunkStore(), executors)
	require.NoError(t, err)
	return d, fakes
}

// newTestIngestion wires an ingestion service to store.
func newTestIngestion(store *sqlite.Store, objects driven.ObjectStore, vectors driven.VectorIndex) *IngestionService {
	return NewIngestionService(store.DocumentStore(), store.JobStore(), store.ArtifactStore(), store.ChunkStore(),
		objects, vectors)
}

// registerPDF registers demo-bucket/<key> as a pdf and enqueues extract.
func registerPDF(t *testing.T, svc *IngestionService, key string) *domain.Document {
	t.Helper()
	doc, created, err := svc.Register(context.Background(), domain.Registration{
		Bucket: "demo-bucket", Key: key, FileType: "pdf",
	})
	require.NoError(t, err)
	require.True(t, created)
	return doc
}
