package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// isolate clears environment overrides that would leak into settings.
func isolate(t *testing.T) Options {
	t.Helper()
	for _, name := range []string{"ENV", "APP_NAME", "RAGD_DATA_DIR", "RAGD_OBJECTS_DIR", "RAGD_HTTP_ADDR", "RAGD_WORKERS", "OPENAI_API_KEY", "WEAVIATE_APIKEY"} {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	return Options{
		ConfigDir: filepath.Join(dir, "config"),
		EnvFiles:  []string{filepath.Join(dir, "missing.env")},
	}
}

func TestResolve_Defaults(t *testing.T) {
	opts := isolate(t)

	cfg, err := LoadConfig(opts)
	require.NoError(t, err)

	settings, err := cfg.Resolve(opts)
	require.NoError(t, err)

	dataDir := filepath.Join(opts.ConfigDir, DataDirName)
	assert.Equal(t, dataDir, settings.Storage.DataDir)
	assert.Equal(t, filepath.Join(dataDir, ObjectsDirName), settings.Storage.ObjectsDir)
	assert.Equal(t, filepath.Join(dataDir, "vectors.db"), settings.VectorIndex.Path)
	assert.Equal(t, "RAG", settings.App.Name)
	assert.Equal(t, domain.AIProviderHashing, settings.Embedding.Provider)
}

func TestResolve_DataDirOverride(t *testing.T) {
	opts := isolate(t)
	opts.DataDir = filepath.Join(t.TempDir(), "elsewhere")

	cfg, err := LoadConfig(opts)
	require.NoError(t, err)
	settings, err := cfg.Resolve(opts)
	require.NoError(t, err)

	assert.Equal(t, opts.DataDir, settings.Storage.DataDir)
	assert.Equal(t, filepath.Join(opts.DataDir, ObjectsDirName), settings.Storage.ObjectsDir)
}

func TestResolve_InvalidSettings(t *testing.T) {
	opts := isolate(t)

	cfg, err := LoadConfig(opts)
	require.NoError(t, err)
	require.NoError(t, cfg.Store.Set("embedding.provider", "openai"))

	_, err = cfg.Resolve(opts)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	opts := isolate(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("APP_NAME=from-dotenv\n"), 0o600))
	opts.EnvFiles = []string{envFile}

	// godotenv keeps variables that are already set, even when empty.
	require.NoError(t, os.Unsetenv("APP_NAME"))
	t.Cleanup(func() { os.Unsetenv("APP_NAME") })

	cfg, err := LoadConfig(opts)
	require.NoError(t, err)
	settings, err := cfg.Resolve(opts)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", settings.App.Name)
}

func TestNew_RunsPipeline(t *testing.T) {
	opts := isolate(t)
	ctx := context.Background()

	a, err := New(ctx, opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	_, err = a.Objects.Put(ctx, "demo-bucket", "notes/hello.md",
		[]byte("# Hello\n\nThe ingestion pipeline turns this note into chunks."))
	require.NoError(t, err)

	doc, created, err := a.Ingestion.Register(ctx, domain.Registration{
		Bucket: "demo-bucket",
		Key:    "notes/hello.md",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.FileTypeMarkdown, doc.FileType)

	d, err := a.NewDispatcher(DispatcherOptions{Workers: 1})
	require.NoError(t, err)

	ran, err := d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, ran)

	report, err := a.Ingestion.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentIndexed, report.Document.Status)
	assert.Equal(t, 1, report.ChunkCount)
	require.Len(t, report.Artifacts, 1)
	assert.Equal(t, domain.ArtifactExtractedText, report.Artifacts[0].Type)

	text, err := a.Objects.Get(ctx, "demo-bucket", "artifacts/"+doc.ID+"/extracted_text.txt")
	require.NoError(t, err)
	assert.Contains(t, string(text), "Hello")

	require.NoError(t, a.Ingestion.Delete(ctx, doc.ID))
	_, err = a.Ingestion.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNew_Surfaces(t *testing.T) {
	opts := isolate(t)

	a, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.NotNil(t, a.NewHTTPServer().Handler())

	srv, err := a.NewMCPServer()
	require.NoError(t, err)
	assert.NotNil(t, srv)

	w, err := a.NewWatcher("inbox", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(a.Settings.Storage.ObjectsDir, "inbox"), w.Dir())

	_, err = a.NewWatcher("../bad", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
