package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding provider.
type AIProvider string

// Available embedding providers.
const (
	// AIProviderHashing is a local, deterministic feature-hashing embedder.
	AIProviderHashing AIProvider = "hashing"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderHashing, AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderHashing:
		return "Hashing (offline, deterministic)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// VectorBackend identifies where the index stage writes vectors.
type VectorBackend string

// Available vector backends.
const (
	// VectorBackendBolt stores vectors in a local bbolt file.
	VectorBackendBolt VectorBackend = "bolt"

	// VectorBackendWeaviate writes vectors to a Weaviate cluster.
	VectorBackendWeaviate VectorBackend = "weaviate"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	return b == VectorBackendBolt || b == VectorBackendWeaviate
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// AppInfo holds application identity.
type AppInfo struct {
	// Env is the deployment environment, e.g. development or production.
	Env string

	// Name is reported by the liveness probe.
	Name string
}

// StorageSettings holds local storage locations.
type StorageSettings struct {
	// DataDir holds the SQLite database and local vector index.
	DataDir string

	// ObjectsDir is the root of the filesystem object store. Each bucket
	// is a subdirectory.
	ObjectsDir string

	// ArtifactPolicy decides whether stage re-runs overwrite artifacts.
	ArtifactPolicy ArtifactPolicy
}

// PipelineSettings controls the dispatcher.
type PipelineSettings struct {
	// Workers is the number of concurrent stage executions per process.
	Workers int

	// PollInterval is the delay between claim rounds when idle.
	PollInterval time.Duration

	// Lease is how long a claim holds without a heartbeat.
	Lease time.Duration

	// ReconcileEvery runs the stalled-work sweep every N poll ticks.
	// Zero disables the sweep.
	ReconcileEvery int

	// Stages restricts which stages this process claims. Empty means all.
	Stages []Stage
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the vector size.
	Dimensions int

	// BatchSize caps texts per embedding request.
	BatchSize int

	// RatePerSecond throttles requests. Zero means unlimited.
	RatePerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend selects the index implementation.
	Backend VectorBackend

	// Path is the bbolt file for the bolt backend.
	Path string

	// Host is the Weaviate host, with or without scheme.
	Host string

	// APIKey authenticates against Weaviate.
	APIKey string

	// Class is the Weaviate class that holds chunk vectors.
	Class string
}

// ExtractionSettings configures external extraction tools.
type ExtractionSettings struct {
	// PDFCommand converts PDF to text. It is invoked as
	// <cmd> -layout -q <file> -.
	PDFCommand string

	// TranscribeCommand converts audio/video to a transcript on stdout.
	// It receives the media file path as its only argument. Empty
	// disables media transcription.
	TranscribeCommand string
}

// ServerSettings configures the HTTP surface.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	App         AppInfo
	Storage     StorageSettings
	Pipeline    PipelineSettings
	Retry       RetryPolicy
	Chunking    PipelineConfig
	Embedding   EmbeddingSettings
	VectorIndex VectorIndexSettings
	Extraction  ExtractionSettings
	Server      ServerSettings
}

// Validate checks settings that would make the pipeline unusable.
func (s *AppSettings) Validate() error {
	if s.Pipeline.Workers < 1 {
		return fmt.Errorf("%w: pipeline workers must be at least 1", ErrInvalidInput)
	}
	if s.Pipeline.Lease <= 0 {
		return fmt.Errorf("%w: pipeline lease must be positive", ErrInvalidInput)
	}
	if s.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("%w: pipeline poll interval must be positive", ErrInvalidInput)
	}
	if err := s.Retry.Validate(); err != nil {
		return err
	}
	if !s.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured", ErrInvalidInput, s.Embedding.Provider)
	}
	if !s.VectorIndex.Backend.IsValid() {
		return fmt.Errorf("%w: unknown vector backend %q", ErrInvalidInput, s.VectorIndex.Backend)
	}
	if !s.Storage.ArtifactPolicy.IsValid() {
		return fmt.Errorf("%w: unknown artifact policy %q", ErrInvalidInput, s.Storage.ArtifactPolicy)
	}
	return nil
}

// DefaultAppSettings returns settings with sensible defaults.
// The default embedding provider needs no network so the pipeline
// runs out of the box.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		App: AppInfo{
			Env:  "development",
			Name: "RAG",
		},
		Storage: StorageSettings{
			ArtifactPolicy: ArtifactOverwrite,
		},
		Pipeline: PipelineSettings{
			Workers:        4,
			PollInterval:   time.Second,
			Lease:          5 * time.Minute,
			ReconcileEvery: 30,
		},
		Retry:    DefaultRetryPolicy(),
		Chunking: DefaultPipelineConfig(),
		Embedding: EmbeddingSettings{
			Provider:   AIProviderHashing,
			Dimensions: 384,
			BatchSize:  64,
		},
		VectorIndex: VectorIndexSettings{
			Backend: VectorBackendBolt,
			Class:   "Chunk",
		},
		Extraction: ExtractionSettings{
			PDFCommand: "pdftotext",
		},
		Server: ServerSettings{
			Addr: ":8080",
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderHashing,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderHashing: "fnv-hashing",
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration for the chunk
// stage. Uses generic map-based config so new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// DefaultPipelineConfig returns the default chunking configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "normalise"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": 1000,
				"overlap":    200,
			},
		},
	}
}
