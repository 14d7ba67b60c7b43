package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyAppEnv  = "app.env"
	keyAppName = "app.name"

	keyDataDir        = "storage.data_dir"
	keyObjectsDir     = "storage.objects_dir"
	keyArtifactPolicy = "storage.artifact_policy"

	keyWorkers        = "pipeline.workers"
	keyPollIntervalMS = "pipeline.poll_interval_ms"
	keyLeaseSeconds   = "pipeline.lease_seconds"
	keyReconcileEvery = "pipeline.reconcile_every"
	keyStages         = "pipeline.stages"

	keyRetryMaxAttempts = "retry.max_attempts"
	keyRetryBaseDelay   = "retry.base_delay_seconds"
	keyRetryMaxDelay    = "retry.max_delay_seconds"
	keyRetryJitter      = "retry.jitter"

	keyChunkProcessors = "chunking.processors"
	keyChunkSize       = "chunking.chunk_size"
	keyChunkOverlap    = "chunking.overlap"

	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyEmbedRate       = "embedding.rate_per_second"

	keyVectorBackend = "vector.backend"
	keyVectorPath    = "vector.path"
	keyVectorHost    = "vector.host"
	keyVectorAPIKey  = "vector.api_key"
	keyVectorClass   = "vector.class"

	keyPDFCommand        = "extraction.pdf_command"
	keyTranscribeCommand = "extraction.transcribe_command"

	keyHTTPAddr = "http.addr"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	stages, err := domain.ParseStages(strings.Join(s.configStore.GetStringSlice(keyStages), ","))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", keyStages, err)
	}

	provider := s.getProvider(keyEmbedProvider, defaults.Embedding.Provider)
	model := s.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[provider])

	settings := &domain.AppSettings{
		App: domain.AppInfo{
			Env:  s.getString(keyAppEnv, defaults.App.Env),
			Name: s.getString(keyAppName, defaults.App.Name),
		},
		Storage: domain.StorageSettings{
			DataDir:        s.configStore.GetString(keyDataDir),
			ObjectsDir:     s.configStore.GetString(keyObjectsDir),
			ArtifactPolicy: s.getArtifactPolicy(defaults.Storage.ArtifactPolicy),
		},
		Pipeline: domain.PipelineSettings{
			Workers:        s.getInt(keyWorkers, defaults.Pipeline.Workers),
			PollInterval:   s.getDuration(keyPollIntervalMS, time.Millisecond, defaults.Pipeline.PollInterval),
			Lease:          s.getDuration(keyLeaseSeconds, time.Second, defaults.Pipeline.Lease),
			ReconcileEvery: s.getIntAllowZero(keyReconcileEvery, defaults.Pipeline.ReconcileEvery),
			Stages:         stages,
		},
		Retry: domain.RetryPolicy{
			MaxAttempts: s.getInt(keyRetryMaxAttempts, defaults.Retry.MaxAttempts),
			BaseDelay:   s.getDuration(keyRetryBaseDelay, time.Second, defaults.Retry.BaseDelay),
			MaxDelay:    s.getDuration(keyRetryMaxDelay, time.Second, defaults.Retry.MaxDelay),
			Jitter:      s.getFloatAllowZero(keyRetryJitter, defaults.Retry.Jitter),
		},
		Chunking: s.getPipelineConfig(),
		Embedding: domain.EmbeddingSettings{
			Provider:      provider,
			Model:         model,
			BaseURL:       s.configStore.GetString(keyEmbedBaseURL), // Empty is valid for cloud providers
			APIKey:        s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:    s.getInt(keyEmbedDimensions, modelDimensions(model, defaults.Embedding.Dimensions)),
			BatchSize:     s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
			RatePerSecond: s.configStore.GetFloat(keyEmbedRate),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend: s.getVectorBackend(defaults.VectorIndex.Backend),
			Path:    s.configStore.GetString(keyVectorPath),
			Host:    s.configStore.GetString(keyVectorHost),
			APIKey:  s.configStore.GetString(keyVectorAPIKey),
			Class:   s.getString(keyVectorClass, defaults.VectorIndex.Class),
		},
		Extraction: domain.ExtractionSettings{
			PDFCommand:        s.getString(keyPDFCommand, defaults.Extraction.PDFCommand),
			TranscribeCommand: s.configStore.GetString(keyTranscribeCommand),
		},
		Server: domain.ServerSettings{
			Addr: s.getString(keyHTTPAddr, defaults.Server.Addr),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	stages := make([]string, len(settings.Pipeline.Stages))
	for i, st := range settings.Pipeline.Stages {
		stages[i] = st.String()
	}

	values := []struct {
		key   string
		value any
	}{
		{keyAppEnv, settings.App.Env},
		{keyAppName, settings.App.Name},
		{keyDataDir, settings.Storage.DataDir},
		{keyObjectsDir, settings.Storage.ObjectsDir},
		{keyArtifactPolicy, string(settings.Storage.ArtifactPolicy)},
		{keyWorkers, settings.Pipeline.Workers},
		{keyPollIntervalMS, int(settings.Pipeline.PollInterval / time.Millisecond)},
		{keyLeaseSeconds, int(settings.Pipeline.Lease / time.Second)},
		{keyReconcileEvery, settings.Pipeline.ReconcileEvery},
		{keyStages, stages},
		{keyRetryMaxAttempts, settings.Retry.MaxAttempts},
		{keyRetryBaseDelay, int(settings.Retry.BaseDelay / time.Second)},
		{keyRetryMaxDelay, int(settings.Retry.MaxDelay / time.Second)},
		{keyRetryJitter, settings.Retry.Jitter},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedRate, settings.Embedding.RatePerSecond},
		{keyVectorBackend, settings.VectorIndex.Backend.String()},
		{keyVectorPath, settings.VectorIndex.Path},
		{keyVectorHost, settings.VectorIndex.Host},
		{keyVectorClass, settings.VectorIndex.Class},
		{keyPDFCommand, settings.Extraction.PDFCommand},
		{keyTranscribeCommand, settings.Extraction.TranscribeCommand},
		{keyHTTPAddr, settings.Server.Addr},
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set so an empty form never wipes them.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyEmbedAPIKey, err)
		}
	}
	if settings.VectorIndex.APIKey != "" {
		if err := s.configStore.Set(keyVectorAPIKey, settings.VectorIndex.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyVectorAPIKey, err)
		}
	}

	if err := s.saveChunking(settings.Chunking); err != nil {
		return err
	}

	return nil
}

// saveChunking persists the processor list and chunker options.
func (s *SettingsService) saveChunking(cfg domain.PipelineConfig) error {
	if len(cfg.Processors) > 0 {
		if err := s.configStore.Set(keyChunkProcessors, cfg.Processors); err != nil {
			return fmt.Errorf("save %s: %w", keyChunkProcessors, err)
		}
	}
	chunker := cfg.GetProcessorConfig("chunker")
	for key, name := range map[string]string{keyChunkSize: "chunk_size", keyChunkOverlap: "overlap"} {
		if val, ok := chunker[name]; ok {
			if err := s.configStore.Set(key, val); err != nil {
				return fmt.Errorf("save %s: %w", key, err)
			}
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	switch provider {
	case domain.AIProviderOllama:
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	case domain.AIProviderHashing:
		settings.Embedding.BaseURL = ""
	case domain.AIProviderOpenAI:
		// Cloud provider uses its default endpoint unless one was set.
	}

	settings.Embedding.APIKey = apiKey
	settings.Embedding.Dimensions = modelDimensions(settings.Embedding.Model, settings.Embedding.Dimensions)

	return s.Save(settings)
}

// SetVectorBackend configures where the index stage writes vectors.
func (s *SettingsService) SetVectorBackend(backend domain.VectorBackend, host, apiKey string) error {
	if !backend.IsValid() {
		return fmt.Errorf("invalid vector backend: %s", backend)
	}
	if backend == domain.VectorBackendWeaviate && host == "" {
		return fmt.Errorf("host required for %s", backend)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.VectorIndex.Backend = backend
	if host != "" {
		settings.VectorIndex.Host = host
	}
	if apiKey != "" {
		settings.VectorIndex.APIKey = apiKey
	}

	return s.Save(settings)
}

// Validate checks the current settings can run the pipeline.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if settings.VectorIndex.Backend == domain.VectorBackendWeaviate && settings.VectorIndex.Host == "" {
		return fmt.Errorf("%w: vector backend %s requires vector.host", domain.ErrInvalidInput, settings.VectorIndex.Backend)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// getPipelineConfig returns the chunk stage's post-processor configuration.
func (s *SettingsService) getPipelineConfig() domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()

	if processors := s.configStore.GetStringSlice(keyChunkProcessors); len(processors) > 0 {
		cfg.Processors = processors
	}

	chunker := cfg.ProcessorConfigs["chunker"]
	if chunker == nil {
		chunker = make(map[string]any)
	}
	if n := s.configStore.GetInt(keyChunkSize); n > 0 {
		chunker["chunk_size"] = n
	}
	if _, exists := s.configStore.Get(keyChunkOverlap); exists {
		chunker["overlap"] = s.configStore.GetInt(keyChunkOverlap)
	}
	cfg.ProcessorConfigs["chunker"] = chunker

	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return max(s.configStore.GetInt(key), 0)
}

func (s *SettingsService) getFloatAllowZero(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, unit, defaultVal time.Duration) time.Duration {
	n := s.configStore.GetInt(key)
	if n <= 0 {
		return defaultVal
	}
	return time.Duration(n) * unit
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getVectorBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	backend := domain.VectorBackend(s.configStore.GetString(keyVectorBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func (s *SettingsService) getArtifactPolicy(defaultVal domain.ArtifactPolicy) domain.ArtifactPolicy {
	policy := domain.ArtifactPolicy(s.configStore.GetString(keyArtifactPolicy))
	if !policy.IsValid() {
		return defaultVal
	}
	return policy
}

// modelDimensions returns the known vector size for a model.
func modelDimensions(model string, fallback int) int {
	if d, ok := domain.EmbeddingDimensions()[model]; ok {
		return d
	}
	return fallback
}
