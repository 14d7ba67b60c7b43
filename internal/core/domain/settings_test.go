package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, "development", s.App.Env)
	assert.Equal(t, "RAG", s.App.Name)
	assert.Equal(t, 4, s.Pipeline.Workers)
	assert.Equal(t, 5*time.Minute, s.Pipeline.Lease)
	assert.Equal(t, DefaultRetryPolicy(), s.Retry)
	assert.Equal(t, AIProviderHashing, s.Embedding.Provider)
	assert.Equal(t, VectorBackendBolt, s.VectorIndex.Backend)
	assert.Equal(t, ArtifactOverwrite, s.Storage.ArtifactPolicy)
	assert.NoError(t, s.Validate())
}

func TestAppSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppSettings)
	}{
		{"no workers", func(s *AppSettings) { s.Pipeline.Workers = 0 }},
		{"no lease", func(s *AppSettings) { s.Pipeline.Lease = 0 }},
		{"no poll interval", func(s *AppSettings) { s.Pipeline.PollInterval = 0 }},
		{"bad retry", func(s *AppSettings) { s.Retry.MaxAttempts = 0 }},
		{"openai without key", func(s *AppSettings) { s.Embedding.Provider = AIProviderOpenAI }},
		{"unknown backend", func(s *AppSettings) { s.VectorIndex.Backend = "faiss" }},
		{"unknown artifact policy", func(s *AppSettings) { s.Storage.ArtifactPolicy = "append" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultAppSettings()
			tt.mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidInput)
		})
	}
}

func TestAIProvider(t *testing.T) {
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.True(t, AIProviderHashing.IsLocal())
	assert.False(t, AIProvider("anthropic").IsValid())
	assert.Equal(t, unknownDescription, AIProvider("x").Description())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.False(t, EmbeddingSettings{}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.Equal(t, []string{"chunker", "normalise"}, cfg.Processors)
	assert.Equal(t, 1000, cfg.GetProcessorConfig("chunker")["chunk_size"])
	assert.Nil(t, cfg.GetProcessorConfig("missing"))

	var empty PipelineConfig
	assert.Nil(t, empty.GetProcessorConfig("chunker"))
}
