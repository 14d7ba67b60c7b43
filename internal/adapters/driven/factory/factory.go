// Package factory builds the embedding service and vector index the
// pipeline's embed and index stages use, from application settings.
package factory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	hashingembed "github.com/custodia-labs/rag-platform/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/rag-platform/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/rag-platform/internal/adapters/driven/embedding/openai"
	boltindex "github.com/custodia-labs/rag-platform/internal/adapters/driven/vector/bolt"
	weaviateindex "github.com/custodia-labs/rag-platform/internal/adapters/driven/vector/weaviate"
	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// VectorFileName is the bolt index file created in the data directory
// when no path is configured.
const VectorFileName = "vectors.db"

// InitResult holds the services built from settings.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	VectorIndex      driven.VectorIndex
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() error {
	var errs []error
	if r.EmbeddingService != nil {
		errs = append(errs, r.EmbeddingService.Close())
	}
	if r.VectorIndex != nil {
		errs = append(errs, r.VectorIndex.Close())
	}
	return errors.Join(errs...)
}

// Init builds the embedding service and the vector index. Vector
// dimensions follow the embedding service.
func Init(ctx context.Context, settings *domain.AppSettings) (*InitResult, error) {
	embedder, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, err
	}

	index, err := CreateVectorIndex(ctx, &settings.VectorIndex, settings.Storage.DataDir, embedder.Dimensions())
	if err != nil {
		embedder.Close()
		return nil, err
	}

	return &InitResult{EmbeddingService: embedder, VectorIndex: index}, nil
}

// CreateEmbeddingService creates the embedding service for the configured
// provider.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: embedding settings are missing", domain.ErrInvalidInput)
	}

	switch settings.Provider {
	case domain.AIProviderHashing:
		return hashingembed.NewEmbeddingService(settings.Dimensions), nil

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:       settings.BaseURL,
			Model:         settings.Model,
			Dimensions:    settings.Dimensions,
			BatchSize:     settings.BatchSize,
			RatePerSecond: settings.RatePerSecond,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:        settings.APIKey,
			BaseURL:       settings.BaseURL,
			Model:         settings.Model,
			Dimensions:    settings.Dimensions,
			BatchSize:     settings.BatchSize,
			RatePerSecond: settings.RatePerSecond,
		})

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateVectorIndex opens the configured vector backend. A bolt index
// without a path is placed in dataDir.
func CreateVectorIndex(
	ctx context.Context, settings *domain.VectorIndexSettings, dataDir string, dimensions int,
) (driven.VectorIndex, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: vector index settings are missing", domain.ErrInvalidInput)
	}

	switch settings.Backend {
	case domain.VectorBackendBolt:
		path := settings.Path
		if path == "" {
			if dataDir == "" {
				return nil, fmt.Errorf("%w: bolt vector index needs a path or data directory", domain.ErrInvalidInput)
			}
			path = filepath.Join(dataDir, VectorFileName)
		}
		return boltindex.Open(path, dimensions)

	case domain.VectorBackendWeaviate:
		return weaviateindex.New(ctx, weaviateindex.Config{
			Host:   settings.Host,
			APIKey: settings.APIKey,
			Class:  settings.Class,
		})

	default:
		return nil, fmt.Errorf("%w: vector backend %q", domain.ErrUnsupportedType, settings.Backend)
	}
}

// CreateAndValidateEmbeddingService creates an embedding service and
// checks the provider is reachable.
func CreateAndValidateEmbeddingService(
	ctx context.Context, settings *domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'ragd config show' to check the embedding settings",
			domain.ErrEmbeddingUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig creates the configured embedding service and
// pings it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(ctx, settings)
	if err != nil {
		return err
	}
	return svc.Close()
}
