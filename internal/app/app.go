// Package app wires settings, stores, adapters and services into a
// running ingestion engine. Every entry point (CLI, HTTP, MCP, watcher)
// is built from an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/custodia-labs/rag-platform/internal/adapters/driven/config/file"
	"github.com/custodia-labs/rag-platform/internal/adapters/driven/factory"
	"github.com/custodia-labs/rag-platform/internal/adapters/driven/objectstore/filesystem"
	"github.com/custodia-labs/rag-platform/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/rag-platform/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/rag-platform/internal/adapters/driving/mcp"
	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/core/services"
	"github.com/custodia-labs/rag-platform/internal/executors"
	"github.com/custodia-labs/rag-platform/internal/extractors"
	"github.com/custodia-labs/rag-platform/internal/extractors/pdf"
	"github.com/custodia-labs/rag-platform/internal/logger"
	"github.com/custodia-labs/rag-platform/internal/postprocessors"
	"github.com/custodia-labs/rag-platform/internal/watcher"
)

// Default directory names below the config directory.
const (
	DataDirName    = "data"
	ObjectsDirName = "objects"
)

// Options locate configuration and data on disk.
type Options struct {
	// ConfigDir holds config.toml. Defaults to ~/.ragd.
	ConfigDir string

	// DataDir overrides storage.data_dir.
	DataDir string

	// EnvFiles are loaded before the config store. Defaults to .env.
	EnvFiles []string
}

// Config is the configuration layer on its own, for commands that only
// read or write settings.
type Config struct {
	Store    *file.ConfigStore
	Settings *services.SettingsService
}

// LoadConfig loads .env files and opens the config store.
func LoadConfig(opts Options) (*Config, error) {
	if err := file.LoadEnv(opts.EnvFiles...); err != nil {
		return nil, err
	}
	store, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	return &Config{Store: store, Settings: services.NewSettingsService(store)}, nil
}

// Resolve returns the settings with storage locations filled in.
func (c *Config) Resolve(opts Options) (*domain.AppSettings, error) {
	settings, err := c.Settings.Get()
	if err != nil {
		return nil, err
	}

	if opts.DataDir != "" {
		settings.Storage.DataDir = opts.DataDir
	}
	if settings.Storage.DataDir == "" {
		settings.Storage.DataDir = filepath.Join(filepath.Dir(c.Store.Path()), DataDirName)
	}
	if settings.Storage.ObjectsDir == "" {
		settings.Storage.ObjectsDir = filepath.Join(settings.Storage.DataDir, ObjectsDirName)
	}
	if settings.VectorIndex.Backend == domain.VectorBackendBolt && settings.VectorIndex.Path == "" {
		settings.VectorIndex.Path = filepath.Join(settings.Storage.DataDir, factory.VectorFileName)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// App holds the wired engine.
type App struct {
	Settings   *domain.AppSettings
	Config     *Config
	Store      *sqlite.Store
	Objects    *filesystem.ObjectStore
	AI         *factory.InitResult
	Extractors *extractors.Registry
	Executors  *driven.StageExecutors
	Ingestion  *services.IngestionService

	log *slog.Logger
}

// New opens every store and builds the services.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.Resolve(opts)
	if err != nil {
		return nil, err
	}

	a := &App{
		Settings: settings,
		Config:   cfg,
		log:      logger.With("component", "app"),
	}
	if err := a.open(ctx); err != nil {
		return nil, errors.Join(err, a.Close())
	}
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	s := a.Settings

	store, err := sqlite.NewStore(s.Storage.DataDir, sqlite.WithArtifactPolicy(s.Storage.ArtifactPolicy))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	a.Store = store

	objects, err := filesystem.New(s.Storage.ObjectsDir)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}
	a.Objects = objects

	ai, err := factory.Init(ctx, s)
	if err != nil {
		return fmt.Errorf("initialising embedding and vector index: %w", err)
	}
	a.AI = ai

	a.Extractors = extractors.NewDefaultRegistry(s.Extraction)
	if err := pdf.New(s.Extraction.PDFCommand).CheckAvailable(); err != nil {
		a.log.Warn("pdf extraction unavailable", "command", s.Extraction.PDFCommand, "hint", pdf.InstallInstructions())
	}

	pipeline, err := postprocessors.NewDefaultPipeline(s.Chunking)
	if err != nil {
		return fmt.Errorf("building chunk pipeline: %w", err)
	}

	a.Executors = executors.New(executors.Deps{
		Objects:        objects,
		Extractors:     a.Extractors,
		Pipeline:       pipeline,
		Embedder:       ai.EmbeddingService,
		Vectors:        ai.VectorIndex,
		ArtifactPolicy: s.Storage.ArtifactPolicy,
	})

	a.Ingestion = services.NewIngestionService(
		store.DocumentStore(),
		store.JobStore(),
		store.ArtifactStore(),
		store.ChunkStore(),
		objects,
		ai.VectorIndex,
	)

	a.log.Debug("engine ready",
		"data_dir", s.Storage.DataDir,
		"objects_dir", s.Storage.ObjectsDir,
		"embedding", s.Embedding.Provider,
		"vector_backend", s.VectorIndex.Backend)
	return nil
}

// DispatcherOptions override pipeline settings for one dispatcher.
type DispatcherOptions struct {
	// Workers overrides pipeline.workers when positive.
	Workers int

	// Stages overrides pipeline.stages when non-empty.
	Stages []domain.Stage
}

// NewDispatcher builds a dispatcher over the app's stores and executors.
func (a *App) NewDispatcher(opts DispatcherOptions) (*services.Dispatcher, error) {
	cfg := services.DispatcherConfigFromSettings(a.Settings)
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	if len(opts.Stages) > 0 {
		cfg.Stages = opts.Stages
	}
	return services.NewDispatcher(
		cfg,
		a.Store.JobStore(),
		a.Store.DocumentStore(),
		a.Store.ArtifactStore(),
		a.Store.ChunkStore(),
		*a.Executors,
	)
}

// NewHTTPServer builds the HTTP surface.
func (a *App) NewHTTPServer() *httpapi.Server {
	return httpapi.New(a.Ingestion, a.Settings.App.Name)
}

// NewMCPServer builds the MCP surface.
func (a *App) NewMCPServer() (*mcp.Server, error) {
	return mcp.NewServer(&mcp.Ports{Ingestion: a.Ingestion})
}

// NewWatcher builds a drop-folder watcher for bucket. Artifact keys are
// never registered.
func (a *App) NewWatcher(bucket, tenantID string) (*watcher.Watcher, error) {
	return watcher.New(a.Objects, a.Ingestion, watcher.Config{
		Bucket:         bucket,
		TenantID:       tenantID,
		IgnorePrefixes: []string{executors.ArtifactDir + "/"},
	})
}

// Close releases the vector index, embedding service and store.
func (a *App) Close() error {
	var errs []error
	if a.AI != nil {
		errs = append(errs, a.AI.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
