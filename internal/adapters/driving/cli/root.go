// Package cli implements the ragd command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/rag-platform/internal/app"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driven"
	"github.com/custodia-labs/rag-platform/internal/core/ports/driving"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// Global flags.
var (
	verbose   bool
	logFormat string
	configDir string
	dataDir   string
)

// Services the commands run against. Tests inject them with SetServices;
// otherwise they are opened from disk on first use.
var (
	ingestionService driving.IngestionService
	settingsService  driving.SettingsService
	configStore      driven.ConfigStore
	engine           *app.App
)

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "Document ingestion engine",
	Long: `ragd moves registered documents through the ingestion pipeline:
extract, chunk, embed and index.

Documents are registered by bucket and key. Workers claim stage jobs from
a shared SQLite job store, retry transient failures with backoff and
advance each document until it is INDEXED or FAILED.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&logFormat, "log-format", logger.FormatText, "log format: text or json")
	flags.StringVar(&configDir, "config-dir", "", "directory holding config.toml (default ~/.ragd)")
	flags.StringVar(&dataDir, "data-dir", "", "directory for the database and local indexes")
}

// Execute runs the root command with ctx and releases anything opened.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := closeEngine(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices injects the services commands use instead of opening them
// from disk. Nil arguments leave the current value.
func SetServices(ingestion driving.IngestionService, settings driving.SettingsService, store driven.ConfigStore) {
	if ingestion != nil {
		ingestionService = ingestion
	}
	if settings != nil {
		settingsService = settings
	}
	if store != nil {
		configStore = store
	}
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	return logger.SetFormat(logFormat)
}

func options() app.Options {
	return app.Options{ConfigDir: configDir, DataDir: dataDir}
}

// openEngine opens the full engine once per invocation.
func openEngine(ctx context.Context) (*app.App, error) {
	if engine != nil {
		return engine, nil
	}
	a, err := app.New(ctx, options())
	if err != nil {
		return nil, err
	}
	engine = a
	if ingestionService == nil {
		ingestionService = a.Ingestion
	}
	if settingsService == nil {
		settingsService = a.Config.Settings
	}
	if configStore == nil {
		configStore = a.Config.Store
	}
	return a, nil
}

func closeEngine() error {
	if engine == nil {
		return nil
	}
	err := engine.Close()
	engine = nil
	return err
}

// ingestion returns the injected ingestion service or opens the engine.
func ingestion(cmd *cobra.Command) (driving.IngestionService, error) {
	if ingestionService != nil {
		return ingestionService, nil
	}
	if _, err := openEngine(cmd.Context()); err != nil {
		return nil, err
	}
	return ingestionService, nil
}

// settings returns the settings service and config store without opening
// the database.
func settings() (driving.SettingsService, driven.ConfigStore, error) {
	if settingsService != nil && configStore != nil {
		return settingsService, configStore, nil
	}
	cfg, err := app.LoadConfig(options())
	if err != nil {
		return nil, nil, err
	}
	if settingsService == nil {
		settingsService = cfg.Settings
	}
	if configStore == nil {
		configStore = cfg.Store
	}
	return settingsService, configStore, nil
}
