package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/rag-platform/internal/adapters/driven/factory"
	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// embeddingCheckTimeout bounds the provider ping after configuration.
const embeddingCheckTimeout = 15 * time.Second

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change settings stored in config.toml.

Environment variables override the file, e.g. RAGD_WORKERS or
OPENAI_API_KEY. Use 'ragd config show' to see the effective values.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Stores a value under a dotted key and checks the resulting settings.

Numbers and booleans are stored typed. Comma-separated values are
stored as lists for list keys such as pipeline.stages.

Examples:
  ragd config set pipeline.workers 8
  ragd config set retry.jitter 0.2
  ragd config set pipeline.stages extract,chunk`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	Long:  `Interactively select the embedding provider and model, then check it responds.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigEmbedding,
}

var configVectorCmd = &cobra.Command{
	Use:   "vector <bolt|weaviate>",
	Short: "Configure the vector index backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigVector,
}

// listKeys are stored as string slices.
var listKeys = map[string]bool{
	"pipeline.stages":     true,
	"chunking.processors": true,
}

// Command flags.
var (
	vectorHost   string
	vectorAPIKey string
)

func init() {
	configVectorCmd.Flags().StringVar(&vectorHost, "host", "", "Weaviate host")
	configVectorCmd.Flags().StringVar(&vectorAPIKey, "api-key", "", "Weaviate API key")

	configCmd.AddCommand(configShowCmd, configSetCmd, configEmbeddingCmd, configVectorCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	svc, store, err := settings()
	if err != nil {
		return err
	}

	s, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if path := store.Path(); path != "" {
		cmd.Printf("Config file: %s\n\n", path)
	}

	cmd.Println("[App]")
	cmd.Printf("  Env: %s\n", s.App.Env)
	cmd.Printf("  Name: %s\n", s.App.Name)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Data dir: %s\n", orDefault(s.Storage.DataDir))
	cmd.Printf("  Objects dir: %s\n", orDefault(s.Storage.ObjectsDir))
	cmd.Printf("  Artifact policy: %s\n", s.Storage.ArtifactPolicy)
	cmd.Println()

	cmd.Println("[Pipeline]")
	cmd.Printf("  Workers: %d\n", s.Pipeline.Workers)
	cmd.Printf("  Poll interval: %s\n", s.Pipeline.PollInterval)
	cmd.Printf("  Lease: %s\n", s.Pipeline.Lease)
	cmd.Printf("  Reconcile every: %d polls\n", s.Pipeline.ReconcileEvery)
	cmd.Printf("  Stages: %s\n", joinStages(s.Pipeline.Stages))
	cmd.Println()

	cmd.Println("[Retry]")
	cmd.Printf("  Max attempts: %d\n", s.Retry.MaxAttempts)
	cmd.Printf("  Base delay: %s\n", s.Retry.BaseDelay)
	cmd.Printf("  Max delay: %s\n", s.Retry.MaxDelay)
	cmd.Printf("  Jitter: %.2f\n", s.Retry.Jitter)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", s.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", s.Embedding.Model)
	cmd.Printf("  Dimensions: %d\n", s.Embedding.Dimensions)
	if s.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", s.Embedding.BaseURL)
	}
	if s.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", maskAPIKey(s.Embedding.APIKey))
	}
	cmd.Println()

	cmd.Println("[Vector Index]")
	cmd.Printf("  Backend: %s\n", s.VectorIndex.Backend)
	switch s.VectorIndex.Backend {
	case domain.VectorBackendBolt:
		cmd.Printf("  Path: %s\n", orDefault(s.VectorIndex.Path))
	case domain.VectorBackendWeaviate:
		cmd.Printf("  Host: %s\n", orDefault(s.VectorIndex.Host))
		cmd.Printf("  Class: %s\n", s.VectorIndex.Class)
		cmd.Printf("  API Key: %s\n", maskAPIKey(s.VectorIndex.APIKey))
	}
	cmd.Println()

	cmd.Println("[Extraction]")
	cmd.Printf("  PDF command: %s\n", s.Extraction.PDFCommand)
	if s.Extraction.TranscribeCommand != "" {
		cmd.Printf("  Transcribe command: %s\n", s.Extraction.TranscribeCommand)
	} else {
		cmd.Printf("  Transcribe command: (media disabled)\n")
	}
	cmd.Println()

	cmd.Println("[HTTP]")
	cmd.Printf("  Addr: %s\n", s.Server.Addr)
	cmd.Println()

	if err := svc.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'ragd config embedding' or 'ragd config set' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	svc, store, err := settings()
	if err != nil {
		return err
	}

	key, raw := args[0], args[1]
	if err := store.Set(key, parseValue(key, raw)); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	cmd.Printf("Set %s = %s\n", key, raw)

	if err := svc.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	}
	return nil
}

func runConfigEmbedding(cmd *cobra.Command, _ []string) error {
	svc, _, err := settings()
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	reader := bufio.NewReader(in)

	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	provider := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(in, reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := svc.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	s, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Print("Validating configuration... ")
	ctx, cancel := context.WithTimeout(cmd.Context(), embeddingCheckTimeout)
	defer cancel()
	if err := factory.ValidateEmbeddingConfig(ctx, &s.Embedding); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n", provider.Description(), model)
	return nil
}

func runConfigVector(cmd *cobra.Command, args []string) error {
	svc, _, err := settings()
	if err != nil {
		return err
	}

	backend := domain.VectorBackend(strings.ToLower(args[0]))
	if err := svc.SetVectorBackend(backend, vectorHost, vectorAPIKey); err != nil {
		return fmt.Errorf("failed to configure vector backend: %w", err)
	}
	cmd.Printf("Vector backend set to %s\n", backend)
	return nil
}

// parseValue types a command line value for storage.
func parseValue(key, raw string) any {
	if listKeys[key] {
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return raw
}

func joinStages(stages []domain.Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n') //nolint:errcheck // EOF yields the partial line
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
