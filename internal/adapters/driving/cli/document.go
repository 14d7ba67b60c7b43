package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/rag-platform/internal/core/domain"
)

// Seed document registered by the seed command.
const (
	seedBucket = "demo-bucket"
	seedKey    = "demo/file.pdf"
)

var registerCmd = &cobra.Command{
	Use:   "register <bucket> <key> | register <s3-url>",
	Short: "Register a document and start its pipeline",
	Long: `Registers a stored object for ingestion and enqueues its extract stage.

Registering an existing bucket and key returns the existing document. A
different --checksum processes the document again; a document mid-pipeline
is rerun once its current run finishes.

Examples:
  ragd register demo-bucket reports/q3.pdf
  ragd register s3://demo-bucket/reports/q3.pdf --checksum 9f86d08`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRegister,
}

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show a document's pipeline status",
	Long: `Shows a document's status, stage jobs, artifacts and chunk count.
Without a document ID, prints job counts by stage and status.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var resetCmd = &cobra.Command{
	Use:   "reset <doc-id>",
	Short: "Reset a FAILED or INDEXED document",
	Long:  `Clears a finished document's jobs, returns it to REGISTERED and enqueues extract.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a document, its artifacts, chunks and vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Register the demo document",
	Long:  `Registers s3://` + seedBucket + `/` + seedKey + ` so the pipeline has something to pick up.`,
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

// Command flags.
var (
	registerFileType string
	registerChecksum string
	registerTenant   string

	listStatus string
	listTenant string
	listLimit  int

	jsonOutput bool
)

func init() {
	registerCmd.Flags().StringVar(&registerFileType, "file-type", "", "file type (inferred from the key when empty)")
	registerCmd.Flags().StringVar(&registerChecksum, "checksum", "", "content checksum")
	registerCmd.Flags().StringVar(&registerTenant, "tenant", "", "owning tenant")

	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "only documents with this status")
	listCmd.Flags().StringVar(&listTenant, "tenant", "", "only documents of this tenant")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "maximum number of documents")

	for _, c := range []*cobra.Command{registerCmd, statusCmd, listCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	}

	rootCmd.AddCommand(registerCmd, statusCmd, listCmd, resetCmd, deleteCmd, seedCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	svc, err := ingestion(cmd)
	if err != nil {
		return err
	}

	reg := domain.Registration{
		TenantID: registerTenant,
		FileType: registerFileType,
		Checksum: registerChecksum,
	}
	if len(args) == 1 {
		bucket, key, err := domain.ParseObjectURL(args[0])
		if err != nil {
			return err
		}
		reg.Bucket, reg.Key, reg.URL = bucket, key, args[0]
	} else {
		reg.Bucket, reg.Key = args[0], args[1]
	}

	doc, created, err := svc.Register(cmd.Context(), reg)
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, map[string]any{"id": doc.ID, "status": doc.Status, "created": created})
	}
	if created {
		cmd.Printf("Registered document %s (%s)\n", doc.ID, doc.Status)
	} else {
		cmd.Printf("Document already registered: %s (%s)\n", doc.ID, doc.Status)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, err := ingestion(cmd)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		counts, err := svc.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get job stats: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd, counts)
		}
		renderStats(cmd.OutOrStdout(), counts)
		return nil
	}

	report, err := svc.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, report)
	}
	renderReport(cmd.OutOrStdout(), report)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	svc, err := ingestion(cmd)
	if err != nil {
		return err
	}

	filter := domain.DocumentFilter{TenantID: listTenant, Limit: listLimit}
	if listStatus != "" {
		status, err := domain.ParseDocumentStatus(listStatus)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	docs, err := svc.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd, docs)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}
	renderDocuments(cmd.OutOrStdout(), docs)
	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	svc, err := ingestion(cmd)
	if err != nil {
		return err
	}
	doc, err := svc.Reset(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	cmd.Printf("Document %s reset to %s\n", doc.ID, doc.Status)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	svc, err := ingestion(cmd)
	if err != nil {
		return err
	}
	if err := svc.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Document %s deleted\n", args[0])
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	svc, err := ingestion(cmd)
	if err != nil {
		return err
	}
	doc, created, err := svc.Register(cmd.Context(), domain.Registration{
		Bucket:   seedBucket,
		Key:      seedKey,
		URL:      domain.ObjectURL(seedBucket, seedKey),
		FileType: string(domain.FileTypePDF),
	})
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	if created {
		cmd.Println("Inserted document:", doc.ID)
	} else {
		cmd.Println("Demo document already present:", doc.ID)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
