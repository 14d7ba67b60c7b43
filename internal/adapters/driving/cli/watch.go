package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/rag-platform/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <bucket>",
	Short: "Register files dropped into a bucket directory",
	Long: `Registers every supported file already in the bucket's directory under
the object store, then watches it and registers new or changed files as
they appear. Workers pick the documents up from there.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchTenant string

func init() {
	watchCmd.Flags().StringVar(&watchTenant, "tenant", "", "owning tenant for registered documents")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	w, err := a.NewWatcher(args[0], watchTenant)
	if err != nil {
		return err
	}
	defer w.Close()

	n, err := w.Scan(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Registered %d new documents from %s\n", n, w.Dir())
	logger.Info("watching bucket", "bucket", args[0], "dir", w.Dir())

	return ignoreCanceled(w.Run(cmd.Context()))
}
