package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/rag-platform/internal/app"
	"github.com/custodia-labs/rag-platform/internal/core/domain"
	"github.com/custodia-labs/rag-platform/internal/core/services"
	"github.com/custodia-labs/rag-platform/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and pipeline workers",
	Long: `Serves the HTTP API and runs a dispatcher in the same process until
interrupted. Use --no-workers to serve the API only and run workers
elsewhere with 'ragd worker'.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run pipeline workers",
	Long: `Claims and executes stage jobs until interrupted. Any number of worker
processes can share one database; --stages restricts which stages this
process claims.

Examples:
  ragd worker
  ragd worker --stages embed,index --workers 8
  ragd worker --drain`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

// Command flags.
var (
	serveAddr      string
	serveNoWorkers bool

	workerStages string
	workerCount  int
	workerDrain  bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from http.addr)")
	serveCmd.Flags().BoolVar(&serveNoWorkers, "no-workers", false, "serve the API without running workers")

	for _, c := range []*cobra.Command{serveCmd, workerCmd} {
		c.Flags().StringVar(&workerStages, "stages", "", "comma-separated stages to claim (default all)")
		c.Flags().IntVarP(&workerCount, "workers", "w", 0, "concurrent jobs (default from pipeline.workers)")
	}
	workerCmd.Flags().BoolVar(&workerDrain, "drain", false, "process available jobs and exit")

	rootCmd.AddCommand(serveCmd, workerCmd)
}

func dispatcherOptions() (app.DispatcherOptions, error) {
	opts := app.DispatcherOptions{Workers: workerCount}
	if workerStages != "" {
		stages, err := domain.ParseStages(workerStages)
		if err != nil {
			return opts, err
		}
		opts.Stages = stages
	}
	return opts, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	opts, err := dispatcherOptions()
	if err != nil {
		return err
	}
	a, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = a.Settings.Server.Addr
	}

	var d *services.Dispatcher
	if !serveNoWorkers {
		if d, err = a.NewDispatcher(opts); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return a.NewHTTPServer().Start(ctx, addr)
	})
	if d != nil {
		g.Go(func() error {
			return ignoreCanceled(d.Start(ctx))
		})
	}
	return g.Wait()
}

func runWorker(cmd *cobra.Command, _ []string) error {
	opts, err := dispatcherOptions()
	if err != nil {
		return err
	}
	a, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	d, err := a.NewDispatcher(opts)
	if err != nil {
		return err
	}

	if workerDrain {
		n, err := d.Drain(cmd.Context())
		if err != nil {
			return fmt.Errorf("drain failed: %w", err)
		}
		cmd.Printf("Processed %d jobs\n", n)
		return nil
	}

	logger.Info("worker started", "worker_id", d.WorkerID())
	return ignoreCanceled(d.Start(cmd.Context()))
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
