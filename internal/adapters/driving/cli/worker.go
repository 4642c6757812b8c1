package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/laws-africa/peachjam/internal/logger"
)

var (
	workerCount       int
	workerOnce        bool
	workerWatch       bool
	workerNoScheduler bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run background tasks",
	Long: `Runs queued background tasks (document updates, reindexing, embeddings,
citations and ranking) with a pool of workers. The scheduler enqueues periodic
ingestor checks and ranking runs alongside.

With --watch, ingestors that can follow their source directly (such as
markdown directories) push changes as they happen.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVarP(&workerCount, "workers", "w", 0, "number of workers (default from queue.workers)")
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "run due tasks until the queue is empty, then exit")
	workerCmd.Flags().BoolVar(&workerWatch, "watch", false, "watch ingestor sources for changes")
	workerCmd.Flags().BoolVar(&workerNoScheduler, "no-scheduler", false, "do not run the scheduler")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if taskRunner == nil {
		return errors.New("task runner not configured")
	}
	ctx := cmd.Context()

	if workerOnce {
		n, err := taskRunner.RunOnce(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("Ran %d tasks.\n", n)
		return nil
	}

	workers := workerCount
	if workers <= 0 {
		workers = appSettings.Queue.Workers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(taskRunner.Run(gctx, workers))
	})
	if scheduler != nil && !workerNoScheduler {
		g.Go(func() error {
			return ignoreCanceled(scheduler.Start(gctx))
		})
	}
	if workerWatch && ingestionService != nil {
		g.Go(func() error {
			return ignoreCanceled(ingestionService.WatchAll(gctx, func(n int) {
				logger.Info("worker: watching %d ingestors", n)
			}))
		})
	}

	err := g.Wait()
	if scheduler != nil {
		_ = scheduler.Stop()
	}
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
