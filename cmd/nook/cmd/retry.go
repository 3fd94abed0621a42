package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nook-dev/nook/internal/app"
)

func newRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Re-queue every FAILED task row to PENDING",
		Long: `retry is the operator-facing recovery path for backend failures:
every FAILED task row becomes PENDING again.
A running daemon picks the re-queued rows up the next time it resumes
pending work for their task type (e.g. on backend reload), so run
'nook resume <type>' afterwards if no daemon is currently loading that
backend.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetry(cmd.Context())
		},
	}
	return cmd
}

func runRetry(ctx context.Context) error {
	a, err := app.Open(ctx, dataDir, nil)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer func() { _ = a.Shutdown(context.Background()) }()

	if err := a.Store.RetryAllFailed(ctx); err != nil {
		return fmt.Errorf("retry_all_failed: %w", err)
	}

	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	fmt.Println("retried all failed tasks.")
	renderStoreStats(stats)
	return nil
}
