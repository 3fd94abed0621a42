package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nook-dev/nook/internal/app"
	"github.com/nook-dev/nook/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run preflight and integrity checks and report the result",
		Long: `doctor first runs the same disk-space/memory/file-descriptor/write-
permission preflight checks a fresh 'nook daemon' gates its startup on,
then the maintenance pass the store schedules once at open in the
background (PRAGMA integrity_check, orphan purge, zombie reset,
REINDEX/VACUUM, WAL checkpoint), synchronously, then prints the
resulting stats snapshot so an operator can see what changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), verbose)
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Print preflight check details, not just pass/warn/fail")
	return cmd
}

func runDoctor(ctx context.Context, verbose bool) error {
	checker := preflight.New(preflight.WithOutput(os.Stdout), preflight.WithVerbose(verbose))
	results := checker.RunAll(ctx, dataDir)
	checker.PrintResults(results)
	fmt.Println()

	a, err := app.Open(ctx, dataDir, nil)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer func() { _ = a.Shutdown(context.Background()) }()

	fmt.Println("running integrity sweep...")
	a.Store.RunIntegritySweep(ctx)

	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	fmt.Println("sweep complete.")
	renderStoreStats(stats)
	return nil
}
