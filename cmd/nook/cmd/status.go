package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nook-dev/nook/internal/app"
	"github.com/nook-dev/nook/internal/store"
	"github.com/nook-dev/nook/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		watch  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print DONE/PENDING/FAILED counts per task family",
		Long: `status reports the task ledger snapshot: per-task-type counts by
status plus the total distinct path count, so an operator can see
whether the backlog is stuck on backends (PENDING) or on content
(FAILED). With --watch it renders a live dashboard instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), watch, asJSON)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Render a live dashboard that refreshes every second")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the snapshot as JSON")
	return cmd
}

func runStatus(ctx context.Context, watch, asJSON bool) error {
	a, err := app.Open(ctx, dataDir, nil)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer func() { _ = a.Shutdown(context.Background()) }()

	fetch := func(ctx context.Context) (ui.Snapshot, error) {
		return buildSnapshot(ctx, a)
	}

	noColor := ui.ColorDisabled() || !ui.IsTTY(os.Stdout)

	if watch && ui.IsTTY(os.Stdout) {
		return ui.NewDashboard(fetch, time.Second, noColor).Run(ctx)
	}

	snap, err := fetch(ctx)
	if err != nil {
		return err
	}
	renderer := ui.NewStatusRenderer(os.Stdout, noColor)
	if asJSON {
		return renderer.RenderJSON(snap)
	}
	renderer.Render(snap)
	return nil
}

// renderStoreStats prints a ledger-only snapshot, for commands (retry,
// doctor) that report counts without backend state.
func renderStoreStats(stats store.Stats) {
	snap := ui.Snapshot{TotalPaths: stats.TotalPaths, Counts: stats.Counts}
	ui.NewStatusRenderer(os.Stdout, ui.ColorDisabled() || !ui.IsTTY(os.Stdout)).Render(snap)
}

// buildSnapshot joins the store's ledger counts with backend availability
// and the database file's on-disk size.
func buildSnapshot(ctx context.Context, a *app.App) (ui.Snapshot, error) {
	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return ui.Snapshot{}, err
	}

	snap := ui.Snapshot{
		TotalPaths: stats.TotalPaths,
		Counts:     stats.Counts,
		QueueDepth: a.QueueDepth(),
	}
	for _, name := range a.Registry.Names() {
		b, ok := a.Registry.Get(name)
		if !ok {
			continue
		}
		snap.Backends = append(snap.Backends, ui.BackendState{
			Key:    name,
			Model:  b.ModelName(),
			Loaded: b.Loaded(),
		})
	}
	if info, err := os.Stat(filepath.Join(dataDir, "app.db")); err == nil {
		snap.StoreBytes = info.Size()
	}
	return snap, nil
}
