package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nook-dev/nook/internal/app"
	"github.com/nook-dev/nook/internal/logging"
	"github.com/nook-dev/nook/internal/preflight"
	"github.com/nook-dev/nook/internal/profiling"
)

func newDaemonCmd() *cobra.Command {
	var (
		mcp           bool
		cpuProfile    string
		skipPreflight bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the watcher, orchestrator, and optional MCP server",
		Long: `daemon opens the store, loads the model backends, resumes any work
left PENDING from a prior run, then starts the filesystem watcher and
the task orchestrator. It runs until interrupted (Ctrl+C) or sent
SIGTERM.

With --mcp, it also serves the search/stats/index_info tools over
stdio for an AI assistant to call. --mcp implies no other stdout
output: all status is logged to <data-dir>/logs/ instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), mcp, cpuProfile, skipPreflight)
		},
	}

	cmd.Flags().BoolVar(&mcp, "mcp", false, "Serve MCP tools over stdio alongside indexing")
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile to this path for the daemon's lifetime")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip the disk/memory/fd/write-permission checks before starting")
	return cmd
}

func runDaemon(ctx context.Context, withMCP bool, cpuProfilePath string, skipPreflight bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !skipPreflight {
		checker := preflight.New()
		results := checker.RunAll(ctx, dataDir)
		if checker.HasCriticalFailures(results) {
			checker.PrintResults(results)
			return fmt.Errorf("preflight checks failed, run 'nook doctor' for details (or pass --skip-preflight)")
		}
	}

	if cpuProfilePath != "" {
		cleanup, err := profiling.NewProfiler().StartCPU(cpuProfilePath)
		if err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer cleanup()
	}

	logger := slog.Default()
	if withMCP {
		// The MCP stdio transport owns stdout/stderr, so logging goes
		// file-only for the daemon's lifetime.
		mcpLogger, cleanup, err := logging.Setup(logging.MCP(dataDir))
		if err != nil {
			return fmt.Errorf("set up mcp logging: %w", err)
		}
		defer cleanup()
		logger = mcpLogger
		slog.SetDefault(logger)
	}

	a, err := app.Open(ctx, dataDir, logger)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(ctx)
		return fmt.Errorf("start app: %w", err)
	}

	if !withMCP {
		fmt.Println("nook daemon running, press Ctrl+C to stop")
	}

	if withMCP {
		srv := a.MCPServer()
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logger.Error("mcp server error", slog.String("error", err.Error()))
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx := context.Background()
	if err := a.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
