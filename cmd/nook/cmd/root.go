// Package cmd provides the CLI commands for nook.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nook-dev/nook/internal/app"
	"github.com/nook-dev/nook/internal/logging"
	"github.com/nook-dev/nook/pkg/version"
)

var (
	dataDir        string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the nook CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nook",
		Short: "Local personal knowledge indexer",
		Long: `nook watches a set of folders, OCRs and embeds what it finds, and
serves hybrid lexical+semantic search over the result, both to the
terminal and to AI assistants over MCP.

Run 'nook daemon' to start indexing and serving. Use the other
subcommands against a running daemon's store for search and diagnostics.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("nook version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", app.DefaultDataDir(), "Directory holding config.json, app.db, and logs")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to <data-dir>/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newRetryCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.Debug(dataDir))
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
