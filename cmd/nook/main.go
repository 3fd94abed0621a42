// Command nook is the CLI entry point: it runs the daemon (watcher,
// orchestrator, and MCP server) or a one-shot diagnostic/search command
// against a running instance's store.
package main

import (
	"fmt"
	"os"

	"github.com/nook-dev/nook/cmd/nook/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
