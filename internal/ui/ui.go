// Package ui renders nook's operator-facing terminal surfaces: the
// one-shot status report, the live status dashboard behind
// `nook status --watch`, and search result listings.
package ui

import (
	"io"
	"os"

	"github.com/docker/go-units"
	"github.com/mattn/go-isatty"
)

// IsTTY reports whether w is an interactive terminal. Non-file writers
// (buffers, pipes wrapped in something else) are never terminals.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorDisabled reports whether color output should be suppressed, either
// by the NO_COLOR convention or because a CI environment owns the output.
func ColorDisabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}

// FormatBytes renders a byte count for humans ("4.2MiB").
func FormatBytes(n int64) string {
	if n < 0 {
		return "0B"
	}
	return units.BytesSize(float64(n))
}
