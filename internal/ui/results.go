package ui

import (
	"fmt"
	"io"
	"strings"
)

// Hit is one search result row prepared for display.
type Hit struct {
	Path      string
	Score     float64
	MatchType string
	Source    string
	NumHits   int
	Preview   string
}

const previewLimit = 120

// ResultsRenderer writes ranked search results grouped by modality.
type ResultsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultsRenderer builds a renderer; pass noColor to strip styling.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{out: out, styles: NewStyles(noColor)}
}

// RenderList writes one modality's result list under a heading.
func (r *ResultsRenderer) RenderList(heading string, hits []Hit) {
	st := r.styles
	fmt.Fprintf(r.out, "%s %s\n", st.Title.Render(heading), st.Label.Render(fmt.Sprintf("(%d)", len(hits))))
	if len(hits) == 0 {
		fmt.Fprintln(r.out, st.Faint.Render("  no matches"))
		fmt.Fprintln(r.out)
		return
	}
	for i, h := range hits {
		badge := r.matchBadge(h.MatchType)
		meta := fmt.Sprintf("%.4f %s", h.Score, h.Source)
		if h.NumHits > 1 {
			meta += fmt.Sprintf(" x%d", h.NumHits)
		}
		fmt.Fprintf(r.out, "  %2d. %s %s %s\n", i+1, badge, h.Path, st.Faint.Render("["+meta+"]"))
		if preview := clampPreview(h.Preview); preview != "" {
			fmt.Fprintf(r.out, "      %s\n", st.Label.Render(preview))
		}
	}
	fmt.Fprintln(r.out)
}

func (r *ResultsRenderer) matchBadge(matchType string) string {
	st := r.styles
	switch matchType {
	case "Hybrid":
		return st.Good.Render("◆")
	case "Semantic":
		return st.Value.Render("◇")
	case "Lexical":
		return st.Warn.Render("·")
	default:
		return " "
	}
}

func clampPreview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > previewLimit {
		s = s[:previewLimit] + "…"
	}
	return s
}
