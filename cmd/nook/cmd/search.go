package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/nook-dev/nook/internal/app"
	"github.com/nook-dev/nook/internal/search"
	"github.com/nook-dev/nook/internal/ui"
)

func newSearchCmd() *cobra.Command {
	var (
		kind       string
		folder     string
		sourceList string
		topK       int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid lexical+semantic query against the store",
		Long: `search embeds the query (when a text/image embedder is loaded) and
fuses it with a lexical FTS5 match over the same store a running
daemon writes to, returning up to --num-results hits per modality.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), args[0], kind, folder, sourceList, topK, asJSON)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "text", "Query kind: text or image (image takes a file path)")
	cmd.Flags().StringVar(&folder, "folder", "", "Restrict results to paths under this folder prefix")
	cmd.Flags().StringVar(&sourceList, "source", "ocr,embed,llm", "Comma-separated sources to include: ocr,embed,llm")
	cmd.Flags().IntVar(&topK, "num-results", 0, "Results per modality (0 = config default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON")

	return cmd
}

func runSearch(ctx context.Context, query, kind, folder, sourceList string, topK int, asJSON bool) error {
	a, err := app.Open(ctx, dataDir, nil)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer func() { _ = a.Shutdown(context.Background()) }()

	if err := a.LoadBackends(ctx); err != nil {
		// Backends are best-effort for search: a missing embedder just
		// disables its semantic stream, so a load error here is reported
		// but not fatal.
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	part := search.QueryPart{Kind: search.Kind(kind), Value: query}
	sources := parseSourceFilter(sourceList)

	results := a.Search.Search(ctx, []search.QueryPart{part}, folder, sources, topK)

	if asJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	renderer := ui.NewResultsRenderer(os.Stdout, ui.ColorDisabled() || !ui.IsTTY(os.Stdout))
	renderer.RenderList("Text", toHits(results.Text))
	renderer.RenderList("Image", toHits(results.Image))
	return nil
}

func toHits(results []search.Result) []ui.Hit {
	hits := make([]ui.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, ui.Hit{
			Path:      r.Path,
			Score:     r.Score,
			MatchType: string(r.MatchType),
			Source:    string(r.Source),
			NumHits:   r.NumHits,
			Preview:   r.Content,
		})
	}
	return hits
}

func parseSourceFilter(list string) search.SourceFilter {
	if strings.TrimSpace(list) == "" {
		return search.DefaultSourceFilter()
	}
	var f search.SourceFilter
	for _, part := range strings.Split(list, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "ocr":
			f.OCR = true
		case "embed":
			f.Embed = true
		case "llm":
			f.LLM = true
		}
	}
	return f
}
