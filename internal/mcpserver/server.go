// Package mcpserver exposes nook's hybrid search engine to AI assistants
// over a local stdio MCP channel: three tools, search, stats, and
// index_info. Stdio only; nook never opens a network listener.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nook-dev/nook/internal/search"
	"github.com/nook-dev/nook/internal/store"
	"github.com/nook-dev/nook/pkg/version"
)

// Engine is the subset of *search.Engine the MCP surface depends on.
type Engine interface {
	Search(ctx context.Context, parts []search.QueryPart, folderPrefix string, sources search.SourceFilter, topK int) search.Results
}

// Store is the subset of *store.Store the MCP surface depends on.
type Store interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// Server wraps an *mcp.Server configured with nook's three tools.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	store  Store
	logger *slog.Logger
}

// New builds a Server and registers its tools.
func New(engine Engine, st Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: engine,
		store:  st,
		logger: logger,
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "nook",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// SearchInput is the input schema for the "search" tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the text to search for"`
	Kind   string `json:"kind,omitempty" jsonschema:"text or image, default text"`
	Folder string `json:"folder,omitempty" jsonschema:"restrict results to paths under this folder"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum results per modality, default 30"`
}

// SearchResultOutput is one fused search hit returned to the caller.
type SearchResultOutput struct {
	Path      string  `json:"path"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"`
	Source    string  `json:"source"`
	NumHits   int     `json:"num_hits"`
}

// SearchOutput is the output schema for the "search" tool.
type SearchOutput struct {
	Text  []SearchResultOutput `json:"text"`
	Image []SearchResultOutput `json:"image"`
}

// StatsOutput is the output schema for the "stats" tool.
type StatsOutput struct {
	Counts     map[string]map[string]int `json:"counts"`
	TotalPaths int                       `json:"total_paths"`
}

// IndexInfoInput is the (empty) input schema for the "index_info" tool.
type IndexInfoInput struct{}

// IndexInfoOutput is the output schema for the "index_info" tool.
type IndexInfoOutput struct {
	TotalPaths int    `json:"total_paths"`
	Version    string `json:"nook_version"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid lexical + semantic search over the indexed file tree. Returns ranked text and image results.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "stats",
		Description: "Per-task-type DONE/PENDING/FAILED counts and total indexed path count, useful for diagnosing a stuck backlog.",
	}, s.handleStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_info",
		Description: "Summary of index size and server version.",
	}, s.handleIndexInfo)

	s.logger.Info("mcp tools registered", slog.Int("count", 3))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return nil, SearchOutput{}, fmt.Errorf("query parameter is required")
	}
	kind := search.KindText
	if input.Kind == string(search.KindImage) {
		kind = search.KindImage
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 30
	}

	results := s.engine.Search(ctx, []search.QueryPart{{Kind: kind, Value: input.Query}}, input.Folder, search.DefaultSourceFilter(), limit)

	out := SearchOutput{
		Text:  toOutput(results.Text),
		Image: toOutput(results.Image),
	}
	return nil, out, nil
}

func toOutput(results []search.Result) []SearchResultOutput {
	out := make([]SearchResultOutput, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResultOutput{
			Path:      r.Path,
			Content:   r.Content,
			Score:     r.Score,
			MatchType: string(r.MatchType),
			Source:    string(r.Source),
			NumHits:   r.NumHits,
		})
	}
	return out
}

func (s *Server) handleStats(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, StatsOutput, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	out := StatsOutput{Counts: map[string]map[string]int{}, TotalPaths: st.TotalPaths}
	for taskType, byStatus := range st.Counts {
		m := map[string]int{}
		for status, n := range byStatus {
			m[string(status)] = n
		}
		out.Counts[string(taskType)] = m
	}
	return nil, out, nil
}

func (s *Server) handleIndexInfo(ctx context.Context, _ *mcp.CallToolRequest, _ IndexInfoInput) (*mcp.CallToolResult, IndexInfoOutput, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, IndexInfoOutput{}, err
	}
	return nil, IndexInfoOutput{TotalPaths: st.TotalPaths, Version: version.Version}, nil
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting mcp server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped gracefully")
	return nil
}
