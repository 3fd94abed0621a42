// Package search implements the hybrid (lexical + semantic) multi-modal
// query engine: a query is decomposed into text/image parts, each part is run against a lexical FTS stream and up
// to two semantic vector streams, per-file duplicates are collapsed
// within each stream, and the per-modality streams are fused with
// Reciprocal Rank Fusion (k=60).
package search

// Kind distinguishes a text query part from an image query part.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// QueryPart is one element of a multi-part query: Value is free text for
// KindText or a filesystem path to an image for KindImage.
type QueryPart struct {
	Kind  Kind
	Value string
}

// Source identifies which artifact family a result (or search-index row)
// came from.
type Source string

const (
	SourceOCR   Source = "ocr"
	SourceEmbed Source = "embed"
	SourceLLM   Source = "llm"
)

// SourceFilter enables or disables each artifact family at fetch time. A
// zero-value SourceFilter enables nothing; use DefaultSourceFilter for
// "everything on".
type SourceFilter struct {
	OCR   bool
	Embed bool
	LLM   bool
}

// DefaultSourceFilter enables every source.
func DefaultSourceFilter() SourceFilter {
	return SourceFilter{OCR: true, Embed: true, LLM: true}
}

func (f SourceFilter) allows(s Source) bool {
	switch s {
	case SourceOCR:
		return f.OCR
	case SourceEmbed:
		return f.Embed
	case SourceLLM:
		return f.LLM
	default:
		return false
	}
}

// MatchType records which retrieval mechanism(s) produced a result.
type MatchType string

const (
	MatchLexical  MatchType = "Lexical"
	MatchSemantic MatchType = "Semantic"
	MatchHybrid   MatchType = "Hybrid"
)

// Result is one fused, per-file search hit.
type Result struct {
	Path      string
	Content   string
	Score     float64
	MatchType MatchType
	Source    Source
	NumHits   int
}

// Results holds the two modality-separated ranked lists a query produces.
type Results struct {
	Text  []Result
	Image []Result
}

// streamHit is one row surfaced by a single stream (lexical, text-
// semantic, or image-semantic) before per-file collapse.
type streamHit struct {
	Path    string
	Content string
	Score   float64
	Source  Source
}
