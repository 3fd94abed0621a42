package search

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nook-dev/nook/internal/models"
	"github.com/nook-dev/nook/internal/store"
)

const (
	// minSemanticFetch is the floor on how many rows each semantic
	// stream pulls; the actual limit is max(200, 10*topK).
	minSemanticFetch = 200
)

// Store is the subset of *store.Store the search engine depends on.
type Store interface {
	SearchLexical(ctx context.Context, matchExpression string, limit int) ([]store.LexicalResult, error)
	EmbeddingsByModel(ctx context.Context, modelName string) ([]store.EmbeddingRow, error)
}

// FileReader abstracts reading an image query's raw bytes.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Engine is the hybrid, multi-modal search engine. It reads only from
// the Store and the Model Registry, never mutating either.
type Engine struct {
	store    Store
	registry *models.Registry
	files    FileReader

	textExt  map[string]bool
	imageExt map[string]bool

	defaultTopK int
}

// New builds an Engine. textExtensions/imageExtensions classify result
// paths into the text/image modality split.
func New(st Store, registry *models.Registry, files FileReader, textExtensions, imageExtensions []string, defaultTopK int) *Engine {
	if defaultTopK <= 0 {
		defaultTopK = 30
	}
	return &Engine{
		store:       st,
		registry:    registry,
		files:       files,
		textExt:     extSet(textExtensions),
		imageExt:    extSet(imageExtensions),
		defaultTopK: defaultTopK,
	}
}

func extSet(exts []string) map[string]bool {
	out := make(map[string]bool, len(exts))
	for _, e := range exts {
		out[strings.ToLower(e)] = true
	}
	return out
}

func (e *Engine) modalityOf(path string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if e.textExt[ext] {
		return KindText, true
	}
	if e.imageExt[ext] {
		return KindImage, true
	}
	return "", false
}

// Search runs every query part's pipeline, fuses the resulting streams
// per modality, and returns up to topK results per modality. topK <= 0
// uses the engine's configured default. Search never returns an error:
// any stream that errors is treated as empty, so a totally unreachable
// store is the only way this surfaces a problem, and even then it
// degrades to empty results.
func (e *Engine) Search(ctx context.Context, parts []QueryPart, folderPrefix string, sources SourceFilter, topK int) Results {
	if topK <= 0 {
		topK = e.defaultTopK
	}
	fetchLimit := minSemanticFetch
	if v := 10 * topK; v > fetchLimit {
		fetchLimit = v
	}

	var textStreams, imageStreams []namedStream
	for _, part := range parts {
		ts, is := e.runPart(ctx, part, sources, fetchLimit)
		textStreams = append(textStreams, ts...)
		imageStreams = append(imageStreams, is...)
	}

	textStreams = filterByFolder(filterByModality(textStreams, e, KindText), folderPrefix)
	imageStreams = filterByFolder(filterByModality(imageStreams, e, KindImage), folderPrefix)

	return Results{
		Text:  top(fuseStreams(textStreams), topK),
		Image: top(fuseStreams(imageStreams), topK),
	}
}

// runPart executes the per-query-part pipeline and returns the
// collapsed streams it produced, split by the modality they feed into
// (lexical and text-semantic streams feed the
// text modality's fusion input; image-semantic streams feed the image
// modality's). A text query part's image-embedder stream is itself a
// text-modality-or-image-modality producer depending only on the paths
// it returns, so both outputs are collected together and the later
// modality filter does the actual sorting.
func (e *Engine) runPart(ctx context.Context, part QueryPart, sources SourceFilter, fetchLimit int) (textStreams, imageStreams []namedStream) {
	var streams []namedStream

	if part.Kind == KindText {
		if sources.OCR || sources.Embed || sources.LLM {
			if hits, err := e.lexicalStream(ctx, part.Value, sources, fetchLimit); err == nil && len(hits) > 0 {
				streams = append(streams, namedStream{results: collapseStream(hits), match: MatchLexical})
			}
		}
		if textEmb, ok := e.textEmbedder(); ok {
			if vec, err := textEmb.Embed(ctx, part.Value); err == nil {
				if hits, err := e.semanticStream(ctx, vec, textEmb.ModelName(), sources, fetchLimit); err == nil && len(hits) > 0 {
					streams = append(streams, namedStream{results: collapseStream(hits), match: MatchSemantic})
				}
			}
		}
		if imgEmb, ok := e.imageEmbedder(); ok {
			if vec, err := imgEmb.Embed(ctx, part.Value); err == nil {
				if hits, err := e.semanticStream(ctx, vec, imgEmb.ModelName(), sources, fetchLimit); err == nil && len(hits) > 0 {
					streams = append(streams, namedStream{results: collapseStream(hits), match: MatchSemantic})
				}
			}
		}
	} else {
		imgEmb, ok := e.imageEmbedder()
		if !ok {
			return nil, nil
		}
		data, err := e.files.ReadFile(part.Value)
		if err != nil {
			return nil, nil
		}
		vec, err := imgEmb.Embed(ctx, string(data))
		if err != nil {
			return nil, nil
		}
		if hits, err := e.semanticStream(ctx, vec, imgEmb.ModelName(), sources, fetchLimit); err == nil && len(hits) > 0 {
			streams = append(streams, namedStream{results: collapseStream(hits), match: MatchSemantic})
		}
	}

	return streams, streams
}

func (e *Engine) textEmbedder() (models.Embedder, bool) {
	b, ok := e.registry.Get("text")
	if !ok || !b.Loaded() {
		return nil, false
	}
	emb, ok := b.(models.Embedder)
	return emb, ok
}

func (e *Engine) imageEmbedder() (models.Embedder, bool) {
	b, ok := e.registry.Get("image")
	if !ok || !b.Loaded() {
		return nil, false
	}
	emb, ok := b.(models.Embedder)
	return emb, ok
}

// lexicalStream consults the Store's FTS index, dropping rows whose
// source is disabled by the source filter.
func (e *Engine) lexicalStream(ctx context.Context, query string, sources SourceFilter, limit int) ([]streamHit, error) {
	rows, err := e.store.SearchLexical(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]streamHit, 0, len(rows))
	for _, r := range rows {
		src := Source(r.Source)
		if !sources.allows(src) {
			continue
		}
		// FTS5 bm25() is lower-is-better; invert so downstream fusion's
		// "score descending" ranking matches the store's "rank ascending".
		out = append(out, streamHit{Path: r.Path, Content: r.Content, Score: -r.Rank, Source: src})
	}
	return out, nil
}

// semanticStream fetches every embedding row for modelName, scores each
// by dot product against the (already-normalized) query vector, and
// returns the top-limit hits sorted descending. Vectors are stored
// normalized, so a dot product is equivalent to cosine similarity.
func (e *Engine) semanticStream(ctx context.Context, queryVec []float32, modelName string, sources SourceFilter, limit int) ([]streamHit, error) {
	rows, err := e.store.EmbeddingsByModel(ctx, modelName)
	if err != nil {
		return nil, err
	}
	var hits []streamHit
	for _, r := range rows {
		src := SourceEmbed
		if r.ChunkIndex < 0 {
			src = SourceLLM
		}
		if !sources.allows(src) {
			continue
		}
		hits = append(hits, streamHit{Path: r.Path, Content: r.Text, Score: float64(dot(queryVec, r.Vector)), Source: src})
	}
	sortDescending(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func sortDescending(hits []streamHit) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

// filterByModality keeps only stream results whose path classifies into
// the given modality, dropping everything else.
func filterByModality(streams []namedStream, e *Engine, kind Kind) []namedStream {
	out := make([]namedStream, 0, len(streams))
	for _, s := range streams {
		filtered := make([]Result, 0, len(s.results))
		for _, r := range s.results {
			if k, ok := e.modalityOf(r.Path); ok && k == kind {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) > 0 {
			out = append(out, namedStream{results: filtered, match: s.match})
		}
	}
	return out
}

// filterByFolder discards paths not under folderPrefix, after OS path
// normalization, before fusion runs.
func filterByFolder(streams []namedStream, folderPrefix string) []namedStream {
	if folderPrefix == "" {
		return streams
	}
	prefix := filepath.Clean(folderPrefix)
	out := make([]namedStream, 0, len(streams))
	for _, s := range streams {
		filtered := make([]Result, 0, len(s.results))
		for _, r := range s.results {
			if isUnder(filepath.Clean(r.Path), prefix) {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) > 0 {
			out = append(out, namedStream{results: filtered, match: s.match})
		}
	}
	return out
}

func isUnder(path, prefix string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "..")
}

func top(results []Result, n int) []Result {
	if len(results) > n {
		return results[:n]
	}
	return results
}

