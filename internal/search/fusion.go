package search

import "sort"

// rrfK is the Reciprocal Rank Fusion smoothing constant. Fixed, not
// configurable: fused scores are only comparable across queries when
// every ranking uses the same constant.
const rrfK = 60

// collapseStream buckets hits by path: on collision it increments NumHits
// and keeps the higher-scoring content, discarding the lower-scoring
// duplicate's score contribution but preserving the accumulated hit
// count.
func collapseStream(hits []streamHit) []Result {
	byPath := make(map[string]*Result, len(hits))
	order := make([]string, 0, len(hits))
	for _, h := range hits {
		r, ok := byPath[h.Path]
		if !ok {
			byPath[h.Path] = &Result{Path: h.Path, Content: h.Content, Score: h.Score, Source: h.Source, NumHits: 1}
			order = append(order, h.Path)
			continue
		}
		r.NumHits++
		if h.Score > r.Score {
			r.Content = h.Content
			r.Score = h.Score
			r.Source = h.Source
		}
	}
	out := make([]Result, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// namedStream is one collapsed, per-file-deduplicated ranked list plus
// the MatchType it contributes when fused (Lexical for the FTS stream,
// Semantic for either vector stream).
type namedStream struct {
	results []Result
	match   MatchType
}

// fuseStreams applies Reciprocal Rank Fusion across every stream that
// contributed results for one modality (text or image): each stream is
// ranked independently, each path earns
// 1/(k+rank+1) per stream it appears in, a path seen under more than one
// distinct MatchType becomes Hybrid, NumHits accumulates across streams,
// and the surviving content is the single best-scoring chunk seen for
// that path across all streams.
//
// Determinism: ties are broken by path's natural (lexicographic) order,
// matching Testable Property 8/Scenario E's requirement that identical
// inputs reproduce identical output up to ties.
func fuseStreams(streams []namedStream) []Result {
	type accum struct {
		path      string
		content   string
		bestScore float64
		fused     float64
		numHits   int
		matches   map[MatchType]bool
	}
	byPath := make(map[string]*accum)
	order := make([]string, 0)

	for _, s := range streams {
		for rank, r := range s.results {
			a, ok := byPath[r.Path]
			if !ok {
				a = &accum{path: r.Path, content: r.Content, bestScore: r.Score, matches: map[MatchType]bool{}}
				byPath[r.Path] = a
				order = append(order, r.Path)
			}
			a.fused += 1.0 / float64(rrfK+rank+1)
			a.numHits += r.NumHits
			a.matches[s.match] = true
			if r.Score > a.bestScore {
				a.bestScore = r.Score
				a.content = r.Content
			}
		}
	}

	out := make([]Result, 0, len(order))
	for _, p := range order {
		a := byPath[p]
		mt := soleMatchType(a.matches)
		out = append(out, Result{
			Path:      a.path,
			Content:   a.content,
			Score:     a.fused,
			MatchType: mt,
			NumHits:   a.numHits,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// soleMatchType returns the single MatchType a path was seen under, or
// Hybrid if it was seen under more than one.
func soleMatchType(matches map[MatchType]bool) MatchType {
	if len(matches) > 1 {
		return MatchHybrid
	}
	for mt := range matches {
		return mt
	}
	return MatchHybrid
}
