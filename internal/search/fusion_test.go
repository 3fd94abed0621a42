package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollapseStreamAccumulatesHitsAndKeepsBestContent(t *testing.T) {
	hits := []streamHit{
		{Path: "a.txt", Content: "low", Score: 0.2, Source: SourceEmbed},
		{Path: "a.txt", Content: "high", Score: 0.9, Source: SourceEmbed},
		{Path: "b.txt", Content: "only", Score: 0.5, Source: SourceEmbed},
	}
	out := collapseStream(hits)
	require.Len(t, out, 2)

	var a, b *Result
	for i := range out {
		switch out[i].Path {
		case "a.txt":
			a = &out[i]
		case "b.txt":
			b = &out[i]
		}
	}
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, 2, a.NumHits)
	assert.Equal(t, "high", a.Content)
	assert.Equal(t, 0.9, a.Score)
	assert.Equal(t, 1, b.NumHits)
}

func TestFuseStreamsSingleStreamScoreIsOneOverKPlusOne(t *testing.T) {
	lexical := namedStream{
		results: []Result{{Path: "a.txt", Content: "x", Score: 1.0, NumHits: 1}},
		match:   MatchLexical,
	}
	semantic := namedStream{
		results: []Result{{Path: "b.txt", Content: "y", Score: 0.8, NumHits: 1}},
		match:   MatchSemantic,
	}
	out := fuseStreams([]namedStream{lexical, semantic})
	require.Len(t, out, 2)

	byPath := map[string]Result{}
	for _, r := range out {
		byPath[r.Path] = r
	}
	assert.InDelta(t, 1.0/61.0, byPath["a.txt"].Score, 1e-9)
	assert.Equal(t, MatchLexical, byPath["a.txt"].MatchType)
	assert.InDelta(t, 1.0/61.0, byPath["b.txt"].Score, 1e-9)
	assert.Equal(t, MatchSemantic, byPath["b.txt"].MatchType)
}

func TestFuseStreamsHybridWhenPathAppearsInBothMatchTypes(t *testing.T) {
	lexical := namedStream{
		results: []Result{{Path: "a.txt", Content: "x", Score: 1.0, NumHits: 1}},
		match:   MatchLexical,
	}
	semantic := namedStream{
		results: []Result{{Path: "a.txt", Content: "x", Score: 0.9, NumHits: 1}},
		match:   MatchSemantic,
	}
	out := fuseStreams([]namedStream{lexical, semantic})
	require.Len(t, out, 1)
	assert.Equal(t, MatchHybrid, out[0].MatchType)
	assert.InDelta(t, 2.0/61.0, out[0].Score, 1e-9)
	assert.Equal(t, 2, out[0].NumHits)
}

func TestFuseStreamsTieBreaksByPath(t *testing.T) {
	// Each path is rank 0 of its own stream, so both fuse to 1/61 and tie.
	s1 := namedStream{
		results: []Result{{Path: "z.txt", Score: 1.0, NumHits: 1}},
		match:   MatchLexical,
	}
	s2 := namedStream{
		results: []Result{{Path: "a.txt", Score: 1.0, NumHits: 1}},
		match:   MatchLexical,
	}
	out := fuseStreams([]namedStream{s1, s2})
	require.Len(t, out, 2)
	assert.Equal(t, "a.txt", out[0].Path)
	assert.Equal(t, "z.txt", out[1].Path)
}
