package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderListEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewResultsRenderer(&buf, true).RenderList("Text", nil)
	assert.Contains(t, buf.String(), "no matches")
}

func TestRenderListRows(t *testing.T) {
	var buf bytes.Buffer
	hits := []Hit{
		{Path: "/notes/foo.md", Score: 0.0328, MatchType: "Hybrid", Source: "embed", NumHits: 3, Preview: "alpha  beta\n gamma"},
		{Path: "/img/p.png", Score: 0.0161, MatchType: "Semantic", Source: "ocr", NumHits: 1},
	}
	NewResultsRenderer(&buf, true).RenderList("Text", hits)

	out := buf.String()
	assert.Contains(t, out, "Text (2)")
	assert.Contains(t, out, "/notes/foo.md")
	assert.Contains(t, out, "0.0328 embed x3")
	assert.Contains(t, out, "alpha beta gamma", "preview whitespace should be collapsed")
	assert.Contains(t, out, "0.0161 ocr")
	assert.NotContains(t, out, "x1", "single-hit rows omit the multiplier")
}

func TestClampPreview(t *testing.T) {
	long := strings.Repeat("word ", 60)
	clamped := clampPreview(long)
	assert.LessOrEqual(t, len(clamped), previewLimit+len("…"))
	assert.True(t, strings.HasSuffix(clamped, "…"))
	assert.Equal(t, "", clampPreview("  \n\t "))
}
