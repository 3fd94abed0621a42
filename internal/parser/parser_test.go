package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerWindowingAndOverlap(t *testing.T) {
	text := strings.Join([]string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, " ")
	c := NewChunker(4, 2)
	chunks := c.Chunk(text)

	require.Len(t, chunks, 4)
	assert.Equal(t, "a b c d", chunks[0].Text)
	assert.Equal(t, "c d e f", chunks[1].Text)
	assert.Equal(t, "e f g h", chunks[2].Text)
	assert.Equal(t, "g h i j", chunks[3].Text)
}

func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := NewChunker(100, 10)
	chunks := c.Chunk("short text only")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text only", chunks[0].Text)
}

func TestChunkerEmptyText(t *testing.T) {
	c := NewChunker(10, 2)
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   "))
}

func TestChunkerOverlapClampedBelowSize(t *testing.T) {
	c := NewChunker(4, 10)
	assert.Equal(t, 3, c.overlap)
}

func TestGibberishFilterRejectsBinaryNoise(t *testing.T) {
	f := NewGibberishFilter()
	assert.True(t, f.IsGibberish("\x00\x01\x02\xff\xfe\xfd###@@@!!!"))
}

func TestGibberishFilterAcceptsProse(t *testing.T) {
	f := NewGibberishFilter()
	assert.False(t, f.IsGibberish("the quick brown fox jumps over the lazy dog"))
}

func TestGibberishFilterRejectsDegenerateRepetition(t *testing.T) {
	f := NewGibberishFilter()
	repeated := strings.Repeat("aaa ", 50)
	assert.True(t, f.IsGibberish(repeated))
}

func TestPlainTextExtractorRoundTrips(t *testing.T) {
	e := NewPlainTextExtractor(".txt")
	text, err := e.Extract(context.Background(), FileInput{Path: "a.txt", Content: []byte("hello there")})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestFacadeExtractAndChunkFiltersGibberish(t *testing.T) {
	facade := NewFacade(4, 1, NewPlainTextExtractor(".txt"))
	chunks, err := facade.ExtractAndChunk(context.Background(), FileInput{
		Path:    "a.txt",
		Content: []byte("the quick brown fox jumps over the lazy dog today"),
	}, ".txt")
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestFacadeUnsupportedExtension(t *testing.T) {
	facade := NewFacade(4, 1, NewPlainTextExtractor(".txt"))
	_, err := facade.ExtractAndChunk(context.Background(), FileInput{Path: "a.pdf"}, ".pdf")
	require.Error(t, err)
	var unsupported *ErrUnsupportedExtension
	assert.ErrorAs(t, err, &unsupported)
}
