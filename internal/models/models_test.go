package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryByCapability(t *testing.T) {
	r := NewRegistry()
	r.Register("text", NewStaticEmbedder())
	r.Register("ocr", NewStaticOCR())
	r.Register("chat", NewStaticChat())

	embedders := r.ByCapability(CapTextEmbed)
	require.Len(t, embedders, 1)
	assert.Equal(t, "static-hash-embed", embedders[0].ModelName())

	chat := r.ByCapability(CapVision)
	require.Len(t, chat, 1)
	assert.Equal(t, "static-chat", chat[0].ModelName())
}

func TestRegistryLoadUnloadAll(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	e := NewStaticEmbedder()
	_ = e.Unload(ctx)
	r.Register("text", e)

	require.NoError(t, r.LoadAll(ctx))
	assert.True(t, e.Loaded())

	require.NoError(t, r.UnloadAll(ctx))
	assert.False(t, e.Loaded())
}

func TestStaticEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()

	v1, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	v3, err := e.Embed(ctx, "something else entirely")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	e := NewStaticEmbedder()
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, v, StaticDimensions)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestStaticEmbedderNotLoaded(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Unload(context.Background()))
	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestCachedEmbedderHitsCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{Embedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(ctx, "repeat me")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "repeat me")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{Embedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)

	_, err := cached.Embed(ctx, "a")
	require.NoError(t, err)

	out, err := cached.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, inner.batchCalls)
}

type countingEmbedder struct {
	Embedder
	calls      int
	batchCalls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.Embedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	return c.Embedder.EmbedBatch(ctx, texts)
}

func TestStaticOCRIncludesByteCount(t *testing.T) {
	o := NewStaticOCR()
	text, err := o.ExtractText(context.Background(), []byte("abcd"))
	require.NoError(t, err)
	assert.Contains(t, text, "4 bytes")
}

func TestStaticChatCompleteWithImage(t *testing.T) {
	c := NewStaticChat()
	resp, err := c.CompleteWithImage(context.Background(), "sys", "describe this", []byte{1, 2, 3}, 0.2)
	require.NoError(t, err)
	assert.Contains(t, resp, "describe this")
	assert.Contains(t, resp, "3 image bytes")
}
