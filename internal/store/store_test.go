package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "app.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	// Let the background integrity sweep settle before assertions run.
	time.Sleep(50 * time.Millisecond)
	return s
}

func TestUpsertTaskMonotonicMtime(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskEmbed, StatusPending, 100.5))
	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskEmbed, StatusDone, 0))

	states, err := s.ListFileStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.5, states["/a.txt"])
}

func TestUpsertTaskAlwaysOverwritesStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskEmbed, StatusPending, 1))
	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskEmbed, StatusFailed, 0))

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSaveEmbeddingsAndSearchIndexInvariant(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskEmbed, StatusPending, 1))
	rows := []EmbeddingRow{
		{Path: "/a.txt", ChunkIndex: 0, Text: "alpha beta", Vector: []float32{1, 0}, ModelName: "m1"},
		{Path: "/a.txt", ChunkIndex: 1, Text: "gamma delta", Vector: []float32{0, 1}, ModelName: "m1"},
	}
	require.NoError(t, s.SaveEmbeddings(ctx, rows))

	results, err := s.SearchLexical(ctx, "alpha", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "embed", results[0].Source)
	assert.Equal(t, "/a.txt", results[0].Path)

	fetched, err := s.EmbeddingsByModel(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, fetched, 2)
}

func TestSaveEmbeddingsBitExactRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	vec := []float32{0.125, -0.25, 3.5, 0}
	require.NoError(t, s.SaveEmbeddings(ctx, []EmbeddingRow{{Path: "/a.txt", ChunkIndex: 0, Text: "x", Vector: vec, ModelName: "m1"}}))

	fetched, err := s.EmbeddingsByModel(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, vec, fetched[0].Vector)
}

func TestSaveEmbeddingsSignClassDiscrimination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveEmbeddings(ctx, []EmbeddingRow{{Path: "/a.txt", ChunkIndex: 0, Text: "content chunk", Vector: []float32{1}, ModelName: "m1"}}))
	require.NoError(t, s.SaveEmbeddings(ctx, []EmbeddingRow{{Path: "/a.txt", ChunkIndex: -1, Text: "summary", Vector: []float32{2}, ModelName: "m1"}}))

	fetched, err := s.EmbeddingsByModel(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, fetched, 2, "content chunk and summary embedding must coexist")

	// Re-saving a new content chunk must not disturb the summary row.
	require.NoError(t, s.SaveEmbeddings(ctx, []EmbeddingRow{{Path: "/a.txt", ChunkIndex: 0, Text: "updated chunk", Vector: []float32{3}, ModelName: "m1"}}))
	fetched, err = s.EmbeddingsByModel(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, fetched, 2)
}

func TestRemovePathsBulkCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskEmbed, StatusDone, 1))
	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskOCR, StatusDone, 1))
	require.NoError(t, s.SaveEmbeddings(ctx, []EmbeddingRow{{Path: "/a.txt", ChunkIndex: 0, Text: "x", Vector: []float32{1}, ModelName: "m1"}}))
	require.NoError(t, s.SaveOCR(ctx, "/a.txt", "scanned text", "ocr-model"))
	require.NoError(t, s.SaveLLM(ctx, "/a.txt", "summary", "llm-model"))

	require.NoError(t, s.RemovePathsBulk(ctx, []string{"/a.txt"}))

	states, err := s.ListFileStates(ctx)
	require.NoError(t, err)
	assert.NotContains(t, states, "/a.txt")

	results, err := s.SearchLexical(ctx, "scanned", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, ok, err := s.GetLLM(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetryAllFailed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskLLM, StatusFailed, 1))
	require.NoError(t, s.RetryAllFailed(ctx))

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TaskLLM, pending[0].TaskType)
}

func TestResetServiceLLMCascadesToEmbedLLM(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskLLM, StatusDone, 1))
	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskEmbedLLM, StatusDone, 1))
	require.NoError(t, s.SaveLLM(ctx, "/a.txt", "summary text", "llm-model"))
	require.NoError(t, s.SaveEmbeddings(ctx, []EmbeddingRow{{Path: "/a.txt", ChunkIndex: -1, Text: "summary text", Vector: []float32{1}, ModelName: "m1"}}))

	require.NoError(t, s.ResetService(ctx, ServiceLLM))

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	types := map[TaskType]bool{}
	for _, p := range pending {
		types[p.TaskType] = true
	}
	assert.True(t, types[TaskLLM])
	assert.True(t, types[TaskEmbedLLM])

	_, ok, err := s.GetLLM(ctx, "/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskEmbed, StatusDone, 1))
	require.NoError(t, s.UpsertTask(ctx, "/b.txt", TaskEmbed, StatusPending, 1))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counts[TaskEmbed][StatusDone])
	assert.Equal(t, 1, stats.Counts[TaskEmbed][StatusPending])
	assert.Equal(t, 2, stats.TotalPaths)
}

func TestIntegrityZombieReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// A DONE task with no backing artifact is a zombie; the background
	// sweep should have reset it to PENDING by the time newTestStore
	// returns, but we also invoke it synchronously here for determinism.
	require.NoError(t, s.UpsertTask(ctx, "/a.txt", TaskEmbed, StatusDone, 1))
	require.NoError(t, s.resetZombies(ctx))

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestIntegrityOrphanPurge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveOCR(ctx, "/orphan.png", "text with no task", "ocr-model"))
	require.NoError(t, s.purgeOrphans(ctx))

	results, err := s.SearchLexical(ctx, "orphan", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
