package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nook-dev/nook/internal/store"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		TotalPaths: 3,
		Counts: map[store.TaskType]map[store.Status]int{
			store.TaskEmbed: {store.StatusDone: 2, store.StatusPending: 1},
			store.TaskOCR:   {store.StatusFailed: 1},
		},
		Backends: []BackendState{
			{Key: "text", Model: "static-hash-embedder", Loaded: true},
			{Key: "ocr", Model: "static-ocr", Loaded: false},
		},
		StoreBytes: 4096,
		QueueDepth: 2,
	}
}

func TestTaskTypesStableOrder(t *testing.T) {
	snap := sampleSnapshot()
	types := snap.TaskTypes()
	require.Len(t, types, 2)
	assert.Equal(t, store.TaskEmbed, types[0])
	assert.Equal(t, store.TaskOCR, types[1])
}

func TestStatusRender(t *testing.T) {
	var buf bytes.Buffer
	NewStatusRenderer(&buf, true).Render(sampleSnapshot())

	out := buf.String()
	assert.Contains(t, out, "indexed paths: 3")
	assert.Contains(t, out, "EMBED")
	assert.Contains(t, out, "done=2")
	assert.Contains(t, out, "pending=1")
	assert.Contains(t, out, "failed=1")
	assert.Contains(t, out, "4KiB")
	assert.Contains(t, out, "loaded")
	assert.Contains(t, out, "unloaded")
}

func TestStatusRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewStatusRenderer(&buf, true).RenderJSON(sampleSnapshot()))

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.TotalPaths)
	assert.Equal(t, 2, decoded.Counts[store.TaskEmbed][store.StatusDone])
	assert.Len(t, decoded.Backends, 2)
}
