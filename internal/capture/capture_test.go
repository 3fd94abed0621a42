package capture

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nook-dev/nook/internal/models"
)

func TestCapturerLoadUnloadIdempotent(t *testing.T) {
	dir := t.TempDir()
	c := New(NewFakeGrabber(), Config{Folder: dir, Interval: time.Hour}, nil)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Load(ctx))
	assert.True(t, c.Loaded())

	require.NoError(t, c.Unload(ctx))
	require.NoError(t, c.Unload(ctx))
	assert.False(t, c.Loaded())
}

func TestCapturerCapabilitiesAndModelName(t *testing.T) {
	c := New(NewFakeGrabber(), Config{Folder: t.TempDir()}, nil)
	assert.Equal(t, models.CapScreenshot, c.Capabilities())
	assert.NotEmpty(t, c.ModelName())
}

func TestCapturerPersistsOnlyWhenFrameDiffers(t *testing.T) {
	dir := t.TempDir()
	grabber := NewFakeGrabber(
		SolidFrame(color.Gray{Y: 10}),
		SolidFrame(color.Gray{Y: 10}), // identical, should be skipped
		SolidFrame(color.Gray{Y: 250}), // very different, should persist
	)
	c := New(grabber, Config{Folder: dir, DiffThreshold: DefaultDiffThreshold}, nil)
	ctx := context.Background()

	c.captureOnce(ctx)
	c.captureOnce(ctx)
	c.captureOnce(ctx)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCapturerPruneRemovesOldFrames(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "screenshot-old.jpg")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	oldTime := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, oldTime, oldTime))

	recent := filepath.Join(dir, "screenshot-recent.jpg")
	require.NoError(t, os.WriteFile(recent, []byte("y"), 0o644))

	c := New(NewFakeGrabber(), Config{Folder: dir, Retention: 9 * 24 * time.Hour}, nil)
	c.pruneIfDue(time.Now())

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(recent)
	assert.NoError(t, err)
}

func TestCapturerPrunesAtMostOncePerHour(t *testing.T) {
	dir := t.TempDir()
	c := New(NewFakeGrabber(), Config{Folder: dir, Retention: time.Hour}, nil)

	now := time.Now()
	c.pruneIfDue(now)
	firstPrune := c.lastPrune

	c.pruneIfDue(now.Add(time.Minute))
	assert.Equal(t, firstPrune, c.lastPrune)
}

func TestGrayscaleThumbnailDimensions(t *testing.T) {
	img := SolidFrame(color.Gray{Y: 42})
	thumb := grayscaleThumbnail(img)
	assert.Len(t, thumb, thumbnailSize*thumbnailSize)
}

func TestMeanAbsDiff(t *testing.T) {
	a := []float64{0, 0, 0, 0}
	b := []float64{10, 10, 10, 10}
	assert.InDelta(t, 10, meanAbsDiff(a, b), 0.001)
	assert.InDelta(t, 0, meanAbsDiff(a, a), 0.001)
}
