// Package capture implements the screen capturer: a periodic background
// loop that grabs the active monitor, keeps a frame only when it differs
// enough from the last persisted one, and prunes old frames on a
// retention schedule. It exposes the same Load/Unload/Loaded surface as
// a models.Backend so the orchestrator's availability story stays
// uniform across every backend family, including this auxiliary one.
package capture

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"github.com/nook-dev/nook/internal/apperrors"
	"github.com/nook-dev/nook/internal/models"
)

const (
	thumbnailSize = 50
	// DefaultDiffThreshold is the minimum mean per-pixel grayscale
	// difference (0-255 scale) required for a frame to be persisted.
	DefaultDiffThreshold = 2.0
)

// ScreenGrabber captures the monitor containing the cursor. It is a named
// external collaborator, like the OCR engine or embedder backends: the
// concrete per-OS implementation lives outside this module.
type ScreenGrabber interface {
	Grab(ctx context.Context) (image.Image, error)
}

// Config holds the capturer's tunables, sourced 1:1 from config.Config.
type Config struct {
	// Interval is the time between capture attempts.
	Interval time.Duration
	// Folder is the destination directory for persisted JPEG frames.
	Folder string
	// Retention is how long a persisted frame is kept before pruning.
	Retention time.Duration
	// DiffThreshold is the minimum mean grayscale delta (0-255) that
	// counts as "different enough" to persist a new frame.
	DiffThreshold float64
}

// Capturer is the periodic screen-capture loop. It satisfies
// models.Backend so it can be registered in the Model Registry under the
// "screenshotter" key, giving the orchestrator one uniform availability
// surface across every backend family.
type Capturer struct {
	grabber ScreenGrabber
	cfg     Config
	logger  *slog.Logger

	mu        sync.Mutex
	loaded    bool
	lastThumb []float64
	lastPrune time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New builds a Capturer around grabber. cfg.DiffThreshold falls back to
// DefaultDiffThreshold when unset.
func New(grabber ScreenGrabber, cfg Config, logger *slog.Logger) *Capturer {
	if cfg.DiffThreshold <= 0 {
		cfg.DiffThreshold = DefaultDiffThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 9 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{grabber: grabber, cfg: cfg, logger: logger}
}

// ModelName identifies this backend for stats/logging purposes; capture
// frames are not artifact rows so no model_name is ever persisted against
// them, unlike the other three backend families.
func (c *Capturer) ModelName() string { return "screen-capturer" }

// Capabilities reports this backend's single capability flag.
func (c *Capturer) Capabilities() models.Capability { return models.CapScreenshot }

// Loaded reports whether the capture loop is currently running.
func (c *Capturer) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Load starts the capture loop, idempotently: calling Load while already
// loaded is a no-op.
func (c *Capturer) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(c.cfg.Folder, 0o755); err != nil {
		c.mu.Unlock()
		return apperrors.New(apperrors.BackendFailure, "capture", "failed to create screenshot folder", err)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.loaded = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(loopCtx)
	}()
	return nil
}

// Unload stops the capture loop and waits for it to exit. Idempotent.
func (c *Capturer) Unload(_ context.Context) error {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.loaded = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return nil
}

// run is the capture loop. It wakes at most once a second so a stop
// signal is honored promptly even though the configured interval between
// frames may be much longer.
func (c *Capturer) run(ctx context.Context) {
	lastCapture := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
		now := time.Now()
		if now.Sub(lastCapture) < c.cfg.Interval {
			continue
		}
		lastCapture = now
		c.captureOnce(ctx)
		c.pruneIfDue(now)
	}
}

func (c *Capturer) captureOnce(ctx context.Context) {
	img, err := c.grabber.Grab(ctx)
	if err != nil {
		c.logger.Warn("screen grab failed", slog.String("error", err.Error()))
		return
	}
	thumb := grayscaleThumbnail(img)

	c.mu.Lock()
	last := c.lastThumb
	c.mu.Unlock()

	if last != nil && meanAbsDiff(last, thumb) <= c.cfg.DiffThreshold {
		return
	}

	if err := c.persist(img, time.Now()); err != nil {
		c.logger.Error("failed to persist screenshot", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	c.lastThumb = thumb
	c.mu.Unlock()
}

func (c *Capturer) persist(img image.Image, at time.Time) error {
	name := fmt.Sprintf("screenshot-%s.jpg", at.Format("20060102-150405.000"))
	path := filepath.Join(c.cfg.Folder, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 80})
}

// pruneIfDue deletes frames older than the retention window, at most once
// per hour.
func (c *Capturer) pruneIfDue(now time.Time) {
	c.mu.Lock()
	due := now.Sub(c.lastPrune) >= time.Hour
	if due {
		c.lastPrune = now
	}
	c.mu.Unlock()
	if !due {
		return
	}

	entries, err := os.ReadDir(c.cfg.Folder)
	if err != nil {
		c.logger.Warn("screenshot retention sweep failed to list folder", slog.String("error", err.Error()))
		return
	}
	cutoff := now.Add(-c.cfg.Retention)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(c.cfg.Folder, entry.Name()))
		}
	}
}

// grayscaleThumbnail downsamples img to a thumbnailSize x thumbnailSize
// grayscale pixel grid using a quality scaler, since the standard library
// has no resampling image scaler of its own.
func grayscaleThumbnail(img image.Image) []float64 {
	dst := image.NewGray(image.Rect(0, 0, thumbnailSize, thumbnailSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := make([]float64, thumbnailSize*thumbnailSize)
	for y := 0; y < thumbnailSize; y++ {
		for x := 0; x < thumbnailSize; x++ {
			g := dst.GrayAt(x, y)
			out[y*thumbnailSize+x] = float64(g.Y)
		}
	}
	return out
}

// meanAbsDiff returns the mean absolute per-pixel difference between two
// equal-length grayscale thumbnails, on the 0-255 scale.
func meanAbsDiff(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 255
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(len(a))
}
