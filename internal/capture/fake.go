package capture

import (
	"context"
	"image"
	"image/color"
	"sync"
)

// FakeGrabber is a deterministic in-memory ScreenGrabber for tests: it
// returns frames from a caller-supplied sequence, repeating the last one
// once the sequence is exhausted, mirroring the role of StaticEmbedder and
// StaticOCR for the other backend families.
type FakeGrabber struct {
	mu     sync.Mutex
	frames []image.Image
	idx    int
}

// NewFakeGrabber returns a FakeGrabber that yields frames in order.
func NewFakeGrabber(frames ...image.Image) *FakeGrabber {
	return &FakeGrabber{frames: frames}
}

// Grab returns the next queued frame, or a uniform mid-gray frame if none
// were supplied.
func (f *FakeGrabber) Grab(_ context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return SolidFrame(color.Gray{Y: 128}), nil
	}
	i := f.idx
	if i >= len(f.frames) {
		i = len(f.frames) - 1
	} else {
		f.idx++
	}
	return f.frames[i], nil
}

// SolidFrame builds a small uniform-color frame, useful for constructing
// deterministic FakeGrabber sequences in tests.
func SolidFrame(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}
