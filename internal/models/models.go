// Package models is the backend registry: OCR, text/image embedding, chat
// (LLM), and screenshot-capture backends all share a common load/unload
// lifecycle and are looked up by name under a single registry.
package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Capability is a bitmask describing what a backend can do, replacing
// runtime type assertions against concrete backend types.
type Capability uint32

const (
	CapOCR Capability = 1 << iota
	CapTextEmbed
	CapImageEmbed
	CapChat
	CapVision
	CapScreenshot
)

// Backend is the lifecycle surface every model family implements.
type Backend interface {
	Load(ctx context.Context) error
	Unload(ctx context.Context) error
	Loaded() bool
	ModelName() string
	Capabilities() Capability
}

// Embedder produces vector embeddings for text or image inputs.
type Embedder interface {
	Backend
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// OCREngine extracts text content from image bytes.
type OCREngine interface {
	Backend
	ExtractText(ctx context.Context, imageData []byte) (string, error)
}

// ChatModel produces a text completion, optionally grounded on an image.
type ChatModel interface {
	Backend
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
	CompleteWithImage(ctx context.Context, systemPrompt, userPrompt string, imageData []byte, temperature float64) (string, error)
}

// Registry is the process-wide lookup of named backends, guarded by a
// single RWMutex since loads/unloads are infrequent relative to lookups.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds or replaces the backend under name.
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
}

// Get returns the backend registered under name.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Names returns every registered backend key in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByCapability returns every registered backend whose Capabilities include
// cap.
func (r *Registry) ByCapability(cap Capability) []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Backend
	for _, b := range r.backends {
		if b.Capabilities()&cap != 0 {
			out = append(out, b)
		}
	}
	return out
}

// LoadAll loads every registered backend that is not yet loaded, stopping
// and returning the first error encountered.
func (r *Registry) LoadAll(ctx context.Context) error {
	r.mu.RLock()
	backends := make([]Backend, 0, len(r.backends))
	for _, b := range r.backends {
		backends = append(backends, b)
	}
	r.mu.RUnlock()

	for _, b := range backends {
		if b.Loaded() {
			continue
		}
		if err := b.Load(ctx); err != nil {
			return fmt.Errorf("load backend %q: %w", b.ModelName(), err)
		}
	}
	return nil
}

// UnloadAll unloads every registered backend, collecting but not stopping
// on individual failures.
func (r *Registry) UnloadAll(ctx context.Context) error {
	r.mu.RLock()
	backends := make([]Backend, 0, len(r.backends))
	for _, b := range r.backends {
		backends = append(backends, b)
	}
	r.mu.RUnlock()

	var firstErr error
	for _, b := range backends {
		if !b.Loaded() {
			continue
		}
		if err := b.Unload(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unload backend %q: %w", b.ModelName(), err)
		}
	}
	return firstErr
}
