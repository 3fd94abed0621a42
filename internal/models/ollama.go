package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Ollama API defaults. The HTTP client is generalized from a
// code-embedding-only client to the two backend families nook's config
// names: text_model_name (embedder) and lms_model_name/openai_model_name
// (chat). Both talk to the same local Ollama daemon over its REST API.
const (
	DefaultOllamaHost    = "http://localhost:11434"
	ollamaConnectTimeout = 5 * time.Second
	ollamaRequestTimeout = 30 * time.Second
	ollamaMaxRetries     = 3
)

// OllamaConfig configures both Ollama-backed backends.
type OllamaConfig struct {
	Host       string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func (c OllamaConfig) withDefaults() OllamaConfig {
	if c.Host == "" {
		c.Host = DefaultOllamaHost
	}
	if c.Timeout <= 0 {
		c.Timeout = ollamaRequestTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = ollamaMaxRetries
	}
	return c
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaEmbedder is a text Embedder backed by a local Ollama daemon's
// /api/embed endpoint. It implements the same Load/Unload/Loaded lifecycle
// as the static fakes, so the orchestrator's model-gating table treats it
// identically: Load health-checks the daemon and leaves the backend
// unloaded (not failed) if Ollama is not reachable.
type OllamaEmbedder struct {
	client *http.Client
	cfg    OllamaConfig
	dims   int

	mu     sync.RWMutex
	loaded bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder returns an unloaded Ollama-backed text embedder.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	cfg = cfg.withDefaults()
	return &OllamaEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		dims:   StaticDimensions,
	}
}

func (e *OllamaEmbedder) Load(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, ollamaConnectTimeout)
	defer cancel()

	dims, err := e.detectDimensions(checkCtx)
	if err != nil {
		return fmt.Errorf("ollama embedder unavailable: %w", err)
	}

	e.mu.Lock()
	e.dims = dims
	e.loaded = true
	e.mu.Unlock()
	return nil
}

func (e *OllamaEmbedder) Unload(_ context.Context) error {
	e.mu.Lock()
	e.loaded = false
	e.mu.Unlock()
	return nil
}

func (e *OllamaEmbedder) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

func (e *OllamaEmbedder) ModelName() string { return e.cfg.Model }

func (e *OllamaEmbedder) Capabilities() Capability { return CapTextEmbed }

func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.doEmbedWithRetry(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp))
	for i, v := range resp {
		out[i] = normalizeVector(toFloat32(v))
	}
	return out, nil
}

func (e *OllamaEmbedder) detectDimensions(ctx context.Context) (int, error) {
	resp, err := e.doEmbed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(resp) == 0 || len(resp[0]) == 0 {
		return 0, fmt.Errorf("empty embedding returned")
	}
	return len(resp[0]), nil
}

func (e *OllamaEmbedder) doEmbedWithRetry(ctx context.Context, texts []string) ([][]float64, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<uint(attempt)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		out, err := e.doEmbed(ctx, texts)
		if err == nil {
			return out, nil
		}
		lastErr = err
		slog.Debug("ollama embed attempt failed", slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
	}
	return nil, fmt.Errorf("ollama embed failed after %d attempts: %w", e.cfg.MaxRetries, lastErr)
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float64, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embed status %d: %s", resp.StatusCode, string(b))
	}
	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	return out.Embeddings, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaChatOptions   `json:"options,omitempty"`
}

// ollamaChatOptions carries the sampling knobs config.Config exposes
// (llm_temperature); Ollama accepts these under the request's "options" key.
type ollamaChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

// OllamaChat is a ChatModel backed by a local Ollama daemon's /api/chat
// endpoint. It never claims vision capability: the
// multimodal chat path is left to a concrete vision-capable backend
// selected via llm_backend, which this module does not ship.
type OllamaChat struct {
	client *http.Client
	cfg    OllamaConfig

	mu     sync.RWMutex
	loaded bool
}

var _ ChatModel = (*OllamaChat)(nil)

func NewOllamaChat(cfg OllamaConfig) *OllamaChat {
	cfg = cfg.withDefaults()
	return &OllamaChat{client: &http.Client{Timeout: cfg.Timeout}, cfg: cfg}
}

func (c *OllamaChat) Load(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, ollamaConnectTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.cfg.Host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama chat unavailable: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama chat unavailable: status %d", resp.StatusCode)
	}
	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
	return nil
}

func (c *OllamaChat) Unload(_ context.Context) error {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
	return nil
}

func (c *OllamaChat) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *OllamaChat) ModelName() string { return c.cfg.Model }

func (c *OllamaChat) Capabilities() Capability { return CapChat }

func (c *OllamaChat) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, temperature)
}

// CompleteWithImage is accepted to satisfy the ChatModel surface but this
// reference backend has no vision model wired; it falls back to text-only
// completion, matching the CapVision=0 it reports.
func (c *OllamaChat) CompleteWithImage(ctx context.Context, systemPrompt, userPrompt string, _ []byte, temperature float64) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, temperature)
}

func (c *OllamaChat) complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	messages := []ollamaChatMessage{}
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(ollamaChatRequest{Model: c.cfg.Model, Messages: messages, Stream: false, Options: ollamaChatOptions{Temperature: temperature}})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama chat status %d: %s", resp.StatusCode, string(b))
	}
	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return out.Message.Content, nil
}
