// Package config loads and persists nook's config.json, the single
// external knob surface.
package config

import (
	"bytes"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/natefinch/atomic"

	"github.com/nook-dev/nook/internal/apperrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the complete, flat configuration document persisted at
// <data-dir>/config.json. Field names match the JSON keys the document
// is serialized with; unknown keys in an on-disk file are ignored on
// load and missing keys fall back to Defaults().
type Config struct {
	SyncDirectories []string `json:"sync_directories"`

	BatchSize    int     `json:"batch_size"`
	ChunkSize    int     `json:"chunk_size"`
	ChunkOverlap int     `json:"chunk_overlap"`
	FlushTimeout float64 `json:"flush_timeout"`
	MaxWorkers   int     `json:"max_workers"`
	TaskTimeout  float64 `json:"task_timeout"`

	OCRBackend   string `json:"ocr_backend"`
	EmbedBackend string `json:"embed_backend"`
	LLMBackend   string `json:"llm_backend"`

	TextModelName   string `json:"text_model_name"`
	ImageModelName  string `json:"image_model_name"`
	LMSModelName    string `json:"lms_model_name"`
	OpenAIModelName string `json:"openai_model_name"`

	UseDrive bool `json:"use_drive"`
	UseCUDA  bool `json:"use_cuda"`

	NumResults int `json:"num_results"`

	TextExtensions  []string `json:"text_extensions"`
	ImageExtensions []string `json:"image_extensions"`

	IgnoredFolders    []string `json:"ignored_folders"`
	SkipHiddenFolders bool     `json:"skip_hidden_folders"`

	ScreenshotInterval     int    `json:"screenshot_interval"`
	ScreenshotFolder       string `json:"screenshot_folder"`
	DeleteScreenshotsAfter int    `json:"delete_screenshots_after"`

	LLMContextLength  int     `json:"llm_context_length"`
	LLMImageTokenCost int     `json:"llm_image_token_cost"`
	LLMTemperature    float64 `json:"llm_temperature"`
	LLMSystemPrompt   string  `json:"llm_system_prompt"`
}

// Defaults returns the documented fallback for every key.
func Defaults(dataDir string) Config {
	return Config{
		SyncDirectories: []string{filepath.Join(dataDir, "Screenshots")},
		BatchSize:       16,
		ChunkSize:       1024,
		ChunkOverlap:    64,
		FlushTimeout:    5.0,
		MaxWorkers:      6,
		TaskTimeout:     300.0,
		OCRBackend:      "windows",
		EmbedBackend:    "sentence-transformers",
		TextModelName:   "BAAI/bge-small-en-v1.5",
		ImageModelName:  "clip-ViT-B-32",
		LLMBackend:      "lm-studio",
		LMSModelName:    "gemma-3-4b-it@q4_k_s",
		OpenAIModelName: "gpt-4.1",
		UseDrive:        true,
		UseCUDA:         true,
		NumResults:      30,
		TextExtensions:  []string{".txt", ".md", ".pdf", ".docx", ".gdoc"},
		ImageExtensions: []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".heic", ".heif", ".tif", ".tiff", ".bmp", ".ico"},
		IgnoredFolders:         []string{".git", "node_modules", "__pycache__", ".cache"},
		SkipHiddenFolders:      true,
		ScreenshotInterval:     15,
		ScreenshotFolder:       filepath.Join(dataDir, "Screenshots"),
		DeleteScreenshotsAfter: 9,
		LLMContextLength:       8192,
		LLMImageTokenCost:      768,
		LLMTemperature:         0.2,
		LLMSystemPrompt:        "You are a concise local document analyst. Summarize the content factually in 2-4 sentences.",
	}
}

// Path returns the config.json path under a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, "config.json")
}

// Load reads config.json from dataDir. If the file is missing it writes
// Defaults(dataDir) and returns it. If the file is present but malformed
// it returns a ConfigError alongside defaults, without touching the file
// on disk.
func Load(dataDir string) (Config, error) {
	path := Path(dataDir)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		defaults := Defaults(dataDir)
		if werr := Save(dataDir, defaults); werr != nil {
			return defaults, werr
		}
		return defaults, nil
	}
	if err != nil {
		return Defaults(dataDir), apperrors.New(apperrors.ConfigError, "config", "failed to read config.json", err)
	}

	cfg := Defaults(dataDir)
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Defaults(dataDir), apperrors.New(apperrors.ConfigError, "config", "config.json is corrupted, using defaults", err)
	}
	applyMissingDefaults(&cfg, dataDir)
	return cfg, nil
}

// applyMissingDefaults fills zero-value fields with defaults so an older,
// partially-populated config.json still produces a usable Config.
func applyMissingDefaults(cfg *Config, dataDir string) {
	d := Defaults(dataDir)
	if len(cfg.SyncDirectories) == 0 {
		cfg.SyncDirectories = d.SyncDirectories
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = d.ChunkSize
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = d.ChunkOverlap
	}
	if cfg.FlushTimeout == 0 {
		cfg.FlushTimeout = d.FlushTimeout
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = d.MaxWorkers
	}
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = d.TaskTimeout
	}
	if cfg.OCRBackend == "" {
		cfg.OCRBackend = d.OCRBackend
	}
	if cfg.EmbedBackend == "" {
		cfg.EmbedBackend = d.EmbedBackend
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = d.LLMBackend
	}
	if cfg.TextModelName == "" {
		cfg.TextModelName = d.TextModelName
	}
	if cfg.ImageModelName == "" {
		cfg.ImageModelName = d.ImageModelName
	}
	if cfg.NumResults == 0 {
		cfg.NumResults = d.NumResults
	}
	if len(cfg.TextExtensions) == 0 {
		cfg.TextExtensions = d.TextExtensions
	}
	if len(cfg.ImageExtensions) == 0 {
		cfg.ImageExtensions = d.ImageExtensions
	}
	if cfg.ScreenshotInterval == 0 {
		cfg.ScreenshotInterval = d.ScreenshotInterval
	}
	if cfg.ScreenshotFolder == "" {
		cfg.ScreenshotFolder = d.ScreenshotFolder
	}
	if cfg.DeleteScreenshotsAfter == 0 {
		cfg.DeleteScreenshotsAfter = d.DeleteScreenshotsAfter
	}
}

// Save writes cfg to <dataDir>/config.json atomically: the document is
// written to a temp file in the same directory and renamed into place, so
// a crash mid-write never leaves a truncated config.json behind.
func Save(dataDir string, cfg Config) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return apperrors.New(apperrors.ConfigError, "config", "failed to create data directory", err)
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return apperrors.New(apperrors.ConfigError, "config", "failed to marshal config", err)
	}
	if err := atomic.WriteFile(Path(dataDir), bytes.NewReader(data)); err != nil {
		return apperrors.New(apperrors.ConfigError, "config", "failed to write config.json", err)
	}
	return nil
}
