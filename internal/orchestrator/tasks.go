package orchestrator

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/nook-dev/nook/internal/apperrors"
	"github.com/nook-dev/nook/internal/models"
	"github.com/nook-dev/nook/internal/parser"
	"github.com/nook-dev/nook/internal/store"
)

// execOCR runs the OCR pipeline for one job: read the image, transcribe it,
// and persist the transcript. An empty transcript is stored as a single
// space so the FTS index always has a row to match against.
func (o *Orchestrator) execOCR(ctx context.Context, job Job) {
	backend, ok := o.registry.Get("ocr")
	if !ok || !backend.Loaded() {
		return
	}
	engine, ok := backend.(models.OCREngine)
	if !ok {
		o.logger.Error("ocr backend does not implement OCREngine", slog.String("path", job.Path))
		return
	}

	data, err := o.files.ReadFile(job.Path)
	if err != nil {
		o.failTask(ctx, job.Path, store.TaskOCR, err)
		return
	}

	text, err := engine.ExtractText(ctx, data)
	if err != nil {
		o.failTask(ctx, job.Path, store.TaskOCR, err)
		return
	}
	if strings.TrimSpace(text) == "" {
		text = " "
	}

	if err := o.store.SaveOCR(ctx, job.Path, text, backend.ModelName()); err != nil {
		o.failTask(ctx, job.Path, store.TaskOCR, err)
		return
	}
	if err := o.store.MarkCompleted(ctx, job.Path, store.TaskOCR); err != nil {
		o.logger.Error("ocr: mark_completed failed", slog.String("path", job.Path), slog.String("error", err.Error()))
	}
}

// execLLM runs the LLM description pipeline for one job, then fans out a
// follow-on EMBED_LLM task at PriorityResume so the description becomes
// searchable without waiting for the next reconciliation pass.
func (o *Orchestrator) execLLM(ctx context.Context, job Job) {
	backend, ok := o.registry.Get("llm")
	if !ok || !backend.Loaded() {
		return
	}
	chat, ok := backend.(models.ChatModel)
	if !ok {
		o.logger.Error("llm backend does not implement ChatModel", slog.String("path", job.Path))
		return
	}

	var (
		text string
		err  error
	)
	if o.isImagePath(job.Path) {
		data, readErr := o.files.ReadFile(job.Path)
		if readErr != nil {
			o.failTask(ctx, job.Path, store.TaskLLM, readErr)
			return
		}
		text, err = chat.CompleteWithImage(ctx, o.llmSystemPrompt(), job.Path, data, o.cfg.LLMTemperature)
	} else {
		data, readErr := o.files.ReadFile(job.Path)
		if readErr != nil {
			o.failTask(ctx, job.Path, store.TaskLLM, readErr)
			return
		}
		text, err = chat.Complete(ctx, o.llmSystemPrompt(), string(data), o.cfg.LLMTemperature)
	}
	if err != nil {
		o.failTask(ctx, job.Path, store.TaskLLM, err)
		return
	}

	if err := o.store.SaveLLM(ctx, job.Path, text, backend.ModelName()); err != nil {
		o.failTask(ctx, job.Path, store.TaskLLM, err)
		return
	}
	if err := o.store.MarkCompleted(ctx, job.Path, store.TaskLLM); err != nil {
		o.logger.Error("llm: mark_completed failed", slog.String("path", job.Path), slog.String("error", err.Error()))
		return
	}

	_, mtime, statErr := o.files.Stat(job.Path)
	if statErr != nil {
		// Source vanished between completion and fan-out: the follow-on
		// EMBED_LLM row would have no file backing it, so skip it silently.
		return
	}
	if err := o.Submit(ctx, store.TaskEmbedLLM, job.Path, PriorityResume, mtime); err != nil {
		o.logger.Error("llm: fan-out embed_llm submit failed", slog.String("path", job.Path), slog.String("error", err.Error()))
	}
}

const llmSystemPromptDefault = "Describe the contents of this file for a personal search index."

// llmSystemPrompt returns the configured system prompt, falling back to a
// reasonable default when Config.LLMSystemPrompt is unset (e.g. in tests
// that construct an orchestrator.Config by hand).
func (o *Orchestrator) llmSystemPrompt() string {
	if o.cfg.LLMSystemPrompt != "" {
		return o.cfg.LLMSystemPrompt
	}
	return llmSystemPromptDefault
}

// execEmbedLLM embeds a file's previously generated LLM description, storing
// it under chunk_index -1, distinguishing description embeddings from
// content chunks.
func (o *Orchestrator) execEmbedLLM(ctx context.Context, job Job) {
	backend, ok := o.registry.Get("text")
	if !ok || !backend.Loaded() {
		return
	}
	embedder, ok := backend.(models.Embedder)
	if !ok {
		o.logger.Error("text backend does not implement Embedder", slog.String("path", job.Path))
		return
	}

	text, found, err := o.store.GetLLM(ctx, job.Path)
	if err != nil {
		o.failTask(ctx, job.Path, store.TaskEmbedLLM, err)
		return
	}
	if !found {
		o.failTask(ctx, job.Path, store.TaskEmbedLLM, apperrors.New(apperrors.DataInvalid, "orchestrator", "no llm description to embed", nil))
		return
	}

	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		o.failTask(ctx, job.Path, store.TaskEmbedLLM, err)
		return
	}

	row := store.EmbeddingRow{Path: job.Path, ChunkIndex: -1, Text: text, Vector: vec, ModelName: backend.ModelName()}
	if err := o.store.SaveEmbeddings(ctx, []store.EmbeddingRow{row}); err != nil {
		o.failTask(ctx, job.Path, store.TaskEmbedLLM, err)
		return
	}
	if err := o.store.MarkCompleted(ctx, job.Path, store.TaskEmbedLLM); err != nil {
		o.logger.Error("embed_llm: mark_completed failed", slog.String("path", job.Path), slog.String("error", err.Error()))
	}
}

// execEmbedTextBatch chunks and embeds every text file in the batch in one
// EmbedBatch call, one backend call per batch. Files that yield zero
// usable chunks (gibberish, empty) fail individually rather than failing
// the whole batch.
func (o *Orchestrator) execEmbedTextBatch(ctx context.Context, jobs []Job) {
	backend, ok := o.registry.Get("text")
	if !ok || !backend.Loaded() {
		return
	}
	embedder, ok := backend.(models.Embedder)
	if !ok {
		o.logger.Error("text backend does not implement Embedder")
		return
	}

	type pendingChunk struct {
		path       string
		chunkIndex int
		text       string
	}
	var pendingChunks []pendingChunk

	for _, j := range jobs {
		data, err := o.files.ReadFile(j.Path)
		if err != nil {
			o.failTask(ctx, j.Path, store.TaskEmbed, err)
			continue
		}
		ext := strings.ToLower(filepath.Ext(j.Path))
		chunks, err := o.facade.ExtractAndChunk(ctx, parser.FileInput{Path: j.Path, Content: data}, ext)
		if err != nil {
			o.failTask(ctx, j.Path, store.TaskEmbed, err)
			continue
		}
		if len(chunks) == 0 {
			o.failTask(ctx, j.Path, store.TaskEmbed, apperrors.New(apperrors.DataInvalid, "orchestrator", "no usable chunks extracted", nil))
			continue
		}
		for _, c := range chunks {
			pendingChunks = append(pendingChunks, pendingChunk{path: j.Path, chunkIndex: c.Index, text: c.Text})
		}
	}
	if len(pendingChunks) == 0 {
		return
	}

	texts := make([]string, len(pendingChunks))
	for i, c := range pendingChunks {
		texts[i] = c.text
	}

	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		seen := map[string]bool{}
		for _, c := range pendingChunks {
			if !seen[c.path] {
				seen[c.path] = true
				o.failTask(ctx, c.path, store.TaskEmbed, err)
			}
		}
		return
	}

	rows := make([]store.EmbeddingRow, len(pendingChunks))
	for i, c := range pendingChunks {
		rows[i] = store.EmbeddingRow{Path: c.path, ChunkIndex: c.chunkIndex, Text: c.text, Vector: vecs[i], ModelName: backend.ModelName()}
	}
	if err := o.store.SaveEmbeddings(ctx, rows); err != nil {
		seen := map[string]bool{}
		for _, c := range pendingChunks {
			if !seen[c.path] {
				seen[c.path] = true
				o.failTask(ctx, c.path, store.TaskEmbed, err)
			}
		}
		return
	}

	completed := map[string]bool{}
	for _, c := range pendingChunks {
		if completed[c.path] {
			continue
		}
		completed[c.path] = true
		if err := o.store.MarkCompleted(ctx, c.path, store.TaskEmbed); err != nil {
			o.logger.Error("embed: mark_completed failed", slog.String("path", c.path), slog.String("error", err.Error()))
		}
	}
}

// execEmbedImageBatch embeds raw image bytes directly (no text extraction),
// storing one row per file at chunk_index 0.
func (o *Orchestrator) execEmbedImageBatch(ctx context.Context, jobs []Job) {
	backend, ok := o.registry.Get("image")
	if !ok || !backend.Loaded() {
		return
	}
	embedder, ok := backend.(models.Embedder)
	if !ok {
		o.logger.Error("image backend does not implement Embedder")
		return
	}

	var (
		rows  []store.EmbeddingRow
		paths []string
	)
	for _, j := range jobs {
		data, err := o.files.ReadFile(j.Path)
		if err != nil {
			o.failTask(ctx, j.Path, store.TaskEmbed, err)
			continue
		}
		vec, err := embedder.Embed(ctx, string(data))
		if err != nil {
			o.failTask(ctx, j.Path, store.TaskEmbed, err)
			continue
		}
		rows = append(rows, store.EmbeddingRow{Path: j.Path, ChunkIndex: 0, Text: "", Vector: vec, ModelName: backend.ModelName()})
		paths = append(paths, j.Path)
	}
	if len(rows) == 0 {
		return
	}
	if err := o.store.SaveEmbeddings(ctx, rows); err != nil {
		for _, p := range paths {
			o.failTask(ctx, p, store.TaskEmbed, err)
		}
		return
	}
	for _, p := range paths {
		if err := o.store.MarkCompleted(ctx, p, store.TaskEmbed); err != nil {
			o.logger.Error("embed: mark_completed (image) failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}

// execDeleteBatch removes every path in the batch from the store in one
// call, relying on the store's cascading-delete triggers.
func (o *Orchestrator) execDeleteBatch(ctx context.Context, jobs []Job) {
	paths := make([]string, len(jobs))
	for i, j := range jobs {
		paths[i] = j.Path
	}
	if err := o.store.RemovePathsBulk(ctx, paths); err != nil {
		o.logger.Error("delete batch failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) failTask(ctx context.Context, path string, taskType store.TaskType, err error) {
	o.logger.Warn("task failed", slog.String("path", path), slog.String("task_type", string(taskType)), slog.String("error", err.Error()))
	if markErr := o.store.MarkFailed(ctx, path, taskType); markErr != nil {
		o.logger.Error("mark_failed itself failed", slog.String("path", path), slog.String("task_type", string(taskType)), slog.String("error", markErr.Error()))
	}
}
