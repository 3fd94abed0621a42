// Package orchestrator coordinates the four task pipelines (OCR, EMBED,
// EMBED_LLM, LLM) named by the store's TaskType enum against whichever
// model backends happen to be loaded. It owns a priority queue, a bounded
// worker pool, per-modality batching buffers, and a watchdog that fails
// jobs stuck past a timeout and always releases their worker slot exactly
// once, whether the job finished, errored, or timed out.
package orchestrator
