package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/nook-dev/nook/internal/store"
)

// batchBuffers holds the three per-modality batch buffers: text EMBED,
// image EMBED, and DELETE. Mutated only from the dispatcher
// goroutine via appendEmbed/appendDelete/flushStale, except for the size
// check which takes the buffer's own lock so a flush triggered by
// batch_size can run concurrently with the dispatcher queuing the next job.
type batchBuffers struct {
	o *Orchestrator

	text  *jobBuffer
	image *jobBuffer
	del   *jobBuffer
}

type jobBuffer struct {
	mu         sync.Mutex
	jobs       []Job
	oldestPush time.Time // time of the first push since the last drain
}

func newBatchBuffers(o *Orchestrator) batchBuffers {
	return batchBuffers{o: o, text: &jobBuffer{}, image: &jobBuffer{}, del: &jobBuffer{}}
}

func (b *batchBuffers) appendEmbed(ctx context.Context, job Job) {
	buf := b.text
	if b.o.isImagePath(job.Path) {
		buf = b.image
	}
	b.push(ctx, buf, job, b.flushEmbed)
}

func (b *batchBuffers) appendDelete(ctx context.Context, job Job) {
	b.push(ctx, b.del, job, b.flushDelete)
}

func (b *batchBuffers) push(ctx context.Context, buf *jobBuffer, job Job, flush func(context.Context, []Job)) {
	buf.mu.Lock()
	if len(buf.jobs) == 0 {
		buf.oldestPush = time.Now()
	}
	buf.jobs = append(buf.jobs, job)
	full := len(buf.jobs) >= b.o.cfg.BatchSize
	var drained []Job
	if full {
		drained = buf.jobs
		buf.jobs = nil
	}
	buf.mu.Unlock()

	if full {
		b.o.wg.Add(1)
		go func() {
			defer b.o.wg.Done()
			flush(ctx, drained)
		}()
	}
}

// flushStale drains any buffer whose oldest unflushed push is older than
// maxAge, regardless of size, matching the configured flush timeout.
func (b *batchBuffers) flushStale(ctx context.Context, maxAge time.Duration) {
	b.drainIfStale(ctx, b.text, maxAge, b.flushEmbed)
	b.drainIfStale(ctx, b.image, maxAge, b.flushEmbed)
	b.drainIfStale(ctx, b.del, maxAge, b.flushDelete)
}

func (b *batchBuffers) drainIfStale(ctx context.Context, buf *jobBuffer, maxAge time.Duration, flush func(context.Context, []Job)) {
	buf.mu.Lock()
	if len(buf.jobs) == 0 || time.Since(buf.oldestPush) < maxAge {
		buf.mu.Unlock()
		return
	}
	drained := buf.jobs
	buf.jobs = nil
	buf.mu.Unlock()

	b.o.wg.Add(1)
	go func() {
		defer b.o.wg.Done()
		flush(ctx, drained)
	}()
}

// flushEmbed executes one batch of EMBED jobs (all text, or all image) under
// a freshly acquired semaphore slot: a batch flush spawned off the
// dispatcher's hot path still competes for a worker slot.
func (b *batchBuffers) flushEmbed(ctx context.Context, jobs []Job) {
	if len(jobs) == 0 {
		return
	}
	if err := b.o.sem.Acquire(ctx, 1); err != nil {
		return
	}

	keys := make([]store.TaskKey, len(jobs))
	for i, j := range jobs {
		keys[i] = store.TaskKey{Path: j.Path, TaskType: store.TaskEmbed}
	}
	_, finish := b.o.active.register(keys, func() { b.o.sem.Release(1) })
	defer finish()

	if b.o.isImagePath(jobs[0].Path) {
		b.o.execEmbedImageBatch(ctx, jobs)
	} else {
		b.o.execEmbedTextBatch(ctx, jobs)
	}
}

func (b *batchBuffers) flushDelete(ctx context.Context, jobs []Job) {
	if len(jobs) == 0 {
		return
	}
	if err := b.o.sem.Acquire(ctx, 1); err != nil {
		return
	}

	keys := make([]store.TaskKey, len(jobs))
	for i, j := range jobs {
		keys[i] = store.TaskKey{Path: j.Path, TaskType: store.TaskDelete}
	}
	_, finish := b.o.active.register(keys, func() { b.o.sem.Release(1) })
	defer finish()

	b.o.execDeleteBatch(ctx, jobs)
}
