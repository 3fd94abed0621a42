package orchestrator

import (
	"container/heap"
	"sync"
	"time"

	"github.com/nook-dev/nook/internal/store"
)

// Priority levels: lower value dispatches first.
const (
	PriorityDelete = 0 // DELETE tasks, urgent
	PriorityResume = 1 // downstream fan-out (EMBED_LLM after a finished LLM task)
	PriorityLive   = 2 // watcher-detected work, both reconciliation and live events
)

// Job is one unit of queued work.
type Job struct {
	Priority int
	TaskType store.TaskType
	Path     string
	Mtime    float64
}

// jobHeap is a container/heap of Jobs ordered by Priority ascending. Ties
// are broken by heap internals, not insertion order: FIFO is not
// guaranteed within a priority because the queue is a heap.
type jobHeap []Job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].Priority < h[j].Priority }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)         { *h = append(*h, x.(Job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// priorityQueue is a thread-safe, blocking-pop priority queue of Jobs.
type priorityQueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	h    jobHeap
}

func newPriorityQueue() *priorityQueue {
	q := &priorityQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *priorityQueue) push(j Job) {
	q.mu.Lock()
	heap.Push(&q.h, j)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// popWait blocks up to timeout waiting for a Job, matching the dispatcher
// loop's bounded blocking pop.
func (q *priorityQueue) popWait(timeout time.Duration) (Job, bool) {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.h.Len() == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Job{}, false
		}
		timer := time.AfterFunc(remaining, q.cond.Broadcast)
		q.cond.Wait()
		timer.Stop()
		if q.h.Len() == 0 && time.Now().After(deadline) {
			return Job{}, false
		}
	}
	return heap.Pop(&q.h).(Job), true
}

func (q *priorityQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}
