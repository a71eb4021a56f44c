package pipeline

import (
	"container/heap"
	"sync"
	"time"

	"github.com/agentrun-io/agentrun/internal/domain/model"
)

// delayedHeap orders tasks by ScheduledAt ascending.
type delayedHeap []*model.JobTask

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].ScheduledAt.Before(h[j].ScheduledAt) }
func (h delayedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *delayedHeap) Push(x any) { *h = append(*h, x.(*model.JobTask)) }

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// delayedQueue holds future-scheduled and backing-off tasks until promotion.
// Unbounded: everything in it was already admitted once.
type delayedQueue struct {
	mu    sync.Mutex
	items delayedHeap
}

func newDelayedQueue() *delayedQueue { return &delayedQueue{} }

// Push adds a task keyed on its ScheduledAt.
func (q *delayedQueue) Push(t *model.JobTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.items, t)
}

// PopReady removes and returns every task runnable at now, soonest first.
func (q *delayedQueue) PopReady(now time.Time) []*model.JobTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []*model.JobTask
	for len(q.items) > 0 && q.items[0].Ready(now) {
		ready = append(ready, heap.Pop(&q.items).(*model.JobTask))
	}
	return ready
}

// Len returns the number of waiting tasks.
func (q *delayedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
