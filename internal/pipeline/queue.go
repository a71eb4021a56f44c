package pipeline

import (
	"container/heap"
	"context"
	"sync"

	"github.com/agentrun-io/agentrun/internal/domain/model"
)

// readyItem wraps a task with the insertion sequence used to break ties.
type readyItem struct {
	task *model.JobTask
	seq  uint64
}

// readyHeap orders tasks by priority descending, then submission order. The
// sequence number keeps ordering stable when timestamps collide.
type readyHeap []readyItem

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	if !h[i].task.CreatedAt.Equal(h[j].task.CreatedAt) {
		return h[i].task.CreatedAt.Before(h[j].task.CreatedAt)
	}
	return h[i].seq < h[j].seq
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) { *h = append(*h, x.(readyItem)) }

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = readyItem{}
	*h = old[:n-1]
	return it
}

// readyQueue is the bounded priority queue workers pull from. Push never
// blocks; Pop blocks until a task arrives or the context ends.
type readyQueue struct {
	mu    sync.Mutex
	items readyHeap
	max   int
	seq   uint64
	wake  chan struct{}
}

func newReadyQueue(max int) *readyQueue {
	return &readyQueue{max: max, wake: make(chan struct{}, 1)}
}

// Push enqueues the task. Returns false when the queue is at capacity.
func (q *readyQueue) Push(t *model.JobTask) bool {
	q.mu.Lock()
	if len(q.items) >= q.max {
		q.mu.Unlock()
		return false
	}
	q.seq++
	heap.Push(&q.items, readyItem{task: t, seq: q.seq})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the highest-priority task, blocking until one is available.
// Returns false when ctx is done.
func (q *readyQueue) Pop(ctx context.Context) (*model.JobTask, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := heap.Pop(&q.items).(readyItem)
			// Wake another waiter in case several tasks arrived on one signal.
			if len(q.items) > 0 {
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return it.task, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.wake:
		}
	}
}

// Len returns the current queue depth.
func (q *readyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
