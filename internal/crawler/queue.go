package crawler

import (
	"context"
	"sync"

	"github.com/nao1215/offmirror/internal/model"
)

// Queue is an unbounded multi-producer, multi-consumer work queue that knows
// when a crawl is finished.
//
// It counts outstanding work: items waiting in the queue plus items handed to
// a worker that has not yet called Done. A worker pushes the children of an
// item before calling Done for it, so the count can only reach zero once no
// worker holds work that might produce more. At that point every blocked Pop
// returns false.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []model.WorkItem
	pending int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item and wakes one waiting worker.
func (q *Queue) Push(item model.WorkItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.pending++
	q.mu.Unlock()

	q.cond.Signal()
}

// Pop blocks until an item is available and returns it. It returns false
// when the crawl is finished (no queued and no in-flight items) or when ctx
// is cancelled. Every item returned must be followed by a call to Done.
func (q *Queue) Pop(ctx context.Context) (model.WorkItem, bool) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.cond.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.pending == 0 || ctx.Err() != nil {
			return model.WorkItem{}, false
		}
		q.cond.Wait()
	}
	if ctx.Err() != nil {
		return model.WorkItem{}, false
	}

	item := q.items[0]
	q.items[0] = model.WorkItem{}
	q.items = q.items[1:]
	return item, true
}

// Done marks one popped item as fully processed.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending--
	if q.pending <= 0 {
		q.pending = 0
		q.cond.Broadcast()
	}
}

// Len returns the number of items waiting to be popped.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns the number of queued plus in-flight items.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}
