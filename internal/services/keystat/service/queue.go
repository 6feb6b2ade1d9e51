package service

import (
	"sync"

	"keystat/internal/services/keystat/domain"
)

// Queue is an unbounded FIFO with a single consumer.
// Push never blocks; Ready fires at least once after any Push
type Queue struct {
	mu    sync.Mutex
	items []domain.Event
	ready chan struct{}
}

// NewQueue returns an empty queue
func NewQueue() *Queue { return &Queue{ready: make(chan struct{}, 1)} }

// Push appends e and wakes the consumer
func (q *Queue) Push(e domain.Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain detaches every queued event in arrival order; it may return none
func (q *Queue) Drain() []domain.Event {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	return out
}

// Ready is signalled when events may be waiting
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Len is the number of queued events
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
