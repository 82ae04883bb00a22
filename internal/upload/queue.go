// Package upload drains captured segments to the backend in order.
package upload

import (
	"sync"

	"tablecast/internal/capture"
)

// DefaultCapacity bounds the buffered segment queue.
const DefaultCapacity = 12

// Queue is a bounded FIFO of segments awaiting upload. Insertion order is
// upload order; when capacity is exceeded the oldest entry is evicted.
// Eviction is explicit policy (recency over completeness), not an error.
type Queue struct {
	mu       sync.Mutex
	items    []capture.Segment
	capacity int
}

// NewQueue creates a queue with the given capacity (DefaultCapacity if
// non-positive).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{capacity: capacity}
}

// Enqueue appends a segment, evicting the oldest entry first if the queue
// is at capacity. Returns the evicted segment, if any.
func (q *Queue) Enqueue(seg capture.Segment) (capture.Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var evicted capture.Segment
	var didEvict bool
	if len(q.items) >= q.capacity {
		evicted = q.items[0]
		q.items = q.items[1:]
		didEvict = true
	}
	q.items = append(q.items, seg)
	return evicted, didEvict
}

// Head returns the oldest segment without removing it.
func (q *Queue) Head() (capture.Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return capture.Segment{}, false
	}
	return q.items[0], true
}

// Dequeue removes the oldest segment.
func (q *Queue) Dequeue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
}

// Len returns the number of buffered segments.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Seqs returns the buffered sequence numbers in queue order.
func (q *Queue) Seqs() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]uint64, len(q.items))
	for i, seg := range q.items {
		out[i] = seg.Seq
	}
	return out
}
