// Package msgqueue holds envelopes waiting to be sent.
package msgqueue

import (
	"sync"

	"github.com/chronologos/mediaplug/internal/envelope"
)

const minCapacity = 16

// Queue is a growable FIFO ring of envelopes.
//
// Queue is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []*envelope.Envelope
	head    int // index of the oldest entry
	count   int
	signal  chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		entries: make([]*envelope.Envelope, minCapacity),
		signal:  make(chan struct{}, 1),
	}
}

// PushBack appends e after every queued envelope.
func (q *Queue) PushBack(e *envelope.Envelope) {
	q.mu.Lock()
	q.grow()
	q.entries[(q.head+q.count)%len(q.entries)] = e
	q.count++
	q.mu.Unlock()
	q.notify()
}

// PopFront removes and returns the oldest envelope, or nil if empty.
func (q *Queue) PopFront() *envelope.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Drain removes and returns every queued envelope in order.
func (q *Queue) Drain() []*envelope.Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}
	out := make([]*envelope.Envelope, 0, q.count)
	for q.count > 0 {
		out = append(out, q.popLocked())
	}
	return out
}

// Len returns the number of queued envelopes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Reset discards everything queued.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.entries)
	q.head = 0
	q.count = 0
}

// Ready returns a channel that receives after a push. A consumer selects on
// it and then drains; one signal may cover several pushes.
func (q *Queue) Ready() <-chan struct{} {
	return q.signal
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// popLocked removes the oldest entry. Caller must hold q.mu.
func (q *Queue) popLocked() *envelope.Envelope {
	if q.count == 0 {
		return nil
	}
	e := q.entries[q.head]
	q.entries[q.head] = nil // release memory
	q.head = (q.head + 1) % len(q.entries)
	q.count--
	return e
}

// grow doubles the ring when full, unrolling it so head lands at 0.
// Caller must hold q.mu.
func (q *Queue) grow() {
	if q.count < len(q.entries) {
		return
	}
	next := make([]*envelope.Envelope, len(q.entries)*2)
	for i := 0; i < q.count; i++ {
		next[i] = q.entries[(q.head+i)%len(q.entries)]
	}
	q.entries = next
	q.head = 0
}
