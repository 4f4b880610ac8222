package entitysync

import (
	"sync"

	"github.com/roach88/rlchess/internal/ir"
)

// Update is one component value observed by an indexer feed.
// EntityID may be empty, in which case it is derived from Keys.
type Update struct {
	EntityID  string
	Component string
	Keys      ir.IRArray
	Value     ir.IRObject
}

// updateQueue is a thread-safe unbounded FIFO of updates.
//
// Feeds enqueue from their own goroutines while the Run loop dequeues.
// The signal channel (buffered, size 1) lets Run wait with a select on
// ctx.Done() instead of blocking on a condition variable.
type updateQueue struct {
	mu      sync.Mutex
	updates []Update
	closed  bool
	signal  chan struct{}
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{
		updates: make([]Update, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an update to the back of the queue.
// Returns false if the queue is closed.
func (q *updateQueue) Enqueue(u Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.updates = append(q.updates, u)

	// Non-blocking: the size-1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front update without blocking.
func (q *updateQueue) TryDequeue() (Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.updates) == 0 {
		return Update{}, false
	}
	u := q.updates[0]

	// Clear the slot so the backing array does not pin the value map.
	q.updates[0] = Update{}
	if len(q.updates) == 1 {
		q.updates = q.updates[:0]
	} else {
		q.updates = q.updates[1:]
	}
	return u, true
}

// Wait returns a channel that signals when updates may be available.
// The channel is closed by Close.
func (q *updateQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *updateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.updates)
}

// Close stops further enqueues and wakes the Run loop.
func (q *updateQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *updateQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
