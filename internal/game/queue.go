package game

import "sync"

// actionQueue is a thread-safe FIFO of pending actions.
//
// The timer task and player input enqueue from their own goroutines; the
// Runner's Run loop dequeues. A buffered signal channel (size 1) lets the
// loop wait with context awareness.
type actionQueue struct {
	mu      sync.Mutex
	actions []Action
	closed  bool
	signal  chan struct{}
}

func newActionQueue() *actionQueue {
	return &actionQueue{
		actions: make([]Action, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends a. Returns false if the queue is closed.
func (q *actionQueue) Enqueue(a Action) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.actions = append(q.actions, a)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front action without blocking.
func (q *actionQueue) TryDequeue() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.actions) == 0 {
		return Action{}, false
	}
	a := q.actions[0]
	q.actions[0] = Action{}
	if len(q.actions) == 1 {
		q.actions = q.actions[:0]
	} else {
		q.actions = q.actions[1:]
	}
	return a, true
}

// Wait returns a channel that fires when actions may be available.
// It is closed when the queue closes.
func (q *actionQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *actionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Close stops further enqueues and wakes any waiter.
func (q *actionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
