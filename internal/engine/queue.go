package engine

import "sync"

// request asks the Run loop to refresh the player that was current when
// the request was made.
type request struct {
	player string
	gen    uint64
}

// requestQueue is a thread-safe FIFO of refresh requests.
//
// An identical request already waiting is not queued twice. The signal
// channel (buffered, size 1) lets Run wait with context awareness.
type requestQueue struct {
	mu       sync.Mutex
	requests []request
	closed   bool
	signal   chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]request, 0, 4),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue appends r unless an identical request is already waiting.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	for _, pending := range q.requests {
		if pending == r {
			return true
		}
	}
	q.requests = append(q.requests, r)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front request without blocking.
func (q *requestQueue) TryDequeue() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return request{}, false
	}
	r := q.requests[0]
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

// Wait returns a channel that signals when requests may be available.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of waiting requests.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close stops further enqueues and wakes any waiter.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
