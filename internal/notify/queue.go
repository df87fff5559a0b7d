package notify

import "sync"

// Queue is an unbounded, goroutine-safe FIFO of notifications.
//
// The zero value is ready to use.
type Queue struct {
	mu    sync.Mutex
	items []Notification
}

// Push appends n. It never blocks on the consumer.
func (q *Queue) Push(n Notification) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()
}

// DrainOne removes and returns the oldest notification.
// The second result is false when the queue is empty.
func (q *Queue) DrainOne() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	n := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return n, true
}

// Drain removes and returns everything currently queued, oldest first.
// Producers racing with Drain either land in the returned slice or stay
// queued for the next call.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
