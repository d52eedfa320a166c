package queue

import (
	"errors"
	"sync"

	"dupebot/internal/pkg/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// First in, first out queue of gateway events with a fixed capacity.
type Queue struct {
	mu       sync.Mutex
	capacity int
	q        []models.Event
	closed   bool
	ready    chan struct{}
}

// Creates an empty queue with a specified capacity
func CreateQueue(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity should be greater than 0")
	}
	return &Queue{
		capacity: capacity,
		q:        make([]models.Event, 0, capacity),
		ready:    make(chan struct{}, 1),
	}, nil
}

// Inserts an item into the queue
func (q *Queue) Insert(item models.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if len(q.q) >= q.capacity {
		return ErrQueueFull
	}
	q.q = append(q.q, item)
	q.Signal()
	return nil
}

// Removes the oldest element from the queue
func (q *Queue) Remove() (models.Event, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.q) == 0 {
		return models.Event{}, ErrQueueEmpty
	}
	item := q.q[0]
	q.q[0] = models.Event{}
	q.q = q.q[1:]
	return item, nil
}

// Signals (at most once per batch of inserts) that items may be available.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Wakes one waiter on Ready, unless a wake-up is already pending.
func (q *Queue) Signal() {
	select {
	case q.ready <- struct{}{}:
	default:
		// consumer already signaled
	}
}

// Stops accepting new items. Items already queued can still be removed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Returns the number of elements in the queue
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.q)
}

// Returns true if the queue is empty
func (q *Queue) IsEmpty() bool {
	return q.Length() == 0
}
