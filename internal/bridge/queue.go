package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/deque"
)

// ErrClosed is returned when sending to, or draining, a closed queue.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO with one reader. Send never blocks.
type Queue[T any] struct {
	mu     sync.Mutex
	items  deque.Deque[T]
	closed bool
	ready  chan struct{}
}

// NewQueue returns an empty open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Send appends v to the queue.
func (q *Queue[T]) Send(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items.PushBack(v)
	q.mu.Unlock()

	q.wake()
	return nil
}

// Close stops further sends. Items already queued can still be received.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

// Poll removes and returns the head of the queue without blocking.
func (q *Queue[T]) Poll() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

// Next blocks until an item is available, the queue is closed and drained
// (ErrClosed), or ctx is done.
func (q *Queue[T]) Next(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		v, ok := q.pop()
		closed := q.closed
		q.mu.Unlock()

		if ok {
			return v, nil
		}
		if closed {
			return v, ErrClosed
		}

		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *Queue[T]) pop() (T, bool) {
	if q.items.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.items.PopFront(), true
}

func (q *Queue[T]) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
