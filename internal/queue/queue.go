// Package queue provides a small generic FIFO used by the protocol engine for
// outbound frames waiting on the flow gate and for in-flight registration
// requests awaiting their handle responses.
package queue

// Queue is a slice-backed FIFO of T.
//
// It is not safe for concurrent use; the protocol engine owns each instance
// and mutates it only from its step loop.
type Queue[T any] struct {
	items []T
}

// New creates a Queue with capacity preallocated for prealloc items.
func New[T any](prealloc int) *Queue[T] {
	return &Queue[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds an item to the tail of the queue.
func (q *Queue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the item at the head of the queue.
// The second return value is false if the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero // release the reference for GC
	q.items = q.items[1:]

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
// The second return value is false if the queue is empty.
func (q *Queue[T]) Peek() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	return q.items[0], true
}

// Reset empties the queue, keeping the underlying array for reuse.
func (q *Queue[T]) Reset() {
	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.items = q.items[:0]
}

// IsEmpty returns true if the queue holds no items.
func (q *Queue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	return len(q.items)
}
