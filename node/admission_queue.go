package node

import "sync"

// AdmissionQueue is the bounded FIFO gating a node's dispatch loop. TryPush
// rejects when full (the drop case, reported to callers as a plain false,
// never an error). PushFront requeues a popped head after a failed dispatch
// and may exceed the capacity transiently by that one in-flight item.
// A service's single slot is this queue with capacity 1.
type AdmissionQueue[T any] struct {
	mu    sync.Mutex
	items []T
	cap   int
}

// NewAdmissionQueue creates a queue with the given capacity (minimum 1).
func NewAdmissionQueue[T any](capacity int) *AdmissionQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &AdmissionQueue[T]{cap: capacity}
}

// TryPush appends v and reports whether there was room.
func (q *AdmissionQueue[T]) TryPush(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		return false
	}
	q.items = append(q.items, v)
	return true
}

// PushFront requeues v at the head, bypassing the capacity check.
func (q *AdmissionQueue[T]) PushFront(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]T{v}, q.items...)
}

// Pop removes and returns the head.
func (q *AdmissionQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// Len returns the current occupancy.
func (q *AdmissionQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the configured capacity.
func (q *AdmissionQueue[T]) Cap() int {
	return q.cap
}

// Free reports whether another TryPush would be admitted; this is the
// answer a probe gets.
func (q *AdmissionQueue[T]) Free() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) < q.cap
}
