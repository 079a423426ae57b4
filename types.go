// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package msq

// Queue is a registered endpoint of a queue.
//
// Endpoints are obtained from Register and carry the caller's hazard slot,
// so an endpoint must not be shared by goroutines running concurrently.
// Each goroutine registers its own endpoint and releases it when done.
//
// The interface intentionally excludes length because accurate counts in
// lock-free algorithms require expensive cross-core synchronization.
//
// Example:
//
//	q := msq.NewMPMC[int](8)
//	h, err := q.Register()
//	if err != nil {
//	    return err // too many goroutines registered
//	}
//	defer h.Release()
//
//	v := 42
//	h.Enqueue(&v)
//	elem, err := h.Dequeue()
type Queue[T any] interface {
	Producer[T]
	Consumer[T]
	Release()
}

// BoundedQueue is an endpoint of a capacity-limited queue.
type BoundedQueue[T any] interface {
	Queue[T]
	Cap() int
}

// Producer is the interface for enqueueing elements.
//
// The element is passed by pointer to avoid copying large structs. The
// queue stores a copy of the pointed-to value, so the original can be
// modified after Enqueue returns.
type Producer[T any] interface {
	// Enqueue appends a copy of *elem to the tail (non-blocking).
	// Returns ErrAllocation if no node could be obtained, or
	// ErrWouldBlock if a bounded queue is full.
	Enqueue(elem *T) error
}

// Consumer is the interface for dequeueing elements.
type Consumer[T any] interface {
	// Dequeue removes and returns the element at the head (non-blocking).
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	Dequeue() (T, error)
}
